package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rickgao/gamelink/internal/auth"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS session_credentials (
		profile       TEXT PRIMARY KEY,
		token         TEXT NOT NULL,
		refresh_token TEXT NOT NULL DEFAULT '',
		updated_at    INTEGER NOT NULL
	)
`

// SQLite stores credentials in a local SQLite database.
type SQLite struct {
	db      *sql.DB
	profile string
}

// NewSQLite opens (creating if needed) the database at path.
func NewSQLite(ctx context.Context, path, profile string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create session_credentials: %w", err)
	}

	return &SQLite{db: db, profile: profile}, nil
}

func (s *SQLite) Load(ctx context.Context) (auth.Credentials, error) {
	var creds auth.Credentials
	err := s.db.QueryRowContext(ctx,
		`SELECT token, refresh_token FROM session_credentials WHERE profile = ?`,
		s.profile,
	).Scan(&creds.Token, &creds.RefreshToken)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Credentials{}, ErrNotFound
	}
	if err != nil {
		return auth.Credentials{}, fmt.Errorf("select credentials: %w", err)
	}
	return creds, nil
}

func (s *SQLite) Save(ctx context.Context, creds auth.Credentials) error {
	if err := validate(creds); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_credentials (profile, token, refresh_token, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (profile) DO UPDATE
		SET token = excluded.token, refresh_token = excluded.refresh_token, updated_at = excluded.updated_at
	`, s.profile, creds.Token, creds.RefreshToken, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert credentials: %w", err)
	}
	return nil
}

func (s *SQLite) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_credentials WHERE profile = ?`, s.profile); err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
