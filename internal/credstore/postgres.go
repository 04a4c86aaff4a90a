package credstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/gamelink/internal/auth"
	"github.com/rickgao/gamelink/internal/config"
	"github.com/rickgao/gamelink/internal/database"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS session_credentials (
		profile       TEXT PRIMARY KEY,
		token         TEXT NOT NULL,
		refresh_token TEXT NOT NULL DEFAULT '',
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// pgxDB is the subset of *pgxpool.Pool used by Postgres.
type pgxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres stores credentials in the session_credentials table.
type Postgres struct {
	db      pgxDB
	pool    *pgxpool.Pool // nil when wrapping an external db
	profile string
}

// NewPostgres connects, creates the table if needed, and returns the store.
func NewPostgres(ctx context.Context, cfg config.DBConfig, profile string) (*Postgres, error) {
	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	p := &Postgres{db: pool, pool: pool, profile: profile}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create session_credentials: %w", err)
	}
	return nil
}

func (p *Postgres) Load(ctx context.Context) (auth.Credentials, error) {
	var creds auth.Credentials
	err := p.db.QueryRow(ctx,
		`SELECT token, refresh_token FROM session_credentials WHERE profile = $1`,
		p.profile,
	).Scan(&creds.Token, &creds.RefreshToken)
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.Credentials{}, ErrNotFound
	}
	if err != nil {
		return auth.Credentials{}, fmt.Errorf("select credentials: %w", err)
	}
	return creds, nil
}

func (p *Postgres) Save(ctx context.Context, creds auth.Credentials) error {
	if err := validate(creds); err != nil {
		return err
	}
	_, err := p.db.Exec(ctx, `
		INSERT INTO session_credentials (profile, token, refresh_token, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (profile) DO UPDATE
		SET token = EXCLUDED.token, refresh_token = EXCLUDED.refresh_token, updated_at = now()
	`, p.profile, creds.Token, creds.RefreshToken)
	if err != nil {
		return fmt.Errorf("upsert credentials: %w", err)
	}
	return nil
}

func (p *Postgres) Clear(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM session_credentials WHERE profile = $1`, p.profile); err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
