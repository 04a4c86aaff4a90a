// Package credstore persists the session token pair between runs.
//
// The only persisted state is auth.Credentials, keyed by profile name.
// Backends: memory, file (YAML), redis, postgres, sqlite.
package credstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rickgao/gamelink/internal/auth"
	"github.com/rickgao/gamelink/internal/config"
)

// ErrNotFound is returned by Load when no credentials are stored.
var ErrNotFound = errors.New("credentials not found")

// Store reads and writes the stored token pair.
type Store interface {
	// Load returns the stored credentials or ErrNotFound.
	Load(ctx context.Context) (auth.Credentials, error)

	// Save replaces the stored credentials.
	Save(ctx context.Context, creds auth.Credentials) error

	// Clear removes the stored credentials. Clearing an empty store is not an error.
	Clear(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Store types.
const (
	TypeMemory   = "memory"
	TypeFile     = "file"
	TypeRedis    = "redis"
	TypePostgres = "postgres"
	TypeSQLite   = "sqlite"
)

// NewStore creates the backend selected by cfg.Type.
func NewStore(ctx context.Context, cfg config.CredentialsConfig) (Store, error) {
	profile := cfg.Profile
	if profile == "" {
		profile = config.DefaultCredentialsProfile
	}

	switch strings.ToLower(cfg.Type) {
	case "", TypeMemory:
		return NewMemory(), nil
	case TypeFile:
		return NewFile(cfg.File.Path, profile)
	case TypeRedis:
		return NewRedis(ctx, cfg.Redis, profile)
	case TypePostgres:
		return NewPostgres(ctx, cfg.Postgres, profile)
	case TypeSQLite:
		return NewSQLite(ctx, cfg.SQLite.Path, profile)
	default:
		return nil, fmt.Errorf("unknown credentials store type %q", cfg.Type)
	}
}

func validate(creds auth.Credentials) error {
	if creds.Token == "" {
		return errors.New("save credentials: token is empty")
	}
	return nil
}
