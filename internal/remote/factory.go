package remote

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Backend names accepted by NewStore.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Options selects and configures a Store backend.
type Options struct {
	// Backend is "memory", "sqlite" (default) or "postgres".
	Backend string

	// SQLitePath is the absolute database path for the sqlite backend.
	SQLitePath string

	// PostgresURL is the connection string for the postgres backend.
	PostgresURL string

	// PollInterval is the sqlite subscription polling period.
	PollInterval time.Duration
}

// NewStore returns the configured store backend.
//
// Returns an error if the backend type is unknown or its required setting
// is missing.
func NewStore(ctx context.Context, opts Options) (Store, error) {
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	if backend == "" {
		backend = BackendSQLite
	}

	switch backend {
	case BackendMemory:
		return NewMemoryStore(), nil

	case BackendSQLite:
		if opts.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite backend requires a database path")
		}
		store, err := NewSQLiteStore(opts.SQLitePath, opts.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite store: %w", err)
		}
		return store, nil

	case BackendPostgres:
		if opts.PostgresURL == "" {
			return nil, fmt.Errorf("postgres backend requires a connection string")
		}
		store, err := NewPostgresStore(ctx, opts.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open PostgreSQL store: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown store backend: %q. Expected 'memory', 'sqlite' or 'postgres'", backend)
	}
}
