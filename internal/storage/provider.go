package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"volunteer-attendance/internal/config"
)

// Provider is a list-based record store. Each list is a typed collection with
// auto-incrementing numeric ids and created/modified timestamps.
type Provider interface {
	Close() error
	GetSchemaVersion(ctx context.Context) (int, error)

	// ListAll returns every item of the list ordered by id. Only the named
	// fields are returned; nil returns all fields.
	ListAll(ctx context.Context, list string, fields []string) ([]Item, error)
	// Create inserts a new item and returns its id.
	Create(ctx context.Context, list string, fields Fields) (int64, error)
	// Update merges fields into an existing item.
	Update(ctx context.Context, list string, id int64, fields Fields) error
	Delete(ctx context.Context, list string, id int64) error

	// ListVersion returns a counter bumped by every write to the list. A
	// snapshot read after observing version v reflects every write up to v.
	ListVersion(ctx context.Context, list string) (int64, error)

	RunLocker
}

// RunLocker is a named lock shared by every process using the store.
type RunLocker interface {
	// TryLock takes the lock for owner, or extends it when owner already holds
	// it. A lock whose holder did not extend it within ttl is free again. It
	// reports false when another owner holds the lock.
	TryLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	// Unlock releases the lock if owner holds it.
	Unlock(ctx context.Context, name, owner string) error
}

func NewProvider(cfg *config.Storage) (Provider, error) {
	switch cfg.Type {
	case "sqlite":
		provider, err := NewSQLiteProvider(cfg)
		if err != nil {
			return nil, err
		}
		if err := provider.runMigrations(context.Background(), "sqlite3", -1); err != nil {
			provider.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return provider, nil

	case "postgres":
		provider, err := NewPostgresProvider(cfg)
		if err != nil {
			return nil, err
		}
		if err := provider.runMigrations(context.Background(), "pgx", -1); err != nil {
			provider.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return provider, nil

	case "memory":
		slog.Warn("Using in-memory storage, records are lost on exit")
		return NewMemoryProvider(), nil

	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnsupportedStorage, cfg.Type)
	}
}
