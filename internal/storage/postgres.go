package storage

import (
	"errors"

	"volunteer-attendance/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type PostgresProvider struct {
	*SQLProvider
}

func NewPostgresProvider(cfg *config.Storage) (*PostgresProvider, error) {
	if cfg.Postgres.DSN == "" {
		return nil, errors.New("postgres dsn is not set")
	}
	provider, err := NewSQLProvider(cfg, "pgx", cfg.Postgres.DSN)
	if err != nil {
		return nil, err
	}
	return &PostgresProvider{SQLProvider: provider}, nil
}
