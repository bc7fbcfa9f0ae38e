package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"volunteer-attendance/internal/config"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteProvider struct {
	*SQLProvider
}

func NewSQLiteProvider(cfg *config.Storage) (*SQLiteProvider, error) {
	path := cfg.SQLite.Path
	if path == "" {
		return nil, errors.New("sqlite path is not set")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database folder: %w", err)
		}
	}

	provider, err := NewSQLProvider(cfg, "sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	// SQLite allows a single writer. An in-memory database also exists per
	// connection, so one connection keeps every caller on the same data.
	provider.db.SetMaxOpenConns(1)
	provider.db.SetMaxIdleConns(1)

	return &SQLiteProvider{SQLProvider: provider}, nil
}
