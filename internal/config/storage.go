package config

// Storage selects and configures the record store backend.
type Storage struct {
	// Backend type: "sqlite", "postgres" or "memory"
	Type string `mapstructure:"type"`

	// Column naming of the list store: "current" or "legacy"
	Schema string `mapstructure:"schema"`

	SQLite   SQLiteStorage   `mapstructure:"sqlite"`
	Postgres PostgresStorage `mapstructure:"postgres"`
}

type SQLiteStorage struct {
	Path string `mapstructure:"path"`
}

type PostgresStorage struct {
	DSN string `mapstructure:"dsn"`
}
