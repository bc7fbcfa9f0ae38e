// Package storage provides the list-based record store and its embedded
// schema migrations.
//
// Migrations live under migrations/<driver>/ as NNNN_name.up.sql and
// NNNN_name.down.sql. A schema version is the number of the last applied up
// migration, zero being the empty database.

package storage

import (
	"cmp"
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"slices"
	"strconv"
	"time"
)

//go:embed migrations/**/*.sql
var migrationsFS embed.FS

var reMigrationFilename = regexp.MustCompile(`^(?P<Version>\d{4})\_(?P<Name>[^.]+)\.(?P<Direction>(up|down))\.sql$`)

var (
	ErrMigrateCurrentVersionSameAsTarget = errors.New("current version is the same as target version")
	ErrUnsupportedDriver                 = errors.New("unsupported driver")
)

// Driver name -> embedded migration directory
var migrationDirs = map[string]string{
	"sqlite3": "migrations/sqlite3",
	"pgx":     "migrations/pgx",
}

type SchemaMigration struct {
	Version int
	Name    string
	Up      bool
	SQL     string
}

// After is the schema version once the migration has been applied.
func (m *SchemaMigration) After() int {
	if m.Up {
		return m.Version
	}
	return m.Version - 1
}

// MigrationRunner plans migrations for one driver.
type MigrationRunner struct {
	driver string
	logger *slog.Logger
}

func NewMigrationRunner(driver string) *MigrationRunner {
	return &MigrationRunner{
		driver: driver,
		logger: slog.With("component", "migrations", "driver", driver),
	}
}

// all parses every migration file of the driver. Unparseable names are logged and ignored.
func (mr *MigrationRunner) all() ([]SchemaMigration, error) {
	dir, ok := migrationDirs[mr.driver]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, mr.driver)
	}

	entries, err := migrationsFS.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory: %w", err)
	}

	var out []SchemaMigration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m, err := mr.parseMigrationFile(path.Join(dir, entry.Name()))
		if err != nil {
			mr.logger.Warn("Ignoring migration file", "file", entry.Name(), "error", err)
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// GetLatestMigrationVersion returns the highest up migration version.
func (mr *MigrationRunner) GetLatestMigrationVersion() (int, error) {
	migrations, err := mr.all()
	if err != nil {
		return -1, err
	}

	latest := 0
	for _, m := range migrations {
		if m.Up {
			latest = max(latest, m.Version)
		}
	}
	return latest, nil
}

// LoadMigrations returns the migrations leading from prior to target in the
// order they must run. Target -1 means the latest version.
func (mr *MigrationRunner) LoadMigrations(prior int, target int) ([]SchemaMigration, error) {
	if target == -1 {
		latest, err := mr.GetLatestMigrationVersion()
		if err != nil {
			return nil, err
		}
		target = latest
	}
	if prior == target {
		return nil, ErrMigrateCurrentVersionSameAsTarget
	}

	migrations, err := mr.all()
	if err != nil {
		return nil, err
	}

	up := target > prior
	low, high := min(prior, target), max(prior, target)
	plan := slices.DeleteFunc(migrations, func(m SchemaMigration) bool {
		return m.Up != up || m.Version <= low || m.Version > high
	})
	slices.SortFunc(plan, func(a, b SchemaMigration) int {
		if up {
			return cmp.Compare(a.Version, b.Version)
		}
		return cmp.Compare(b.Version, a.Version)
	})

	mr.logger.Info("Loaded migrations", "count", len(plan), "from_version", prior, "to_version", target)
	return plan, nil
}

func (mr *MigrationRunner) parseMigrationFile(filePath string) (SchemaMigration, error) {
	parts := reMigrationFilename.FindStringSubmatch(path.Base(filePath))
	if parts == nil {
		return SchemaMigration{}, fmt.Errorf("invalid migration filename: %s", path.Base(filePath))
	}

	sql, err := migrationsFS.ReadFile(filePath)
	if err != nil {
		return SchemaMigration{}, fmt.Errorf("failed to read migration file: %w", err)
	}

	version, _ := strconv.Atoi(parts[reMigrationFilename.SubexpIndex("Version")])
	return SchemaMigration{
		Version: version,
		Name:    parts[reMigrationFilename.SubexpIndex("Name")],
		Up:      parts[reMigrationFilename.SubexpIndex("Direction")] == "up",
		SQL:     string(sql),
	}, nil
}

const createSchemaMigrationsTable = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER NOT NULL,
	name TEXT NOT NULL,
	applied_at TIMESTAMP NOT NULL
)`

// runMigrations brings the schema to target, -1 meaning the latest version.
// Each migration runs in its own transaction together with its bookkeeping row.
func (p *SQLProvider) runMigrations(ctx context.Context, driver string, target int) error {
	if _, err := p.db.ExecContext(ctx, createSchemaMigrationsTable); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	current, err := p.GetSchemaVersion(ctx)
	if err != nil {
		return err
	}

	migrations, err := NewMigrationRunner(driver).LoadMigrations(current, target)
	if errors.Is(err, ErrMigrateCurrentVersionSameAsTarget) {
		p.logger.Debug("Schema is up to date", "version", current)
		return nil
	} else if err != nil {
		return err
	}

	for _, m := range migrations {
		if err := p.applyMigration(ctx, m); err != nil {
			return err
		}
		p.logger.Info("Applied migration", "version", m.Version, "name", m.Name, "up", m.Up, "schema_version", m.After())
	}
	return nil
}

func (p *SQLProvider) applyMigration(ctx context.Context, m SchemaMigration) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("migration %04d_%s failed: %w", m.Version, m.Name, err)
	}

	if m.Up {
		_, err = tx.ExecContext(ctx, tx.Rebind("INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)"), m.Version, m.Name, time.Now().UTC())
	} else {
		_, err = tx.ExecContext(ctx, tx.Rebind("DELETE FROM schema_migrations WHERE version = ?"), m.Version)
	}
	if err != nil {
		return fmt.Errorf("failed to record migration %04d: %w", m.Version, err)
	}
	return tx.Commit()
}
