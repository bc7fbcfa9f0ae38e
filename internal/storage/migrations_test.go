package storage

import (
	"errors"
	"testing"
)

func TestMigrationRunner_LoadUp(t *testing.T) {
	runner := NewMigrationRunner("sqlite3")
	migrations, err := runner.LoadMigrations(0, -1)
	if err != nil {
		t.Fatalf("LoadMigrations failed: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("expected at least one migration")
	}
	for i, m := range migrations {
		if !m.Up {
			t.Errorf("migration %d is not an up migration", m.Version)
		}
		if i > 0 && migrations[i-1].Version >= m.Version {
			t.Errorf("migrations not sorted ascending")
		}
	}
}

func TestMigrationRunner_LoadDown(t *testing.T) {
	runner := NewMigrationRunner("sqlite3")
	latest, err := runner.GetLatestMigrationVersion()
	if err != nil {
		t.Fatalf("GetLatestMigrationVersion failed: %v", err)
	}

	migrations, err := runner.LoadMigrations(latest, 0)
	if err != nil {
		t.Fatalf("LoadMigrations failed: %v", err)
	}
	for _, m := range migrations {
		if m.Up {
			t.Errorf("migration %d should be a down migration", m.Version)
		}
		if m.After() != m.Version-1 {
			t.Errorf("unexpected After() for down migration %d", m.Version)
		}
	}
}

func TestMigrationRunner_SameVersion(t *testing.T) {
	runner := NewMigrationRunner("pgx")
	latest, _ := runner.GetLatestMigrationVersion()
	if _, err := runner.LoadMigrations(latest, latest); !errors.Is(err, ErrMigrateCurrentVersionSameAsTarget) {
		t.Fatalf("expected ErrMigrateCurrentVersionSameAsTarget, got %v", err)
	}
}

func TestMigrationRunner_UnsupportedDriver(t *testing.T) {
	runner := NewMigrationRunner("oracle")
	if _, err := runner.GetLatestMigrationVersion(); !errors.Is(err, ErrUnsupportedDriver) {
		t.Fatalf("expected ErrUnsupportedDriver, got %v", err)
	}
}

func TestParseMigrationFile_InvalidName(t *testing.T) {
	runner := NewMigrationRunner("sqlite3")
	if _, err := runner.parseMigrationFile("migrations/sqlite3/lists.sql"); err == nil {
		t.Fatal("expected error for invalid filename")
	}
}
