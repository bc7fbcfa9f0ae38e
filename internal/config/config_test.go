package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Storage.Type != "sqlite" {
		t.Errorf("Storage.Type = %q, want sqlite", cfg.Storage.Type)
	}
	if cfg.Storage.Schema != "current" {
		t.Errorf("Storage.Schema = %q, want current", cfg.Storage.Schema)
	}
	if cfg.Ticketing.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %s, want 30s", cfg.Ticketing.RequestTimeout)
	}
	if cfg.Sync.PlaceholderName != "Info Requested" {
		t.Errorf("PlaceholderName = %q", cfg.Sync.PlaceholderName)
	}
	if cfg.Sync.LockTTL != 10*time.Minute {
		t.Errorf("LockTTL = %s, want 10m", cfg.Sync.LockTTL)
	}
	if !strings.HasSuffix(cfg.Storage.SQLite.Path, filepath.Join("data", "attendance.db")) {
		t.Errorf("unexpected sqlite path %q", cfg.Storage.SQLite.Path)
	}
	if Cfg != cfg {
		t.Error("LoadConfig should publish the loaded config")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TICKETING_TOKEN", "secret-token")
	t.Setenv("TICKETING_REQUEST_TIMEOUT", "5s")
	t.Setenv("SYNC_INTERVAL", "1h")
	t.Setenv("STORAGE_SCHEMA", "Legacy")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Ticketing.Token != "secret-token" {
		t.Errorf("Token = %q", cfg.Ticketing.Token)
	}
	if cfg.Ticketing.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %s", cfg.Ticketing.RequestTimeout)
	}
	if cfg.Sync.Interval != time.Hour {
		t.Errorf("Interval = %s", cfg.Sync.Interval)
	}
	if cfg.Storage.Schema != "legacy" {
		t.Errorf("Schema = %q", cfg.Storage.Schema)
	}
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	content := []byte(`
storage:
  type: memory
sync:
  accepted_answers: ["Yes ", "OK"]
  consent_questions:
    "1001": Privacy Consent
    "1002": Photo Consent
`)
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("writefile: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Storage.Type != "memory" {
		t.Errorf("Storage.Type = %q", cfg.Storage.Type)
	}
	if got := cfg.Sync.ConsentQuestions["1002"]; got != "Photo Consent" {
		t.Errorf("consent question 1002 = %q", got)
	}
	if len(cfg.Sync.AcceptedAnswers) != 2 || cfg.Sync.AcceptedAnswers[0] != "yes" || cfg.Sync.AcceptedAnswers[1] != "ok" {
		t.Errorf("AcceptedAnswers not normalized: %v", cfg.Sync.AcceptedAnswers)
	}
}

func TestLoadConfig_InvalidStorage(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORAGE_TYPE", "mongodb")

	_, err := LoadConfig()
	if !errors.Is(err, ErrUnsupportedStorage) {
		t.Fatalf("expected ErrUnsupportedStorage, got %v", err)
	}
}
