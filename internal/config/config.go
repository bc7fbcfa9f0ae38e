package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const DEFAULT_TICKETING_URL = "https://www.eventbriteapi.com/v3"

// TicketingConfig configures the external registration platform client.
type TicketingConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Token          string        `mapstructure:"token"`
	OrganizationID string        `mapstructure:"organization_id"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// Client side request rate limit. Zero disables limiting.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// SyncConfig holds the fixed transformation policy of the reconciliation engine.
type SyncConfig struct {
	// Interval for scheduled combined syncs in server mode. Zero disables the scheduler.
	Interval time.Duration `mapstructure:"interval"`
	// Lifetime of the store-wide run lock; renewed while a run is active
	LockTTL time.Duration `mapstructure:"lock_ttl"`

	// Attendee name used by the platform for group-order seats without details
	PlaceholderName string `mapstructure:"placeholder_name"`
	// Ticket labels containing this word mark the attendee as a child
	ChildTicketWord string `mapstructure:"child_ticket_word"`

	// Answers counted as acceptance, compared lower-cased
	AcceptedAnswers []string `mapstructure:"accepted_answers"`
	// Custom question id -> consent type, e.g. "1234567": "Photo Consent"
	ConsentQuestions map[string]string `mapstructure:"consent_questions"`
}

type ReportConfig struct {
	Recipients []string `mapstructure:"recipients"`
	Subject    string   `mapstructure:"subject"`
}

type EmailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type Config struct {
	LogLevel string `mapstructure:"log_level"`

	// HTTP listen address for the server command
	Listen string `mapstructure:"listen"`
	// Comma separated list of allowed CIDR networks. Empty means allow all.
	AllowedNetworks string `mapstructure:"allowed_networks"`
	BaseURL         string `mapstructure:"base_url"`

	Storage   Storage         `mapstructure:"storage"`
	Ticketing TicketingConfig `mapstructure:"ticketing"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Report    ReportConfig    `mapstructure:"report"`
	Email     EmailConfig     `mapstructure:"email"`
}

var Cfg *Config

var (
	ErrUnsupportedStorage = errors.New("unsupported storage type")
	ErrInvalidSchema      = errors.New("invalid storage schema")
)

// Check if running in Docker container by checking for the presence of /.dockerenv file
func runningInDocker() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}

func getConfigPath() string {
	if runningInDocker() {
		return "/app/instance"
	}
	return "./instance"
}

// LoadConfig reads configuration from an optional config file and environment
// variables and returns a Config struct. Nested keys map to environment
// variables with dots replaced by underscores, e.g. TICKETING_TOKEN.
func LoadConfig(configFile ...string) (*Config, error) {
	var cfg Config

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(getConfigPath())
	v.AddConfigPath(".")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, path := range configFile {
		if path != "" {
			v.SetConfigFile(path)
		}
	}

	for k, val := range Defaults() {
		v.SetDefault(k, val)
	}

	// Load configuration from environment variables
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("unable to read config file: %w", err)
		}
		slog.Debug("No config file found, using defaults and environment")
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	if cfg.Ticketing.Token == "" {
		slog.Warn("Ticketing token is not set, sync commands will fail to authenticate")
	}

	Cfg = &cfg
	return &cfg, nil
}

func (cfg *Config) normalize() error {
	cfg.Storage.Type = strings.ToLower(strings.TrimSpace(cfg.Storage.Type))
	switch cfg.Storage.Type {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedStorage, cfg.Storage.Type)
	}

	cfg.Storage.Schema = strings.ToLower(strings.TrimSpace(cfg.Storage.Schema))
	switch cfg.Storage.Schema {
	case "current", "legacy":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSchema, cfg.Storage.Schema)
	}

	// Convert relative sqlite path to absolute instance folder
	if path := cfg.Storage.SQLite.Path; cfg.Storage.Type == "sqlite" && path != "" && path != ":memory:" && !filepath.IsAbs(path) {
		cfg.Storage.SQLite.Path = filepath.Join(getConfigPath(), path)
	}

	cfg.Ticketing.BaseURL = strings.TrimRight(cfg.Ticketing.BaseURL, "/")
	if cfg.Ticketing.RequestTimeout <= 0 {
		slog.Warn("ticketing.request_timeout must be positive, using 30s", "actual", cfg.Ticketing.RequestTimeout)
		cfg.Ticketing.RequestTimeout = 30 * time.Second
	}
	if cfg.Sync.Interval < 0 {
		cfg.Sync.Interval = 0
	}

	for i, answer := range cfg.Sync.AcceptedAnswers {
		cfg.Sync.AcceptedAnswers[i] = strings.ToLower(strings.TrimSpace(answer))
	}
	return nil
}
