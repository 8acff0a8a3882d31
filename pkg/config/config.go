// Package config loads configuration from config.yaml with environment
// variable overrides. Environment variables always win for fields that
// support both sources. Secrets (database password, API keys) come only
// from environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Backend names for StorageConfig.Backend.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config holds all configuration for reelsight-engine.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // set at load time, not from config

	Storage StorageConfig `yaml:"storage"`
	OpenAI  OpenAIConfig  `yaml:"openai"`
	Chat    ChatConfig    `yaml:"chat"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	// Backend is "postgres" or "sqlite".
	Backend string `yaml:"backend" env:"STORAGE_BACKEND" env-default:"sqlite"`

	// QueryTimeoutSeconds bounds every logical storage operation.
	QueryTimeoutSeconds int `yaml:"query_timeout_seconds" env:"STORAGE_QUERY_TIMEOUT_SECONDS" env-default:"10"`

	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"reelsight"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"reelsight"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
}

// ConnectionString returns a PostgreSQL connection string.
func (c *PostgresConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// SQLiteConfig holds embedded database configuration.
type SQLiteConfig struct {
	// Path is the database file; parent directories are created on open.
	Path string `yaml:"path" env:"SQLITE_PATH" env-default:"data/reelsight.db"`
	// BusyTimeoutMS is the PRAGMA busy_timeout value in milliseconds.
	BusyTimeoutMS int `yaml:"busy_timeout_ms" env:"SQLITE_BUSY_TIMEOUT_MS" env-default:"10000"`
}

// OpenAIConfig holds the completion/embedding endpoint configuration.
// An empty API key soft-disables retrieval features instead of failing
// startup.
type OpenAIConfig struct {
	APIKey         string `yaml:"-" env:"OPENAI_API_KEY"` // Secret - not in YAML
	BaseURL        string `yaml:"base_url" env:"OPENAI_BASE_URL" env-default:""`
	ChatModel      string `yaml:"chat_model" env:"OPENAI_CHAT_MODEL" env-default:"gpt-4o-mini"`
	EmbeddingModel string `yaml:"embedding_model" env:"OPENAI_EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"OPENAI_TIMEOUT_SECONDS" env-default:"60"`
}

// Timeout returns the per-call deadline as a duration.
func (c *OpenAIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ChatConfig tunes the conversational retrieval service.
type ChatConfig struct {
	// HistoryWindow is how many recent turns are replayed per question.
	HistoryWindow int `yaml:"history_window" env:"CHAT_HISTORY_WINDOW" env-default:"10"`
}

// MetricsConfig tunes the marketing metrics engine.
type MetricsConfig struct {
	// ReferenceAudience is the audience size the overall engagement rate
	// is computed against.
	ReferenceAudience int64 `yaml:"reference_audience" env:"METRICS_REFERENCE_AUDIENCE" env-default:"10000"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. A missing config.yaml is fine; environment variables and
// defaults then cover everything. The version parameter is injected at
// build time.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case BackendPostgres, BackendSQLite:
	default:
		return fmt.Errorf("unknown storage backend %q (want %q or %q)",
			c.Storage.Backend, BackendPostgres, BackendSQLite)
	}
	if c.Storage.Backend == BackendSQLite && c.Storage.SQLite.Path == "" {
		return fmt.Errorf("sqlite backend requires a database path")
	}
	if c.Chat.HistoryWindow <= 0 {
		return fmt.Errorf("chat history window must be positive")
	}
	return nil
}

// QueryTimeout returns the storage operation deadline as a duration.
func (c *StorageConfig) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}
