// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (FORUMRAG_* prefix, plus DATABASE_URL and
//     OPENAI_API_KEY passthrough)
//  2. Config file (~/.forumrag/config.yaml or --config override)
//  3. Default values
//
// Categories:
//   - AI: embedding model, chat model, vector widths
//   - Storage: PostgreSQL connection (see storage.go)
//   - Retrieval: top-k, shared-knowledge backfill, query truncation
//   - Ingestion: embedding-call rate limit for bulk loads
//
// Sensitive values (password, API key) are never logged. Validation uses
// sentinel errors so callers can branch with errors.Is.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates the OpenAI API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidEmbeddingModel indicates the embedding model name is invalid.
	ErrInvalidEmbeddingModel = errors.New("invalid embedding model")

	// ErrInvalidDimension indicates the storage vector width is out of range.
	ErrInvalidDimension = errors.New("invalid vector dimension")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid top-k")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidIngestRate indicates the ingestion rate limit is invalid.
	ErrInvalidIngestRate = errors.New("invalid ingest rate")
)

const (
	// DefaultEmbeddingModel is the embedding model used unless overridden.
	DefaultEmbeddingModel = "text-embedding-3-small"

	// DefaultChatModel is the generation model used by the ask command.
	DefaultChatModel = "gpt-4o-mini"

	// DefaultStoreDimension matches the vector(1536) column in db/migrations.
	// Changing it requires a full re-embedding migration of stored documents.
	DefaultStoreDimension = 1536

	// DefaultTopK is the retrieval result budget per query.
	DefaultTopK = 5

	// DefaultQueryMaxRunes bounds query text before embedding.
	DefaultQueryMaxRunes = 2048

	// MaxStoreDimension is a sanity ceiling for the schema width.
	MaxStoreDimension = 16000
)

// Config holds all application configuration.
type Config struct {
	// AI
	OpenAIAPIKey   string `mapstructure:"openai_api_key"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	ChatModel      string `mapstructure:"chat_model"`
	StoreDimension int    `mapstructure:"store_dimension"`

	// Retrieval
	TopK           int  `mapstructure:"top_k"`
	QueryMaxRunes  int  `mapstructure:"query_max_runes"`
	SharedBackfill bool `mapstructure:"shared_backfill"`

	// Ingestion
	IngestRate  float64 `mapstructure:"ingest_rate"`
	IngestBurst int     `mapstructure:"ingest_burst"`

	// Storage (see storage.go for derived connection strings)
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_dbname"`
	PostgresSSLMode  string `mapstructure:"postgres_sslmode"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`
}

// Load reads configuration from defaults, an optional config file, and the
// environment. configFile may be empty, in which case ~/.forumrag/config.yaml
// is tried and silently skipped when absent.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", configFile, err)
		}
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".forumrag"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("FORUMRAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Conventional environment variables override file values.
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.OpenAIAPIKey = key
	}
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("embedding_model", DefaultEmbeddingModel)
	v.SetDefault("chat_model", DefaultChatModel)
	v.SetDefault("store_dimension", DefaultStoreDimension)

	v.SetDefault("top_k", DefaultTopK)
	v.SetDefault("query_max_runes", DefaultQueryMaxRunes)
	v.SetDefault("shared_backfill", true)

	v.SetDefault("ingest_rate", 5.0)
	v.SetDefault("ingest_burst", 1)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "forumrag")
	v.SetDefault("postgres_password", "")
	v.SetDefault("postgres_dbname", "forumrag")
	v.SetDefault("postgres_sslmode", "disable")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// SlogLevel maps the configured log level string to a slog.Level.
// Unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
