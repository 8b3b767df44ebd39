package config

import (
	"fmt"
	"strings"
)

// validSSLModes are the sslmode values accepted by libpq/pgx.
var validSSLModes = map[string]struct{}{
	"disable":     {},
	"allow":       {},
	"prefer":      {},
	"require":     {},
	"verify-ca":   {},
	"verify-full": {},
}

// Validate checks the configuration for invalid or out-of-range values.
// It returns the first problem found, wrapped around a sentinel error.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if strings.TrimSpace(c.EmbeddingModel) == "" {
		return fmt.Errorf("%w: embedding model must not be empty", ErrInvalidEmbeddingModel)
	}

	if c.StoreDimension <= 0 || c.StoreDimension > MaxStoreDimension {
		return fmt.Errorf("%w: store_dimension must be in (0, %d], got %d",
			ErrInvalidDimension, MaxStoreDimension, c.StoreDimension)
	}

	if c.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidTopK, c.TopK)
	}

	if c.QueryMaxRunes <= 0 {
		return fmt.Errorf("%w: query_max_runes must be positive, got %d",
			ErrInvalidTopK, c.QueryMaxRunes)
	}

	if c.IngestRate <= 0 {
		return fmt.Errorf("%w: ingest_rate must be positive, got %g", ErrInvalidIngestRate, c.IngestRate)
	}
	if c.IngestBurst <= 0 {
		return fmt.Errorf("%w: ingest_burst must be positive, got %d", ErrInvalidIngestRate, c.IngestBurst)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: port must be in [1, 65535], got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidPostgresDBName)
	}
	if _, ok := validSSLModes[c.PostgresSSLMode]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	return nil
}

// ValidateAPIKey checks that the OpenAI API key is present. It is separate
// from Validate because offline commands (migrate, stats) work without it.
func (c *Config) ValidateAPIKey() error {
	if strings.TrimSpace(c.OpenAIAPIKey) == "" {
		return fmt.Errorf("%w: set OPENAI_API_KEY", ErrMissingAPIKey)
	}
	return nil
}
