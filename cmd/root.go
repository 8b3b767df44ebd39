// Package cmd provides the forumrag CLI commands.
//
// Commands:
//   - migrate: apply database schema migrations
//   - load: bulk-ingest a knowledge source file
//   - ask: answer a question with retrieved context
//   - stats: show knowledge store counts
//   - version: show version information
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/threadwise/forumrag/internal/config"
	"github.com/threadwise/forumrag/internal/embedding"
	"github.com/threadwise/forumrag/internal/knowledge"
	"github.com/threadwise/forumrag/internal/log"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "forumrag",
	Short: "forumrag - retrieval backend for persona-driven forum replies",
	Long: `forumrag stores per-user forum knowledge as embeddings in PostgreSQL
and assembles retrieval context for persona-driven reply generation.

Typical flow:
  forumrag migrate                 apply the database schema
  forumrag load --user u1 file.json   ingest a user's knowledge
  forumrag ask --user u1 "question"   answer with retrieved context`,
	SilenceUsage: true,
}

// Execute is the entry point called from main. A .env file in the working
// directory is loaded first so local development needs no exported variables.
func Execute() error {
	_ = godotenv.Load()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ~/.forumrag/config.yaml)")
}

// loadConfig reads configuration honoring the --config flag.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger from configuration.
func newLogger(cfg *config.Config) log.Logger {
	return log.New(log.Config{
		Level: cfg.SlogLevel(),
		JSON:  cfg.LogJSON,
	})
}

// openStore connects to PostgreSQL and wraps the pool in a knowledge store.
// The caller owns the returned pool and must Close it.
func openStore(ctx context.Context, cfg *config.Config, logger log.Logger) (*knowledge.Store, *pgxpool.Pool, error) {
	pool, err := knowledge.NewPool(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store, err := knowledge.NewStore(knowledge.NewQuerier(pool), cfg.StoreDimension, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool, nil
}

// newCodec builds the embedding codec backed by the OpenAI embeddings API.
func newCodec(cfg *config.Config, logger log.Logger) (*embedding.Codec, error) {
	if err := cfg.ValidateAPIKey(); err != nil {
		if errors.Is(err, config.ErrMissingAPIKey) {
			return nil, errors.New("OPENAI_API_KEY not set; export it or add openai_api_key to the config file")
		}
		return nil, err
	}

	embedder, err := embedding.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel, logger)
	if err != nil {
		return nil, err
	}
	return embedding.NewCodec(embedder, cfg.StoreDimension, cfg.QueryMaxRunes, logger)
}
