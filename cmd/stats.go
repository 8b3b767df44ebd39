package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/threadwise/forumrag/internal/knowledge"
)

var statsUserID string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show knowledge store document counts",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsUserID, "user", "", "count only this user's documents")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	store, pool, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	if statsUserID != "" {
		count, err := store.Count(ctx, statsUserID)
		if err != nil {
			return err
		}
		fmt.Printf("documents for %s: %d\n", statsUserID, count)
		return nil
	}

	total, err := store.Count(ctx, "")
	if err != nil {
		return err
	}
	shared, err := store.Count(ctx, knowledge.SharedOwner)
	if err != nil {
		return err
	}

	fmt.Printf("documents: %d total, %d shared\n", total, shared)
	return nil
}
