package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/threadwise/forumrag/internal/knowledge"
)

var loadUserID string

var loadCmd = &cobra.Command{
	Use:   "load [file]",
	Short: "Bulk-ingest a JSON knowledge source file",
	Long: `Load parses a knowledge source file and ingests its entries as embedded
documents. Two file shapes are accepted: a bare array of message entries, or
a user record object with profile fields and a messages list.

Malformed or failing entries are skipped and reported; the rest of the file
still loads. Use --user to override (or supply) the owning user id.`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().StringVar(&loadUserID, "user", "", "owning user id (overrides the file's user_id)")
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	codec, err := newCodec(cfg, logger)
	if err != nil {
		return err
	}

	store, pool, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	loader, err := knowledge.NewLoader(codec, store, cfg.IngestRate, cfg.IngestBurst, logger)
	if err != nil {
		return err
	}

	report, err := loader.LoadFile(ctx, loadUserID, args[0])
	printReport(report)
	if err != nil {
		return fmt.Errorf("load aborted: %w", err)
	}
	return nil
}

func printReport(report knowledge.Report) {
	fmt.Printf("ingested %d entries, %d failed\n", report.Ingested, len(report.Failures))
	for _, f := range report.Failures {
		if f.EntryID != "" {
			fmt.Printf("  entry %d (%s): %s\n", f.Index, f.EntryID, f.Reason)
		} else {
			fmt.Printf("  entry %d: %s\n", f.Index, f.Reason)
		}
	}
}
