package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/threadwise/forumrag/internal/rag"
)

var (
	askUserID      string
	askTopic       string
	askShowContext bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question in a user's persona, grounded in stored knowledge",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askUserID, "user", "", "user whose knowledge and persona to use (required)")
	askCmd.Flags().StringVar(&askTopic, "topic", "", "restrict retrieval to one topic")
	askCmd.Flags().BoolVar(&askShowContext, "show-context", false, "print the retrieved passages before the reply")
	_ = askCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
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

	orchestrator, err := rag.NewOrchestrator(codec, store, cfg.TopK, cfg.SharedBackfill, logger)
	if err != nil {
		return err
	}

	bundle, err := orchestrator.AnswerQuery(ctx, rag.Query{
		UserID: askUserID,
		Topic:  askTopic,
		Text:   strings.Join(args, " "),
	})
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	if askShowContext {
		printBundle(bundle)
	}

	generator, err := rag.NewChatGenerator(cfg.OpenAIAPIKey, cfg.ChatModel, logger)
	if err != nil {
		return err
	}

	reply, err := generator.Generate(ctx, bundle)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	fmt.Println(reply)
	return nil
}

func printBundle(bundle rag.Bundle) {
	fmt.Printf("persona: %s  confidence: %.2f\n", bundle.Profile.Name, bundle.Confidence)
	if len(bundle.Passages) == 0 {
		fmt.Println("no stored context matched")
	}
	for _, p := range bundle.Passages {
		fmt.Printf("%2d. [%.2f] %s\n", p.Rank, p.Similarity, p.Document.Content)
	}
	fmt.Println()
}
