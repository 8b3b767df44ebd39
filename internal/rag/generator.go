package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Generator is the generation collaborator. It receives a complete, ordered
// bundle; how it turns that into a reply is outside this pipeline's contract.
type Generator interface {
	Generate(ctx context.Context, bundle Bundle) (string, error)
}

// chatAPI is the slice of the OpenAI client ChatGenerator uses.
type chatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ChatGenerator renders a bundle into a persona prompt and calls the OpenAI
// chat completions API.
type ChatGenerator struct {
	client chatAPI
	model  string
	logger *slog.Logger
}

// NewChatGenerator creates a generator for the given API key and chat model.
func NewChatGenerator(apiKey, model string, logger *slog.Logger) (*ChatGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	if model == "" {
		return nil, errors.New("chat model is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ChatGenerator{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: logger,
	}, nil
}

// Generate produces a reply for the bundle's query in the bundle user's
// persona, grounded in the retrieved passages.
func (g *ChatGenerator) Generate(ctx context.Context, bundle Bundle) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: BuildPrompt(bundle),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: bundle.Query.Text,
			},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("generation returned no choices")
	}

	g.logger.Debug("generated reply",
		"user_id", bundle.Query.UserID,
		"passages", len(bundle.Passages))
	return resp.Choices[0].Message.Content, nil
}

// BuildPrompt renders the bundle into the system prompt handed to the chat
// model: the user's persona followed by the retrieved passages in retrieval
// order. Exported so tests and callers can inspect exactly what generation
// receives.
func BuildPrompt(bundle Bundle) string {
	var b strings.Builder
	p := bundle.Profile

	fmt.Fprintf(&b, "You are %s, a forum participant.\n", p.Name)
	if p.Personality != "" {
		fmt.Fprintf(&b, "Personality: %s\n", p.Personality)
	}
	if p.Background != "" {
		fmt.Fprintf(&b, "Background: %s\n", p.Background)
	}
	if len(p.Expertise) > 0 {
		fmt.Fprintf(&b, "Expertise: %s\n", strings.Join(p.Expertise, ", "))
	}
	if p.CommunicationStyle != "" {
		fmt.Fprintf(&b, "Communication style: %s\n", p.CommunicationStyle)
	}

	if bundle.Query.Topic != "" {
		fmt.Fprintf(&b, "\nCurrent topic: %s\n", bundle.Query.Topic)
	}

	if len(bundle.Passages) > 0 {
		b.WriteString("\nRelevant forum context, most relevant first:\n")
		for _, passage := range bundle.Passages {
			fmt.Fprintf(&b, "%d. %s (similarity %.2f)\n",
				passage.Rank, passage.Document.Content, passage.Similarity)
		}
	} else {
		b.WriteString("\nNo stored context matched this query; answer from the persona alone.\n")
	}

	b.WriteString("\nStay in character and reply to the user's message as a forum post.")
	return b.String()
}
