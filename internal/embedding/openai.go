package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 2 * time.Second
)

// embeddingAPI is the slice of the OpenAI client used by OpenAIEmbedder.
// Defined here, by the consumer, so tests can substitute a fake.
type embeddingAPI interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// OpenAIEmbedder implements Embedder on top of the OpenAI embeddings API.
// The model is fixed at construction; it is process-wide shared state and is
// never reconfigured at runtime. Safe for concurrent use.
type OpenAIEmbedder struct {
	client     embeddingAPI
	model      openai.EmbeddingModel
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewOpenAIEmbedder creates an embedder for the given API key and model.
func NewOpenAIEmbedder(apiKey, model string, logger *slog.Logger) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	if model == "" {
		return nil, errors.New("embedding model is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OpenAIEmbedder{
		client:     openai.NewClient(apiKey),
		model:      openai.EmbeddingModel(model),
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
		logger:     logger,
	}, nil
}

// Name returns the configured model identifier.
func (e *OpenAIEmbedder) Name() string {
	return string(e.model)
}

// Embed returns the model's native embedding for text, retrying transient
// API failures with exponential backoff. Context cancellation aborts both
// in-flight requests and backoff waits.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			e.logger.Debug("retrying embedding request",
				"attempt", attempt, "model", e.model, "error", lastErr)
			select {
			case <-time.After(backoffDelay(e.retryDelay, attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input: []string{text},
			Model: e.model,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if len(resp.Data) == 0 {
			lastErr = errors.New("no embeddings returned")
			continue
		}

		return resp.Data[0].Embedding, nil
	}

	return nil, fmt.Errorf("embedding failed after %d attempts: %w", e.maxRetries+1, lastErr)
}

// backoffDelay doubles the base delay per attempt: base, 2*base, 4*base, ...
func backoffDelay(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}
