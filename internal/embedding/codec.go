package embedding

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strconv"
	"strings"
)

var (
	// ErrInvalidInput indicates empty or blank text was passed for embedding.
	ErrInvalidInput = errors.New("invalid input text")

	// ErrDimensionMismatch indicates a vector width inconsistent with the
	// storage schema. Raised when the model's native output is wider than the
	// schema width; truncation would discard information non-recoverably.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// padMagnitude bounds the deterministic filler components. Small enough to be
// negligible against real embedding components (typically 1e-2 .. 1e-1).
const padMagnitude = 1e-6

// Embedder is the model collaborator: text in, native-width vector out.
// Implementations must be safe for concurrent use and must treat model
// identity as construction-time configuration.
type Embedder interface {
	// Embed returns the model's native embedding for text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Name identifies the configured model. It seeds the Codec's filler
	// pattern, so two Codecs over the same model produce identical vectors.
	Name() string
}

// Codec produces storage-width embedding vectors. It is a pure function of
// its configuration: identical input text always yields bit-identical output.
//
// Codec is safe for concurrent use.
type Codec struct {
	embedder      Embedder
	storeDim      int
	queryMaxRunes int
	pad           []float32 // filler values indexed by vector position
	logger        *slog.Logger
}

// NewCodec creates a Codec that adapts embedder output to storeDim-wide
// vectors. queryMaxRunes bounds query text before embedding; 0 disables
// query truncation.
func NewCodec(embedder Embedder, storeDim, queryMaxRunes int, logger *slog.Logger) (*Codec, error) {
	if embedder == nil {
		return nil, errors.New("embedder must not be nil")
	}
	if storeDim <= 0 {
		return nil, fmt.Errorf("store dimension must be positive, got %d", storeDim)
	}
	if queryMaxRunes < 0 {
		return nil, fmt.Errorf("query rune budget must not be negative, got %d", queryMaxRunes)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Codec{
		embedder:      embedder,
		storeDim:      storeDim,
		queryMaxRunes: queryMaxRunes,
		pad:           buildPadPattern(embedder.Name(), storeDim),
		logger:        logger,
	}, nil
}

// Dimension returns the storage vector width this codec produces.
func (c *Codec) Dimension() int {
	return c.storeDim
}

// Embed converts document text into a storage-width vector.
// Fails with ErrInvalidInput for blank text and ErrDimensionMismatch when the
// model's native output is wider than the storage width.
func (c *Codec) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text must not be empty", ErrInvalidInput)
	}

	native, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed failed: %w", err)
	}
	if len(native) == 0 {
		return nil, fmt.Errorf("embedder %q returned an empty vector", c.embedder.Name())
	}

	return c.expand(native)
}

// EmbedQuery converts query text into a storage-width vector. Same contract
// as Embed; the query path additionally truncates over-long input to the
// configured rune budget before embedding.
func (c *Codec) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: query must not be empty", ErrInvalidInput)
	}

	if c.queryMaxRunes > 0 {
		if runes := []rune(text); len(runes) > c.queryMaxRunes {
			c.logger.Debug("truncating query before embedding",
				"runes", len(runes), "budget", c.queryMaxRunes)
			text = string(runes[:c.queryMaxRunes])
		}
	}

	return c.Embed(ctx, text)
}

// expand adapts a native vector to the storage width. The native components
// form the prefix bit-exactly; positions beyond the native width receive the
// precomputed filler. Expanding a vector already at storage width returns it
// unchanged (copied), which makes the operation idempotent.
func (c *Codec) expand(native []float32) ([]float32, error) {
	if len(native) > c.storeDim {
		return nil, fmt.Errorf("%w: model %q produced %d components, schema width is %d",
			ErrDimensionMismatch, c.embedder.Name(), len(native), c.storeDim)
	}

	out := make([]float32, c.storeDim)
	copy(out, native)
	copy(out[len(native):], c.pad[len(native):])
	return out, nil
}

// buildPadPattern precomputes the filler value for every vector position.
// Each value is an FNV-1a hash of "model:position" mapped into
// [-padMagnitude, +padMagnitude], so the pattern is stable across processes
// and distinct between models.
func buildPadPattern(modelID string, dim int) []float32 {
	pattern := make([]float32, dim)
	for i := range pattern {
		h := fnv.New64a()
		h.Write([]byte(modelID))
		h.Write([]byte{':'})
		h.Write([]byte(strconv.Itoa(i)))

		// Map the hash onto [-1, 1], then scale down.
		unit := float64(h.Sum64()%(1<<24))/float64(1<<23) - 1
		pattern[i] = float32(unit * padMagnitude)
	}
	return pattern
}
