package embedding

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/threadwise/forumrag/internal/log"
)

// stubEmbedder returns deterministic vectors derived from input text.
type stubEmbedder struct {
	name      string
	dim       int
	embedErr  error
	callCount int
	lastText  string
}

func (s *stubEmbedder) Name() string { return s.name }

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.callCount++
	s.lastText = text

	if s.embedErr != nil {
		return nil, s.embedErr
	}

	vec := make([]float32, s.dim)
	for i := range vec {
		// Simple content-dependent values so distinct texts map to
		// distinct vectors while identical texts stay bit-identical.
		vec[i] = float32((len(text)*31+i*7)%100) / 100
	}
	return vec, nil
}

func newTestCodec(t *testing.T, emb Embedder, storeDim, queryMaxRunes int) *Codec {
	t.Helper()
	c, err := NewCodec(emb, storeDim, queryMaxRunes, log.NewNop())
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	return c
}

func TestCodec_EmbedDeterministic(t *testing.T) {
	codec := newTestCodec(t, &stubEmbedder{name: "stub-model", dim: 384}, 1536, 0)

	a, err := codec.Embed(context.Background(), "what is a goroutine?")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	b, err := codec.Embed(context.Background(), "what is a goroutine?")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	if len(a) != 1536 {
		t.Fatalf("len = %d, want 1536", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at %d: %v != %v", i, a[i], b[i])
		}
	}
}

func TestCodec_EmbedPreservesNativePrefix(t *testing.T) {
	stub := &stubEmbedder{name: "stub-model", dim: 384}
	codec := newTestCodec(t, stub, 1536, 0)

	got, err := codec.Embed(context.Background(), "prefix check")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	native, _ := stub.Embed(context.Background(), "prefix check")
	for i, want := range native {
		if got[i] != want {
			t.Fatalf("prefix differs at %d: got %v, want %v", i, got[i], want)
		}
	}
}

func TestCodec_PadIsDeterministicAndNonZero(t *testing.T) {
	codec := newTestCodec(t, &stubEmbedder{name: "stub-model", dim: 4}, 16, 0)

	got, err := codec.Embed(context.Background(), "pad check")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	nonZero := false
	for _, v := range got[4:] {
		if v != 0 {
			nonZero = true
		}
		if v > padMagnitude || v < -padMagnitude {
			t.Fatalf("pad component %v exceeds magnitude bound %v", v, padMagnitude)
		}
	}
	if !nonZero {
		t.Fatal("pad tail is all zeros; expected model-derived pattern")
	}

	// Same model id must yield the same pattern in a fresh codec.
	again := newTestCodec(t, &stubEmbedder{name: "stub-model", dim: 4}, 16, 0)
	got2, _ := again.Embed(context.Background(), "pad check")
	for i := range got {
		if got[i] != got2[i] {
			t.Fatalf("pad pattern not stable across codecs at %d", i)
		}
	}
}

func TestCodec_PadDiffersBetweenModels(t *testing.T) {
	a := newTestCodec(t, &stubEmbedder{name: "model-a", dim: 2}, 16, 0)
	b := newTestCodec(t, &stubEmbedder{name: "model-b", dim: 2}, 16, 0)

	va, _ := a.Embed(context.Background(), "x")
	vb, _ := b.Embed(context.Background(), "x")

	same := true
	for i := 2; i < 16; i++ {
		if va[i] != vb[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("different models produced identical pad patterns")
	}
}

func TestCodec_NativeWidthPassesThrough(t *testing.T) {
	stub := &stubEmbedder{name: "full-width", dim: 16}
	codec := newTestCodec(t, stub, 16, 0)

	got, err := codec.Embed(context.Background(), "native width")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	native, _ := stub.Embed(context.Background(), "native width")
	for i := range native {
		if got[i] != native[i] {
			t.Fatalf("component %d changed: got %v, want %v", i, got[i], native[i])
		}
	}
}

func TestCodec_OversizedNativeVector(t *testing.T) {
	codec := newTestCodec(t, &stubEmbedder{name: "too-wide", dim: 32}, 16, 0)

	_, err := codec.Embed(context.Background(), "oversized")
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("error = %v, want ErrDimensionMismatch", err)
	}
}

func TestCodec_EmptyInput(t *testing.T) {
	codec := newTestCodec(t, &stubEmbedder{name: "stub", dim: 4}, 16, 0)

	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := codec.Embed(context.Background(), text); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Embed(%q) error = %v, want ErrInvalidInput", text, err)
		}
		if _, err := codec.EmbedQuery(context.Background(), text); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("EmbedQuery(%q) error = %v, want ErrInvalidInput", text, err)
		}
	}
}

func TestCodec_EmbedderFailurePropagates(t *testing.T) {
	wantErr := errors.New("model offline")
	codec := newTestCodec(t, &stubEmbedder{name: "stub", dim: 4, embedErr: wantErr}, 16, 0)

	if _, err := codec.Embed(context.Background(), "hello"); !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want wrapped %v", err, wantErr)
	}
}

func TestCodec_EmbedQueryTruncates(t *testing.T) {
	stub := &stubEmbedder{name: "stub", dim: 4}
	codec := newTestCodec(t, stub, 16, 10)

	long := strings.Repeat("я", 25) // multibyte runes: budget counts runes, not bytes
	if _, err := codec.EmbedQuery(context.Background(), long); err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}

	if got := len([]rune(stub.lastText)); got != 10 {
		t.Fatalf("embedded query length = %d runes, want 10", got)
	}
}

func TestCodec_EmbedDoesNotTruncate(t *testing.T) {
	stub := &stubEmbedder{name: "stub", dim: 4}
	codec := newTestCodec(t, stub, 16, 10)

	long := strings.Repeat("a", 25)
	if _, err := codec.Embed(context.Background(), long); err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(stub.lastText) != 25 {
		t.Fatalf("document text truncated to %d, want 25", len(stub.lastText))
	}
}

func TestNewCodec_Validation(t *testing.T) {
	stub := &stubEmbedder{name: "stub", dim: 4}

	if _, err := NewCodec(nil, 16, 0, log.NewNop()); err == nil {
		t.Error("nil embedder should be rejected")
	}
	if _, err := NewCodec(stub, 0, 0, log.NewNop()); err == nil {
		t.Error("zero dimension should be rejected")
	}
	if _, err := NewCodec(stub, 16, -1, log.NewNop()); err == nil {
		t.Error("negative rune budget should be rejected")
	}
}

func TestCodec_Dimension(t *testing.T) {
	codec := newTestCodec(t, &stubEmbedder{name: "stub", dim: 4}, 16, 0)
	if codec.Dimension() != 16 {
		t.Fatalf("Dimension() = %d, want 16", codec.Dimension())
	}
}
