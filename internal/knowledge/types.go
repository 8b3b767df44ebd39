package knowledge

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidArgument indicates a caller error such as a non-positive
	// result limit.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrStoreUnavailable indicates the storage collaborator is unreachable
	// or erroring. The store never retries internally; retry policy belongs
	// to the caller.
	ErrStoreUnavailable = errors.New("knowledge store unavailable")

	// ErrProfileNotFound indicates no profile exists for the user.
	ErrProfileNotFound = errors.New("profile not found")
)

// SharedOwner is the owner id under which shared (user-independent) knowledge
// documents are stored. The orchestrator searches it to backfill sparse
// per-user results.
const SharedOwner = "@shared"

// Document is a stored knowledge document. Immutable once inserted; updates
// are delete+insert.
type Document struct {
	ID        uuid.UUID
	UserID    string    // owning user, or SharedOwner
	Topic     string    // optional topic tag, "" = untagged
	Content   string    // source text
	Embedding []float32 // storage-width vector, produced by embedding.Codec
	CreatedAt time.Time
}

// Passage is a single search result: a document with its cosine similarity
// to the query (higher = more relevant) and its 1-based rank position.
type Passage struct {
	Document   Document
	Similarity float32
	Rank       int
}

// Profile holds a user's accumulated knowledge record, merged into the
// context bundle alongside retrieved passages.
type Profile struct {
	UserID             string
	Name               string
	Personality        string
	Background         string
	Expertise          []string
	CommunicationStyle string
	Preferences        map[string]any
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SearchOption configures search behavior using the functional options
// pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topic string
}

// WithTopic restricts search results to documents tagged with the topic.
func WithTopic(topic string) SearchOption {
	return func(c *searchConfig) {
		c.topic = topic
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
