package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"

	"github.com/threadwise/forumrag/internal/embedding"
)

// Store manages knowledge documents and user profiles.
//
// Every vector entering the store must already be at the schema width;
// the Store validates widths and rejects mismatches before touching the
// database. Store is safe for concurrent use.
type Store struct {
	queries Querier
	dim     int
	logger  *slog.Logger
}

// NewStore creates a Store over the given querier. dim is the schema's
// declared vector width; it must match the vector column in db/migrations.
func NewStore(queries Querier, dim int, logger *slog.Logger) (*Store, error) {
	if queries == nil {
		return nil, errors.New("querier must not be nil")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive, got %d", dim)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		queries: queries,
		dim:     dim,
		logger:  logger,
	}, nil
}

// Dimension returns the schema vector width the store enforces.
func (s *Store) Dimension() int {
	return s.dim
}

// Insert persists a document. The row is written in a single INSERT, so text,
// vector, and metadata land atomically; no partial document is ever
// observable. A zero document ID is assigned a fresh UUID; a zero CreatedAt
// is stamped with the current time. Returns the document id.
func (s *Store) Insert(ctx context.Context, doc Document) (uuid.UUID, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return uuid.Nil, fmt.Errorf("%w: document content must not be empty", embedding.ErrInvalidInput)
	}
	if doc.UserID == "" {
		return uuid.Nil, fmt.Errorf("%w: document owner must not be empty", ErrInvalidArgument)
	}
	if len(doc.Embedding) != s.dim {
		return uuid.Nil, fmt.Errorf("%w: document vector has %d components, schema width is %d",
			embedding.ErrDimensionMismatch, len(doc.Embedding), s.dim)
	}

	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	vec := pgvector.NewVector(doc.Embedding)
	err := s.queries.InsertDocument(ctx, InsertDocumentParams{
		ID:        doc.ID,
		UserID:    doc.UserID,
		Topic:     doc.Topic,
		Content:   doc.Content,
		Embedding: &vec,
		CreatedAt: pgtype.Timestamptz{Time: doc.CreatedAt, Valid: true},
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: failed to insert document %q: %w", ErrStoreUnavailable, doc.ID, err)
	}

	s.logger.Debug("inserted document",
		"id", doc.ID, "user_id", doc.UserID, "topic", doc.Topic,
		"content_length", len(doc.Content))
	return doc.ID, nil
}

// Search returns at most topK passages owned by userID, ranked by descending
// cosine similarity to queryVec with creation-timestamp tie-break. An empty
// result is a valid outcome, not an error.
//
// topK must be positive and queryVec must be at the schema width; violations
// are caller errors and fail before any query runs.
func (s *Store) Search(ctx context.Context, queryVec []float32, userID string, topK int, opts ...SearchOption) ([]Passage, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", ErrInvalidArgument, topK)
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user id must not be empty", ErrInvalidArgument)
	}
	if len(queryVec) != s.dim {
		return nil, fmt.Errorf("%w: query vector has %d components, schema width is %d",
			embedding.ErrDimensionMismatch, len(queryVec), s.dim)
	}

	cfg := buildSearchConfig(opts)

	vec := pgvector.NewVector(queryVec)
	rows, err := s.queries.SearchDocuments(ctx, SearchDocumentsParams{
		QueryEmbedding: &vec,
		UserID:         userID,
		Topic:          cfg.topic,
		ResultLimit:    int32(topK), // #nosec G115 -- topK validated positive; callers pass small limits
	})
	if err != nil {
		return nil, fmt.Errorf("%w: search failed: %w", ErrStoreUnavailable, err)
	}

	passages := make([]Passage, 0, len(rows))
	for i, row := range rows {
		var createdAt time.Time
		if row.CreatedAt.Valid {
			createdAt = row.CreatedAt.Time
		}
		passages = append(passages, Passage{
			Document: Document{
				ID:        row.ID,
				UserID:    row.UserID,
				Topic:     row.Topic,
				Content:   row.Content,
				CreatedAt: createdAt,
			},
			Similarity: row.Similarity,
			Rank:       i + 1,
		})
	}

	s.logger.Debug("search complete",
		"user_id", userID, "topic", cfg.topic, "top_k", topK, "hits", len(passages))
	return passages, nil
}

// Delete removes a document. Idempotent: deleting a nonexistent id is a
// no-op, which keeps retry-based cleanup simple.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.queries.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("%w: failed to delete document %q: %w", ErrStoreUnavailable, id, err)
	}

	s.logger.Debug("deleted document", "id", id)
	return nil
}

// Count returns the number of documents owned by userID; an empty userID
// counts all documents.
func (s *Store) Count(ctx context.Context, userID string) (int64, error) {
	count, err := s.queries.CountDocuments(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: count failed: %w", ErrStoreUnavailable, err)
	}
	return count, nil
}

// UpsertProfile inserts or replaces a user's knowledge profile.
func (s *Store) UpsertProfile(ctx context.Context, p Profile) error {
	if p.UserID == "" {
		return fmt.Errorf("%w: profile user id must not be empty", ErrInvalidArgument)
	}

	expertise, err := json.Marshal(p.Expertise)
	if err != nil {
		return fmt.Errorf("failed to marshal expertise: %w", err)
	}
	preferences, err := json.Marshal(p.Preferences)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	err = s.queries.UpsertProfile(ctx, UpsertProfileParams{
		UserID:             p.UserID,
		Name:               p.Name,
		Personality:        p.Personality,
		Background:         p.Background,
		Expertise:          expertise,
		CommunicationStyle: p.CommunicationStyle,
		Preferences:        preferences,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to upsert profile for %q: %w", ErrStoreUnavailable, p.UserID, err)
	}

	s.logger.Debug("upserted profile", "user_id", p.UserID, "name", p.Name)
	return nil
}

// GetProfile loads a user's knowledge profile. Returns ErrProfileNotFound
// when the user has none.
func (s *Store) GetProfile(ctx context.Context, userID string) (Profile, error) {
	if userID == "" {
		return Profile{}, fmt.Errorf("%w: user id must not be empty", ErrInvalidArgument)
	}

	row, err := s.queries.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, fmt.Errorf("%w: user %q", ErrProfileNotFound, userID)
		}
		return Profile{}, fmt.Errorf("%w: failed to load profile for %q: %w", ErrStoreUnavailable, userID, err)
	}

	p := Profile{
		UserID:             row.UserID,
		Name:               row.Name,
		Personality:        row.Personality,
		Background:         row.Background,
		CommunicationStyle: row.CommunicationStyle,
	}
	if row.CreatedAt.Valid {
		p.CreatedAt = row.CreatedAt.Time
	}
	if row.UpdatedAt.Valid {
		p.UpdatedAt = row.UpdatedAt.Time
	}
	if len(row.Expertise) > 0 {
		if err := json.Unmarshal(row.Expertise, &p.Expertise); err != nil {
			s.logger.Warn("failed to parse profile expertise", "user_id", userID, "error", err)
		}
	}
	if len(row.Preferences) > 0 {
		if err := json.Unmarshal(row.Preferences, &p.Preferences); err != nil {
			s.logger.Warn("failed to parse profile preferences", "user_id", userID, "error", err)
		}
	}

	return p, nil
}
