package knowledge

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"
)

// Querier defines the database operations the Store needs. The interface is
// defined here, by the consumer, so the Store depends on an abstraction and
// tests can substitute a mock (see store_test.go). PGQuerier in pg.go is the
// production implementation.
type Querier interface {
	// InsertDocument persists a document row atomically.
	InsertDocument(ctx context.Context, arg InsertDocumentParams) error

	// SearchDocuments performs an owner-scoped vector similarity search.
	SearchDocuments(ctx context.Context, arg SearchDocumentsParams) ([]SearchDocumentsRow, error)

	// DeleteDocument deletes a document by id. Deleting a missing id is a
	// no-op, not an error.
	DeleteDocument(ctx context.Context, id uuid.UUID) error

	// CountDocuments counts documents owned by userID; empty userID counts
	// all documents.
	CountDocuments(ctx context.Context, userID string) (int64, error)

	// UpsertProfile inserts or replaces a user's knowledge profile.
	UpsertProfile(ctx context.Context, arg UpsertProfileParams) error

	// GetProfile loads a user's knowledge profile.
	// Returns pgx.ErrNoRows when absent.
	GetProfile(ctx context.Context, userID string) (GetProfileRow, error)
}

// InsertDocumentParams carries one document row for insertion.
type InsertDocumentParams struct {
	ID        uuid.UUID
	UserID    string
	Topic     string
	Content   string
	Embedding *pgvector.Vector
	CreatedAt pgtype.Timestamptz
}

// SearchDocumentsParams configures an owner-scoped similarity search.
// Topic is an optional filter; empty means no topic restriction.
type SearchDocumentsParams struct {
	QueryEmbedding *pgvector.Vector
	UserID         string
	Topic          string
	ResultLimit    int32
}

// SearchDocumentsRow is one similarity search hit. Rows arrive ordered by
// descending similarity with created_at (then id) as the tie-break.
type SearchDocumentsRow struct {
	ID         uuid.UUID
	UserID     string
	Topic      string
	Content    string
	Similarity float32
	CreatedAt  pgtype.Timestamptz
}

// UpsertProfileParams carries a user profile row. Expertise and Preferences
// are pre-marshaled JSON.
type UpsertProfileParams struct {
	UserID             string
	Name               string
	Personality        string
	Background         string
	Expertise          []byte
	CommunicationStyle string
	Preferences        []byte
}

// GetProfileRow is a loaded user profile row.
type GetProfileRow struct {
	UserID             string
	Name               string
	Personality        string
	Background         string
	Expertise          []byte
	CommunicationStyle string
	Preferences        []byte
	CreatedAt          pgtype.Timestamptz
	UpdatedAt          pgtype.Timestamptz
}
