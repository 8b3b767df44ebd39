package knowledge

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
)

// DBTX is the subset of pgx connection behavior PGQuerier needs.
// Satisfied by *pgxpool.Pool, *pgx.Conn, and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPool opens a pgx connection pool with pgvector types registered on
// every connection. The pool is safe for concurrent use and is the expected
// DBTX for PGQuerier in production.
func NewPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// PGQuerier implements Querier over PostgreSQL with pgvector.
type PGQuerier struct {
	db DBTX
}

// NewQuerier creates a PGQuerier over the given connection or pool.
func NewQuerier(db DBTX) *PGQuerier {
	return &PGQuerier{db: db}
}

const insertDocument = `
INSERT INTO documents (id, user_id, topic, content, embedding, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

func (q *PGQuerier) InsertDocument(ctx context.Context, arg InsertDocumentParams) error {
	_, err := q.db.Exec(ctx, insertDocument,
		arg.ID, arg.UserID, arg.Topic, arg.Content, arg.Embedding, arg.CreatedAt)
	return err
}

// Cosine similarity is 1 minus pgvector's cosine distance operator <=>.
// Ordering by the raw distance (ascending) is equivalent to ordering by
// similarity descending and lets the index serve the sort; created_at and id
// make the order total when distances tie.
const searchDocuments = `
SELECT id, user_id, topic, content,
       1 - (embedding <=> $1) AS similarity,
       created_at
FROM documents
WHERE user_id = $2
ORDER BY embedding <=> $1, created_at ASC, id ASC
LIMIT $3`

const searchDocumentsByTopic = `
SELECT id, user_id, topic, content,
       1 - (embedding <=> $1) AS similarity,
       created_at
FROM documents
WHERE user_id = $2 AND topic = $3
ORDER BY embedding <=> $1, created_at ASC, id ASC
LIMIT $4`

func (q *PGQuerier) SearchDocuments(ctx context.Context, arg SearchDocumentsParams) ([]SearchDocumentsRow, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if arg.Topic != "" {
		rows, err = q.db.Query(ctx, searchDocumentsByTopic,
			arg.QueryEmbedding, arg.UserID, arg.Topic, arg.ResultLimit)
	} else {
		rows, err = q.db.Query(ctx, searchDocuments,
			arg.QueryEmbedding, arg.UserID, arg.ResultLimit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchDocumentsRow
	for rows.Next() {
		var r SearchDocumentsRow
		if err := rows.Scan(&r.ID, &r.UserID, &r.Topic, &r.Content, &r.Similarity, &r.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

const deleteDocument = `DELETE FROM documents WHERE id = $1`

func (q *PGQuerier) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteDocument, id)
	return err
}

const countDocuments = `SELECT COUNT(*) FROM documents WHERE user_id = $1`
const countDocumentsAll = `SELECT COUNT(*) FROM documents`

func (q *PGQuerier) CountDocuments(ctx context.Context, userID string) (int64, error) {
	var count int64
	var err error
	if userID == "" {
		err = q.db.QueryRow(ctx, countDocumentsAll).Scan(&count)
	} else {
		err = q.db.QueryRow(ctx, countDocuments, userID).Scan(&count)
	}
	return count, err
}

const upsertProfile = `
INSERT INTO user_profiles (
    user_id, name, personality, background, expertise,
    communication_style, preferences, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
ON CONFLICT (user_id) DO UPDATE SET
    name = EXCLUDED.name,
    personality = EXCLUDED.personality,
    background = EXCLUDED.background,
    expertise = EXCLUDED.expertise,
    communication_style = EXCLUDED.communication_style,
    preferences = EXCLUDED.preferences,
    updated_at = now()`

func (q *PGQuerier) UpsertProfile(ctx context.Context, arg UpsertProfileParams) error {
	_, err := q.db.Exec(ctx, upsertProfile,
		arg.UserID, arg.Name, arg.Personality, arg.Background,
		arg.Expertise, arg.CommunicationStyle, arg.Preferences)
	return err
}

const getProfile = `
SELECT user_id, name, personality, background, expertise,
       communication_style, preferences, created_at, updated_at
FROM user_profiles
WHERE user_id = $1`

func (q *PGQuerier) GetProfile(ctx context.Context, userID string) (GetProfileRow, error) {
	var r GetProfileRow
	err := q.db.QueryRow(ctx, getProfile, userID).Scan(
		&r.UserID, &r.Name, &r.Personality, &r.Background, &r.Expertise,
		&r.CommunicationStyle, &r.Preferences, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}
