// Package knowledge persists per-user knowledge documents with their
// embedding vectors and serves cosine-similarity search over them.
//
// Storage is PostgreSQL with the pgvector extension; the documents table
// declares a fixed vector width (see db/migrations) that every inserted or
// queried vector must match exactly. Width adaptation happens upstream in
// internal/embedding; this package treats a mismatched width as a caller
// error, never as something to silently repair.
//
// The Store depends on a Querier interface at operation granularity rather
// than on a concrete connection, so unit tests substitute a mock while
// production wires PGQuerier over a pgxpool.Pool (see pg.go).
//
// Documents are immutable after insert: an update is modeled as delete plus
// insert, which keeps the text/vector pairing consistent by construction.
//
// The package also holds the Loader, which performs best-effort bulk
// ingestion of per-user knowledge sources: one bad entry is recorded and
// skipped, never aborting the batch, and the caller receives a Report listing
// every failure. Deduplication across repeated loads is deliberately the
// caller's concern.
package knowledge
