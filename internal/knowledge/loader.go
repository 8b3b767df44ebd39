package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/time/rate"

	"github.com/threadwise/forumrag/internal/embedding"
)

// Failure records one entry that could not be ingested. Index is the 1-based
// position of the entry in its source.
type Failure struct {
	Index   int
	EntryID string
	Reason  string
}

// Report summarizes a bulk ingestion: how many documents landed and which
// entries failed. A batch with failures is not an error; callers inspect the
// report and decide.
type Report struct {
	Ingested int
	Failures []Failure
}

// Loader performs best-effort bulk ingestion: each entry is embedded and
// inserted independently, and a failing entry is recorded and skipped rather
// than aborting the batch. Repeated loads of the same source are not
// deduplicated; that is the caller's concern.
type Loader struct {
	codec   *embedding.Codec
	store   *Store
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewLoader creates a Loader. embedsPerSec bounds the rate of embedding API
// calls during bulk loads (<= 0 disables limiting); burst is the limiter
// burst size.
func NewLoader(codec *embedding.Codec, store *Store, embedsPerSec float64, burst int, logger *slog.Logger) (*Loader, error) {
	if codec == nil {
		return nil, errors.New("codec must not be nil")
	}
	if store == nil {
		return nil, errors.New("store must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if embedsPerSec > 0 {
		limit = rate.Limit(embedsPerSec)
	}
	if burst < 1 {
		burst = 1
	}

	return &Loader{
		codec:   codec,
		store:   store,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}, nil
}

// Load ingests entries for userID. Per-entry embedding or insertion failures
// are recorded in the report and the batch continues; only context
// cancellation aborts the batch early, returning the partial report alongside
// the context error.
func (l *Loader) Load(ctx context.Context, userID string, entries []Entry) (Report, error) {
	if userID == "" {
		return Report{}, fmt.Errorf("%w: user id must not be empty", ErrInvalidArgument)
	}

	var report Report
	for i, entry := range entries {
		idx := entry.Index
		if idx == 0 {
			idx = i + 1
		}

		if err := l.limiter.Wait(ctx); err != nil {
			return report, err
		}

		vec, err := l.codec.Embed(ctx, entry.Text)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			l.logger.Warn("failed to embed entry",
				"user_id", userID, "index", idx, "entry_id", entry.ID, "error", err)
			report.Failures = append(report.Failures, Failure{
				Index:   idx,
				EntryID: entry.ID,
				Reason:  fmt.Sprintf("embed: %v", err),
			})
			continue
		}

		_, err = l.store.Insert(ctx, Document{
			UserID:    userID,
			Topic:     entry.Topic,
			Content:   entry.Text,
			Embedding: vec,
		})
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			l.logger.Warn("failed to insert entry",
				"user_id", userID, "index", idx, "entry_id", entry.ID, "error", err)
			report.Failures = append(report.Failures, Failure{
				Index:   idx,
				EntryID: entry.ID,
				Reason:  fmt.Sprintf("insert: %v", err),
			})
			continue
		}

		report.Ingested++
	}

	l.logger.Info("bulk load complete",
		"user_id", userID,
		"entries", len(entries),
		"ingested", report.Ingested,
		"failed", len(report.Failures))
	return report, nil
}

// LoadFile ingests a per-user knowledge source file. If the file carries
// profile fields, the user's profile is upserted before the entries are
// loaded. userID overrides the user id embedded in the file; pass "" to use
// the file's own.
func (l *Loader) LoadFile(ctx context.Context, userID, path string) (Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Report{}, fmt.Errorf("failed to read source file: %w", err)
	}

	record, parseFailures, err := ParseSource(data)
	if err != nil {
		return Report{}, err
	}

	if userID == "" {
		userID = record.UserID
	}
	if userID == "" {
		return Report{}, fmt.Errorf("%w: source file carries no user id and none was given", ErrInvalidArgument)
	}

	if record.Profile != nil {
		profile := *record.Profile
		profile.UserID = userID
		if err := l.store.UpsertProfile(ctx, profile); err != nil {
			return Report{}, err
		}
		l.logger.Info("upserted profile from source", "user_id", userID, "name", profile.Name)
	}

	report, err := l.Load(ctx, userID, record.Entries)
	report.Failures = append(parseFailures, report.Failures...)
	return report, err
}
