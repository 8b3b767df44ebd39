package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/threadwise/forumrag/internal/knowledge"
)

// Query is one retrieval request. Transient: created per request, never
// persisted.
type Query struct {
	UserID string
	Topic  string // optional, "" = no topic restriction
	Text   string
}

// Bundle is the assembled retrieval context handed to generation. It lives
// for a single request and is never cached across requests.
type Bundle struct {
	Query      Query
	Passages   []knowledge.Passage // ordered by descending similarity
	Profile    knowledge.Profile
	Confidence float64 // 0..1 heuristic quality of the retrieved context
}

// QueryEmbedder is the slice of embedding.Codec the orchestrator needs.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SearchStore is the slice of knowledge.Store the orchestrator needs.
type SearchStore interface {
	Search(ctx context.Context, queryVec []float32, userID string, topK int, opts ...knowledge.SearchOption) ([]knowledge.Passage, error)
	GetProfile(ctx context.Context, userID string) (knowledge.Profile, error)
}

// Orchestrator runs the retrieval pipeline: embed query, search, backfill,
// merge profile, assemble bundle. Safe for concurrent use; it holds no
// per-request state.
type Orchestrator struct {
	codec          QueryEmbedder
	store          SearchStore
	topK           int
	sharedBackfill bool
	logger         *slog.Logger
}

// NewOrchestrator creates an Orchestrator with a fixed per-query passage
// budget. sharedBackfill enables topping up sparse per-user results from
// shared knowledge documents.
func NewOrchestrator(codec QueryEmbedder, store SearchStore, topK int, sharedBackfill bool, logger *slog.Logger) (*Orchestrator, error) {
	if codec == nil {
		return nil, errors.New("codec must not be nil")
	}
	if store == nil {
		return nil, errors.New("store must not be nil")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", topK)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		codec:          codec,
		store:          store,
		topK:           topK,
		sharedBackfill: sharedBackfill,
		logger:         logger,
	}, nil
}

// AnswerQuery assembles the context bundle for q. An empty passage list is a
// valid outcome (the generation collaborator decides how to answer without
// context); errors from the codec or store propagate unchanged and are never
// converted into an empty-but-successful bundle.
func (o *Orchestrator) AnswerQuery(ctx context.Context, q Query) (Bundle, error) {
	if q.UserID == "" {
		return Bundle{}, fmt.Errorf("%w: query user id must not be empty", knowledge.ErrInvalidArgument)
	}

	queryVec, err := o.codec.EmbedQuery(ctx, q.Text)
	if err != nil {
		return Bundle{}, err
	}

	var opts []knowledge.SearchOption
	if q.Topic != "" {
		opts = append(opts, knowledge.WithTopic(q.Topic))
	}

	passages, err := o.store.Search(ctx, queryVec, q.UserID, o.topK, opts...)
	if err != nil {
		return Bundle{}, err
	}

	// When the user's own knowledge yields less than half the budget, top up
	// from shared documents. Shared knowledge is untagged, so the topic
	// filter does not apply there.
	if o.sharedBackfill && len(passages) < o.topK/2 {
		shared, err := o.store.Search(ctx, queryVec, knowledge.SharedOwner, o.topK-len(passages))
		if err != nil {
			return Bundle{}, err
		}
		if len(shared) > 0 {
			passages = mergePassages(passages, shared, o.topK)
		}
	}

	profile, err := o.store.GetProfile(ctx, q.UserID)
	if err != nil {
		if !errors.Is(err, knowledge.ErrProfileNotFound) {
			return Bundle{}, err
		}
		profile = defaultProfile(q.UserID)
	}

	bundle := Bundle{
		Query:      q,
		Passages:   passages,
		Profile:    profile,
		Confidence: confidenceScore(passages),
	}

	o.logger.Debug("assembled context bundle",
		"user_id", q.UserID,
		"topic", q.Topic,
		"passages", len(passages),
		"confidence", bundle.Confidence)
	return bundle, nil
}

// mergePassages combines two ranked result sets into one list of at most
// limit passages, ordered by descending similarity with creation time and id
// as tie-breaks. Ranks are reassigned after the merge.
func mergePassages(a, b []knowledge.Passage, limit int) []knowledge.Passage {
	merged := make([]knowledge.Passage, 0, len(a)+len(b))
	merged = append(merged, a...)
	merged = append(merged, b...)

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Similarity != merged[j].Similarity {
			return merged[i].Similarity > merged[j].Similarity
		}
		ti, tj := merged[i].Document.CreatedAt, merged[j].Document.CreatedAt
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return merged[i].Document.ID.String() < merged[j].Document.ID.String()
	})

	if len(merged) > limit {
		merged = merged[:limit]
	}
	for i := range merged {
		merged[i].Rank = i + 1
	}
	return merged
}

// confidenceScore estimates context quality from the retrieved passages:
// 70% average similarity, 30% result-count saturation (full weight at 10
// passages). An empty result scores zero.
func confidenceScore(passages []knowledge.Passage) float64 {
	if len(passages) == 0 {
		return 0
	}

	var sum float64
	for _, p := range passages {
		sum += float64(p.Similarity)
	}
	avg := sum / float64(len(passages))

	countScore := float64(len(passages)) / 10
	if countScore > 1 {
		countScore = 1
	}

	confidence := avg*0.7 + countScore*0.3
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

// defaultProfile stands in for users with no stored knowledge record, so a
// missing profile never fails a query.
func defaultProfile(userID string) knowledge.Profile {
	return knowledge.Profile{
		UserID:             userID,
		Name:               "User_" + userID,
		Personality:        "Friendly and helpful forum participant.",
		Background:         "Forum member interested in a range of technical topics.",
		Expertise:          []string{"General Discussion"},
		CommunicationStyle: "Friendly, polite, eager to help.",
		Preferences: map[string]any{
			"response_length": "medium",
			"technical_level": "intermediate",
		},
	}
}
