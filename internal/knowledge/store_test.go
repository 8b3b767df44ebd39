package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/threadwise/forumrag/internal/embedding"
	"github.com/threadwise/forumrag/internal/log"
)

const testDim = 8

// mockQuerier implements Querier for unit tests with scripted results and
// call tracking.
type mockQuerier struct {
	insertErr     error
	searchErr     error
	deleteErr     error
	countErr      error
	upsertProfErr error
	getProfErr    error

	searchRows  []SearchDocumentsRow
	countResult int64
	profileRow  GetProfileRow

	insertCalls     []InsertDocumentParams
	searchCalls     []SearchDocumentsParams
	deleteCalls     []uuid.UUID
	countCalls      []string
	upsertProfCalls []UpsertProfileParams
	getProfCalls    []string
}

func (m *mockQuerier) InsertDocument(_ context.Context, arg InsertDocumentParams) error {
	m.insertCalls = append(m.insertCalls, arg)
	return m.insertErr
}

func (m *mockQuerier) SearchDocuments(_ context.Context, arg SearchDocumentsParams) ([]SearchDocumentsRow, error) {
	m.searchCalls = append(m.searchCalls, arg)
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.searchRows, nil
}

func (m *mockQuerier) DeleteDocument(_ context.Context, id uuid.UUID) error {
	m.deleteCalls = append(m.deleteCalls, id)
	return m.deleteErr
}

func (m *mockQuerier) CountDocuments(_ context.Context, userID string) (int64, error) {
	m.countCalls = append(m.countCalls, userID)
	return m.countResult, m.countErr
}

func (m *mockQuerier) UpsertProfile(_ context.Context, arg UpsertProfileParams) error {
	m.upsertProfCalls = append(m.upsertProfCalls, arg)
	return m.upsertProfErr
}

func (m *mockQuerier) GetProfile(_ context.Context, userID string) (GetProfileRow, error) {
	m.getProfCalls = append(m.getProfCalls, userID)
	if m.getProfErr != nil {
		return GetProfileRow{}, m.getProfErr
	}
	return m.profileRow, nil
}

func newTestStore(t *testing.T, q Querier) *Store {
	t.Helper()
	s, err := NewStore(q, testDim, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return s
}

func testVector(dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(i) / 10
	}
	return v
}

func TestNewStore_Validation(t *testing.T) {
	if _, err := NewStore(nil, testDim, log.NewNop()); err == nil {
		t.Error("nil querier should be rejected")
	}
	if _, err := NewStore(&mockQuerier{}, 0, log.NewNop()); err == nil {
		t.Error("zero dimension should be rejected")
	}
}

func TestStore_Insert(t *testing.T) {
	q := &mockQuerier{}
	store := newTestStore(t, q)

	id, err := store.Insert(context.Background(), Document{
		UserID:    "u1",
		Topic:     "golang",
		Content:   "goroutines are cheap",
		Embedding: testVector(testDim),
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if id == uuid.Nil {
		t.Fatal("Insert() did not assign an id")
	}

	if len(q.insertCalls) != 1 {
		t.Fatalf("insert calls = %d, want 1", len(q.insertCalls))
	}
	call := q.insertCalls[0]
	if call.ID != id {
		t.Errorf("persisted id = %v, want %v", call.ID, id)
	}
	if call.UserID != "u1" || call.Topic != "golang" || call.Content != "goroutines are cheap" {
		t.Errorf("persisted row mismatch: %+v", call)
	}
	if !call.CreatedAt.Valid || call.CreatedAt.Time.IsZero() {
		t.Error("Insert() did not stamp creation time")
	}
}

func TestStore_InsertKeepsProvidedIDAndTime(t *testing.T) {
	q := &mockQuerier{}
	store := newTestStore(t, q)

	want := uuid.New()
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	id, err := store.Insert(context.Background(), Document{
		ID:        want,
		UserID:    "u1",
		Content:   "stable row",
		Embedding: testVector(testDim),
		CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if id != want {
		t.Errorf("id = %v, want %v", id, want)
	}
	if got := q.insertCalls[0].CreatedAt.Time; !got.Equal(created) {
		t.Errorf("created_at = %v, want %v", got, created)
	}
}

func TestStore_InsertDimensionMismatch(t *testing.T) {
	q := &mockQuerier{}
	store := newTestStore(t, q)

	for _, dim := range []int{0, testDim - 1, testDim + 1} {
		_, err := store.Insert(context.Background(), Document{
			UserID:    "u1",
			Content:   "bad vector",
			Embedding: testVector(dim),
		})
		if !errors.Is(err, embedding.ErrDimensionMismatch) {
			t.Errorf("dim %d: error = %v, want ErrDimensionMismatch", dim, err)
		}
	}

	// No partial row may be observable: the querier must never be reached.
	if len(q.insertCalls) != 0 {
		t.Fatalf("querier received %d inserts for invalid documents", len(q.insertCalls))
	}
}

func TestStore_InsertInvalidDocument(t *testing.T) {
	q := &mockQuerier{}
	store := newTestStore(t, q)

	_, err := store.Insert(context.Background(), Document{
		UserID:    "u1",
		Content:   "  ",
		Embedding: testVector(testDim),
	})
	if !errors.Is(err, embedding.ErrInvalidInput) {
		t.Errorf("blank content: error = %v, want ErrInvalidInput", err)
	}

	_, err = store.Insert(context.Background(), Document{
		Content:   "orphan",
		Embedding: testVector(testDim),
	})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("missing owner: error = %v, want ErrInvalidArgument", err)
	}
}

func TestStore_InsertStoreUnavailable(t *testing.T) {
	q := &mockQuerier{insertErr: errors.New("connection refused")}
	store := newTestStore(t, q)

	_, err := store.Insert(context.Background(), Document{
		UserID:    "u1",
		Content:   "unreachable",
		Embedding: testVector(testDim),
	})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("error = %v, want ErrStoreUnavailable", err)
	}
}

func TestStore_Search(t *testing.T) {
	now := time.Now()
	q := &mockQuerier{
		searchRows: []SearchDocumentsRow{
			{ID: uuid.New(), UserID: "u1", Content: "most similar", Similarity: 0.91,
				CreatedAt: pgtype.Timestamptz{Time: now, Valid: true}},
			{ID: uuid.New(), UserID: "u1", Content: "less similar", Similarity: 0.77,
				CreatedAt: pgtype.Timestamptz{Time: now.Add(time.Minute), Valid: true}},
		},
	}
	store := newTestStore(t, q)

	passages, err := store.Search(context.Background(), testVector(testDim), "u1", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if len(passages) != 2 {
		t.Fatalf("len = %d, want 2", len(passages))
	}
	if passages[0].Similarity != 0.91 || passages[1].Similarity != 0.77 {
		t.Errorf("row order not preserved: %v, %v", passages[0].Similarity, passages[1].Similarity)
	}
	if passages[0].Rank != 1 || passages[1].Rank != 2 {
		t.Errorf("ranks = %d, %d; want 1, 2", passages[0].Rank, passages[1].Rank)
	}

	call := q.searchCalls[0]
	if call.UserID != "u1" || call.ResultLimit != 5 || call.Topic != "" {
		t.Errorf("search params mismatch: %+v", call)
	}
}

func TestStore_SearchWithTopic(t *testing.T) {
	q := &mockQuerier{}
	store := newTestStore(t, q)

	if _, err := store.Search(context.Background(), testVector(testDim), "u1", 3, WithTopic("golang")); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got := q.searchCalls[0].Topic; got != "golang" {
		t.Errorf("topic = %q, want %q", got, "golang")
	}
}

func TestStore_SearchInvalidTopK(t *testing.T) {
	q := &mockQuerier{}
	store := newTestStore(t, q)

	for _, k := range []int{0, -1} {
		_, err := store.Search(context.Background(), testVector(testDim), "u1", k)
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("top_k=%d: error = %v, want ErrInvalidArgument", k, err)
		}
	}
	if len(q.searchCalls) != 0 {
		t.Fatal("querier reached despite invalid top_k")
	}
}

func TestStore_SearchDimensionMismatch(t *testing.T) {
	q := &mockQuerier{}
	store := newTestStore(t, q)

	_, err := store.Search(context.Background(), testVector(testDim+2), "u1", 5)
	if !errors.Is(err, embedding.ErrDimensionMismatch) {
		t.Fatalf("error = %v, want ErrDimensionMismatch", err)
	}
	if len(q.searchCalls) != 0 {
		t.Fatal("querier reached despite wrong-width query vector")
	}
}

func TestStore_SearchStoreUnavailable(t *testing.T) {
	q := &mockQuerier{searchErr: errors.New("connection reset")}
	store := newTestStore(t, q)

	// A store failure must surface as an error, never as an empty result.
	passages, err := store.Search(context.Background(), testVector(testDim), "u1", 5)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("error = %v, want ErrStoreUnavailable", err)
	}
	if passages != nil {
		t.Fatal("passages should be nil on failure")
	}
}

func TestStore_SearchEmptyResult(t *testing.T) {
	q := &mockQuerier{}
	store := newTestStore(t, q)

	passages, err := store.Search(context.Background(), testVector(testDim), "nobody", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(passages) != 0 {
		t.Fatalf("len = %d, want 0", len(passages))
	}
}

func TestStore_Delete(t *testing.T) {
	q := &mockQuerier{}
	store := newTestStore(t, q)

	id := uuid.New()
	if err := store.Delete(context.Background(), id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(q.deleteCalls) != 1 || q.deleteCalls[0] != id {
		t.Fatalf("delete calls = %v", q.deleteCalls)
	}

	// Deleting again is a no-op, not an error.
	if err := store.Delete(context.Background(), id); err != nil {
		t.Fatalf("repeat Delete() error = %v", err)
	}
}

func TestStore_DeleteStoreUnavailable(t *testing.T) {
	q := &mockQuerier{deleteErr: errors.New("timeout")}
	store := newTestStore(t, q)

	if err := store.Delete(context.Background(), uuid.New()); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("error = %v, want ErrStoreUnavailable", err)
	}
}

func TestStore_Count(t *testing.T) {
	q := &mockQuerier{countResult: 42}
	store := newTestStore(t, q)

	count, err := store.Count(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 42 {
		t.Fatalf("count = %d, want 42", count)
	}
}

func TestStore_ProfileRoundTrip(t *testing.T) {
	q := &mockQuerier{}
	store := newTestStore(t, q)

	in := Profile{
		UserID:             "u1",
		Name:               "alaev",
		Personality:        "caustic and contrarian",
		Background:         "veteran forum member",
		Expertise:          []string{"legacy systems", "flame wars"},
		CommunicationStyle: "long sarcastic tangents",
		Preferences:        map[string]any{"response_length": "long"},
	}
	if err := store.UpsertProfile(context.Background(), in); err != nil {
		t.Fatalf("UpsertProfile() error = %v", err)
	}

	call := q.upsertProfCalls[0]
	var expertise []string
	if err := json.Unmarshal(call.Expertise, &expertise); err != nil {
		t.Fatalf("expertise not valid JSON: %v", err)
	}
	if len(expertise) != 2 || expertise[0] != "legacy systems" {
		t.Errorf("expertise = %v", expertise)
	}

	q.profileRow = GetProfileRow{
		UserID:             call.UserID,
		Name:               call.Name,
		Personality:        call.Personality,
		Background:         call.Background,
		Expertise:          call.Expertise,
		CommunicationStyle: call.CommunicationStyle,
		Preferences:        call.Preferences,
		CreatedAt:          pgtype.Timestamptz{Time: time.Now(), Valid: true},
		UpdatedAt:          pgtype.Timestamptz{Time: time.Now(), Valid: true},
	}

	out, err := store.GetProfile(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if out.Name != in.Name || out.Personality != in.Personality {
		t.Errorf("profile fields lost: %+v", out)
	}
	if len(out.Expertise) != 2 {
		t.Errorf("expertise = %v", out.Expertise)
	}
	if out.Preferences["response_length"] != "long" {
		t.Errorf("preferences = %v", out.Preferences)
	}
}

func TestStore_GetProfileNotFound(t *testing.T) {
	q := &mockQuerier{getProfErr: pgx.ErrNoRows}
	store := newTestStore(t, q)

	if _, err := store.GetProfile(context.Background(), "ghost"); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("error = %v, want ErrProfileNotFound", err)
	}
}

func TestStore_GetProfileStoreUnavailable(t *testing.T) {
	q := &mockQuerier{getProfErr: errors.New("connection refused")}
	store := newTestStore(t, q)

	if _, err := store.GetProfile(context.Background(), "u1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("error = %v, want ErrStoreUnavailable", err)
	}
}
