package scorecache

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rankfuse/internal/db"
	"github.com/kailas-cloud/rankfuse/internal/domain"
)

// --- Mocks ---

type mockStore struct {
	data   map[string][]byte
	getErr error
	setErr error
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string][]byte)}
}

func (m *mockStore) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockStore) SetWithTTL(_ context.Context, key string, value []byte, _ time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

type mockScorer struct {
	called    int
	lastTexts []string
	err       error
	relevance map[string]float64
}

func (m *mockScorer) Score(
	_ context.Context, _ string, texts []string, model string, _ int,
) (domain.ScoreBatch, error) {
	m.called++
	m.lastTexts = texts
	if m.err != nil {
		return domain.ScoreBatch{}, m.err
	}
	batch := domain.ScoreBatch{Model: model, RequestID: "inner-req"}
	for i, text := range texts {
		batch.Results = append(batch.Results, domain.Score{
			Index:     i,
			Relevance: m.relevance[text],
			Text:      text,
		})
	}
	return batch, nil
}

// --- Tests ---

func TestScore_MissThenHit(t *testing.T) {
	store := newMockStore()
	inner := &mockScorer{relevance: map[string]float64{"a": 0.9, "b": 0.4}}
	cached := New(inner, store, time.Hour, nil, zap.NewNop())

	texts := []string{"a", "b"}

	first, err := cached.Score(context.Background(), "q", texts, "zerank-1", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.called != 1 {
		t.Fatalf("expected 1 inner call, got %d", inner.called)
	}
	if len(first.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(first.Results))
	}

	second, err := cached.Score(context.Background(), "q", texts, "zerank-1", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.called != 1 {
		t.Errorf("full hit must not call the inner scorer, got %d calls", inner.called)
	}
	for _, r := range second.Results {
		want := inner.relevance[r.Text]
		if r.Relevance != want {
			t.Errorf("text %q: expected %v, got %v", r.Text, want, r.Relevance)
		}
	}
}

func TestScore_PartialMissRemapsIndices(t *testing.T) {
	store := newMockStore()
	inner := &mockScorer{relevance: map[string]float64{"a": 0.9, "b": 0.4, "c": 0.7}}
	cached := New(inner, store, time.Hour, nil, zap.NewNop())

	// Warm the cache for "b" only.
	if _, err := cached.Score(context.Background(), "q", []string{"b"}, "zerank-1", 1); err != nil {
		t.Fatalf("warmup: %v", err)
	}
	inner.called = 0

	batch, err := cached.Score(context.Background(), "q", []string{"a", "b", "c"}, "zerank-1", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.called != 1 {
		t.Fatalf("expected 1 inner call, got %d", inner.called)
	}
	// Only the misses go to the inner scorer.
	if len(inner.lastTexts) != 2 || inner.lastTexts[0] != "a" || inner.lastTexts[1] != "c" {
		t.Errorf("unexpected texts sent to inner scorer: %v", inner.lastTexts)
	}

	if len(batch.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(batch.Results))
	}
	byIndex := make(map[int]domain.Score)
	for _, r := range batch.Results {
		byIndex[r.Index] = r
	}
	// Indices refer to the original input positions, not the miss subset.
	if byIndex[0].Relevance != 0.9 || byIndex[1].Relevance != 0.4 || byIndex[2].Relevance != 0.7 {
		t.Errorf("index remapping broken: %+v", batch.Results)
	}
}

func TestScore_DifferentModelMisses(t *testing.T) {
	store := newMockStore()
	inner := &mockScorer{relevance: map[string]float64{"a": 0.9}}
	cached := New(inner, store, time.Hour, nil, zap.NewNop())

	ctx := context.Background()
	if _, err := cached.Score(ctx, "q", []string{"a"}, "model-1", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := cached.Score(ctx, "q", []string{"a"}, "model-2", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.called != 2 {
		t.Errorf("different models must not share cache entries, got %d calls", inner.called)
	}
}

func TestScore_TruncatedTopKBypassesCache(t *testing.T) {
	store := newMockStore()
	inner := &mockScorer{relevance: map[string]float64{"a": 0.9, "b": 0.4}}
	cached := New(inner, store, time.Hour, nil, zap.NewNop())

	if _, err := cached.Score(context.Background(), "q", []string{"a", "b"}, "zerank-1", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.called != 1 {
		t.Fatalf("expected direct inner call, got %d", inner.called)
	}
	if len(store.data) != 0 {
		t.Error("truncated responses must not populate the cache")
	}
}

func TestScore_StoreFailuresFallThrough(t *testing.T) {
	store := newMockStore()
	store.getErr = errors.New("connection reset")
	store.setErr = errors.New("connection reset")
	inner := &mockScorer{relevance: map[string]float64{"a": 0.9}}
	cached := New(inner, store, time.Hour, nil, zap.NewNop())

	batch, err := cached.Score(context.Background(), "q", []string{"a"}, "zerank-1", 1)
	if err != nil {
		t.Fatalf("cache failures must not fail scoring: %v", err)
	}
	if len(batch.Results) != 1 || batch.Results[0].Relevance != 0.9 {
		t.Errorf("unexpected results: %+v", batch.Results)
	}
}

func TestScore_InnerErrorPropagates(t *testing.T) {
	store := newMockStore()
	wantErr := errors.New("scorer down")
	inner := &mockScorer{err: wantErr}
	cached := New(inner, store, time.Hour, nil, zap.NewNop())

	_, err := cached.Score(context.Background(), "q", []string{"a"}, "zerank-1", 1)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected inner error, got %v", err)
	}
}
