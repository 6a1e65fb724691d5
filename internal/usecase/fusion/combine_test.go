package fusion

import (
	"testing"

	"github.com/kailas-cloud/rankfuse/internal/domain"
)

func TestNormalizeScore(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		all   []float64
		want  float64
	}{
		{"empty set", 0.5, nil, 0.0},
		{"single element", 0.7, []float64{0.7}, 1.0},
		{"all equal", 0.4, []float64{0.4, 0.4, 0.4}, 1.0},
		{"minimum", 0.6, []float64{0.6, 0.7, 0.8}, 0.0},
		{"maximum", 0.8, []float64{0.6, 0.7, 0.8}, 1.0},
		{"midpoint", 0.7, []float64{0.6, 0.7, 0.8}, 0.5},
		{"negative range", -1.0, []float64{-2.0, -1.0, 0.0}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeScore(tt.score, tt.all); !approx(got, tt.want) {
				t.Errorf("normalizeScore(%v, %v) = %v, want %v", tt.score, tt.all, got, tt.want)
			}
		})
	}
}

func TestCombineResults_MissingNativeScoreTreatedAsZero(t *testing.T) {
	doc1, _ := domain.NewDocument("a", "text a", "", nil)
	doc2, _ := domain.NewDocument("b", "text b", "", nil)

	withScore := domain.NewCandidate(doc1, 0.8, true, 0)
	noScore := domain.NewCandidate(doc2, 0, false, 1)
	sent := []domain.Candidate{withScore, noScore}

	scored := []domain.ScoredCandidate{
		domain.NewScoredCandidate(withScore, 0.9),
		domain.NewScoredCandidate(noScore, 0.5),
	}

	results, err := combineResults(scored, sent, makeConfig(t, true))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Comparison set is {0.8, 0.0}: the scoreless candidate normalizes to 0.
	// a: 0.3*1.0 + 0.7*0.9 = 0.93; b: 0.3*0.0 + 0.7*0.5 = 0.35
	if !approx(results[0].Score(), 0.93) {
		t.Errorf("expected 0.93, got %v", results[0].Score())
	}
	if !approx(results[1].Score(), 0.35) {
		t.Errorf("expected 0.35, got %v", results[1].Score())
	}
	if results[0].NativeScore() == nil {
		t.Error("expected native score pointer for scored candidate")
	}
	if results[1].NativeScore() != nil {
		t.Error("expected nil native score for scoreless candidate")
	}
	if results[0].RelevanceScore() == nil || results[1].RelevanceScore() == nil {
		t.Error("relevance scores must always be set on the reranked path")
	}
}

func TestResultsFromRetrieval_PreservesOrder(t *testing.T) {
	doc1, _ := domain.NewDocument("a", "text a", "", nil)
	doc2, _ := domain.NewDocument("b", "text b", "", nil)

	candidates := []domain.Candidate{
		domain.NewCandidate(doc1, 2.5, true, 0),
		domain.NewCandidate(doc2, 0, false, 1),
	}

	results, err := resultsFromRetrieval(candidates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !approx(results[0].Score(), 2.5) {
		t.Errorf("expected native score 2.5, got %v", results[0].Score())
	}
	if !approx(results[1].Score(), 0.0) {
		t.Errorf("expected 0.0 for scoreless candidate, got %v", results[1].Score())
	}
	if results[0].Rank() != 1 || results[1].Rank() != 2 {
		t.Error("ranks must follow retrieval order")
	}
	if results[0].RelevanceScore() != nil {
		t.Error("relevance score must be nil on the retrieval-only path")
	}
}
