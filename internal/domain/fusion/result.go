package fusion

import (
	"fmt"

	"github.com/kailas-cloud/rankfuse/internal/domain"
)

// Result is one final ranked row: the document, its fused score, its
// 1-based rank, and both raw scores for provenance. Immutable.
type Result struct {
	doc            domain.Document
	score          float64
	rank           int
	nativeScore    *float64
	relevanceScore *float64
}

// NewResult creates a final result row. Rank is 1-based; nativeScore and
// relevanceScore are nil when the corresponding signal was absent.
func NewResult(
	doc domain.Document, score float64, rank int,
	nativeScore, relevanceScore *float64,
) (Result, error) {
	if rank < 1 {
		return Result{}, fmt.Errorf("rank must be positive (1-based), got %d: %w",
			rank, domain.ErrValidation)
	}
	return Result{
		doc:            doc,
		score:          score,
		rank:           rank,
		nativeScore:    nativeScore,
		relevanceScore: relevanceScore,
	}, nil
}

// Document returns the result's document.
func (r *Result) Document() domain.Document { return r.doc }

// Score returns the final fused score.
func (r *Result) Score() float64 { return r.score }

// Rank returns the 1-based position in the final ranking.
func (r *Result) Rank() int { return r.rank }

// NativeScore returns the search engine score (nil when absent).
func (r *Result) NativeScore() *float64 { return r.nativeScore }

// RelevanceScore returns the semantic score (nil when reranking was skipped).
func (r *Result) RelevanceScore() *float64 { return r.relevanceScore }
