package rankfuse

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/rankfuse/internal/domain"
)

// Scorer judges how relevant each document is to a query.
// Implement it to plug a custom reranking provider into the pipeline.
type Scorer interface {
	// Score returns relevance scores for the given documents. Index refers
	// to the position in the documents slice; topK limits how many scores
	// come back.
	Score(ctx context.Context, query string, documents []string, model string, topK int) ([]Score, error)
}

// Score is one scored document.
type Score struct {
	Index     int
	Relevance float64
}

// scorerAdapter wraps the public Scorer to satisfy domain.RelevanceScorer.
type scorerAdapter struct {
	inner Scorer
}

func (a *scorerAdapter) Score(
	ctx context.Context, query string, texts []string, model string, topK int,
) (domain.ScoreBatch, error) {
	scores, err := a.inner.Score(ctx, query, texts, model, topK)
	if err != nil {
		return domain.ScoreBatch{}, fmt.Errorf("score: %w", err)
	}

	batch := domain.ScoreBatch{Model: model}
	for _, s := range scores {
		var text string
		if s.Index >= 0 && s.Index < len(texts) {
			text = texts[s.Index]
		}
		batch.Results = append(batch.Results, domain.Score{
			Index:     s.Index,
			Relevance: s.Relevance,
			Text:      text,
		})
	}
	return batch, nil
}
