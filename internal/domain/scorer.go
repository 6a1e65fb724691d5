package domain

import "context"

// RelevanceScorer is the shared semantic scoring contract between layers.
// Implementations return one score per submitted text, each tagged with
// the 0-based index of the text it belongs to.
type RelevanceScorer interface {
	Score(ctx context.Context, query string, texts []string, model string, topK int) (ScoreBatch, error)
}

// HealthChecker verifies collaborator availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ScoreBatch carries the scorer's response for one batch call.
type ScoreBatch struct {
	Results   []Score
	Model     string
	RequestID string
}

// Score is one scored text from a batch call. Index refers back to the
// position of the text in the submitted slice.
type Score struct {
	Index     int
	Relevance float64
	Text      string
}
