package fusion

import (
	"context"

	"github.com/kailas-cloud/rankfuse/internal/domain"
	"github.com/kailas-cloud/rankfuse/internal/domain/query"
)

// Gateway defines the retrieval contract against the search index.
type Gateway interface {
	Search(ctx context.Context, index string, q query.Query) (Page, error)
}

// Page is one retrieval response from the gateway, candidates in engine
// ranking order.
type Page struct {
	TookMs     int64
	TimedOut   bool
	TotalHits  int
	MaxScore   *float64
	Candidates []domain.Candidate
}
