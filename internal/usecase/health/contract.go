package health

import "context"

// SearchChecker verifies search index availability.
type SearchChecker interface {
	HealthCheck(ctx context.Context) error
}

// ScorerChecker verifies relevance scorer availability.
type ScorerChecker interface {
	HealthCheck(ctx context.Context) error
}
