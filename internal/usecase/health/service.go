package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates both collaborators are operational.
	Healthy Status = "healthy"
	// Unhealthy indicates at least one collaborator is failing.
	Unhealthy Status = "unhealthy"
)

// CheckResult represents an individual component health check outcome.
type CheckResult struct {
	Status Status
	Error  string
}

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks over both collaborators.
type Service struct {
	search SearchChecker
	scorer ScorerChecker
}

// New creates a health service.
func New(search SearchChecker, scorer ScorerChecker) *Service {
	return &Service{search: search, scorer: scorer}
}

// Check runs health checks against the search index and the scorer.
// The aggregate is unhealthy if either collaborator is unhealthy.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	checks["search_index"] = check(ctx, s.search.HealthCheck)
	checks["scorer"] = check(ctx, s.scorer.HealthCheck)

	status := Healthy
	for _, c := range checks {
		if c.Status == Unhealthy {
			status = Unhealthy
			break
		}
	}

	return Report{Status: status, Checks: checks}
}

func check(ctx context.Context, fn func(context.Context) error) CheckResult {
	if err := fn(ctx); err != nil {
		return CheckResult{Status: Unhealthy, Error: err.Error()}
	}
	return CheckResult{Status: Healthy}
}
