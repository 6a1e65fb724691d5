// Package batch runs independent fusion pipeline invocations concurrently
// under a bounded admission gate.
package batch

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/rankfuse/internal/domain/fusion"
)

// DefaultMaxConcurrent caps in-flight pipeline runs when no limit is configured.
const DefaultMaxConcurrent = 10

// Service coordinates concurrent pipeline runs.
type Service struct {
	pipeline      Pipeline
	maxConcurrent int
	logger        *zap.Logger
}

// New creates a batch coordinator.
func New(pipeline Pipeline, logger *zap.Logger) *Service {
	return &Service{pipeline: pipeline, maxConcurrent: DefaultMaxConcurrent, logger: logger}
}

// WithMaxConcurrent configures the default concurrency ceiling.
func (s *Service) WithMaxConcurrent(n int) *Service {
	if n > 0 {
		s.maxConcurrent = n
	}
	return s
}

// Run executes the requests with at most maxConcurrent in flight
// (<= 0 falls back to the configured default). Responses are returned in
// input order regardless of completion order. The first failure cancels
// the remaining runs and propagates (fail-fast).
func (s *Service) Run(
	ctx context.Context, requests []fusion.Request, maxConcurrent int,
) ([]fusion.Response, error) {
	if len(requests) == 0 {
		return []fusion.Response{}, nil
	}
	if maxConcurrent <= 0 {
		maxConcurrent = s.maxConcurrent
	}

	responses := make([]fusion.Response, len(requests))

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, maxConcurrent)

	for i, req := range requests {
		i, req := i, req
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}

			resp, err := s.pipeline.Search(gctx, req)
			if err != nil {
				return fmt.Errorf("batch request %d: %w", i, err)
			}
			responses[i] = resp
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Debug("Batch completed",
		zap.Int("requests", len(requests)),
		zap.Int("max_concurrent", maxConcurrent),
	)

	return responses, nil
}
