// Package fusion orchestrates the staged retrieve → rerank → combine →
// truncate flow over the search index gateway and the relevance scorer.
package fusion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rankfuse/internal/domain"
	domfusion "github.com/kailas-cloud/rankfuse/internal/domain/fusion"
	"github.com/kailas-cloud/rankfuse/internal/domain/query"
	"github.com/kailas-cloud/rankfuse/internal/metrics"
)

// Service runs the fusion pipeline for single queries.
type Service struct {
	gateway  Gateway
	scorer   domain.RelevanceScorer
	defaults domfusion.Config
	logger   *zap.Logger
}

// New creates a fusion pipeline service.
func New(gateway Gateway, scorer domain.RelevanceScorer, defaults domfusion.Config, logger *zap.Logger) *Service {
	return &Service{gateway: gateway, scorer: scorer, defaults: defaults, logger: logger}
}

// Search runs one pipeline invocation: validate, retrieve, conditionally
// rerank, combine scores, truncate to the configured final size.
func (s *Service) Search(ctx context.Context, req domfusion.Request) (domfusion.Response, error) {
	queryText := strings.TrimSpace(req.Query)
	if queryText == "" {
		return domfusion.Response{}, fmt.Errorf("query must not be empty: %w", domain.ErrValidation)
	}
	index := strings.TrimSpace(req.Index)
	if index == "" {
		return domfusion.Response{}, fmt.Errorf("index must not be empty: %w", domain.ErrValidation)
	}

	cfg := s.defaults
	if req.Config != nil {
		cfg = *req.Config
	}

	start := time.Now()

	page, err := s.retrieve(ctx, index, queryText, req, cfg)
	if err != nil {
		metrics.PipelineRequestsTotal.WithLabelValues("error").Inc()
		return domfusion.Response{}, classifyRunError(err)
	}
	retrievalMs := time.Since(start).Milliseconds()

	s.logger.Debug("Retrieval completed",
		zap.String("index", index),
		zap.Int("total_hits", page.TotalHits),
		zap.Int("returned_docs", len(page.Candidates)),
		zap.Int64("took_ms", retrievalMs),
	)

	var report *domfusion.Report
	if req.Debug {
		report = &domfusion.Report{
			Retrieval: domfusion.RetrievalReport{
				TookMs:       retrievalMs,
				TotalHits:    page.TotalHits,
				ReturnedDocs: len(page.Candidates),
			},
		}
	}

	var (
		results      []domfusion.Result
		rerankMs     *int64
		applied      bool
		rerankReport *domfusion.RerankReport
	)

	// Fewer than 2 candidates leaves nothing to reorder; the scorer is
	// never called on that path.
	if !req.DisableReranking && len(page.Candidates) > 1 {
		rerankStart := time.Now()
		scored, sent, rerr := s.rerank(ctx, queryText, page.Candidates, cfg)
		if rerr != nil {
			metrics.PipelineRequestsTotal.WithLabelValues("error").Inc()
			return domfusion.Response{}, rerr
		}
		ms := time.Since(rerankStart).Milliseconds()
		rerankMs = &ms
		applied = true

		if req.Debug {
			rerankReport = &domfusion.RerankReport{
				Model:             cfg.Model(),
				DocumentsSent:     len(sent),
				DocumentsReturned: len(scored),
				TookMs:            ms,
			}
		}

		results, err = combineResults(scored, sent, cfg)
	} else {
		results, err = resultsFromRetrieval(page.Candidates)
	}
	if err != nil {
		metrics.PipelineRequestsTotal.WithLabelValues("error").Inc()
		return domfusion.Response{}, classifyRunError(err)
	}

	// Truncation happens after the final ranking is fixed.
	if len(results) > cfg.FinalSize() {
		results = results[:cfg.FinalSize()]
	}

	if report != nil {
		report.Reranking = rerankReport
	}

	totalMs := time.Since(start).Milliseconds()
	metrics.PipelineRequestsTotal.WithLabelValues("success").Inc()
	metrics.PipelineDuration.WithLabelValues("total").Observe(float64(totalMs) / 1000)

	s.logger.Info("Search completed",
		zap.String("index", index),
		zap.Int("results", len(results)),
		zap.Bool("reranking_applied", applied),
		zap.Int64("took_ms", totalMs),
	)

	return domfusion.Response{
		Query:            queryText,
		Results:          results,
		TotalHits:        page.TotalHits,
		TookMs:           totalMs,
		RetrievalTookMs:  retrievalMs,
		RerankTookMs:     rerankMs,
		ModelUsed:        cfg.Model(),
		RerankingApplied: applied,
		Debug:            report,
	}, nil
}

// retrieve issues the native query: a caller-supplied query verbatim, or
// the default multi-match wrapped with filters. Retries belong to the
// gateway's transport, not here.
func (s *Service) retrieve(
	ctx context.Context, index, queryText string,
	req domfusion.Request, cfg domfusion.Config,
) (Page, error) {
	var nq query.Query
	if req.Custom != nil {
		nq = *req.Custom
		if err := nq.Validate(); err != nil {
			return Page{}, err
		}
	} else {
		body := query.WithFilters(query.Match(queryText), req.Filters)
		nq = query.Query{Body: body, Size: cfg.InitialFetchSize()}
	}

	page, err := s.gateway.Search(ctx, index, nq)
	if err != nil {
		return Page{}, fmt.Errorf("search index %q: %w", index, err)
	}

	metrics.PipelineDuration.WithLabelValues("retrieval").Observe(float64(page.TookMs) / 1000)
	return page, nil
}

// rerank scores the first RerankSize candidates and returns them in
// relevance-descending order together with the sent set (the comparison
// set for native score normalization).
func (s *Service) rerank(
	ctx context.Context, queryText string,
	candidates []domain.Candidate, cfg domfusion.Config,
) ([]domain.ScoredCandidate, []domain.Candidate, error) {
	n := cfg.RerankSize()
	if n > len(candidates) {
		n = len(candidates)
	}
	sent := candidates[:n]

	texts := make([]string, len(sent))
	for i := range sent {
		texts[i] = scoringText(sent[i].Document())
	}

	// topK = all sent documents, so every candidate gets a score back.
	batch, err := s.scorer.Score(ctx, queryText, texts, cfg.Model(), len(sent))
	if err != nil {
		return nil, nil, domain.NewRerankingError(queryText, len(sent), err)
	}

	scored := make([]domain.ScoredCandidate, 0, len(batch.Results))
	for _, r := range batch.Results {
		// Out-of-range indices are dropped, not raised; a malformed
		// scorer response must not take the whole run down.
		if r.Index < 0 || r.Index >= len(sent) {
			s.logger.Warn("Dropping scorer result with out-of-range index",
				zap.Int("index", r.Index),
				zap.Int("documents_sent", len(sent)),
			)
			continue
		}
		scored = append(scored, domain.NewScoredCandidate(sent[r.Index], r.Relevance))
	}

	// Ties keep the scorer's order.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Relevance() > scored[j].Relevance()
	})

	metrics.RerankBatchesTotal.WithLabelValues(cfg.Model()).Inc()
	return scored, sent, nil
}

// scoringText joins title and body into the text sent for scoring.
func scoringText(doc domain.Document) string {
	if title := doc.Title(); title != "" {
		return title + " " + doc.Text()
	}
	return doc.Text()
}

// classifyRunError keeps typed validation/configuration/retrieval/reranking
// errors as-is and wraps everything else as a generic search-stage failure.
func classifyRunError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrConfiguration),
		errors.Is(err, domain.ErrRetrieval),
		errors.Is(err, domain.ErrReranking):
		return err
	default:
		return domain.NewPipelineError("search", err)
	}
}
