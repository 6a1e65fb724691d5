package rankfuse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rankfuse/internal/db"
	dbRedis "github.com/kailas-cloud/rankfuse/internal/db/redis"
	"github.com/kailas-cloud/rankfuse/internal/domain"
	domfusion "github.com/kailas-cloud/rankfuse/internal/domain/fusion"
	"github.com/kailas-cloud/rankfuse/internal/domain/query"
	"github.com/kailas-cloud/rankfuse/internal/repository/scorecache"
	"github.com/kailas-cloud/rankfuse/internal/transport/elastic"
	openaiScorer "github.com/kailas-cloud/rankfuse/internal/transport/openai"
	"github.com/kailas-cloud/rankfuse/internal/transport/zeroentropy"
	batchuc "github.com/kailas-cloud/rankfuse/internal/usecase/batch"
	fusionuc "github.com/kailas-cloud/rankfuse/internal/usecase/fusion"
	healthuc "github.com/kailas-cloud/rankfuse/internal/usecase/health"
)

const defaultReadinessTimeout = 10 * time.Second

// Internal interfaces for substitution in tests.
type fusionUseCase interface {
	Search(ctx context.Context, req domfusion.Request) (domfusion.Response, error)
}

type batchUseCase interface {
	Run(ctx context.Context, requests []domfusion.Request, maxConcurrent int) ([]domfusion.Response, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// Client is the rankfuse SDK entry point.
type Client struct {
	store     db.Store
	defaults  domfusion.Config
	fusionSvc fusionUseCase
	batchSvc  batchUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a rankfuse Client. The provided context is used for the
// initial cache readiness check when a score cache is configured.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	if len(cfg.esAddrs) == 0 {
		return nil, errors.New("rankfuse: elasticsearch address required (use WithElasticsearch)")
	}

	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	gateway, err := elastic.NewGateway(&elastic.Config{
		Addresses: cfg.esAddrs,
		Username:  cfg.esUsername,
		Password:  cfg.esPassword,
		APIKey:    cfg.esAPIKey,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("rankfuse: create search gateway: %w", err)
	}

	scorer, err := createScorer(cfg, logger)
	if err != nil {
		return nil, err
	}

	var store db.Store
	if cfg.cacheAddr != "" {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    []string{cfg.cacheAddr},
			Password: cfg.cachePassword,
		})
		if err != nil {
			return nil, fmt.Errorf("rankfuse: create cache store: %w", err)
		}
		if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("rankfuse: cache store not ready: %w", err)
		}
		scorer = scorecache.New(scorer, store, cfg.cacheTTL, nil, logger)
	}

	defaults, err := pipelineDefaults(cfg)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, fmt.Errorf("rankfuse: %w", err)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}

	fusionSvc := fusionuc.New(gateway, scorer, defaults, logger)
	batchSvc := batchuc.New(fusionSvc, logger)
	if cfg.maxConcurrent > 0 {
		batchSvc = batchSvc.WithMaxConcurrent(cfg.maxConcurrent)
	}
	healthSvc := healthuc.New(gateway, &scorerHealthChecker{scorer: scorer})

	return &Client{
		store:     store,
		defaults:  defaults,
		fusionSvc: fusionSvc,
		batchSvc:  batchSvc,
		healthSvc: healthSvc,
		obs:       obs,
	}, nil
}

// createScorer picks the relevance scorer from the configured options.
// A custom Scorer takes precedence over the built-in providers.
func createScorer(cfg *clientConfig, logger *zap.Logger) (domain.RelevanceScorer, error) {
	switch {
	case cfg.scorer != nil:
		return &scorerAdapter{inner: cfg.scorer}, nil
	case cfg.zeroEntropyKey != "":
		client, err := zeroentropy.NewClient(&zeroentropy.Config{
			BaseURL: cfg.zeroEntropyURL,
			APIKey:  cfg.zeroEntropyKey,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("rankfuse: create zeroentropy client: %w", err)
		}
		return client, nil
	case cfg.openAIKey != "":
		return openaiScorer.NewScorer(&openaiScorer.Config{
			APIKey:     cfg.openAIKey,
			Model:      cfg.openAIModel,
			Dimensions: cfg.openAIDimensions,
			Logger:     logger,
		}), nil
	default:
		return nil, errors.New(
			"rankfuse: relevance scorer required (use WithZeroEntropy, WithEmbeddingScorer or WithScorer)")
	}
}

// pipelineDefaults builds the client-level fusion configuration.
func pipelineDefaults(cfg *clientConfig) (domfusion.Config, error) {
	initial := domfusion.DefaultInitialFetchSize
	if cfg.initialFetchSize > 0 {
		initial = cfg.initialFetchSize
	}
	rerank := domfusion.DefaultRerankSize
	if cfg.rerankSize > 0 {
		rerank = cfg.rerankSize
	}
	final := domfusion.DefaultFinalSize
	if cfg.finalSize > 0 {
		final = cfg.finalSize
	}

	combine := true
	if cfg.combineScores != nil {
		combine = *cfg.combineScores
	}

	indexWeight := domfusion.DefaultIndexWeight
	relevanceWeight := domfusion.DefaultRelevanceWeight
	if cfg.indexWeight != 0 || cfg.relevanceWeight != 0 {
		indexWeight = cfg.indexWeight
		relevanceWeight = cfg.relevanceWeight
	}

	return domfusion.NewConfig(initial, rerank, final, cfg.model, combine, indexWeight, relevanceWeight)
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Search runs one fusion pipeline invocation.
func (c *Client) Search(ctx context.Context, req SearchRequest) (resp SearchResponse, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	domReq, err := c.domainRequest(req)
	if err != nil {
		return SearchResponse{}, err
	}

	domResp, err := c.fusionSvc.Search(ctx, domReq)
	if err != nil {
		return SearchResponse{}, err
	}
	return responseFromDomain(domResp), nil
}

// SearchBatch runs independent pipeline invocations concurrently and
// returns responses in input order. The first failure cancels the rest.
func (c *Client) SearchBatch(ctx context.Context, reqs []SearchRequest) (resps []SearchResponse, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search_batch", start, err) }()

	domReqs := make([]domfusion.Request, len(reqs))
	for i, req := range reqs {
		domReqs[i], err = c.domainRequest(req)
		if err != nil {
			return nil, fmt.Errorf("request %d: %w", i, err)
		}
	}

	domResps, err := c.batchSvc.Run(ctx, domReqs, 0)
	if err != nil {
		return nil, err
	}

	out := make([]SearchResponse, len(domResps))
	for i := range domResps {
		out[i] = responseFromDomain(domResps[i])
	}
	return out, nil
}

// Health checks the health of the search index and the scorer.
func (c *Client) Health(ctx context.Context) HealthStatus {
	report := c.healthSvc.Check(ctx)
	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v.Status)
	}
	return HealthStatus{
		Status: string(report.Status),
		Checks: checks,
	}
}

// domainRequest converts a public request, merging per-request overrides
// over the client defaults.
func (c *Client) domainRequest(req SearchRequest) (domfusion.Request, error) {
	out := domfusion.Request{
		Query:            req.Query,
		Index:            req.Index,
		Filters:          req.Filters,
		DisableReranking: req.DisableReranking,
	}

	cfg := c.defaults
	if hasOverride(req) {
		initial := cfg.InitialFetchSize()
		if req.InitialFetchSize > 0 {
			initial = req.InitialFetchSize
		}
		rerank := cfg.RerankSize()
		if req.RerankSize > 0 {
			rerank = req.RerankSize
		}
		final := cfg.FinalSize()
		if req.FinalSize > 0 {
			final = req.FinalSize
		}
		model := cfg.Model()
		if req.Model != "" {
			model = req.Model
		}
		combine := cfg.CombineScores()
		if req.CombineScores != nil {
			combine = *req.CombineScores
		}
		indexWeight := cfg.IndexWeight()
		relevanceWeight := cfg.RelevanceWeight()
		if req.IndexWeight != nil {
			indexWeight = *req.IndexWeight
		}
		if req.RelevanceWeight != nil {
			relevanceWeight = *req.RelevanceWeight
		}

		merged, err := domfusion.NewConfig(initial, rerank, final, model, combine, indexWeight, relevanceWeight)
		if err != nil {
			return domfusion.Request{}, err
		}
		cfg = merged
		out.Config = &merged
	}

	if req.Custom != nil {
		size := req.Custom.Size
		if size == 0 {
			size = cfg.InitialFetchSize()
			if size > query.MaxSize {
				size = query.MaxSize
			}
		}
		out.Custom = &query.Query{
			Body:    req.Custom.Query,
			Size:    size,
			From:    req.Custom.From,
			Source:  req.Custom.Source,
			Sort:    req.Custom.Sort,
			Timeout: req.Custom.Timeout,
		}
	}

	return out, nil
}

func hasOverride(req SearchRequest) bool {
	return req.InitialFetchSize > 0 || req.RerankSize > 0 || req.FinalSize > 0 ||
		req.Model != "" || req.CombineScores != nil ||
		req.IndexWeight != nil || req.RelevanceWeight != nil
}

func responseFromDomain(resp domfusion.Response) SearchResponse {
	results := make([]SearchResult, len(resp.Results))
	for i := range resp.Results {
		r := &resp.Results[i]
		doc := r.Document()
		results[i] = SearchResult{
			ID:             doc.ID(),
			Score:          r.Score(),
			Rank:           r.Rank(),
			Title:          doc.Title(),
			Text:           doc.Text(),
			Metadata:       doc.Metadata(),
			Source:         doc.Source(),
			Timestamp:      doc.Timestamp(),
			NativeScore:    r.NativeScore(),
			RelevanceScore: r.RelevanceScore(),
		}
	}

	return SearchResponse{
		Query:            resp.Query,
		Results:          results,
		TotalHits:        resp.TotalHits,
		TookMs:           resp.TookMs,
		RetrievalTookMs:  resp.RetrievalTookMs,
		RerankTookMs:     resp.RerankTookMs,
		ModelUsed:        resp.ModelUsed,
		RerankingApplied: resp.RerankingApplied,
	}
}

// scorerHealthChecker adapts the scorer for the health service.
type scorerHealthChecker struct {
	scorer domain.RelevanceScorer
}

func (h *scorerHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.scorer.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
