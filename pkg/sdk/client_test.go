package rankfuse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	domfusion "github.com/kailas-cloud/rankfuse/internal/domain/fusion"
	healthuc "github.com/kailas-cloud/rankfuse/internal/usecase/health"
)

func TestNew_NoAddress(t *testing.T) {
	_, err := New(context.Background())
	if err == nil {
		t.Fatal("expected error when no elasticsearch address provided")
	}
}

func TestNew_NoScorer(t *testing.T) {
	_, err := New(context.Background(),
		WithElasticsearch([]string{"http://localhost:9200"}, "", ""),
	)
	if err == nil {
		t.Fatal("expected error when no scorer provided")
	}
}

func TestNew_InvalidFetchSizes(t *testing.T) {
	_, err := New(context.Background(),
		WithElasticsearch([]string{"http://localhost:9200"}, "", ""),
		WithScorer(&mockScorer{}),
		WithFetchSizes(10, 50, 5), // rerank > initial
	)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestNew_CustomScorer(t *testing.T) {
	client, err := New(context.Background(),
		WithElasticsearch([]string{"http://localhost:9200"}, "", ""),
		WithScorer(&mockScorer{}),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer client.Close()

	if client.fusionSvc == nil || client.batchSvc == nil || client.healthSvc == nil {
		t.Error("expected all services to be wired")
	}
}

func TestClientOptions(t *testing.T) {
	cfg := &clientConfig{}

	WithElasticsearch([]string{"http://es:9200"}, "user", "pass").apply(cfg)
	if len(cfg.esAddrs) != 1 || cfg.esAddrs[0] != "http://es:9200" {
		t.Errorf("esAddrs = %v, want [http://es:9200]", cfg.esAddrs)
	}
	if cfg.esUsername != "user" || cfg.esPassword != "pass" {
		t.Error("expected basic auth credentials to be set")
	}

	WithZeroEntropy("ze-key").apply(cfg)
	if cfg.zeroEntropyKey != "ze-key" {
		t.Errorf("zeroEntropyKey = %q, want ze-key", cfg.zeroEntropyKey)
	}

	WithEmbeddingScorer("oa-key", "text-embedding-3-small", 512).apply(cfg)
	if cfg.openAIKey != "oa-key" || cfg.openAIModel != "text-embedding-3-small" || cfg.openAIDimensions != 512 {
		t.Error("expected embedding scorer settings to be set")
	}

	WithScoreCache("localhost:6379", "secret", time.Hour).apply(cfg)
	if cfg.cacheAddr != "localhost:6379" || cfg.cachePassword != "secret" || cfg.cacheTTL != time.Hour {
		t.Error("expected score cache settings to be set")
	}

	WithFetchSizes(200, 50, 25).apply(cfg)
	if cfg.initialFetchSize != 200 || cfg.rerankSize != 50 || cfg.finalSize != 25 {
		t.Errorf("fetch sizes = (%d, %d, %d), want (200, 50, 25)",
			cfg.initialFetchSize, cfg.rerankSize, cfg.finalSize)
	}

	WithRerankModel("zerank-1-small").apply(cfg)
	if cfg.model != "zerank-1-small" {
		t.Errorf("model = %q, want zerank-1-small", cfg.model)
	}

	WithScoreWeights(0.4, 0.6).apply(cfg)
	if cfg.indexWeight != 0.4 || cfg.relevanceWeight != 0.6 {
		t.Errorf("weights = (%v, %v), want (0.4, 0.6)", cfg.indexWeight, cfg.relevanceWeight)
	}

	WithRawRelevanceScores().apply(cfg)
	if cfg.combineScores == nil || *cfg.combineScores {
		t.Error("expected combineScores to be set to false")
	}

	WithMaxConcurrent(4).apply(cfg)
	if cfg.maxConcurrent != 4 {
		t.Errorf("maxConcurrent = %d, want 4", cfg.maxConcurrent)
	}

	logger := zap.NewNop()
	WithLogger(logger).apply(cfg)
	if cfg.logger != logger {
		t.Error("expected logger to be set")
	}

	reg := prometheus.NewRegistry()
	WithPrometheus(reg).apply(cfg)
	if cfg.metricsReg != reg {
		t.Error("expected metricsReg to be set")
	}
}

func TestPipelineDefaults(t *testing.T) {
	cfg, err := pipelineDefaults(&clientConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.InitialFetchSize() != domfusion.DefaultInitialFetchSize ||
		cfg.RerankSize() != domfusion.DefaultRerankSize ||
		cfg.FinalSize() != domfusion.DefaultFinalSize {
		t.Error("expected stock sizes without options")
	}
	if !cfg.CombineScores() {
		t.Error("expected combined scoring by default")
	}

	combine := false
	cfg, err = pipelineDefaults(&clientConfig{
		initialFetchSize: 200,
		rerankSize:       50,
		finalSize:        25,
		model:            "zerank-1-small",
		combineScores:    &combine,
		indexWeight:      0.5,
		relevanceWeight:  0.5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.InitialFetchSize() != 200 || cfg.RerankSize() != 50 || cfg.FinalSize() != 25 {
		t.Error("explicit sizes lost")
	}
	if cfg.Model() != "zerank-1-small" || cfg.CombineScores() ||
		cfg.IndexWeight() != 0.5 || cfg.RelevanceWeight() != 0.5 {
		t.Error("explicit settings lost")
	}
}

func TestClient_Close_NilStore(t *testing.T) {
	c := &Client{store: nil}
	c.Close()
}

func TestScorerAdapter(t *testing.T) {
	mock := &mockScorer{scores: []Score{{Index: 1, Relevance: 0.9}, {Index: 0, Relevance: 0.3}}}
	adapter := &scorerAdapter{inner: mock}

	batch, err := adapter.Score(context.Background(), "q", []string{"a", "b"}, "m", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(batch.Results))
	}
	if batch.Results[0].Index != 1 || batch.Results[0].Relevance != 0.9 || batch.Results[0].Text != "b" {
		t.Errorf("unexpected first result: %+v", batch.Results[0])
	}
	if batch.Model != "m" {
		t.Errorf("model = %q, want m", batch.Model)
	}
}

func TestScorerAdapter_Error(t *testing.T) {
	wantErr := errors.New("provider down")
	adapter := &scorerAdapter{inner: &mockScorer{err: wantErr}}

	_, err := adapter.Score(context.Background(), "q", []string{"a"}, "m", 1)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected inner error, got %v", err)
	}
}

func TestObserver_NilSafe(t *testing.T) {
	var obs *observer
	obs.observe("test", time.Now(), nil)
	obs.observe("test", time.Now(), errors.New("err"))
}

func TestObserver_WithPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := newObserver(nil, reg)
	if err != nil {
		t.Fatalf("newObserver: %v", err)
	}

	obs.observe("search", time.Now().Add(-10*time.Millisecond), nil)
	obs.observe("search", time.Now(), errors.New("fail"))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	found := false
	for _, f := range families {
		if f.GetName() == "rankfuse_sdk_operations_total" {
			found = true
			if len(f.GetMetric()) != 2 {
				t.Errorf("expected 2 metric samples, got %d", len(f.GetMetric()))
			}
		}
	}
	if !found {
		t.Error("rankfuse_sdk_operations_total not found")
	}
}

func TestObserver_RegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := newObserver(nil, reg); err != nil {
		t.Fatalf("first newObserver: %v", err)
	}
	// A second client on the same registerer reuses the collectors.
	if _, err := newObserver(nil, reg); err != nil {
		t.Fatalf("second newObserver: %v", err)
	}
}

func TestHealth_Mapping(t *testing.T) {
	client := testClient(nil, nil, &mockHealthUC{
		checkFn: func(_ context.Context) healthuc.Report {
			return healthuc.Report{
				Status: healthuc.Unhealthy,
				Checks: map[string]healthuc.CheckResult{
					"search_index": {Status: healthuc.Healthy},
					"scorer":       {Status: healthuc.Unhealthy, Error: "down"},
				},
			}
		},
	})

	status := client.Health(context.Background())
	if status.Status != "unhealthy" {
		t.Errorf("status = %q, want unhealthy", status.Status)
	}
	if status.Checks["search_index"] != "healthy" || status.Checks["scorer"] != "unhealthy" {
		t.Errorf("unexpected checks: %v", status.Checks)
	}
}

// mockScorer implements the public Scorer interface.
type mockScorer struct {
	scores []Score
	err    error
}

func (m *mockScorer) Score(
	_ context.Context, _ string, _ []string, _ string, _ int,
) ([]Score, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.scores, nil
}
