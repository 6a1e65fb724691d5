// Package openai implements a relevance scorer over an OpenAI-compatible
// embedding API. Relevance is the cosine similarity between the query and
// each document, shifted into [0, 1].
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rankfuse/internal/domain"
	"github.com/kailas-cloud/rankfuse/internal/metrics"
)

const providerLabel = "openai"

// Scorer scores documents by embedding similarity. It is a drop-in
// alternative for deployments without access to a dedicated rerank API.
type Scorer struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	Logger     *zap.Logger
}

// NewScorer creates an OpenAI-compatible embedding scorer.
func NewScorer(cfg *Config) *Scorer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Scorer{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		logger:     cfg.Logger,
	}
}

// Score embeds the query and all texts in one batch request and ranks the
// texts by cosine similarity to the query. The model argument is ignored;
// the embedding model is fixed at construction.
func (s *Scorer) Score(
	ctx context.Context, query string, texts []string, _ string, topK int,
) (domain.ScoreBatch, error) {
	if query == "" {
		return domain.ScoreBatch{}, fmt.Errorf("query must not be empty: %w", domain.ErrValidation)
	}
	if len(texts) == 0 {
		return domain.ScoreBatch{}, fmt.Errorf("documents must not be empty: %w", domain.ErrValidation)
	}

	req := openai.EmbeddingRequest{
		Input:          append([]string{query}, texts...),
		Model:          s.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if s.dimensions > 0 {
		req.Dimensions = s.dimensions
	}

	start := time.Now()
	resp, err := s.client.CreateEmbeddings(ctx, req)
	metrics.ScorerRequestDuration.WithLabelValues(providerLabel, string(s.model)).
		Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ScorerRequestsTotal.WithLabelValues(providerLabel, string(s.model), "error").Inc()
		metrics.ScorerErrorsTotal.WithLabelValues(providerLabel, string(s.model), "api_error").Inc()
		return domain.ScoreBatch{}, parseAPIError(err)
	}

	if len(resp.Data) != len(texts)+1 {
		metrics.ScorerRequestsTotal.WithLabelValues(providerLabel, string(s.model), "error").Inc()
		metrics.ScorerErrorsTotal.WithLabelValues(providerLabel, string(s.model), "short_response").Inc()
		return domain.ScoreBatch{}, fmt.Errorf(
			"%w: embedding response has %d vectors, want %d",
			domain.ErrScorerAPI, len(resp.Data), len(texts)+1)
	}
	metrics.ScorerRequestsTotal.WithLabelValues(providerLabel, string(s.model), "success").Inc()

	queryVec := resp.Data[0].Embedding

	batch := domain.ScoreBatch{Model: string(s.model)}
	for i, text := range texts {
		sim := cosineSimilarity(queryVec, resp.Data[i+1].Embedding)
		batch.Results = append(batch.Results, domain.Score{
			Index:     i,
			Relevance: (1 + sim) / 2,
			Text:      text,
		})
	}

	if topK > 0 && topK < len(batch.Results) {
		sortByRelevance(batch.Results)
		batch.Results = batch.Results[:topK]
	}

	s.logger.Debug("Embedding similarity scoring completed",
		zap.String("model", string(s.model)),
		zap.Int("documents", len(texts)),
	)

	return batch, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (s *Scorer) HealthCheck(ctx context.Context) error {
	if _, err := s.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		if i >= len(b) {
			break
		}
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func sortByRelevance(results []domain.Score) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Relevance > results[j-1].Relevance; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

// parseAPIError extracts a human-readable error from the API response and
// maps status codes to typed scorer errors.
func parseAPIError(err error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("%w: embedding API error %d: %s",
			statusSentinel(reqErr.HTTPStatusCode), reqErr.HTTPStatusCode, detail)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: embedding API error %d: %s",
			statusSentinel(apiErr.HTTPStatusCode), apiErr.HTTPStatusCode, apiErr.Message)
	}

	return fmt.Errorf("%w: embedding request failed: %w", domain.ErrConnection, err)
}

func statusSentinel(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.ErrAuthentication
	case status == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case status == http.StatusBadRequest:
		return domain.ErrBadRequest
	default:
		return domain.ErrScorerAPI
	}
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
