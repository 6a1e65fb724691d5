// Package zeroentropy implements the relevance scorer contract over the
// ZeroEntropy rerank HTTP API.
package zeroentropy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/rankfuse/internal/domain"
	"github.com/kailas-cloud/rankfuse/internal/metrics"
)

const (
	// DefaultBaseURL is the public ZeroEntropy API endpoint.
	DefaultBaseURL = "https://api.zeroentropy.dev/v1"

	defaultTimeout           = 30 * time.Second
	defaultMaxRetries        = 3
	defaultRequestsPerMinute = 60
	defaultBurst             = 10

	initialBackoff = time.Second
	maxBackoff     = 10 * time.Second

	providerLabel = "zeroentropy"
)

// Config holds ZeroEntropy client settings.
type Config struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerMinute int
	Burst             int
	Logger            *zap.Logger
	HTTPClient        *http.Client
}

// Client scores documents against a query via the /rerank endpoint.
// Outbound requests pass through a client-side token bucket so bursts
// spread out instead of tripping the server-side limiter.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	logger     *zap.Logger
}

// NewClient creates a ZeroEntropy rerank client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required: %w", domain.ErrConfiguration)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = defaultRequestsPerMinute
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst),
		maxRetries: maxRetries,
		logger:     cfg.Logger,
	}, nil
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model"`
	TopK      int      `json:"top_k,omitempty"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
		Document       string  `json:"document"`
	} `json:"results"`
	Model     string `json:"model"`
	RequestID string `json:"request_id"`
}

// Score sends the query and texts to the rerank endpoint. Inputs are
// validated before any network I/O.
func (c *Client) Score(
	ctx context.Context, query string, texts []string, model string, topK int,
) (domain.ScoreBatch, error) {
	if strings.TrimSpace(query) == "" {
		return domain.ScoreBatch{}, fmt.Errorf("query must not be empty: %w", domain.ErrValidation)
	}
	if len(texts) == 0 {
		return domain.ScoreBatch{}, fmt.Errorf("documents must not be empty: %w", domain.ErrValidation)
	}
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return domain.ScoreBatch{}, fmt.Errorf(
				"document %d must not be empty: %w", i, domain.ErrValidation)
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return domain.ScoreBatch{}, fmt.Errorf("rate limiter: %w", err)
	}

	payload, err := json.Marshal(rerankRequest{
		Query:     query,
		Documents: texts,
		Model:     model,
		TopK:      topK,
	})
	if err != nil {
		return domain.ScoreBatch{}, fmt.Errorf("encode rerank request: %w", err)
	}

	start := time.Now()
	parsed, err := c.doWithRetry(ctx, payload)
	metrics.ScorerRequestDuration.WithLabelValues(providerLabel, model).
		Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ScorerRequestsTotal.WithLabelValues(providerLabel, model, "error").Inc()
		metrics.ScorerErrorsTotal.WithLabelValues(providerLabel, model, errorType(err)).Inc()
		return domain.ScoreBatch{}, err
	}
	metrics.ScorerRequestsTotal.WithLabelValues(providerLabel, model, "success").Inc()

	batch := domain.ScoreBatch{
		Model:     parsed.Model,
		RequestID: parsed.RequestID,
	}
	if batch.Model == "" {
		batch.Model = model
	}
	for _, r := range parsed.Results {
		batch.Results = append(batch.Results, domain.Score{
			Index:     r.Index,
			Relevance: r.RelevanceScore,
			Text:      r.Document,
		})
	}

	c.logger.Debug("Rerank request completed",
		zap.String("model", batch.Model),
		zap.Int("documents_sent", len(texts)),
		zap.Int("documents_returned", len(batch.Results)),
		zap.String("request_id", batch.RequestID),
	)

	return batch, nil
}

// doWithRetry issues the rerank request, retrying timeouts and 5xx
// responses with exponential backoff.
func (c *Client) doWithRetry(ctx context.Context, payload []byte) (*rerankResponse, error) {
	backoff := initialBackoff
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying rerank request",
				zap.Int("attempt", attempt+1), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", domain.ErrTimeout, ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		parsed, err := c.doOnce(ctx, payload)
		if err == nil {
			return parsed, nil
		}
		lastErr = err

		if !retryable(err) {
			return nil, err
		}
	}

	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, payload []byte) (*rerankResponse, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, fmt.Errorf("%w: rerank request: %w", domain.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: rerank request: %w", domain.ErrConnection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read rerank response: %w", domain.ErrConnection, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.StatusCode, body)
	}

	var parsed rerankResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode rerank response: %w", domain.ErrScorerAPI, err)
	}
	return &parsed, nil
}

// HealthCheck verifies API reachability.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: health request: %w", domain.ErrConnection, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: health status %d", domain.ErrScorerAPI, resp.StatusCode)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: health status %d", domain.ErrAuthentication, resp.StatusCode)
	}
	return nil
}

// apiError maps HTTP status codes to typed scorer errors. A 429 is a rate
// limit only when the server says so; otherwise it signals quota exhaustion.
func apiError(status int, body []byte) error {
	detail := errorDetail(body)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: status %d: %s", domain.ErrAuthentication, status, detail)
	case status == http.StatusTooManyRequests:
		if strings.Contains(strings.ToLower(detail), "rate limit") {
			return fmt.Errorf("%w: status %d: %s", domain.ErrRateLimited, status, detail)
		}
		return fmt.Errorf("%w: status %d: %s", domain.ErrQuotaExceeded, status, detail)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: status %d: %s", domain.ErrBadRequest, status, detail)
	case status >= http.StatusInternalServerError:
		return fmt.Errorf("%w: status %d: %s", domain.ErrScorerAPI, status, detail)
	default:
		return fmt.Errorf("%w: unexpected status %d: %s", domain.ErrScorerAPI, status, detail)
	}
}

func errorDetail(body []byte) string {
	var parsed struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		switch {
		case parsed.Detail != "":
			return parsed.Detail
		case parsed.Message != "":
			return parsed.Message
		case parsed.Error != "":
			return parsed.Error
		}
	}
	if len(body) == 0 {
		return "no detail"
	}
	return string(body)
}

func retryable(err error) bool {
	return errors.Is(err, domain.ErrTimeout) || errors.Is(err, domain.ErrScorerAPI)
}

func isTimeout(err error) bool {
	type timeout interface {
		Timeout() bool
	}
	var t timeout
	return errors.As(err, &t) && t.Timeout()
}

func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrAuthentication):
		return "authentication"
	case errors.Is(err, domain.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, domain.ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, domain.ErrBadRequest):
		return "bad_request"
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrConnection):
		return "connection"
	default:
		return "api"
	}
}
