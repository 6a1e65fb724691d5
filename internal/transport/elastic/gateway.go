// Package elastic implements the search index gateway over the
// Elasticsearch HTTP API.
package elastic

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rankfuse/internal/domain"
	"github.com/kailas-cloud/rankfuse/internal/domain/query"
	fusionuc "github.com/kailas-cloud/rankfuse/internal/usecase/fusion"
)

// Gateway issues native queries against an Elasticsearch cluster.
type Gateway struct {
	client *elasticsearch.Client
	logger *zap.Logger
}

// Config holds Elasticsearch connection settings.
type Config struct {
	Addresses          []string
	Username           string
	Password           string
	APIKey             string
	MaxRetries         int
	InsecureSkipVerify bool
	Logger             *zap.Logger
}

// NewGateway creates an Elasticsearch gateway. Transient transport retries
// (timeouts, 5xx) are handled by the client itself, not by callers.
func NewGateway(cfg *Config) (*Gateway, error) {
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("addresses is required: %w", domain.ErrConfiguration)
	}

	esCfg := elasticsearch.Config{
		Addresses:     cfg.Addresses,
		Username:      cfg.Username,
		Password:      cfg.Password,
		APIKey:        cfg.APIKey,
		MaxRetries:    cfg.MaxRetries,
		RetryOnStatus: []int{502, 503, 504, 429},
	}
	if cfg.InsecureSkipVerify {
		esCfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // opt-in for local clusters
		}
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	return &Gateway{client: client, logger: cfg.Logger}, nil
}

// Search executes the native query and extracts retrieval candidates in
// engine ranking order.
func (g *Gateway) Search(ctx context.Context, index string, q query.Query) (fusionuc.Page, error) {
	body := map[string]any{
		"query": q.Body,
		"size":  q.Size,
		"from":  q.From,
	}
	if len(q.Source) > 0 {
		body["_source"] = q.Source
	}
	if len(q.Sort) > 0 {
		body["sort"] = q.Sort
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return fusionuc.Page{}, fmt.Errorf("encode query: %w", err)
	}

	opts := []func(*esapi.SearchRequest){
		g.client.Search.WithContext(ctx),
		g.client.Search.WithIndex(index),
		g.client.Search.WithBody(&buf),
	}
	if q.Timeout != "" {
		d, err := time.ParseDuration(q.Timeout)
		if err != nil {
			return fusionuc.Page{}, fmt.Errorf(
				"invalid query timeout %q: %w", q.Timeout, domain.ErrValidation)
		}
		opts = append(opts, g.client.Search.WithTimeout(d))
	}

	res, err := g.client.Search(opts...)
	if err != nil {
		return fusionuc.Page{}, transportError("search", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fusionuc.Page{}, statusError("search", res.StatusCode, res.Body)
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fusionuc.Page{}, fmt.Errorf(
			"%w: decode search response: %w", domain.ErrRetrieval, err)
	}

	candidates := g.extractCandidates(parsed.Hits.Hits)

	g.logger.Debug("Elasticsearch search completed",
		zap.String("index", index),
		zap.Int("total_hits", parsed.Hits.Total.Value),
		zap.Int("returned_docs", len(candidates)),
		zap.Int64("took_ms", parsed.Took),
	)

	return fusionuc.Page{
		TookMs:     parsed.Took,
		TimedOut:   parsed.TimedOut,
		TotalHits:  parsed.Hits.Total.Value,
		MaxScore:   parsed.Hits.MaxScore,
		Candidates: candidates,
	}, nil
}

// HealthCheck verifies cluster connectivity.
func (g *Gateway) HealthCheck(ctx context.Context) error {
	res, err := g.client.Ping(g.client.Ping.WithContext(ctx))
	if err != nil {
		return transportError("ping", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return statusError("ping", res.StatusCode, res.Body)
	}
	return nil
}

type searchResponse struct {
	Took     int64 `json:"took"`
	TimedOut bool  `json:"timed_out"`
	Hits     struct {
		Total    totalHits `json:"total"`
		MaxScore *float64  `json:"max_score"`
		Hits     []hit     `json:"hits"`
	} `json:"hits"`
}

type hit struct {
	ID     string         `json:"_id"`
	Index  string         `json:"_index"`
	Score  *float64       `json:"_score"`
	Source map[string]any `json:"_source"`
}

// totalHits accepts both the ES 7+ object form {"value": N} and the
// legacy bare number.
type totalHits struct {
	Value int
}

func (t *totalHits) UnmarshalJSON(data []byte) error {
	var obj struct {
		Value int `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		t.Value = obj.Value
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("parse total hits: %w", err)
	}
	t.Value = n
	return nil
}

// textFieldPriority is the extraction order for the candidate text body.
var textFieldPriority = []string{"text", "content", "body", "description", "title"}

// timestampFields is the extraction order for the document timestamp.
var timestampFields = []string{"timestamp", "created_at", "updated_at", "@timestamp"}

// extractCandidates converts hits to domain candidates. Hits that yield no
// usable text are skipped with a warning rather than failing the page.
func (g *Gateway) extractCandidates(hits []hit) []domain.Candidate {
	candidates := make([]domain.Candidate, 0, len(hits))

	for _, h := range hits {
		doc, err := extractDocument(h)
		if err != nil {
			g.logger.Warn("Skipping hit without usable content",
				zap.String("id", h.ID), zap.Error(err))
			continue
		}

		var native float64
		hasNative := h.Score != nil
		if hasNative {
			native = *h.Score
		}
		candidates = append(candidates, domain.NewCandidate(doc, native, hasNative, len(candidates)))
	}

	return candidates
}

func extractDocument(h hit) (domain.Document, error) {
	text := extractText(h.Source)
	title := stringField(h.Source, "title", "name")

	metadata := make(map[string]any, len(h.Source)+2)
	for k, v := range h.Source {
		metadata[k] = v
	}
	if h.Score != nil {
		metadata[domain.MetadataNativeScore] = *h.Score
	}
	metadata["index"] = h.Index
	// Text fields live on the document itself; duplicating them in
	// metadata bloats responses.
	for _, f := range []string{"text", "content", "body", "title", "name"} {
		delete(metadata, f)
	}

	doc, err := domain.NewDocument(h.ID, text, title, metadata)
	if err != nil {
		return domain.Document{}, err
	}

	if ts, ok := extractTimestamp(h.Source); ok {
		doc = doc.WithTimestamp(ts)
	}
	return doc.WithSource(h.Index), nil
}

// extractText prefers the well-known text fields in priority order and
// falls back to concatenating all string-valued fields.
func extractText(source map[string]any) string {
	for _, field := range textFieldPriority {
		if s, ok := source[field].(string); ok && s != "" {
			return s
		}
	}

	var parts []string
	for _, field := range sortedKeys(source) {
		if s, ok := source[field].(string); ok && s != "" {
			parts = append(parts, s)
		}
	}
	return joinSpace(parts)
}

func stringField(source map[string]any, fields ...string) string {
	for _, f := range fields {
		if s, ok := source[f].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func extractTimestamp(source map[string]any) (time.Time, bool) {
	for _, field := range timestampFields {
		raw, ok := source[field]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case string:
			if ts, err := time.Parse(time.RFC3339, v); err == nil {
				return ts, true
			}
		case float64:
			return time.Unix(int64(v), 0).UTC(), true
		}
	}
	return time.Time{}, false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

func joinSpace(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	var buf bytes.Buffer
	for i, p := range parts {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(p)
	}
	return buf.String()
}

// transportError classifies client-side failures (no HTTP status available).
func transportError(op string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %w: %s: %w", domain.ErrRetrieval, domain.ErrTimeout, op, err)
	default:
		return fmt.Errorf("%w: %w: %s: %w", domain.ErrRetrieval, domain.ErrConnection, op, err)
	}
}

// statusError maps HTTP status codes from the cluster to typed errors.
func statusError(op string, status int, body io.Reader) error {
	detail := readDetail(body)

	var kind error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = domain.ErrAuthentication
	case status == http.StatusNotFound:
		kind = domain.ErrIndexNotFound
	case status == http.StatusBadRequest:
		kind = domain.ErrBadRequest
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		kind = domain.ErrTimeout
	default:
		return fmt.Errorf("%w: %s: status %d: %s", domain.ErrRetrieval, op, status, detail)
	}
	return fmt.Errorf("%w: %w: %s: status %d: %s", domain.ErrRetrieval, kind, op, status, detail)
}

// readDetail extracts the error reason from an ES error body.
func readDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 2048))
	if err != nil || len(raw) == 0 {
		return "no detail"
	}
	var parsed struct {
		Error struct {
			Reason string `json:"reason"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &parsed) == nil && parsed.Error.Reason != "" {
		return parsed.Error.Reason
	}
	return string(raw)
}
