package rankfuse

import "time"

// SearchRequest is one pipeline invocation. Zero-valued fields fall back
// to the client defaults.
type SearchRequest struct {
	Query string
	Index string

	// Filters are conjunctive constraints applied to the default query.
	// A slice value becomes a terms clause, a map is passed through as a
	// raw clause, anything else becomes an exact term match.
	Filters map[string]any

	// Custom replaces the default query construction entirely.
	Custom *CustomQuery

	// Per-request pipeline overrides (0 / "" / nil = client default).
	InitialFetchSize int
	RerankSize       int
	FinalSize        int
	Model            string
	CombineScores    *bool
	IndexWeight      *float64
	RelevanceWeight  *float64

	// DisableReranking skips the scoring stage; results keep retrieval order.
	DisableReranking bool
}

// CustomQuery is a caller-supplied native Elasticsearch query sent verbatim.
type CustomQuery struct {
	Query   map[string]any
	Size    int
	From    int
	Source  []string
	Sort    []map[string]any
	Timeout string
}

// SearchResponse is the outcome of one pipeline run.
type SearchResponse struct {
	Query            string
	Results          []SearchResult
	TotalHits        int
	TookMs           int64
	RetrievalTookMs  int64
	RerankTookMs     *int64
	ModelUsed        string
	RerankingApplied bool
}

// SearchResult is one final ranked row. Rank is 1-based. NativeScore is nil
// when the index returned no score; RelevanceScore is nil when reranking
// was skipped.
type SearchResult struct {
	ID             string
	Score          float64
	Rank           int
	Title          string
	Text           string
	Metadata       map[string]any
	Source         string
	Timestamp      time.Time
	NativeScore    *float64
	RelevanceScore *float64
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "healthy" or "unhealthy"
	Checks map[string]string // component -> "healthy"/"unhealthy"
}
