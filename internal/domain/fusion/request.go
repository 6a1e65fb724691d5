package fusion

import (
	"github.com/kailas-cloud/rankfuse/internal/domain/query"
)

// Request is one pipeline invocation: a query against an index with
// optional per-run configuration and filters.
type Request struct {
	Query string
	Index string
	// Config overrides the service defaults for this run (nil = defaults).
	Config *Config
	// Filters are conjunctive constraints applied to the default query.
	// Ignored when Custom is set.
	Filters map[string]any
	// Custom replaces the default query construction entirely; its own
	// size and pagination win over Config.InitialFetchSize.
	Custom *query.Query
	// DisableReranking skips the scoring stage; results keep retrieval order.
	DisableReranking bool
	// Debug attaches per-stage timings and counts to the response.
	Debug bool
}

// Response is the outcome of one pipeline run.
type Response struct {
	Query            string
	Results          []Result
	TotalHits        int
	TookMs           int64
	RetrievalTookMs  int64
	RerankTookMs     *int64
	ModelUsed        string
	RerankingApplied bool
	Debug            *Report
}

// Report carries optional per-stage debug detail. Never required for
// correctness.
type Report struct {
	Retrieval RetrievalReport
	Reranking *RerankReport
}

// RetrievalReport describes the retrieval stage of a run.
type RetrievalReport struct {
	TookMs       int64
	TotalHits    int
	ReturnedDocs int
}

// RerankReport describes the scoring stage of a run.
type RerankReport struct {
	Model             string
	DocumentsSent     int
	DocumentsReturned int
	TookMs            int64
}
