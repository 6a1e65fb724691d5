package chi

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/rankfuse/internal/domain/fusion"
	"github.com/kailas-cloud/rankfuse/internal/domain/query"
)

// searchRequest is the wire form of one pipeline invocation. All
// configuration fields are optional; absent fields fall back to the
// server defaults.
type searchRequest struct {
	Query            string           `json:"query"`
	Index            string           `json:"index"`
	InitialFetchSize *int             `json:"initial_fetch_size,omitempty"`
	RerankSize       *int             `json:"rerank_size,omitempty"`
	FinalSize        *int             `json:"final_size,omitempty"`
	RerankModel      *string          `json:"rerank_model,omitempty"`
	CombineScores    *bool            `json:"combine_scores,omitempty"`
	IndexWeight      *float64         `json:"index_weight,omitempty"`
	RelevanceWeight  *float64         `json:"relevance_weight,omitempty"`
	Filters          map[string]any   `json:"filters,omitempty"`
	CustomQuery      *customQuery     `json:"custom_query,omitempty"`
	DisableReranking bool             `json:"disable_reranking,omitempty"`
	Debug            bool             `json:"debug,omitempty"`
}

// customQuery carries a caller-supplied native query sent verbatim.
type customQuery struct {
	Query   map[string]any   `json:"query"`
	Size    int              `json:"size,omitempty"`
	From    int              `json:"from,omitempty"`
	Source  []string         `json:"_source,omitempty"`
	Sort    []map[string]any `json:"sort,omitempty"`
	Timeout string           `json:"timeout,omitempty"`
}

type batchSearchRequest struct {
	Requests      []searchRequest `json:"requests"`
	MaxConcurrent int             `json:"max_concurrent,omitempty"`
}

type searchResponse struct {
	Query            string        `json:"query"`
	Results          []resultItem  `json:"results"`
	TotalHits        int           `json:"total_hits"`
	TookMs           int64         `json:"took_ms"`
	RetrievalTookMs  int64         `json:"retrieval_took_ms"`
	RerankTookMs     *int64        `json:"rerank_took_ms,omitempty"`
	ModelUsed        string        `json:"model_used"`
	RerankingApplied bool          `json:"reranking_applied"`
	Debug            *debugReport  `json:"debug,omitempty"`
}

type batchSearchResponse struct {
	Responses []searchResponse `json:"responses"`
}

type resultItem struct {
	ID             string         `json:"id"`
	Score          float64        `json:"score"`
	Rank           int            `json:"rank"`
	Title          string         `json:"title,omitempty"`
	Text           string         `json:"text"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Source         string         `json:"source,omitempty"`
	Timestamp      *time.Time     `json:"timestamp,omitempty"`
	NativeScore    *float64       `json:"native_score,omitempty"`
	RelevanceScore *float64       `json:"relevance_score,omitempty"`
}

type debugReport struct {
	Retrieval retrievalReport `json:"retrieval"`
	Reranking *rerankReport   `json:"reranking,omitempty"`
}

type retrievalReport struct {
	TookMs       int64 `json:"took_ms"`
	TotalHits    int   `json:"total_hits"`
	ReturnedDocs int   `json:"returned_docs"`
}

type rerankReport struct {
	Model             string `json:"model"`
	DocumentsSent     int    `json:"documents_sent"`
	DocumentsReturned int    `json:"documents_returned"`
	TookMs            int64  `json:"took_ms"`
}

type healthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]healthCheck `json:"checks"`
}

type healthCheck struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// fusionRequestFromDTO builds the domain request, merging per-request
// configuration overrides over the server defaults.
func fusionRequestFromDTO(req searchRequest, defaults fusion.Config) (fusion.Request, error) {
	out := fusion.Request{
		Query:            req.Query,
		Index:            req.Index,
		Filters:          req.Filters,
		DisableReranking: req.DisableReranking,
		Debug:            req.Debug,
	}

	if hasConfigOverride(req) {
		cfg, err := mergedConfig(req, defaults)
		if err != nil {
			return fusion.Request{}, err
		}
		out.Config = &cfg
	}

	if req.CustomQuery != nil {
		cfg := defaults
		if out.Config != nil {
			cfg = *out.Config
		}
		size := req.CustomQuery.Size
		if size == 0 {
			size = cfg.InitialFetchSize()
			if size > query.MaxSize {
				size = query.MaxSize
			}
		}
		out.Custom = &query.Query{
			Body:    req.CustomQuery.Query,
			Size:    size,
			From:    req.CustomQuery.From,
			Source:  req.CustomQuery.Source,
			Sort:    req.CustomQuery.Sort,
			Timeout: req.CustomQuery.Timeout,
		}
	}

	return out, nil
}

func hasConfigOverride(req searchRequest) bool {
	return req.InitialFetchSize != nil || req.RerankSize != nil || req.FinalSize != nil ||
		req.RerankModel != nil || req.CombineScores != nil ||
		req.IndexWeight != nil || req.RelevanceWeight != nil
}

func mergedConfig(req searchRequest, defaults fusion.Config) (fusion.Config, error) {
	initialFetchSize := defaults.InitialFetchSize()
	if req.InitialFetchSize != nil {
		initialFetchSize = *req.InitialFetchSize
	}
	rerankSize := defaults.RerankSize()
	if req.RerankSize != nil {
		rerankSize = *req.RerankSize
	}
	finalSize := defaults.FinalSize()
	if req.FinalSize != nil {
		finalSize = *req.FinalSize
	}
	model := defaults.Model()
	if req.RerankModel != nil {
		model = *req.RerankModel
	}
	combineScores := defaults.CombineScores()
	if req.CombineScores != nil {
		combineScores = *req.CombineScores
	}
	indexWeight := defaults.IndexWeight()
	if req.IndexWeight != nil {
		indexWeight = *req.IndexWeight
	}
	relevanceWeight := defaults.RelevanceWeight()
	if req.RelevanceWeight != nil {
		relevanceWeight = *req.RelevanceWeight
	}

	cfg, err := fusion.NewConfig(
		initialFetchSize, rerankSize, finalSize, model,
		combineScores, indexWeight, relevanceWeight,
	)
	if err != nil {
		return fusion.Config{}, fmt.Errorf("merge pipeline config: %w", err)
	}
	return cfg, nil
}

func responseToDTO(resp fusion.Response) searchResponse {
	items := make([]resultItem, len(resp.Results))
	for i := range resp.Results {
		items[i] = resultToDTO(&resp.Results[i])
	}

	out := searchResponse{
		Query:            resp.Query,
		Results:          items,
		TotalHits:        resp.TotalHits,
		TookMs:           resp.TookMs,
		RetrievalTookMs:  resp.RetrievalTookMs,
		RerankTookMs:     resp.RerankTookMs,
		ModelUsed:        resp.ModelUsed,
		RerankingApplied: resp.RerankingApplied,
	}

	if resp.Debug != nil {
		report := &debugReport{
			Retrieval: retrievalReport{
				TookMs:       resp.Debug.Retrieval.TookMs,
				TotalHits:    resp.Debug.Retrieval.TotalHits,
				ReturnedDocs: resp.Debug.Retrieval.ReturnedDocs,
			},
		}
		if resp.Debug.Reranking != nil {
			report.Reranking = &rerankReport{
				Model:             resp.Debug.Reranking.Model,
				DocumentsSent:     resp.Debug.Reranking.DocumentsSent,
				DocumentsReturned: resp.Debug.Reranking.DocumentsReturned,
				TookMs:            resp.Debug.Reranking.TookMs,
			}
		}
		out.Debug = report
	}

	return out
}

func resultToDTO(r *fusion.Result) resultItem {
	doc := r.Document()

	item := resultItem{
		ID:             doc.ID(),
		Score:          r.Score(),
		Rank:           r.Rank(),
		Title:          doc.Title(),
		Text:           doc.Text(),
		Metadata:       doc.Metadata(),
		Source:         doc.Source(),
		NativeScore:    r.NativeScore(),
		RelevanceScore: r.RelevanceScore(),
	}
	if ts := doc.Timestamp(); !ts.IsZero() {
		item.Timestamp = &ts
	}
	return item
}
