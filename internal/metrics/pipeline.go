package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline and scorer Prometheus metrics.
var (
	PipelineRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rankfuse",
			Name:      "pipeline_requests_total",
			Help:      "Total number of fusion pipeline runs",
		},
		[]string{"status"},
	)

	PipelineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rankfuse",
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"stage"},
	)

	RerankBatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rankfuse",
			Name:      "rerank_batches_total",
			Help:      "Total rerank batches sent to the scorer",
		},
		[]string{"model"},
	)

	ScorerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rankfuse",
			Name:      "scorer_requests_total",
			Help:      "Total number of relevance scorer requests",
		},
		[]string{"provider", "model", "status"},
	)

	ScorerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rankfuse",
			Name:      "scorer_request_duration_seconds",
			Help:      "Relevance scorer request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	ScorerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rankfuse",
			Name:      "scorer_errors_total",
			Help:      "Total relevance scorer errors",
		},
		[]string{"provider", "model", "error_type"},
	)

	ScoreCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rankfuse",
			Name:      "score_cache_total",
			Help:      "Relevance score cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(PipelineRequestsTotal)
	prometheus.MustRegister(PipelineDuration)
	prometheus.MustRegister(RerankBatchesTotal)
	prometheus.MustRegister(ScorerRequestsTotal)
	prometheus.MustRegister(ScorerRequestDuration)
	prometheus.MustRegister(ScorerErrorsTotal)
	prometheus.MustRegister(ScoreCacheTotal)
	pipelineMetricsRegistered = true
}
