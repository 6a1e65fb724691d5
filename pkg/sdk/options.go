package rankfuse

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	esAddrs    []string
	esUsername string
	esPassword string
	esAPIKey   string

	scorer            Scorer
	zeroEntropyKey    string
	zeroEntropyURL    string
	openAIKey         string
	openAIModel       string
	openAIDimensions  int

	cacheAddr     string
	cachePassword string
	cacheTTL      time.Duration

	initialFetchSize int
	rerankSize       int
	finalSize        int
	model            string
	combineScores    *bool
	indexWeight      float64
	relevanceWeight  float64
	maxConcurrent    int

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// WithElasticsearch configures the search index connection.
// Username and password may be empty for unsecured clusters.
func WithElasticsearch(addrs []string, username, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.esAddrs = addrs
		c.esUsername = username
		c.esPassword = password
	})
}

// WithElasticsearchAPIKey authenticates against the cluster with an API key
// instead of basic auth.
func WithElasticsearchAPIKey(key string) Option {
	return optionFunc(func(c *clientConfig) {
		c.esAPIKey = key
	})
}

// WithZeroEntropy uses the ZeroEntropy reranking API as the relevance scorer.
func WithZeroEntropy(apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.zeroEntropyKey = apiKey
	})
}

// WithZeroEntropyBaseURL overrides the ZeroEntropy API endpoint.
func WithZeroEntropyBaseURL(url string) Option {
	return optionFunc(func(c *clientConfig) {
		c.zeroEntropyURL = url
	})
}

// WithEmbeddingScorer uses OpenAI-compatible embeddings with cosine
// similarity as the relevance scorer. Dimensions of 0 uses the model default.
func WithEmbeddingScorer(apiKey, model string, dimensions int) Option {
	return optionFunc(func(c *clientConfig) {
		c.openAIKey = apiKey
		c.openAIModel = model
		c.openAIDimensions = dimensions
	})
}

// WithScorer sets a custom relevance scorer. Takes precedence over
// WithZeroEntropy and WithEmbeddingScorer.
func WithScorer(s Scorer) Option {
	return optionFunc(func(c *clientConfig) {
		c.scorer = s
	})
}

// WithScoreCache caches relevance scores in Redis with the given TTL.
func WithScoreCache(addr, password string, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheAddr = addr
		c.cachePassword = password
		c.cacheTTL = ttl
	})
}

// WithFetchSizes sets the pipeline stage sizes: how many candidates to
// retrieve, how many to rerank, and how many to return.
// Must satisfy final <= rerank <= initial.
func WithFetchSizes(initial, rerank, final int) Option {
	return optionFunc(func(c *clientConfig) {
		c.initialFetchSize = initial
		c.rerankSize = rerank
		c.finalSize = final
	})
}

// WithRerankModel sets the default scoring model identifier.
func WithRerankModel(model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.model = model
	})
}

// WithScoreWeights sets the blend of normalized native score and relevance
// score. The weights must sum to 1.0.
func WithScoreWeights(index, relevance float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.indexWeight = index
		c.relevanceWeight = relevance
	})
}

// WithRawRelevanceScores disables score blending; final scores are the raw
// relevance scores.
func WithRawRelevanceScores() Option {
	return optionFunc(func(c *clientConfig) {
		combine := false
		c.combineScores = &combine
	})
}

// WithMaxConcurrent caps in-flight pipeline runs for batch searches.
// Default: 10.
func WithMaxConcurrent(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxConcurrent = n
	})
}

// WithLogger enables structured logging for client operations.
// Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
