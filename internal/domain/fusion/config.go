// Package fusion holds the domain model for combining native retrieval
// scores with semantic relevance scores into one final ranking.
package fusion

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/rankfuse/internal/domain"
)

// Configuration defaults and limits.
const (
	DefaultInitialFetchSize = 100
	DefaultRerankSize       = 20
	DefaultFinalSize        = 10
	DefaultModel            = "zerank-1"
	DefaultIndexWeight      = 0.3
	DefaultRelevanceWeight  = 0.7

	MaxInitialFetchSize = 10000
	MaxRerankSize       = 1000
	MaxFinalSize        = 100

	// WeightSumTolerance absorbs floating point error when checking that
	// the score weights sum to 1.0.
	WeightSumTolerance = 0.01
)

// Config is a validated configuration for one pipeline run.
type Config struct {
	initialFetchSize int
	rerankSize       int
	finalSize        int
	model            string
	combineScores    bool
	indexWeight      float64
	relevanceWeight  float64
}

// NewConfig validates and creates a fusion configuration.
// Invariants: finalSize <= rerankSize <= initialFetchSize, all sizes >= 1,
// and indexWeight + relevanceWeight = 1.0 within WeightSumTolerance.
func NewConfig(
	initialFetchSize, rerankSize, finalSize int,
	model string,
	combineScores bool,
	indexWeight, relevanceWeight float64,
) (Config, error) {
	if initialFetchSize < 1 || initialFetchSize > MaxInitialFetchSize {
		return Config{}, fmt.Errorf(
			"initial fetch size must be between 1 and %d, got %d: %w",
			MaxInitialFetchSize, initialFetchSize, domain.ErrConfiguration)
	}
	if rerankSize < 1 || rerankSize > MaxRerankSize {
		return Config{}, fmt.Errorf(
			"rerank size must be between 1 and %d, got %d: %w",
			MaxRerankSize, rerankSize, domain.ErrConfiguration)
	}
	if finalSize < 1 || finalSize > MaxFinalSize {
		return Config{}, fmt.Errorf(
			"final size must be between 1 and %d, got %d: %w",
			MaxFinalSize, finalSize, domain.ErrConfiguration)
	}
	if rerankSize > initialFetchSize {
		return Config{}, fmt.Errorf(
			"rerank size %d cannot exceed initial fetch size %d: %w",
			rerankSize, initialFetchSize, domain.ErrConfiguration)
	}
	if finalSize > rerankSize {
		return Config{}, fmt.Errorf(
			"final size %d cannot exceed rerank size %d: %w",
			finalSize, rerankSize, domain.ErrConfiguration)
	}
	if model == "" {
		model = DefaultModel
	}
	if sum := indexWeight + relevanceWeight; math.Abs(sum-1.0) > WeightSumTolerance {
		return Config{}, fmt.Errorf(
			"score weights must sum to 1.0, got %.4f: %w", sum, domain.ErrConfiguration)
	}

	return Config{
		initialFetchSize: initialFetchSize,
		rerankSize:       rerankSize,
		finalSize:        finalSize,
		model:            model,
		combineScores:    combineScores,
		indexWeight:      indexWeight,
		relevanceWeight:  relevanceWeight,
	}, nil
}

// DefaultConfig returns the stock configuration: fetch 100, rerank 20,
// return 10, combined scoring weighted 0.3 index / 0.7 relevance.
func DefaultConfig() Config {
	return Config{
		initialFetchSize: DefaultInitialFetchSize,
		rerankSize:       DefaultRerankSize,
		finalSize:        DefaultFinalSize,
		model:            DefaultModel,
		combineScores:    true,
		indexWeight:      DefaultIndexWeight,
		relevanceWeight:  DefaultRelevanceWeight,
	}
}

// InitialFetchSize returns how many candidates to retrieve from the index.
func (c *Config) InitialFetchSize() int { return c.initialFetchSize }

// RerankSize returns how many candidates to send to the scorer.
func (c *Config) RerankSize() int { return c.rerankSize }

// FinalSize returns how many results to return.
func (c *Config) FinalSize() int { return c.finalSize }

// Model returns the scoring model identifier.
func (c *Config) Model() string { return c.model }

// CombineScores reports whether native and relevance scores are blended.
func (c *Config) CombineScores() bool { return c.combineScores }

// IndexWeight returns the weight of the normalized native score.
func (c *Config) IndexWeight() float64 { return c.indexWeight }

// RelevanceWeight returns the weight of the relevance score.
func (c *Config) RelevanceWeight() float64 { return c.relevanceWeight }
