// Package scorecache caches relevance scores in a key-value store.
package scorecache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rankfuse/internal/db"
	"github.com/kailas-cloud/rankfuse/internal/domain"
)

const cacheKeyPrefix = "rankfuse:score_cache:"

// store is the consumer interface for the score cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedScorer caches per-document relevance scores keyed by
// (model, query, text). Only the uncached texts are sent to the inner
// scorer; cached and fresh scores are merged back into input order.
type CachedScorer struct {
	inner      domain.RelevanceScorer
	store      store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner domain.RelevanceScorer,
	s store,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedScorer {
	return &CachedScorer{
		inner:      inner,
		store:      s,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Score returns relevance scores, serving from cache where possible.
// When topK is smaller than the batch the cache is bypassed: a truncated
// inner response cannot populate scores for every text.
func (c *CachedScorer) Score(
	ctx context.Context, query string, texts []string, model string, topK int,
) (domain.ScoreBatch, error) {
	if topK > 0 && topK < len(texts) {
		return c.inner.Score(ctx, query, texts, model, topK)
	}

	scores := make([]float64, len(texts))
	cached := make([]bool, len(texts))
	var missIdx []int

	for i, text := range texts {
		key := c.cacheKey(model, query, text)
		if rel, ok := c.getFromCache(ctx, key); ok {
			c.incCache("hit")
			scores[i] = rel
			cached[i] = true
			continue
		}
		c.incCache("miss")
		missIdx = append(missIdx, i)
	}

	batch := domain.ScoreBatch{Model: model}

	if len(missIdx) > 0 {
		missTexts := make([]string, len(missIdx))
		for j, i := range missIdx {
			missTexts[j] = texts[i]
		}

		fresh, err := c.inner.Score(ctx, query, missTexts, model, len(missTexts))
		if err != nil {
			return domain.ScoreBatch{}, fmt.Errorf("score uncached texts: %w", err)
		}
		batch.Model = fresh.Model
		batch.RequestID = fresh.RequestID

		for _, r := range fresh.Results {
			if r.Index < 0 || r.Index >= len(missIdx) {
				c.logger.Warn("Dropping out-of-range scorer index",
					zap.Int("index", r.Index), zap.Int("batch_size", len(missIdx)))
				continue
			}
			orig := missIdx[r.Index]
			scores[orig] = r.Relevance
			cached[orig] = true
			c.putToCache(ctx, c.cacheKey(model, query, texts[orig]), r.Relevance)
		}
	}

	for i := range texts {
		if !cached[i] {
			continue
		}
		batch.Results = append(batch.Results, domain.Score{
			Index:     i,
			Relevance: scores[i],
			Text:      texts[i],
		})
	}

	return batch, nil
}

// HealthCheck delegates to the inner scorer.
func (c *CachedScorer) HealthCheck(ctx context.Context) error {
	type checker interface {
		HealthCheck(ctx context.Context) error
	}
	if hc, ok := c.inner.(checker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

func (c *CachedScorer) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedScorer) cacheKey(model, query, text string) string {
	h := sha256.Sum256([]byte(model + "\x00" + query + "\x00" + text))
	return cacheKeyPrefix + hex.EncodeToString(h[:])
}

func (c *CachedScorer) getFromCache(ctx context.Context, key string) (float64, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached score", zap.String("key", key), zap.Error(err))
		}
		return 0, false
	}
	if len(data) != 8 {
		c.logger.Warn("Invalid cached score data", zap.String("key", key), zap.Int("len", len(data)))
		return 0, false
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(data)), true
}

func (c *CachedScorer) putToCache(ctx context.Context, key string, rel float64) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(rel))
	if err := c.store.SetWithTTL(ctx, key, buf, c.ttl); err != nil {
		c.logger.Warn("Failed to cache score", zap.String("key", key), zap.Error(err))
	}
}
