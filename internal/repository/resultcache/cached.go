// Package resultcache memoizes pipeline bundles in a key-value store.
// Stochastic projections are seeded, so equal requests yield equal bundles.
package resultcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/projector/internal/db"
	"github.com/kailas-cloud/projector/internal/logger"
	"github.com/kailas-cloud/projector/internal/usecase/pipeline"
)

// KeyPrefix namespaces every cache entry. Bump the version when the bundle
// encoding changes.
const KeyPrefix = "projector:result:v1:"

// runner is the decorated pipeline (ISP).
type runner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Bundle, error)
}

// store is the consumer interface for the result cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedPipeline caches pipeline bundles in a key-value store. Store failures
// are logged and fall back to recomputation.
type CachedPipeline struct {
	inner      runner
	store      store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(inner runner, s store, ttl time.Duration, cacheTotal *prometheus.CounterVec) *CachedPipeline {
	return &CachedPipeline{
		inner:      inner,
		store:      s,
		ttl:        ttl,
		cacheTotal: cacheTotal,
	}
}

// Run returns a cached bundle or runs the inner pipeline.
func (c *CachedPipeline) Run(ctx context.Context, req pipeline.Request) (pipeline.Bundle, error) {
	log := logger.FromContext(ctx)

	key, err := cacheKey(req)
	if err != nil {
		log.Warn("Failed to build result cache key", zap.Error(err))
		return c.inner.Run(ctx, req)
	}

	if b, ok := c.getFromCache(ctx, log, key); ok {
		c.incCache("hit")
		return b, nil
	}
	c.incCache("miss")

	b, err := c.inner.Run(ctx, req)
	if err != nil {
		return pipeline.Bundle{}, err
	}

	c.putToCache(ctx, log, key, b)
	return b, nil
}

func (c *CachedPipeline) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func cacheKey(req pipeline.Request) (string, error) {
	data, err := json.Marshal(newRequestKey(req))
	if err != nil {
		return "", fmt.Errorf("marshal request key: %w", err)
	}
	h := sha256.Sum256(data)
	return KeyPrefix + hex.EncodeToString(h[:]), nil
}

func (c *CachedPipeline) getFromCache(ctx context.Context, log *zap.Logger, key string) (pipeline.Bundle, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			log.Warn("Failed to get cached result", zap.String("key", key), zap.Error(err))
		}
		return pipeline.Bundle{}, false
	}
	if len(data) == 0 {
		return pipeline.Bundle{}, false
	}

	var dto bundleDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		log.Warn("Failed to parse cached result", zap.String("key", key), zap.Error(err))
		return pipeline.Bundle{}, false
	}
	b, err := dtoToBundle(dto)
	if err != nil {
		log.Warn("Failed to parse cached result", zap.String("key", key), zap.Error(err))
		return pipeline.Bundle{}, false
	}
	return b, true
}

func (c *CachedPipeline) putToCache(ctx context.Context, log *zap.Logger, key string, b pipeline.Bundle) {
	data, err := json.Marshal(bundleToDTO(b))
	if err != nil {
		log.Warn("Failed to encode result for cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		log.Warn("Failed to cache result", zap.String("key", key), zap.Error(err))
	}
}
