package embedding

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/docassist/backend/internal/cache/redis"
	"github.com/docassist/backend/internal/index"
	"github.com/docassist/backend/internal/metrics"
	"github.com/docassist/backend/pkg/logger"
	"github.com/docassist/backend/pkg/utils"
)

const defaultTTL = 24 * time.Hour

// CachedEmbedder fronts an Embedder with a redis cache keyed by a hash of
// the input text. Cache failures are logged and degrade to a direct
// embedding call; they never fail the request.
type CachedEmbedder struct {
	inner index.Embedder
	cache *redis.Client
	ttl   time.Duration
}

func NewCachedEmbedder(inner index.Embedder, cache *redis.Client) *CachedEmbedder {
	return &CachedEmbedder{
		inner: inner,
		cache: cache,
		ttl:   defaultTTL,
	}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := utils.HashString(text)

	cached, hit, err := c.cache.GetEmbedding(ctx, key)
	if err != nil {
		logger.Warn("Embedding cache read failed", zap.Error(err))
	}
	if hit {
		metrics.CacheHits.WithLabelValues("embedding").Inc()
		return cached, nil
	}
	metrics.CacheMisses.WithLabelValues("embedding").Inc()

	embedding, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.cache.SetEmbedding(ctx, key, embedding, c.ttl); err != nil {
		logger.Warn("Embedding cache write failed", zap.Error(err))
	}

	return embedding, nil
}
