package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/owasp-nest/nest-api/internal/observability"
)

const cacheKeyPrefix = "search:v1"

// CachedClient stores result pages in Redis for a fixed TTL.
type CachedClient[T any] struct {
	next   Client[T]
	cache  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedClient decorates next with a Redis page cache. A nil cache disables caching.
func NewCachedClient[T any](next Client[T], cache *redis.Client, ttl time.Duration, logger zerolog.Logger) *CachedClient[T] {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedClient[T]{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "search_cache").Logger(),
	}
}

func (c *CachedClient[T]) Search(ctx context.Context, index, query string, page int) (Page[T], error) {
	if c.cache == nil {
		return c.next.Search(ctx, index, query, page)
	}

	key := CacheKey(index, query, page)
	if cached, err := c.cache.Get(ctx, key).Result(); err == nil {
		var result Page[T]
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			observability.SearchRequests().WithLabelValues(index, "hit").Inc()
			return result, nil
		}
		c.logger.Warn().Str("key", key).Msg("discarding unreadable cached search page")
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn().Err(err).Msg("failed to read search cache")
	}

	result, err := c.next.Search(ctx, index, query, page)
	if err != nil {
		return Page[T]{}, err
	}
	observability.SearchRequests().WithLabelValues(index, "miss").Inc()

	if payload, err := json.Marshal(result); err == nil {
		if err := c.cache.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.Warn().Err(err).Msg("failed to store search page")
		}
	}

	return result, nil
}

// Invalidate removes every cached page of index.
func (c *CachedClient[T]) Invalidate(ctx context.Context, index string) error {
	if c.cache == nil {
		return nil
	}

	pattern := fmt.Sprintf("%s:%s:*", cacheKeyPrefix, index)
	iter := c.cache.Scan(ctx, 0, pattern, 100).Iterator()
	keys := make([]string, 0)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.cache.Del(ctx, keys...).Err()
}

// CacheKey builds the Redis key of a result page. Queries are normalised so
// that "ZAP " and "zap" share an entry.
func CacheKey(index, query string, page int) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%s:%s:%d:%s", cacheKeyPrefix, index, page, hex.EncodeToString(sum[:8]))
}
