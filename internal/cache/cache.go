// Package cache memoizes active rule set lookups in Redis. Entries are keyed
// by tenant and simulator key and dropped whenever a rule set is written.
//
// Each (key, tenant) also has a generation counter that Invalidate bumps.
// Entries record the generation read before the lookup started, so an entry
// written by a lookup that raced a publish is never served.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/leadtunic/maxtabil-app-sub001/internal/metrics"
	"github.com/leadtunic/maxtabil-app-sub001/internal/resolver"
	"github.com/leadtunic/maxtabil-app-sub001/internal/ruleset"
	"github.com/leadtunic/maxtabil-app-sub001/pkg/constants"
)

// ErrMiss is returned by RedisClient.Get when the key does not exist.
var ErrMiss = errors.New("cache miss")

// RedisClient is the subset of Redis the cache needs. GoRedisAdapter
// implements it on go-redis; tests use an in-memory map.
type RedisClient interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Incr(ctx context.Context, key string) (int64, error)
}

// Key returns the Redis key of (key, tenant).
func Key(key ruleset.Key, tenant string) string {
	return constants.CacheKeyPrefix + tenant + ":" + string(key)
}

func generationKey(cacheKey string) string {
	return cacheKey + ":gen"
}

type entry struct {
	Generation int64           `json:"generation"`
	Active     resolver.Active `json:"active"`
}

// Source is a resolver.ConfigSource that consults Redis before the wrapped
// source. Only present configurations are cached; absence always falls
// through so a newly published version is seen without waiting for a TTL.
type Source struct {
	inner   resolver.ConfigSource
	client  RedisClient
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New wraps inner. A zero ttl uses DefaultCacheTTLSeconds.
func New(inner resolver.ConfigSource, client RedisClient, ttl time.Duration, m *metrics.Metrics, logger *zap.Logger) *Source {
	if ttl <= 0 {
		ttl = constants.DefaultCacheTTLSeconds * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{inner: inner, client: client, ttl: ttl, metrics: m, logger: logger}
}

func (s *Source) TryGetActive(ctx context.Context, key ruleset.Key, tenant string) (resolver.Active, bool) {
	cacheKey := Key(key, tenant)

	generation, err := s.generation(ctx, cacheKey)
	if err != nil {
		s.metrics.ObserveCacheLookup("error")
		s.logger.Warn("Cache lookup failed, bypassing",
			zap.String("op", "cache.TryGetActive"),
			zap.String("cacheKey", cacheKey),
			zap.Error(err))
		return s.inner.TryGetActive(ctx, key, tenant)
	}

	data, err := s.client.Get(ctx, cacheKey)
	switch {
	case err == nil:
		var cached entry
		if jerr := json.Unmarshal(data, &cached); jerr != nil || cached.Active.Payload == nil {
			s.logger.Warn("Discarding unreadable cache entry",
				zap.String("op", "cache.TryGetActive"),
				zap.String("cacheKey", cacheKey))
			s.metrics.ObserveCacheLookup("error")
			break
		}
		if cached.Generation != generation {
			s.metrics.ObserveCacheLookup("stale")
			break
		}
		s.metrics.ObserveCacheLookup("hit")
		return cached.Active, true
	case errors.Is(err, ErrMiss):
		s.metrics.ObserveCacheLookup("miss")
	default:
		s.metrics.ObserveCacheLookup("error")
		s.logger.Warn("Cache lookup failed, bypassing",
			zap.String("op", "cache.TryGetActive"),
			zap.String("cacheKey", cacheKey),
			zap.Error(err))
		return s.inner.TryGetActive(ctx, key, tenant)
	}

	active, ok := s.inner.TryGetActive(ctx, key, tenant)
	if !ok {
		return active, false
	}
	encoded, err := json.Marshal(entry{Generation: generation, Active: active})
	if err == nil {
		err = s.client.Set(ctx, cacheKey, encoded, s.ttl)
	}
	if err != nil {
		s.logger.Warn("Failed to cache active rule set",
			zap.String("op", "cache.TryGetActive"),
			zap.String("cacheKey", cacheKey),
			zap.Error(err))
	}
	return active, true
}

// generation reads the invalidation counter of cacheKey; never bumped is 0.
func (s *Source) generation(ctx context.Context, cacheKey string) (int64, error) {
	data, err := s.client.Get(ctx, generationKey(cacheKey))
	if errors.Is(err, ErrMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(data), 10, 64)
}

// Invalidate bumps the generation of (key, tenant) and drops its entry.
func (s *Source) Invalidate(ctx context.Context, key ruleset.Key, tenant string) error {
	cacheKey := Key(key, tenant)
	if _, err := s.client.Incr(ctx, generationKey(cacheKey)); err != nil {
		s.logger.Warn("Cache invalidation failed",
			zap.String("op", "cache.Invalidate"),
			zap.String("cacheKey", cacheKey),
			zap.Error(err))
		return err
	}
	if err := s.client.Del(ctx, cacheKey); err != nil {
		s.logger.Warn("Cache invalidation failed",
			zap.String("op", "cache.Invalidate"),
			zap.String("cacheKey", cacheKey),
			zap.Error(err))
		return err
	}
	return nil
}
