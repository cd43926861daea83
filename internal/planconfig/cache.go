package planconfig

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const cacheBreakerDuration = 30 * time.Second

// RedisCache stores bundles in Redis. Redis failures open a breaker during
// which every lookup is a miss and writes are skipped.
type RedisCache struct {
	client       redis.Cmdable
	prefix       string
	ttl          time.Duration
	nowFn        func() time.Time
	mu           sync.Mutex
	breakerUntil time.Time
}

// NewRedisCache constructs a cache; a nil client disables it.
func NewRedisCache(client redis.Cmdable, prefix string, ttl time.Duration) *RedisCache {
	if client == nil {
		return nil
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl, nowFn: time.Now}
}

func (c *RedisCache) cacheKey(key Key) string {
	return c.prefix + ":plancfg:" + key.String()
}

// Get returns the cached bundle for key.
func (c *RedisCache) Get(ctx context.Context, key Key) (*Bundle, bool) {
	if c == nil {
		return nil, false
	}
	now := c.nowFn()
	if c.breakerActive(now) {
		return nil, false
	}
	raw, errGet := c.client.Get(ctx, c.cacheKey(key)).Bytes()
	if errors.Is(errGet, redis.Nil) {
		return nil, false
	}
	if errGet != nil {
		c.tripBreaker(errGet, now)
		return nil, false
	}
	var bundle Bundle
	if errDecode := json.Unmarshal(raw, &bundle); errDecode != nil {
		log.WithError(errDecode).WithField("key", key.String()).Warn("planconfig cache: drop undecodable entry")
		return nil, false
	}
	if bundle.Base == nil {
		return nil, false
	}
	return &bundle, true
}

// Set stores bundle under key with the cache TTL.
func (c *RedisCache) Set(ctx context.Context, key Key, bundle *Bundle) {
	if c == nil || bundle == nil {
		return
	}
	now := c.nowFn()
	if c.breakerActive(now) {
		return
	}
	data, errEncode := json.Marshal(bundle)
	if errEncode != nil {
		log.WithError(errEncode).Warn("planconfig cache: encode bundle")
		return
	}
	if errSet := c.client.Set(ctx, c.cacheKey(key), data, c.ttl).Err(); errSet != nil {
		c.tripBreaker(errSet, now)
	}
}

// Invalidate removes every cached bundle for the given plan type, covering all tenants and countries.
func (c *RedisCache) Invalidate(ctx context.Context, planType PlanType) error {
	if c == nil {
		return nil
	}
	pattern := c.prefix + ":plancfg:" + string(planType) + "/*"
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if errIter := iter.Err(); errIter != nil {
		return errIter
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *RedisCache) breakerActive(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.breakerUntil.IsZero() {
		return false
	}
	if now.Before(c.breakerUntil) {
		return true
	}
	c.breakerUntil = time.Time{}
	return false
}

func (c *RedisCache) tripBreaker(err error, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.breakerUntil.IsZero() && now.Before(c.breakerUntil) {
		return
	}
	c.breakerUntil = now.Add(cacheBreakerDuration)
	log.WithError(err).Warn("planconfig cache: redis unavailable, bypassing cache")
}
