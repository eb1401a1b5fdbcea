package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/perimetra/sentinel/internal/infrastructure/monitoring"
	"github.com/perimetra/sentinel/pkg/logger"
)

// FallbackCache implements service.Cache over an optional Redis backend with
// an in-process fallback. The first Redis error disables the remote client
// for the remainder of the process lifetime; there is no reconnect. All
// operations swallow internal failures: callers see a miss or a no-op.
type FallbackCache struct {
	remote         *RedisCache
	local          *MemoryCache
	logger         logger.Logger
	metrics        *monitoring.Metrics
	remoteDisabled atomic.Bool
}

// NewFallbackCache builds the cache. remote may be nil, in which case the
// local store serves everything from the start.
func NewFallbackCache(remote *RedisCache, local *MemoryCache, metrics *monitoring.Metrics, log logger.Logger) *FallbackCache {
	c := &FallbackCache{
		remote:  remote,
		local:   local,
		logger:  log.WithComponent("cache"),
		metrics: metrics,
	}
	if remote == nil {
		c.remoteDisabled.Store(true)
	}
	return c
}

// RemoteActive reports whether the Redis backend is still in use.
func (c *FallbackCache) RemoteActive() bool {
	return !c.remoteDisabled.Load()
}

// disableRemote permanently switches to the local store.
func (c *FallbackCache) disableRemote(ctx context.Context, op string, err error) {
	if c.remoteDisabled.CompareAndSwap(false, true) {
		c.logger.Warn(ctx, "remote cache disabled after error, falling back to in-process store",
			logger.String("operation", op), logger.Error(err))
	}
}

// Get returns the cached value or a miss. Never fails.
func (c *FallbackCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c.RemoteActive() {
		val, ok, err := c.remote.Get(ctx, key)
		if err == nil {
			c.record("redis", "get", ok)
			return val, ok
		}
		c.disableRemote(ctx, "get", err)
	}
	val, ok := c.local.Get(ctx, key)
	c.record("memory", "get", ok)
	return val, ok
}

// Set stores a value. Never fails.
func (c *FallbackCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if c.RemoteActive() {
		err := c.remote.Set(ctx, key, value, ttl)
		if err == nil {
			c.record("redis", "set", true)
			return
		}
		c.disableRemote(ctx, "set", err)
	}
	c.local.Set(ctx, key, value, ttl)
	c.record("memory", "set", true)
}

// Delete removes a key. Never fails.
func (c *FallbackCache) Delete(ctx context.Context, key string) {
	if c.RemoteActive() {
		if err := c.remote.Delete(ctx, key); err != nil {
			c.disableRemote(ctx, "delete", err)
		} else {
			return
		}
	}
	c.local.Delete(ctx, key)
}

// Clear removes matching keys. Never fails.
func (c *FallbackCache) Clear(ctx context.Context, pattern string) {
	if c.RemoteActive() {
		if err := c.remote.Clear(ctx, pattern); err != nil {
			c.disableRemote(ctx, "clear", err)
		} else {
			return
		}
	}
	c.local.Clear(ctx, pattern)
}

func (c *FallbackCache) record(backend, op string, hit bool) {
	if c.metrics == nil {
		return
	}
	result := "hit"
	if !hit {
		result = "miss"
	}
	c.metrics.CacheOperations.WithLabelValues(backend, op, result).Inc()
}
