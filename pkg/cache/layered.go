package cache

import (
	"context"
	"encoding/json"
	"time"
)

// LayeredCache is a two-level cache: process memory in front of a shared store.
// Locks always go to the shared store.
type LayeredCache struct {
	mem    *MemoryCache
	shared Service
	memTTL time.Duration
}

// LayeredOption configures LayeredCache.
type LayeredOption func(*LayeredCache)

// WithLayeredMemoryTTL caps how long the memory layer keeps a shared value.
func WithLayeredMemoryTTL(ttl time.Duration) LayeredOption {
	return func(lc *LayeredCache) { lc.memTTL = ttl }
}

func NewLayeredCache(shared Service, opts ...LayeredOption) *LayeredCache {
	lc := &LayeredCache{
		mem:    NewMemoryCache(WithMemoryMaxSize(1000)),
		shared: shared,
		memTTL: time.Minute,
	}
	for _, opt := range opts {
		opt(lc)
	}
	return lc
}

// Shared returns the store behind the memory layer.
func (lc *LayeredCache) Shared() Service { return lc.shared }

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := lc.shared.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	_ = lc.mem.Set(ctx, key, value, lc.l1TTL(expiration))
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.mem.Get(ctx, key, dest); err == nil {
		return nil
	}
	var raw json.RawMessage
	if err := lc.shared.Get(ctx, key, &raw); err != nil {
		return err
	}
	_ = lc.mem.Set(ctx, key, raw, lc.memTTL)
	return json.Unmarshal(raw, dest)
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.mem.Delete(ctx, keys...)
	return lc.shared.Delete(ctx, keys...)
}

func (lc *LayeredCache) DeleteByPattern(ctx context.Context, pattern string) error {
	_ = lc.mem.DeleteByPattern(ctx, pattern)
	return lc.shared.DeleteByPattern(ctx, pattern)
}

func (lc *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return lc.shared.TryLock(ctx, key, ttl)
}

func (lc *LayeredCache) Unlock(ctx context.Context, key string) error {
	return lc.shared.Unlock(ctx, key)
}

func (lc *LayeredCache) l1TTL(expiration time.Duration) time.Duration {
	if expiration > 0 && expiration < lc.memTTL {
		return expiration
	}
	return lc.memTTL
}

// Close stops the memory layer; the shared store is closed by its owner.
func (lc *LayeredCache) Close() error {
	return lc.mem.Close()
}
