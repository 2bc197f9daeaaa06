package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bar struct {
	Symbol string  `json:"symbol"`
	Close  float64 `json:"close"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	require.NoError(t, mc.Set(ctx, "prices:SPY", []bar{{Symbol: "SPY", Close: 500}}, time.Minute))
	var got []bar
	require.NoError(t, mc.Get(ctx, "prices:SPY", &got))
	assert.Equal(t, []bar{{Symbol: "SPY", Close: 500}}, got)

	err := mc.Get(ctx, "prices:QQQ", &got)
	assert.True(t, errors.Is(err, ErrCacheMiss))
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }

	require.NoError(t, mc.Set(ctx, "k", 1, time.Second))
	now = now.Add(2 * time.Second)
	var v int
	assert.ErrorIs(t, mc.Get(ctx, "k", &v), ErrCacheMiss)
}

func TestMemoryCacheLock(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	ok, err := mc.TryLock(ctx, "lock:settlement:A1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mc.TryLock(ctx, "lock:settlement:A1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "lock:settlement:A1"))
	ok, err = mc.TryLock(ctx, "lock:settlement:A1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()
	require.NoError(t, mc.Set(ctx, "prices:a", 1, 0))
	require.NoError(t, mc.Set(ctx, "prices:b", 2, 0))
	require.NoError(t, mc.Set(ctx, "other", 3, 0))

	require.NoError(t, mc.DeleteByPattern(ctx, "prices:*"))
	assert.Equal(t, 1, mc.Len())
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { now = now.Add(time.Millisecond); return now }

	require.NoError(t, mc.Set(ctx, "a", 1, 0))
	require.NoError(t, mc.Set(ctx, "b", 2, 0))
	var v int
	require.NoError(t, mc.Get(ctx, "a", &v))
	require.NoError(t, mc.Set(ctx, "c", 3, 0))

	assert.NoError(t, mc.Get(ctx, "a", &v))
	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
}

func TestLayeredCacheReadsThrough(t *testing.T) {
	shared := NewMemoryCache()
	defer shared.Close()
	lc := NewLayeredCache(shared)
	defer lc.Close()
	ctx := context.Background()

	require.NoError(t, shared.Set(ctx, "k", bar{Symbol: "X", Close: 1}, 0))
	var got bar
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, "X", got.Symbol)

	// served from L1 after the shared copy is gone
	require.NoError(t, shared.Delete(ctx, "k"))
	require.NoError(t, lc.Get(ctx, "k", &got))

	n, err := GetOrLoad(ctx, lc, "n", time.Minute, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	n, err = GetOrLoad(ctx, lc, "n", time.Minute, func(context.Context) (int, error) { return 0, errors.New("not called") })
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
