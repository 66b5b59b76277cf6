package users_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/km-arc/go-spritze/app/users"
	"github.com/km-arc/go-spritze/framework/config"
)

func TestMemoryCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	c := users.NewMemoryCache(4)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	v, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := users.NewMemoryCache(4)
	c.SetClock(func() time.Time { return now })

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	_, ok, _ := c.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryCache_EvictsWhenFull(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := users.NewMemoryCache(2)
	c.SetClock(func() time.Time { return now })

	require.NoError(t, c.Set(ctx, "old", "1", time.Second))
	require.NoError(t, c.Set(ctx, "keep", "2", 0))
	now = now.Add(2 * time.Second)

	require.NoError(t, c.Set(ctx, "new", "3", 0))
	_, ok, _ := c.Get(ctx, "keep")
	assert.True(t, ok, "expired entries go first")
	_, ok, _ = c.Get(ctx, "new")
	assert.True(t, ok)
}

func TestOpenCache_InMemoryWhenNoURL(t *testing.T) {
	backend, release, err := users.OpenCache(context.Background(), &config.Config{}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &users.MemoryCache{}, backend)
	assert.NoError(t, release(context.Background()))
}

func TestOpenCache_BadRedisURL(t *testing.T) {
	cfg := &config.Config{Cache: config.CacheConfig{URL: "http://not-redis"}}
	_, _, err := users.OpenCache(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "parse cache url")
}

func TestOpenCache_UnreachableRedis(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cfg := &config.Config{Cache: config.CacheConfig{URL: "redis://127.0.0.1:1/0"}}
	_, _, err := users.OpenCache(ctx, cfg, zap.NewNop())
	assert.ErrorContains(t, err, "connect to cache")
}
