package users

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/km-arc/go-spritze/framework/config"
	"github.com/km-arc/go-spritze/framework/container"
)

// CacheBackend stores serialized values with a TTL.
type CacheBackend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// OpenCache connects the backend selected by Cache.URL: Redis when set,
// an in-memory map otherwise.
func OpenCache(ctx context.Context, cfg *config.Config, l *zap.Logger) (CacheBackend, container.AsyncRelease, error) {
	if cfg.Cache.URL == "" {
		l.Info("using in-memory user cache", zap.Int("max_size", cfg.Cache.MaxSize))
		return NewMemoryCache(cfg.Cache.MaxSize), func(context.Context) error { return nil }, nil
	}

	opts, err := redis.ParseURL(cfg.Cache.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse cache url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to cache at %s: %w", opts.Addr, err)
	}
	l.Info("connected to redis user cache", zap.String("addr", opts.Addr))

	return &redisCache{client: client}, func(context.Context) error {
		return client.Close()
	}, nil
}

// ── Redis ─────────────────────────────────────────────────────────────────────

type redisCache struct {
	client *redis.Client
}

func (c *redisCache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (c *redisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *redisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// ── Memory ────────────────────────────────────────────────────────────────────

type memoryEntry struct {
	value   string
	expires time.Time
}

// MemoryCache is a bounded in-process CacheBackend. When full, expired
// entries are evicted first, then an arbitrary one.
type MemoryCache struct {
	mu      sync.Mutex
	max     int
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache creates a cache holding at most max entries.
func NewMemoryCache(max int) *MemoryCache {
	if max <= 0 {
		max = 1
	}
	return &MemoryCache{max: max, entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return "", false, nil
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		delete(c.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.max {
		c.evict()
	}
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.entries[key] = e
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *MemoryCache) evict() {
	now := c.now()
	for k, e := range c.entries {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}
	if len(c.entries) < c.max {
		return
	}
	for k := range c.entries {
		delete(c.entries, k)
		return
	}
}
