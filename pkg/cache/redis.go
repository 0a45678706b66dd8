package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisBackend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
	CacheKey(cache, key string) string
	CachePrefix(cache string) string
}

// RedisCache keeps one named cache under srms:cache:<name>:.
type RedisCache struct {
	client redisBackend
	name   string
	ttl    time.Duration
}

func NewRedisCache(client redisBackend, name string, ttl time.Duration) (*RedisCache, error) {
	if client == nil {
		return nil, errors.New("redis client required for cache")
	}
	if name == "" {
		return nil, errors.New("cache name is required")
	}
	return &RedisCache{client: client, name: name, ttl: ttl}, nil
}

func (c *RedisCache) Name() string { return c.name }

func (c *RedisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.client.Get(ctx, c.client.CacheKey(c.name, key))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("cache %s get: %w", c.name, err)
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, fmt.Errorf("cache %s decode %s: %w", c.name, key, err)
	}
	return true, nil
}

func (c *RedisCache) Put(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache %s encode %s: %w", c.name, key, err)
	}
	if err := c.client.Set(ctx, c.client.CacheKey(c.name, key), payload, c.ttl); err != nil {
		return fmt.Errorf("cache %s put: %w", c.name, err)
	}
	return nil
}

func (c *RedisCache) Evict(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, key := range keys {
		full = append(full, c.client.CacheKey(c.name, key))
	}
	if err := c.client.Del(ctx, full...); err != nil {
		return fmt.Errorf("cache %s evict: %w", c.name, err)
	}
	return nil
}

func (c *RedisCache) EvictAll(ctx context.Context) error {
	if _, err := c.client.DeleteByPrefix(ctx, c.client.CachePrefix(c.name)); err != nil {
		return fmt.Errorf("cache %s clear: %w", c.name, err)
	}
	return nil
}
