package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

// DefaultCacheTTL is how long geocoding results are kept.
const DefaultCacheTTL = 24 * time.Hour

// DefaultCacheSize is the LRU capacity.
const DefaultCacheSize = 1000

// Cache stores search results by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]Place, bool, error)
	Set(ctx context.Context, key string, places []Place) error
}

// LRUCache is an in-process, size-bounded cache with expiry.
type LRUCache struct {
	lru *expirable.LRU[string, []Place]
}

// NewLRUCache creates an LRUCache. Non-positive arguments take defaults.
func NewLRUCache(size int, ttl time.Duration) *LRUCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &LRUCache{lru: expirable.NewLRU[string, []Place](size, nil, ttl)}
}

// Get implements Cache.
func (c *LRUCache) Get(_ context.Context, key string) ([]Place, bool, error) {
	places, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	return append([]Place(nil), places...), true, nil
}

// Set implements Cache.
func (c *LRUCache) Set(_ context.Context, key string, places []Place) error {
	c.lru.Add(key, append([]Place(nil), places...))
	return nil
}

// RedisCache shares results between API instances.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache creates a RedisCache. ttl <= 0 uses DefaultCacheTTL.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl, prefix: "civitas:geocode:"}
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) ([]Place, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var places []Place
	if err := json.Unmarshal(data, &places); err != nil {
		return nil, false, fmt.Errorf("decode cached places: %w", err)
	}
	return places, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, places []Place) error {
	data, err := json.Marshal(places)
	if err != nil {
		return fmt.Errorf("encode places: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
