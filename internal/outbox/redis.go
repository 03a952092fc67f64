package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces the outbox keys.
const DefaultRedisPrefix = "civitas:outbox"

// maxWatchRetries bounds optimistic-lock retries in RecordFailure.
const maxWatchRetries = 5

// RedisStore implements Store with a hash of items keyed by id and a sorted
// set ordering ids by enqueue time.
type RedisStore struct {
	client   *redis.Client
	itemsKey string
	queueKey string
	now      func() time.Time
}

// NewRedisStore creates a RedisStore under prefix. An empty prefix uses
// DefaultRedisPrefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{
		client:   client,
		itemsKey: prefix + ":items",
		queueKey: prefix + ":queue",
		now:      time.Now,
	}
}

// Enqueue implements Store.
func (s *RedisStore) Enqueue(ctx context.Context, it Item) (bool, error) {
	if err := it.Validate(); err != nil {
		return false, err
	}
	if it.EnqueuedAt.IsZero() {
		it.EnqueuedAt = s.now().UTC()
	}
	data, err := json.Marshal(it)
	if err != nil {
		return false, fmt.Errorf("encode outbox item: %w", err)
	}

	added, err := s.client.HSetNX(ctx, s.itemsKey, it.ID, data).Result()
	if err != nil {
		return false, fmt.Errorf("redis hsetnx: %w", err)
	}
	if !added {
		return false, nil
	}
	z := redis.Z{Score: float64(it.EnqueuedAt.UnixMilli()), Member: it.ID}
	if err := s.client.ZAdd(ctx, s.queueKey, z).Err(); err != nil {
		return false, fmt.Errorf("redis zadd: %w", err)
	}
	return true, nil
}

// Pending implements Store. Ids whose item has vanished are pruned.
func (s *RedisStore) Pending(ctx context.Context, limit int) ([]Item, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := s.client.ZRange(ctx, s.queueKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrange: %w", err)
	}
	if len(ids) == 0 {
		return []Item{}, nil
	}

	values, err := s.client.HMGet(ctx, s.itemsKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hmget: %w", err)
	}

	out := make([]Item, 0, len(ids))
	var orphans []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			orphans = append(orphans, ids[i])
			continue
		}
		var it Item
		if err := json.Unmarshal([]byte(raw), &it); err != nil {
			return nil, fmt.Errorf("decode outbox item %s: %w", ids[i], err)
		}
		out = append(out, it)
	}
	if len(orphans) > 0 {
		if err := s.client.ZRem(ctx, s.queueKey, orphans...).Err(); err != nil {
			return nil, fmt.Errorf("redis zrem: %w", err)
		}
	}
	return out, nil
}

// RecordFailure implements Store. The read-modify-write runs under WATCH
// and is retried when another writer touches the hash.
func (s *RedisStore) RecordFailure(ctx context.Context, id, reason string) (int, error) {
	var attempts int
	update := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, s.itemsKey, id).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotQueued
		}
		if err != nil {
			return fmt.Errorf("redis hget: %w", err)
		}
		var it Item
		if err := json.Unmarshal(raw, &it); err != nil {
			return fmt.Errorf("decode outbox item %s: %w", id, err)
		}
		it.Attempts++
		it.LastError = reason
		data, err := json.Marshal(it)
		if err != nil {
			return fmt.Errorf("encode outbox item: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.itemsKey, id, data)
			return nil
		})
		attempts = it.Attempts
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, update, s.itemsKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return attempts, err
	}
	return 0, fmt.Errorf("record outbox failure for %s: too much contention", id)
}

// Remove implements Store.
func (s *RedisStore) Remove(ctx context.Context, id string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.itemsKey, id)
		pipe.ZRem(ctx, s.queueKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove outbox item: %w", err)
	}
	return nil
}

// Len implements Store.
func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n, err := s.client.HLen(ctx, s.itemsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hlen: %w", err)
	}
	return int(n), nil
}
