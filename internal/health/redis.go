// Package health provides readiness checks for the Postgres store and the
// Redis instance shared by rate limiting, geocode caching and the outbox.
package health

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisChecker implements health checking for Redis.
type RedisChecker struct {
	client redis.Cmdable
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client redis.Cmdable) *RedisChecker {
	return &RedisChecker{
		client: client,
	}
}

// HealthCheck sends a PING.
func (r *RedisChecker) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
