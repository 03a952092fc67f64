package health

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestRedisChecker_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	if err := NewRedisChecker(client).HealthCheck(context.Background()); err == nil {
		t.Fatal("expected an error for an unreachable redis")
	}
}

func TestRedisChecker_Live(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	if err := NewRedisChecker(client).HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}
