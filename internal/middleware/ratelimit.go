package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitConfig defines the rate limiting configuration.
// Valid values:
//   - RequestsPerWindow: must be > 0
//   - WindowDuration: must be > 0
type RateLimitConfig struct {
	// RequestsPerWindow is the maximum number of requests allowed per window.
	// Must be > 0.
	RequestsPerWindow int
	// WindowDuration is the time window for the rate limit.
	// Must be > 0.
	WindowDuration time.Duration
}

// Validate checks that the RateLimitConfig has valid values.
// Returns an error if RequestsPerWindow <= 0 or WindowDuration <= 0.
func (c RateLimitConfig) Validate() error {
	if c.RequestsPerWindow <= 0 {
		return fmt.Errorf("RequestsPerWindow must be > 0 (got %d)", c.RequestsPerWindow)
	}
	if c.WindowDuration <= 0 {
		return fmt.Errorf("WindowDuration must be > 0 (got %s)", c.WindowDuration)
	}
	return nil
}

// RateLimitStore defines the interface for rate limit state storage.
// This allows for different backends (in-memory, Redis, etc.).
type RateLimitStore interface {
	// Allow checks if a request from the given key should be allowed.
	// It returns whether the request is allowed, how many requests remain in
	// the current window, and the number of seconds until the window resets
	// when the request was refused.
	Allow(ctx context.Context, key string, config RateLimitConfig) (allowed bool, remaining int, retryAfter int)
}

// bucket represents a rate limit bucket for a single key.
type bucket struct {
	count     int
	windowEnd time.Time
}

// InMemoryRateLimitStore implements RateLimitStore using an in-memory map.
// It uses a simple fixed window counter algorithm.
// Thread-safe for concurrent access.
type InMemoryRateLimitStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewInMemoryRateLimitStore creates a new in-memory rate limit store.
func NewInMemoryRateLimitStore() *InMemoryRateLimitStore {
	return &InMemoryRateLimitStore{
		buckets: make(map[string]*bucket),
	}
}

// Allow implements RateLimitStore.
func (s *InMemoryRateLimitStore) Allow(_ context.Context, key string, config RateLimitConfig) (bool, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	b, exists := s.buckets[key]
	if !exists || now.After(b.windowEnd) {
		s.buckets[key] = &bucket{
			count:     1,
			windowEnd: now.Add(config.WindowDuration),
		}
		return true, config.RequestsPerWindow - 1, 0
	}

	if b.count < config.RequestsPerWindow {
		b.count++
		return true, config.RequestsPerWindow - b.count, 0
	}

	return false, 0, retryAfterSeconds(b.windowEnd.Sub(now))
}

// Cleanup removes expired buckets to prevent memory leaks.
// This should be called periodically in production.
// Recommended cleanup interval is 2-5x the longest configured WindowDuration
// to balance memory usage and overhead.
func (s *InMemoryRateLimitStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, b := range s.buckets {
		if now.After(b.windowEnd) {
			delete(s.buckets, key)
		}
	}
}

// DefaultRateLimitKeyPrefix namespaces limiter counters in Redis.
const DefaultRateLimitKeyPrefix = "civitas:ratelimit:"

// fixedWindowScript increments the window counter, starts the window on the
// first hit and returns the count with the remaining window in milliseconds.
var fixedWindowScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

// RedisRateLimitStore implements RateLimitStore with a fixed window counter
// shared by every API replica. Redis errors fail open: the request is allowed
// and the error is counted.
type RedisRateLimitStore struct {
	client  *redis.Client
	prefix  string
	metrics *Metrics
}

// NewRedisRateLimitStore creates a Redis-backed rate limit store.
func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client, prefix: DefaultRateLimitKeyPrefix}
}

// WithMetrics returns the store reporting Redis errors to m.
func (s *RedisRateLimitStore) WithMetrics(m *Metrics) *RedisRateLimitStore {
	s.metrics = m
	return s
}

func (s *RedisRateLimitStore) key(k string) string {
	return s.prefix + k
}

// Allow implements RateLimitStore.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int, int) {
	res, err := fixedWindowScript.Run(ctx, s.client, []string{s.key(key)},
		config.WindowDuration.Milliseconds()).Int64Slice()
	if err != nil || len(res) != 2 {
		if s.metrics != nil {
			s.metrics.IncRateLimitRedisErrors()
		}
		slog.WarnContext(ctx, "rate limit store unavailable, allowing request", "error", err)
		return true, config.RequestsPerWindow, 0
	}

	count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	if count > config.RequestsPerWindow {
		return false, 0, retryAfterSeconds(ttl)
	}
	return true, config.RequestsPerWindow - count, 0
}

func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs <= 0 {
		secs = 1
	}
	return secs
}

// KeyFunc extracts a rate limit key from an HTTP request.
type KeyFunc func(r *http.Request) string

// IPKeyFunc returns a KeyFunc that uses the client's IP address.
func IPKeyFunc() KeyFunc {
	return ClientIP
}

// UserKeyFunc returns a KeyFunc that uses the authenticated requester if
// available, falling back to IP address.
func UserKeyFunc() KeyFunc {
	return func(r *http.Request) string {
		if req := GetRequester(r.Context()); !req.Anonymous() {
			return "user:" + req.UserID
		}
		return "ip:" + ClientIP(r)
	}
}

// RateLimiter is a middleware that limits request rates.
// It returns HTTP 429 Too Many Requests with a rate_limited error body when
// the limit is exceeded. Checks and blocks are reported to metrics per
// normalized route; a nil metrics disables reporting.
func RateLimiter(store RateLimitStore, config RateLimitConfig, keyFunc KeyFunc, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			endpoint := normalizePath(r.URL.Path)
			key := keyFunc(r)
			keyType := "ip"
			if strings.HasPrefix(key, "user:") {
				keyType = "user"
			}
			if metrics != nil {
				metrics.IncRateLimitRequests(endpoint, keyType)
			}

			allowed, remaining, retryAfter := store.Allow(r.Context(), key, config)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				if metrics != nil {
					metrics.IncRateLimitBlocked(endpoint, keyType)
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				// X-RateLimit-Reset should be a Unix timestamp per API conventions
				resetTime := time.Now().Add(time.Duration(retryAfter) * time.Second).Unix()
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime, 10))
				writeError(w, r, http.StatusTooManyRequests, "rate_limited", "Too many requests, retry later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeError writes the API error envelope from inside the middleware chain
// and reports the code to the logging middleware.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	UpdateResponseContext(w, SetErrorCode(r.Context(), code))

	body, _ := json.Marshal(map[string]map[string]string{
		"error": {"code": code, "message": message},
	})
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
