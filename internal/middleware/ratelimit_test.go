package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/civitas/internal/auth"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInMemoryRateLimitStore_Allow(t *testing.T) {
	tests := []struct {
		name          string
		limit         int
		wantAllowed   []bool
		wantRemaining []int
	}{
		{
			name:          "mutation limit admits a short burst",
			limit:         3,
			wantAllowed:   []bool{true, true, true, false},
			wantRemaining: []int{2, 1, 0, 0},
		},
		{
			name:          "single request window",
			limit:         1,
			wantAllowed:   []bool{true, false, false},
			wantRemaining: []int{0, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewInMemoryRateLimitStore()
			config := RateLimitConfig{RequestsPerWindow: tt.limit, WindowDuration: time.Minute}

			for i := range tt.wantAllowed {
				allowed, remaining, retryAfter := store.Allow(context.Background(), "user:officer-1", config)
				if allowed != tt.wantAllowed[i] {
					t.Errorf("request %d: allowed = %v, want %v", i+1, allowed, tt.wantAllowed[i])
				}
				if remaining != tt.wantRemaining[i] {
					t.Errorf("request %d: remaining = %d, want %d", i+1, remaining, tt.wantRemaining[i])
				}
				if !allowed && (retryAfter < 1 || retryAfter > 60) {
					t.Errorf("request %d: retryAfter = %d, want 1..60", i+1, retryAfter)
				}
			}
		})
	}
}

func TestInMemoryRateLimitStore_KeysAreIndependent(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}
	ctx := context.Background()

	for _, key := range []string{"user:officer-1", "user:officer-2", "ip:198.51.100.7"} {
		if allowed, _, _ := store.Allow(ctx, key, config); !allowed {
			t.Errorf("first request for %s should be allowed", key)
		}
		if allowed, _, _ := store.Allow(ctx, key, config); allowed {
			t.Errorf("second request for %s should be blocked", key)
		}
	}
}

func TestInMemoryRateLimitStore_WindowExpiryAndCleanup(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 40 * time.Millisecond}
	ctx := context.Background()

	store.Allow(ctx, "ip:203.0.113.9", config)
	if allowed, _, _ := store.Allow(ctx, "ip:203.0.113.9", config); allowed {
		t.Fatal("second request inside the window should be blocked")
	}

	time.Sleep(50 * time.Millisecond)

	store.Cleanup()
	store.mu.Lock()
	buckets := len(store.buckets)
	store.mu.Unlock()
	if buckets != 0 {
		t.Errorf("expected expired buckets to be removed, %d left", buckets)
	}

	if allowed, _, _ := store.Allow(ctx, "ip:203.0.113.9", config); !allowed {
		t.Error("request after the window should be allowed")
	}
}

func TestInMemoryRateLimitStore_Concurrency(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 50, WindowDuration: time.Minute}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _, _ := store.Allow(context.Background(), "user:relay-bot", config)
			if ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("expected exactly 50 allowed requests, got %d", allowed)
	}
}

func TestIPKeyFunc(t *testing.T) {
	keyFunc := IPKeyFunc()

	tests := []struct {
		name          string
		remoteAddr    string
		xForwardedFor string
		xRealIP       string
		wantKey       string
	}{
		{name: "remote addr", remoteAddr: "192.168.1.1:12345", wantKey: "192.168.1.1"},
		{name: "remote addr without port", remoteAddr: "192.168.1.1", wantKey: "192.168.1.1"},
		{name: "first forwarded hop", remoteAddr: "10.0.0.1:12345", xForwardedFor: " 203.0.113.50 , 10.0.0.1", wantKey: "203.0.113.50"},
		{name: "real ip behind proxy", remoteAddr: "10.0.0.1:12345", xRealIP: " 203.0.113.50 ", wantKey: "203.0.113.50"},
		{name: "forwarded wins over real ip", remoteAddr: "10.0.0.1:12345", xForwardedFor: "203.0.113.50", xRealIP: "198.51.100.1", wantKey: "203.0.113.50"},
		{name: "ipv6 remote addr", remoteAddr: "[2001:db8::1]:8080", wantKey: "2001:db8::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/search", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xForwardedFor != "" {
				req.Header.Set("X-Forwarded-For", tt.xForwardedFor)
			}
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}

			if got := keyFunc(req); got != tt.wantKey {
				t.Errorf("IPKeyFunc() = %q, want %q", got, tt.wantKey)
			}
		})
	}
}

func TestUserKeyFunc_DemoIdentity(t *testing.T) {
	tests := []struct {
		name    string
		user    string
		role    string
		wantKey string
	}{
		{name: "anonymous falls back to ip", wantKey: "ip:192.0.2.10"},
		{name: "demo civilian", user: "civ-44", wantKey: "user:civ-44"},
		{name: "demo authority", user: "officer-12", role: "authority", wantKey: "user:officer-12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			handler := Authenticate(AuthConfig{AllowDemoHeaders: true})(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					got = UserKeyFunc()(r)
				}))

			req := httptest.NewRequest(http.MethodPost, "/api/allocate", nil)
			req.RemoteAddr = "192.0.2.10:5000"
			if tt.user != "" {
				req.Header.Set(DemoUserHeader, tt.user)
			}
			if tt.role != "" {
				req.Header.Set(DemoRoleHeader, tt.role)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.wantKey {
				t.Errorf("UserKeyFunc() = %q, want %q", got, tt.wantKey)
			}
		})
	}
}

type rateLimitedBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func TestRateLimiter_MutationLimitPerAuthority(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}
	metrics := NewMetrics()

	var served int
	limited := RateLimiter(store, config, UserKeyFunc(), metrics)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			served++
			w.WriteHeader(http.StatusCreated)
		}))

	allocate := func(userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/allocate", nil)
		req.RemoteAddr = "198.51.100.7:4000"
		req = req.WithContext(SetRequester(req.Context(), auth.Requester{UserID: userID, Role: auth.RoleAuthority}))
		rr := httptest.NewRecorder()
		limited.ServeHTTP(rr, req)
		return rr
	}

	for i, wantRemaining := range []string{"1", "0"} {
		rr := allocate("officer-1")
		if rr.Code != http.StatusCreated {
			t.Fatalf("request %d: expected 201, got %d", i+1, rr.Code)
		}
		if got := rr.Header().Get("X-RateLimit-Limit"); got != "2" {
			t.Errorf("X-RateLimit-Limit = %q, want 2", got)
		}
		if got := rr.Header().Get("X-RateLimit-Remaining"); got != wantRemaining {
			t.Errorf("request %d: X-RateLimit-Remaining = %q, want %s", i+1, got, wantRemaining)
		}
	}

	rr := allocate("officer-1")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	retryAfter, err := strconv.Atoi(rr.Header().Get("Retry-After"))
	if err != nil || retryAfter < 1 || retryAfter > 60 {
		t.Errorf("Retry-After = %q, want 1..60", rr.Header().Get("Retry-After"))
	}
	reset, err := strconv.ParseInt(rr.Header().Get("X-RateLimit-Reset"), 10, 64)
	if err != nil || reset < time.Now().Unix() {
		t.Errorf("X-RateLimit-Reset = %q, want a future unix timestamp", rr.Header().Get("X-RateLimit-Reset"))
	}
	var body rateLimitedBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body %q: %v", rr.Body.String(), err)
	}
	if body.Error.Code != "rate_limited" || body.Error.Message == "" {
		t.Errorf("error = %+v, want rate_limited", body.Error)
	}

	// Same address, different authority: separate bucket.
	if rr := allocate("officer-2"); rr.Code != http.StatusCreated {
		t.Errorf("second authority should not share the first one's limit, got %d", rr.Code)
	}
	if served != 3 {
		t.Errorf("handler served %d requests, want 3", served)
	}

	if got := testutil.ToFloat64(metrics.rateLimitRequests.WithLabelValues("/api/allocate", "user")); got != 4 {
		t.Errorf("expected 4 checks, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.rateLimitBlocked.WithLabelValues("/api/allocate", "user")); got != 1 {
		t.Errorf("expected 1 block, got %v", got)
	}
}

func TestRateLimiter_SearchByIP(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	config := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}
	metrics := NewMetrics()

	handler := RateLimiter(store, config, IPKeyFunc(), metrics)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	search := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/search", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := search("198.51.100.7:4000"); code != http.StatusOK {
		t.Fatalf("first search: expected 200, got %d", code)
	}
	if code := search("198.51.100.7:4001"); code != http.StatusTooManyRequests {
		t.Errorf("second search from the same address: expected 429, got %d", code)
	}
	if code := search("198.51.100.8:4000"); code != http.StatusOK {
		t.Errorf("search from another address: expected 200, got %d", code)
	}

	if got := testutil.ToFloat64(metrics.rateLimitBlocked.WithLabelValues("/api/search", "ip")); got != 1 {
		t.Errorf("expected 1 block, got %v", got)
	}
}

func TestRateLimiter_UnknownPathsShareOneLabel(t *testing.T) {
	metrics := NewMetrics()
	handler := RateLimiter(NewInMemoryRateLimitStore(), RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Minute}, IPKeyFunc(), metrics)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for _, path := range []string{"/wp-admin", "/api/civilians/", "/.env"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(metrics.rateLimitRequests.WithLabelValues(unmatchedRoute, "ip")); got != 3 {
		t.Errorf("expected 3 checks under %q, got %v", unmatchedRoute, got)
	}
}

func TestRateLimitStore_Interface(t *testing.T) {
	var _ RateLimitStore = (*InMemoryRateLimitStore)(nil)
	var _ RateLimitStore = (*RedisRateLimitStore)(nil)
}

func TestRateLimitConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		config    RateLimitConfig
		wantError bool
	}{
		{name: "mutation default", config: RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Minute}},
		{name: "zero requests", config: RateLimitConfig{RequestsPerWindow: 0, WindowDuration: time.Minute}, wantError: true},
		{name: "negative requests", config: RateLimitConfig{RequestsPerWindow: -1, WindowDuration: time.Minute}, wantError: true},
		{name: "zero window", config: RateLimitConfig{RequestsPerWindow: 30}, wantError: true},
		{name: "negative window", config: RateLimitConfig{RequestsPerWindow: 30, WindowDuration: -time.Second}, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int
	}{
		{0, 1},
		{-time.Second, 1},
		{10 * time.Millisecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{59 * time.Second, 59},
	}
	for _, tt := range tests {
		if got := retryAfterSeconds(tt.in); got != tt.want {
			t.Errorf("retryAfterSeconds(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
