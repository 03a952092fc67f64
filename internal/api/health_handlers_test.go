package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// mockHealthChecker is a mock implementation of HealthChecker for testing.
type mockHealthChecker struct {
	shouldFail bool
	err        error
}

func (m *mockHealthChecker) HealthCheck(ctx context.Context) error {
	if m.shouldFail {
		if m.err != nil {
			return m.err
		}
		return errors.New("health check failed")
	}
	return nil
}

// TestHealth_Success tests the basic health check endpoint.
func TestHealth_Success(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{MetricsEnabled: true})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	handlers.Health(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var response HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != "healthy" {
		t.Errorf("expected status 'healthy', got %s", response.Status)
	}
	if response.Checks["runtime"] != "ok" {
		t.Errorf("expected runtime check to be 'ok', got %s", response.Checks["runtime"])
	}
	if _, err := time.Parse(time.RFC3339, response.Timestamp); err != nil {
		t.Errorf("timestamp is not valid RFC3339: %v", err)
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		db         HealthChecker
		redis      HealthChecker
		metrics    bool
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "all healthy",
			db:         &mockHealthChecker{},
			redis:      &mockHealthChecker{},
			metrics:    true,
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"database": "ok", "redis": "ok", "metrics": "ok"},
		},
		{
			name:       "database down",
			db:         &mockHealthChecker{shouldFail: true},
			redis:      &mockHealthChecker{},
			metrics:    true,
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": "error", "redis": "ok"},
		},
		{
			name:       "redis down",
			db:         &mockHealthChecker{},
			redis:      &mockHealthChecker{shouldFail: true, err: errors.New("connection refused")},
			metrics:    true,
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": "ok", "redis": "error"},
		},
		{
			name:       "in-memory deployment",
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"database": "not_configured", "redis": "not_configured", "metrics": "disabled"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers := NewHealthHandlers(HealthHandlersConfig{
				DBChecker:      tt.db,
				RedisChecker:   tt.redis,
				MetricsEnabled: tt.metrics,
			})

			req := httptest.NewRequest(http.MethodGet, "/ready", nil)
			w := httptest.NewRecorder()
			handlers.Ready(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}

			var response HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			wantOverall := "healthy"
			if tt.wantStatus != http.StatusOK {
				wantOverall = "unhealthy"
			}
			if response.Status != wantOverall {
				t.Errorf("expected status %q, got %q", wantOverall, response.Status)
			}
			for check, want := range tt.wantChecks {
				if got := response.Checks[check]; got != want {
					t.Errorf("check %s = %q, want %q", check, got, want)
				}
			}
		})
	}
}

// TestHealthEndpoints_MethodNotAllowed tests that non-GET requests are rejected.
func TestHealthEndpoints_MethodNotAllowed(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{})

	for path, h := range map[string]http.HandlerFunc{"/health": handlers.Health, "/ready": handlers.Ready} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		w := httptest.NewRecorder()
		h(w, req)

		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected status 405, got %d", path, w.Code)
		}
		if allow := w.Header().Get("Allow"); allow != http.MethodGet {
			t.Errorf("%s: expected Allow GET, got %q", path, allow)
		}
	}
}

// TestHealthEndpoints_ContentType tests that responses are JSON.
func TestHealthEndpoints_ContentType(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{})

	for path, h := range map[string]http.HandlerFunc{"/health": handlers.Health, "/ready": handlers.Ready} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		h(w, req)

		if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Errorf("%s: expected JSON Content-Type, got %s", path, ct)
		}
	}
}
