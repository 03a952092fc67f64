package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// readinessTimeout bounds all dependency checks of one /ready call.
const readinessTimeout = 5 * time.Second

// HealthChecker defines the interface for components that can be health checked.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandlers provides health and readiness check endpoints for Kubernetes probes.
type HealthHandlers struct {
	// Database checker (nil when the in-memory store is used)
	dbChecker HealthChecker

	// Redis checker (nil when rate limiting and geocode caching are in-process)
	redisChecker HealthChecker

	metricsEnabled bool
}

// HealthHandlersConfig configures the health check handlers.
type HealthHandlersConfig struct {
	DBChecker      HealthChecker
	RedisChecker   HealthChecker
	MetricsEnabled bool
}

// NewHealthHandlers creates a new health check handler.
func NewHealthHandlers(config HealthHandlersConfig) *HealthHandlers {
	return &HealthHandlers{
		dbChecker:      config.DBChecker,
		redisChecker:   config.RedisChecker,
		metricsEnabled: config.MetricsEnabled,
	}
}

// HealthResponse represents the JSON response for health checks.
type HealthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Health handles GET /health (liveness probe).
// If we can respond, we're alive.
func (h *HealthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, HealthResponse{
		Status:    "healthy",
		Checks:    map[string]string{"runtime": "ok"},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /ready (readiness probe).
// Returns 503 when a configured dependency fails its check.
func (h *HealthHandlers) Ready(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := make(map[string]string)
	healthy := true

	run := func(name string, checker HealthChecker) {
		if checker == nil {
			checks[name] = "not_configured"
			return
		}
		if err := checker.HealthCheck(ctx); err != nil {
			checks[name] = "error"
			healthy = false
			slog.WarnContext(ctx, "readiness check failed", "check", name, "error", err)
			return
		}
		checks[name] = "ok"
	}
	run("database", h.dbChecker)
	run("redis", h.redisChecker)

	if h.metricsEnabled {
		checks["metrics"] = "ok"
	} else {
		checks["metrics"] = "disabled"
	}

	status, statusCode := "healthy", http.StatusOK
	if !healthy {
		status, statusCode = "unhealthy", http.StatusServiceUnavailable
	}

	writeJSON(w, r.Context(), statusCode, HealthResponse{
		Status:    status,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
