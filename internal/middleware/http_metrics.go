package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// staticRoutes are the routes served without path parameters.
var staticRoutes = map[string]bool{
	"/api/search":          true,
	"/api/allocate":        true,
	"/api/allocations":     true,
	"/api/requests":        true,
	"/api/civilian/submit": true,
	"/api/civilian/me":     true,
	"/api/civilian/tags":   true,
	"/api/skills":          true,
	"/api/skills/suggest":  true,
	"/api/geocode":         true,
	"/api/geocode/reverse": true,
	"/api/stats/summary":   true,
	"/api/stats/heatmap":   true,
	"/health":              true,
	"/ready":               true,
	"/metrics":             true,
}

// unmatchedRoute labels every path the router does not serve.
const unmatchedRoute = "unmatched"

// normalizePath converts paths with dynamic segments to route patterns to prevent
// cardinality explosion in metrics and span names. This maps /api/civilians/u-123
// to /api/civilians/{id}; unknown paths collapse into a single label.
func normalizePath(path string) string {
	if staticRoutes[path] {
		return path
	}

	if rest, ok := strings.CutPrefix(path, "/api/civilians/"); ok {
		if rest != "" && !strings.Contains(rest, "/") {
			return "/api/civilians/{id}"
		}
	}

	return unmatchedRoute
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

// WriteHeader captures the status code before writing it.
func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and writes the data.
func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// Unwrap returns the underlying writer.
func (mrw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return mrw.ResponseWriter
}

// newMetricsResponseWriter creates a new metricsResponseWriter with default 200 status.
func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// HTTPMetrics is a middleware that records HTTP request metrics.
// It captures duration, request/response sizes, and request counts.
// Health check endpoints (/health, /ready) are excluded from metrics to avoid cardinality issues.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Exclude health check endpoints from metrics
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()

			// Wrap response writer to capture status and size
			mrw := newMetricsResponseWriter(w)

			// Get request size from Content-Length header
			requestSize := int64(0)
			if contentLength := r.Header.Get("Content-Length"); contentLength != "" {
				if size, err := strconv.ParseInt(contentLength, 10, 64); err == nil {
					requestSize = size
				}
			}

			// Call the next handler
			next.ServeHTTP(mrw, r)

			// Calculate duration in seconds
			duration := time.Since(start).Seconds()

			// Normalize path to prevent cardinality explosion
			normalizedPath := normalizePath(r.URL.Path)

			// Record metrics
			metrics.ObserveHTTPRequest(
				r.Method,
				normalizedPath,
				strconv.Itoa(mrw.statusCode),
				duration,
				requestSize,
				mrw.size,
			)
		})
	}
}
