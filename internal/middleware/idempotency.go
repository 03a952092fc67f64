package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/civitas/internal/idempotency"
)

// IdempotencyKeyHeader is the HTTP header name for idempotency keys.
const IdempotencyKeyHeader = "Idempotency-Key"

// IdempotentReplayHeader marks responses served from a stored outcome.
const IdempotentReplayHeader = "Idempotent-Replayed"

// idempotencyKeyContextKey is the context key for storing the idempotency key.
type idempotencyKeyContextKey struct{}

// idempotencyResponseWriter buffers the handler's response so the outcome
// can be stored before anything reaches the client.
type idempotencyResponseWriter struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
	written    bool
}

// newIdempotencyResponseWriter creates a new idempotency response writer.
func newIdempotencyResponseWriter(w http.ResponseWriter) *idempotencyResponseWriter {
	return &idempotencyResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
		body:           &bytes.Buffer{},
	}
}

// WriteHeader captures the status code.
func (w *idempotencyResponseWriter) WriteHeader(statusCode int) {
	if !w.written {
		w.statusCode = statusCode
		w.written = true
	}
}

// Write captures the response body.
func (w *idempotencyResponseWriter) Write(b []byte) (int, error) {
	w.written = true
	return w.body.Write(b)
}

// Unwrap returns the underlying writer.
func (w *idempotencyResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// SetIdempotencyKey stores the idempotency key in the context.
func SetIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyContextKey{}, key)
}

// GetIdempotencyKey retrieves the idempotency key from context. Returns empty string if not present.
func GetIdempotencyKey(ctx context.Context) string {
	if key, ok := ctx.Value(idempotencyKeyContextKey{}).(string); ok {
		return key
	}
	return ""
}

// IdempotencyMiddleware enforces idempotency for POST requests to the given
// routes. The route value says whether the Idempotency-Key header is
// required; optional routes without a key run normally.
//
// The first request with a key runs the handler and its 2xx outcome is
// stored. Replays by the same requester get the stored status and body with
// Idempotent-Replayed set. A key still in flight or reused by another
// requester or route is answered with 409 conflict.
func IdempotencyMiddleware(repo idempotency.Repository, routes map[string]bool, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			required, ok := routes[r.URL.Path]
			if !ok || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" {
				if required {
					writeError(w, r, http.StatusBadRequest, "missing_idempotency_key",
						"Idempotency-Key header is required for this request")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if err := idempotency.ValidateKey(key); err != nil {
				if errors.Is(err, idempotency.ErrKeyTooLong) {
					writeError(w, r, http.StatusBadRequest, "idempotency_key_too_long",
						"Idempotency-Key exceeds maximum length of 64 characters")
					return
				}
				writeError(w, r, http.StatusBadRequest, "invalid_idempotency_key", "Invalid Idempotency-Key format")
				return
			}

			ctx := SetIdempotencyKey(r.Context(), key)
			r = r.WithContext(ctx)
			scope := r.Method + " " + r.URL.Path
			subject := GetRequester(ctx).UserID

			outcome, err := idempotency.Guard(ctx, repo, key, scope, subject,
				func(ctx context.Context) (int, string, error) {
					capture := newIdempotencyResponseWriter(w)
					next.ServeHTTP(capture, r.WithContext(ctx))
					return capture.statusCode, capture.body.String(), nil
				})
			switch {
			case errors.Is(err, idempotency.ErrInFlight):
				writeError(w, r, http.StatusConflict, "conflict", "A request with this Idempotency-Key is still in progress")
				return
			case errors.Is(err, idempotency.ErrKeyReused):
				writeError(w, r, http.StatusConflict, "conflict", "Idempotency-Key was already used for a different request")
				return
			case err != nil:
				slog.ErrorContext(ctx, "idempotency check failed", "key", key, "error", err)
				writeError(w, r, http.StatusInternalServerError, "internal_error", "An internal error occurred")
				return
			}

			if outcome.Replayed {
				metrics.IncIdempotentReplay(normalizePath(r.URL.Path))
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.Header().Set(IdempotentReplayHeader, "true")
			}
			w.WriteHeader(outcome.StatusCode)
			_, _ = w.Write([]byte(outcome.Body))
		})
	}
}
