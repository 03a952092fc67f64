// Package api provides the HTTP handlers and router for the Civitas API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/onnwee/civitas/internal/apperr"
	"github.com/onnwee/civitas/internal/auth"
	"github.com/onnwee/civitas/internal/middleware"
)

// Error codes used by the handlers. Domain errors carry their code through
// apperr.Code; these cover the HTTP layer itself.
const (
	ErrCodeInvalidQuery        = apperr.CodeInvalidQuery
	ErrCodeInvalidLocation     = apperr.CodeInvalidLocation
	ErrCodeAuthFailed          = apperr.CodeAuthFailed
	ErrCodeNotFound            = apperr.CodeNotFound
	ErrCodeRateLimited         = apperr.CodeRateLimited
	ErrCodeInternal            = apperr.CodeInternal
	ErrCodeForbidden           = apperr.CodeForbidden
	ErrCodeConflict            = apperr.CodeConflict
	ErrCodeBadRequest          = apperr.CodeBadRequest
	ErrCodeUpstreamUnavailable = apperr.CodeUpstreamUnavailable
	ErrCodeMethodNotAllowed    = "method_not_allowed"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse represents the standard error response format.
// All API errors return JSON in this structure: {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a standardized JSON error response.
//
// Format: {"error": {"code": "error_code", "message": "Error description"}}
//
// The error code is handed to the logging middleware through ctx, so callers
// pass a context produced by middleware.SetErrorCode.
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	middleware.UpdateResponseContext(w, ctx)

	data, err := json.Marshal(ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// WriteAppError classifies err with apperr and writes the matching response.
// Internal errors are logged with their full chain and answered with a
// generic message.
func WriteAppError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.Code(err)
	status := apperr.Status(err)
	ctx := middleware.SetErrorCode(r.Context(), code)

	if status >= http.StatusInternalServerError {
		slog.ErrorContext(ctx, "request failed", "path", r.URL.Path, "error", err)
	}
	WriteError(w, ctx, status, code, apperr.Message(err))
}

// allowMethod writes a 405 and returns false unless r uses method.
func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	ctx := middleware.SetErrorCode(r.Context(), ErrCodeMethodNotAllowed)
	WriteError(w, ctx, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed")
	return false
}

// requireRequester returns the authenticated requester, or writes a 401 and
// returns false for anonymous requests. Role checks stay in the services.
func requireRequester(w http.ResponseWriter, r *http.Request) (auth.Requester, bool) {
	requester := middleware.GetRequester(r.Context())
	if requester.Anonymous() {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return auth.Requester{}, false
	}
	return requester, true
}

// decodeJSON decodes a single JSON object from the request body.
// Malformed bodies are reported as bad_request.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return apperr.BadRequest("request body is required")
		case errors.As(err, &syntaxErr):
			return apperr.BadRequest("malformed JSON at offset %d", syntaxErr.Offset)
		case errors.As(err, &typeErr):
			return apperr.BadRequest("field %q has the wrong type", typeErr.Field)
		default:
			return apperr.BadRequest("invalid request body")
		}
	}
	if dec.More() {
		return apperr.BadRequest("request body must contain a single JSON object")
	}
	return nil
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, ctx context.Context, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
		c := middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, c, http.StatusInternalServerError, ErrCodeInternal, "An internal error occurred")
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write response", "error", err)
	}
}

// queryInt parses an optional integer query parameter. Missing values return def.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.InvalidQuery("%s must be an integer", name)
	}
	return v, nil
}

var errNotFound = apperr.New(apperr.ErrNotFound, "Resource not found")
