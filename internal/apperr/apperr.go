// Package apperr defines the error taxonomy shared by the search engine,
// the profile and allocation services, and the HTTP boundary.
//
// Layers wrap these sentinels with context using fmt.Errorf("...: %w", err)
// and the boundary classifies them with errors.Is. Wrapped messages are
// logged but never sent to callers; callers receive the stable code and the
// public message returned by Message.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors. Compare with errors.Is.
var (
	// ErrInvalidQuery indicates bad, user-correctable search or request parameters.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrInvalidLocation indicates that no concrete center could be resolved.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrNotFound indicates an unknown user id or resource.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a state conflict, e.g. allocating a civilian that is not available.
	ErrConflict = errors.New("conflict")

	// ErrUpstreamUnavailable indicates a geocoding or network failure the caller may retry.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrInternal indicates an unexpected failure.
	ErrInternal = errors.New("internal error")

	// ErrBadRequest indicates a malformed or invalid request body outside search.
	ErrBadRequest = errors.New("bad request")

	// ErrUnauthorized indicates a missing or invalid requester identity.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the requester's role may not perform the operation.
	ErrForbidden = errors.New("forbidden")
)

// Stable response codes for each kind.
const (
	CodeInvalidQuery        = "invalid_query"
	CodeInvalidLocation     = "invalid_location"
	CodeNotFound            = "not_found"
	CodeConflict            = "conflict"
	CodeUpstreamUnavailable = "upstream_unavailable"
	CodeInternal            = "internal_error"
	CodeBadRequest          = "bad_request"
	CodeAuthFailed          = "auth_failed"
	CodeForbidden           = "forbidden"
	CodeRateLimited         = "rate_limited"
)

// publicError carries a message that is safe to show to callers.
type publicError struct {
	kind error
	msg  string
}

func (e *publicError) Error() string { return e.msg }
func (e *publicError) Unwrap() error { return e.kind }

// New returns an error of the given kind whose message is shown to callers as-is.
func New(kind error, msg string) error {
	return &publicError{kind: kind, msg: msg}
}

// Newf is New with formatting.
func Newf(kind error, format string, args ...any) error {
	return &publicError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// InvalidQuery is shorthand for New(ErrInvalidQuery, msg).
func InvalidQuery(format string, args ...any) error {
	return Newf(ErrInvalidQuery, format, args...)
}

// InvalidLocation is shorthand for New(ErrInvalidLocation, msg).
func InvalidLocation(format string, args ...any) error {
	return Newf(ErrInvalidLocation, format, args...)
}

// BadRequest is shorthand for New(ErrBadRequest, msg).
func BadRequest(format string, args ...any) error {
	return Newf(ErrBadRequest, format, args...)
}

// Code returns the stable response code for err.
// Unclassified errors map to CodeInternal.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidQuery):
		return CodeInvalidQuery
	case errors.Is(err, ErrInvalidLocation):
		return CodeInvalidLocation
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrUpstreamUnavailable):
		return CodeUpstreamUnavailable
	case errors.Is(err, ErrBadRequest):
		return CodeBadRequest
	case errors.Is(err, ErrUnauthorized):
		return CodeAuthFailed
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	default:
		return CodeInternal
	}
}

// Status returns the HTTP status code for err.
func Status(err error) int {
	switch Code(err) {
	case CodeInvalidQuery, CodeInvalidLocation, CodeBadRequest:
		return http.StatusBadRequest
	case CodeAuthFailed:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUpstreamUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the caller-facing message for err. Messages created with
// New are passed through; everything else gets a generic message so that
// internal details never leak.
func Message(err error) string {
	var pe *publicError
	if errors.As(err, &pe) && Code(err) != CodeInternal {
		return pe.msg
	}
	switch Code(err) {
	case CodeInvalidQuery:
		return "Invalid query parameters"
	case CodeInvalidLocation:
		return "Location could not be resolved"
	case CodeNotFound:
		return "Resource not found"
	case CodeConflict:
		return "Request conflicts with current state"
	case CodeUpstreamUnavailable:
		return "Upstream service unavailable, please retry"
	case CodeBadRequest:
		return "Invalid request"
	case CodeAuthFailed:
		return "Authentication required"
	case CodeForbidden:
		return "Not allowed for this role"
	default:
		return "An internal error occurred"
	}
}
