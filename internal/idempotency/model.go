// Package idempotency stores the outcome of mutating requests keyed by a
// client-supplied key, so that a replayed submission or allocation returns
// the first outcome instead of mutating twice.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// Status values for a stored key. They match the CHECK constraint on the
// idempotency_keys table.
const (
	// StatusProcessing marks a key whose first request is still in flight.
	StatusProcessing = "processing"
	// StatusCompleted marks a key with a stored, replayable response.
	StatusCompleted = "completed"
)

var (
	// ErrKeyNotFound is returned when an idempotency key is not found.
	ErrKeyNotFound = errors.New("idempotency key not found")

	// ErrKeyExists is returned when reserving a key that is already stored.
	ErrKeyExists = errors.New("idempotency key already exists")

	// ErrInvalidKey is returned when the key is empty.
	ErrInvalidKey = errors.New("invalid idempotency key")

	// ErrKeyTooLong is returned when the key exceeds MaxKeyLength.
	ErrKeyTooLong = errors.New("idempotency key exceeds maximum length of 64 characters")
)

// MaxKeyLength is the maximum allowed length for an idempotency key.
const MaxKeyLength = 64

// Record is a stored idempotency key with its cached outcome.
type Record struct {
	Key                string    `json:"key"`
	Scope              string    `json:"scope"`   // operation the key belongs to, e.g. "civilian.submit"
	Subject            string    `json:"subject"` // requester that owns the key
	CreatedAt          time.Time `json:"created_at"`
	Status             string    `json:"status"`
	ResponseHash       string    `json:"response_hash,omitempty"`
	ResponseBody       string    `json:"response_body,omitempty"`
	ResponseStatusCode int       `json:"response_status_code,omitempty"`
}

// Completed reports whether r holds a replayable response.
func (r *Record) Completed() bool {
	return r.Status == StatusCompleted
}

// ValidateKey checks that key is non-empty and at most MaxKeyLength bytes.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}

// ComputeResponseHash returns the hex SHA-256 of a response body.
func ComputeResponseHash(responseBody string) string {
	hash := sha256.Sum256([]byte(responseBody))
	return hex.EncodeToString(hash[:])
}

// Repository persists idempotency records.
//
// The protocol is Reserve, then Complete on success or Release on failure.
// Reserve is atomic: of two concurrent reservations of the same key exactly
// one succeeds and the other gets ErrKeyExists.
type Repository interface {
	// Get returns the record for key or ErrKeyNotFound.
	Get(ctx context.Context, key string) (*Record, error)

	// Reserve stores a processing record for key.
	Reserve(ctx context.Context, key, scope, subject string) error

	// Complete stores the final response for a reserved key.
	Complete(ctx context.Context, key string, statusCode int, body string) error

	// Release removes a reserved key so the request can be retried.
	Release(ctx context.Context, key string) error

	// DeleteOlderThan removes records older than age and returns how many were removed.
	DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error)
}
