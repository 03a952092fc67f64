package idempotency

import (
	"context"
	"errors"
	"log/slog"
)

var (
	// ErrInFlight is returned when the first request for a key has not finished yet.
	ErrInFlight = errors.New("a request with this idempotency key is still in flight")

	// ErrKeyReused is returned when a key is replayed for a different operation or requester.
	ErrKeyReused = errors.New("idempotency key was used for a different request")
)

// Outcome is the response produced for a key, either fresh or replayed.
type Outcome struct {
	StatusCode int
	Body       string
	Replayed   bool
}

// Guard runs fn at most once per key.
//
// The first call reserves the key, runs fn and stores its outcome when the
// status is 2xx. Failures and non-2xx outcomes release the key so the caller
// may retry. Later calls with the same key, scope and subject get the stored
// outcome with Replayed set and fn is not run.
func Guard(ctx context.Context, repo Repository, key, scope, subject string,
	fn func(ctx context.Context) (int, string, error)) (Outcome, error) {

	if err := ValidateKey(key); err != nil {
		return Outcome{}, err
	}

	if err := repo.Reserve(ctx, key, scope, subject); err != nil {
		if !errors.Is(err, ErrKeyExists) {
			return Outcome{}, err
		}
		existing, getErr := repo.Get(ctx, key)
		if getErr != nil {
			return Outcome{}, getErr
		}
		if existing.Scope != scope || existing.Subject != subject {
			return Outcome{}, ErrKeyReused
		}
		if !existing.Completed() {
			return Outcome{}, ErrInFlight
		}
		slog.InfoContext(ctx, "idempotency key found, returning stored outcome",
			"key", key, "scope", scope, "status", existing.ResponseStatusCode)
		return Outcome{StatusCode: existing.ResponseStatusCode, Body: existing.ResponseBody, Replayed: true}, nil
	}

	status, body, err := fn(ctx)
	if err != nil || status < 200 || status >= 300 {
		if relErr := repo.Release(ctx, key); relErr != nil {
			slog.ErrorContext(ctx, "failed to release idempotency key", "key", key, "error", relErr)
		}
		return Outcome{StatusCode: status, Body: body}, err
	}

	if err := repo.Complete(ctx, key, status, body); err != nil {
		// The mutation already happened; report it and keep the key reserved
		// so a replay is refused instead of mutating twice.
		slog.ErrorContext(ctx, "failed to store idempotency outcome", "key", key, "error", err)
	}
	return Outcome{StatusCode: status, Body: body}, nil
}
