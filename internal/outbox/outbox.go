// Package outbox queues mutations that could not reach the API and replays
// them later. Each item is keyed by its submission id, which doubles as the
// Idempotency-Key on delivery, so a replay after an unacknowledged success
// never applies the mutation twice.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/onnwee/civitas/internal/auth"
	"github.com/onnwee/civitas/internal/idempotency"
)

// MaxAttempts is the delivery budget of one item.
const MaxAttempts = 3

// Kind names the mutation an item replays.
type Kind string

// Item kinds.
const (
	KindSubmit   Kind = "submit"
	KindAllocate Kind = "allocate"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindSubmit || k == KindAllocate
}

// ErrInvalidItem is returned for items that can never be delivered.
var ErrInvalidItem = errors.New("invalid outbox item")

// Item is one pending mutation.
type Item struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	ActorID    string          `json:"actor_id"`
	ActorRole  auth.Role       `json:"actor_role"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	LastError  string          `json:"last_error,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Validate checks that it can be delivered.
func (it Item) Validate() error {
	if err := idempotency.ValidateKey(it.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	if !it.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidItem, it.Kind)
	}
	if it.ActorID == "" {
		return fmt.Errorf("%w: missing actor", ErrInvalidItem)
	}
	if _, err := auth.ParseRole(string(it.ActorRole)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	if !json.Valid(it.Payload) {
		return fmt.Errorf("%w: payload is not JSON", ErrInvalidItem)
	}
	return nil
}

// Requester returns the identity the item is delivered as.
func (it Item) Requester() auth.Requester {
	return auth.Requester{UserID: it.ActorID, Role: it.ActorRole}
}

// Store persists pending items.
type Store interface {
	// Enqueue adds it unless an item with the same id is queued, reporting
	// whether it was added.
	Enqueue(ctx context.Context, it Item) (bool, error)

	// Pending returns up to limit items, oldest first.
	Pending(ctx context.Context, limit int) ([]Item, error)

	// RecordFailure increments the attempt count of id and returns the new
	// count.
	RecordFailure(ctx context.Context, id, reason string) (int, error)

	// Remove deletes id. Removing an unknown id is not an error.
	Remove(ctx context.Context, id string) error

	// Len returns the number of queued items.
	Len(ctx context.Context) (int, error)
}

// ErrNotQueued is returned by RecordFailure for unknown ids.
var ErrNotQueued = errors.New("item is not queued")
