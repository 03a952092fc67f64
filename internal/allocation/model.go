// Package allocation assigns available civilians to missions and records
// the information and allocation requests authorities send them. The status
// change and the allocation record are applied atomically, so concurrent
// attempts on one civilian have exactly one winner.
package allocation

import (
	"context"
	"time"
)

// StatusActive is the status of a live allocation.
const StatusActive = "active"

// Allocation assigns one civilian to a mission.
type Allocation struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	MissionCode string    `json:"mission_code"`
	AllocatedBy string    `json:"allocated_by"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store persists allocations.
type Store interface {
	// Allocate moves the civilian from available to allocated and records a.
	// It fails with apperr.ErrNotFound for unknown civilians and
	// apperr.ErrConflict when the civilian is not available; in both cases
	// nothing is written.
	Allocate(ctx context.Context, a *Allocation) (*Allocation, error)

	// ListActive returns active allocations, newest first. A non-positive
	// limit returns all of them.
	ListActive(ctx context.Context, limit int) ([]*Allocation, error)

	// CreateRequest stores r, failing with apperr.ErrNotFound when the
	// civilian does not exist.
	CreateRequest(ctx context.Context, r *AuthorityRequest) (*AuthorityRequest, error)

	// ListRequests returns the requests made by authorityID, newest first.
	ListRequests(ctx context.Context, authorityID string, limit int) ([]*AuthorityRequest, error)
}
