package allocation

import (
	"context"
	"sort"
	"sync"

	"github.com/onnwee/civitas/internal/civilian"
)

// InMemoryStore implements Store on top of a civilian repository's
// compare-and-set.
type InMemoryStore struct {
	civilians civilian.Repository

	mu       sync.RWMutex
	records  []*Allocation
	requests []*AuthorityRequest
}

// NewInMemoryStore creates an InMemoryStore.
func NewInMemoryStore(civilians civilian.Repository) *InMemoryStore {
	return &InMemoryStore{civilians: civilians}
}

// Allocate implements Store.
func (s *InMemoryStore) Allocate(ctx context.Context, a *Allocation) (*Allocation, error) {
	// Records change under the same lock as the transition.
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.civilians.TransitionStatus(ctx, a.UserID, civilian.StatusAvailable, civilian.StatusAllocated); err != nil {
		return nil, err
	}
	stored := *a
	s.records = append(s.records, &stored)
	out := stored
	return &out, nil
}

// ListActive implements Store.
func (s *InMemoryStore) ListActive(_ context.Context, limit int) ([]*Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Allocation, 0, len(s.records))
	for _, r := range s.records {
		if r.Status != StatusActive {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreateRequest implements Store.
func (s *InMemoryStore) CreateRequest(ctx context.Context, r *AuthorityRequest) (*AuthorityRequest, error) {
	if _, err := s.civilians.Get(ctx, r.UserID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *r
	s.requests = append(s.requests, &stored)
	out := stored
	return &out, nil
}

// ListRequests implements Store.
func (s *InMemoryStore) ListRequests(_ context.Context, authorityID string, limit int) ([]*AuthorityRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*AuthorityRequest, 0)
	for _, r := range s.requests {
		if r.AuthorityID != authorityID {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
