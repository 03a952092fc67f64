package civilian

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/onnwee/civitas/internal/apperr"
	"github.com/onnwee/civitas/internal/capability"
)

// Repository stores civilian profiles.
//
// Implementations recompute Tags and CapabilityScore on every write and
// return deep copies, so callers never share state with the store.
type Repository interface {
	// Snapshot returns a point-in-time copy of every profile.
	Snapshot(ctx context.Context) ([]*Profile, error)

	// Get returns one profile or an apperr.ErrNotFound error.
	Get(ctx context.Context, userID string) (*Profile, error)

	// Upsert creates or replaces the owner-editable fields of a profile.
	// The status of an existing profile is kept; new profiles start available.
	Upsert(ctx context.Context, p *Profile) (*Profile, error)

	// TransitionStatus moves a profile from one status to another atomically.
	// It fails with apperr.ErrNotFound for unknown ids and apperr.ErrConflict
	// when the current status is not from.
	TransitionStatus(ctx context.Context, userID string, from, to Status) (*Profile, error)
}

// InMemoryRepository is a Repository for tests and development.
type InMemoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
	scorer   *capability.Scorer
	now      func() time.Time
}

// NewInMemoryRepository creates an empty repository deriving with scorer.
func NewInMemoryRepository(scorer *capability.Scorer) *InMemoryRepository {
	return &InMemoryRepository{
		profiles: make(map[string]*Profile),
		scorer:   scorer,
		now:      time.Now,
	}
}

// Snapshot returns copies of all profiles ordered by user id.
func (r *InMemoryRepository) Snapshot(_ context.Context) ([]*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// Get returns a copy of one profile.
func (r *InMemoryRepository) Get(_ context.Context, userID string) (*Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[userID]
	if !ok {
		return nil, apperr.Newf(apperr.ErrNotFound, "civilian %s not found", userID)
	}
	return p.Clone(), nil
}

// Upsert stores p with derived fields recomputed.
func (r *InMemoryRepository) Upsert(_ context.Context, p *Profile) (*Profile, error) {
	stored := p.Clone()
	stored.Derive(r.scorer)

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now().UTC()
	if existing, ok := r.profiles[stored.UserID]; ok {
		stored.Status = existing.Status
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.Status = StatusAvailable
		stored.CreatedAt = now
	}
	stored.LastUpdated = now
	r.profiles[stored.UserID] = stored
	return stored.Clone(), nil
}

// TransitionStatus performs a compare-and-set on the status.
func (r *InMemoryRepository) TransitionStatus(_ context.Context, userID string, from, to Status) (*Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[userID]
	if !ok {
		return nil, apperr.Newf(apperr.ErrNotFound, "civilian %s not found", userID)
	}
	if p.Status != from {
		return nil, apperr.Newf(apperr.ErrConflict, "civilian %s is %s, not %s", userID, p.Status, from)
	}
	p.Status = to
	p.LastUpdated = r.now().UTC()
	return p.Clone(), nil
}

// Put stores p verbatim, bypassing derivation. It exists for seeding fixtures
// and reproducing damaged rows in tests.
func (r *InMemoryRepository) Put(p *Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.UserID] = p.Clone()
}
