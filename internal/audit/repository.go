package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines audit trail storage.
type Repository interface {
	// Append stores a new entry chained to the previous one.
	Append(ctx context.Context, entry LogEntry) (*Entry, error)

	// QueryByEntity returns entries for an entity, newest first.
	// Limit 0 means no limit.
	QueryByEntity(ctx context.Context, entityType, entityID string, limit int) ([]*Entry, error)

	// QueryByActor returns entries recorded for an actor, newest first.
	// Limit 0 means no limit.
	QueryByActor(ctx context.Context, actorID string, limit int) ([]*Entry, error)

	// GetLastHash returns the hash of the newest entry, or "" when empty.
	GetLastHash(ctx context.Context) (string, error)

	// VerifyHashChain returns ErrChainBroken if any entry was altered or removed.
	VerifyHashChain(ctx context.Context) error
}

// InMemoryRepository is an in-memory Repository for tests and development.
type InMemoryRepository struct {
	mu      sync.RWMutex
	entries []*Entry
	now     func() time.Time
}

// NewInMemoryRepository creates a new in-memory audit repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{now: time.Now}
}

// Append stores a new entry.
func (r *InMemoryRepository) Append(_ context.Context, entry LogEntry) (*Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := &Entry{
		ID:         uuid.New().String(),
		ActorID:    entry.ActorID,
		ActorRole:  entry.ActorRole,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Action:     entry.Action,
		Outcome:    entry.Outcome,
		CreatedAt:  r.now().UTC(),
		RequestID:  entry.RequestID,
		IPAddress:  entry.IPAddress,
		UserAgent:  entry.UserAgent,
	}
	if n := len(r.entries); n > 0 {
		e.PreviousHash = r.entries[n-1].Hash()
	}
	r.entries = append(r.entries, e)

	cp := *e
	return &cp, nil
}

// QueryByEntity returns entries for an entity, newest first.
func (r *InMemoryRepository) QueryByEntity(_ context.Context, entityType, entityID string, limit int) ([]*Entry, error) {
	return r.query(func(e *Entry) bool {
		return e.EntityType == entityType && e.EntityID == entityID
	}, limit), nil
}

// QueryByActor returns entries for an actor, newest first.
func (r *InMemoryRepository) QueryByActor(_ context.Context, actorID string, limit int) ([]*Entry, error) {
	return r.query(func(e *Entry) bool { return e.ActorID == actorID }, limit), nil
}

func (r *InMemoryRepository) query(match func(*Entry) bool, limit int) []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []*Entry
	for i := len(r.entries) - 1; i >= 0; i-- {
		if !match(r.entries[i]) {
			continue
		}
		cp := *r.entries[i]
		results = append(results, &cp)
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results
}

// GetLastHash returns the hash of the newest entry.
func (r *InMemoryRepository) GetLastHash(_ context.Context) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.entries) == 0 {
		return "", nil
	}
	return r.entries[len(r.entries)-1].Hash(), nil
}

// VerifyHashChain checks the whole trail.
func (r *InMemoryRepository) VerifyHashChain(_ context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return verifyChain(r.entries)
}
