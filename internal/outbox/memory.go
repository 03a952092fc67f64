package outbox

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStore implements Store in process memory.
type InMemoryStore struct {
	mu    sync.Mutex
	items map[string]*Item
	now   func() time.Time
}

// NewInMemoryStore creates an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{items: make(map[string]*Item), now: time.Now}
}

// Enqueue implements Store.
func (s *InMemoryStore) Enqueue(_ context.Context, it Item) (bool, error) {
	if err := it.Validate(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[it.ID]; ok {
		return false, nil
	}
	if it.EnqueuedAt.IsZero() {
		it.EnqueuedAt = s.now().UTC()
	}
	it.Payload = append([]byte(nil), it.Payload...)
	s.items[it.ID] = &it
	return true, nil
}

// Pending implements Store.
func (s *InMemoryStore) Pending(_ context.Context, limit int) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Item, 0, len(s.items))
	for _, it := range s.items {
		cp := *it
		cp.Payload = append([]byte(nil), it.Payload...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EnqueuedAt.Equal(out[j].EnqueuedAt) {
			return out[i].EnqueuedAt.Before(out[j].EnqueuedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RecordFailure implements Store.
func (s *InMemoryStore) RecordFailure(_ context.Context, id, reason string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[id]
	if !ok {
		return 0, ErrNotQueued
	}
	it.Attempts++
	it.LastError = reason
	return it.Attempts, nil
}

// Remove implements Store.
func (s *InMemoryStore) Remove(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

// Len implements Store.
func (s *InMemoryStore) Len(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items), nil
}
