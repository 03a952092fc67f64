package idempotency

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository implements Repository with in-memory storage.
type InMemoryRepository struct {
	mu   sync.RWMutex
	keys map[string]*Record
	now  func() time.Time
}

// NewInMemoryRepository creates a new in-memory idempotency repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		keys: make(map[string]*Record),
		now:  time.Now,
	}
}

// Get returns a copy of the record for key.
func (r *InMemoryRepository) Get(_ context.Context, key string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.keys[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	cp := *rec
	return &cp, nil
}

// Reserve stores a processing record for key.
func (r *InMemoryRepository) Reserve(_ context.Context, key, scope, subject string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.keys[key]; exists {
		return ErrKeyExists
	}
	r.keys[key] = &Record{
		Key:       key,
		Scope:     scope,
		Subject:   subject,
		CreatedAt: r.now(),
		Status:    StatusProcessing,
	}
	return nil
}

// Complete stores the response for a reserved key.
func (r *InMemoryRepository) Complete(_ context.Context, key string, statusCode int, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.keys[key]
	if !ok {
		return ErrKeyNotFound
	}
	rec.Status = StatusCompleted
	rec.ResponseStatusCode = statusCode
	rec.ResponseBody = body
	rec.ResponseHash = ComputeResponseHash(body)
	return nil
}

// Release removes a key that is still processing. Completed keys are kept.
func (r *InMemoryRepository) Release(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.keys[key]; ok && rec.Status == StatusProcessing {
		delete(r.keys, key)
	}
	return nil
}

// DeleteOlderThan removes records created before now-age.
func (r *InMemoryRepository) DeleteOlderThan(_ context.Context, age time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-age)
	var deleted int64
	for key, rec := range r.keys {
		if rec.CreatedAt.Before(cutoff) {
			delete(r.keys, key)
			deleted++
		}
	}
	return deleted, nil
}
