package skills

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// InMemoryRegistry implements Registry in memory. Used for tests and development.
type InMemoryRegistry struct {
	mu     sync.RWMutex
	byKey  map[string]Skill
	nextID int64
}

// NewInMemoryRegistry returns a registry seeded with the canonical names.
func NewInMemoryRegistry(canonical []string) *InMemoryRegistry {
	r := &InMemoryRegistry{byKey: make(map[string]Skill, len(canonical))}
	for _, name := range canonical {
		n, err := seedName(name)
		if err != nil {
			continue
		}
		key := strings.ToLower(n)
		if _, ok := r.byKey[key]; ok {
			continue
		}
		r.nextID++
		r.byKey[key] = Skill{ID: r.nextID, Name: n, Canonical: true}
	}
	return r
}

// Suggest implements Registry.
func (r *InMemoryRegistry) Suggest(_ context.Context, q string, limit int) ([]Skill, error) {
	limit = ClampLimit(limit)
	term := strings.ToLower(strings.TrimSpace(q))

	r.mu.RLock()
	var prefix, contains []Skill
	for key, s := range r.byKey {
		switch {
		case term == "":
			if s.Canonical {
				prefix = append(prefix, s)
			}
		case strings.HasPrefix(key, term):
			prefix = append(prefix, s)
		case strings.Contains(key, term):
			contains = append(contains, s)
		}
	}
	r.mu.RUnlock()

	byName := func(list []Skill) {
		sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	}
	byName(prefix)
	byName(contains)

	out := append(prefix, contains...)
	if len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []Skill{}
	}
	return out, nil
}

// Ensure implements Registry.
func (r *InMemoryRegistry) Ensure(_ context.Context, name string) (Skill, bool, error) {
	n, err := Normalize(name)
	if err != nil {
		return Skill{}, false, err
	}
	key := strings.ToLower(n)

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.byKey[key]; ok {
		return s, false, nil
	}
	r.nextID++
	s := Skill{ID: r.nextID, Name: n, Canonical: false}
	r.byKey[key] = s
	return s, true, nil
}
