// Package skills is the registry of skill names civilians can claim.
// Canonical skills are seeded; names nobody has used before are registered
// on first use as non-canonical.
package skills

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/onnwee/civitas/internal/apperr"
	"github.com/onnwee/civitas/internal/validate"
)

// Suggest limits.
const (
	DefaultSuggestLimit = 10
	MaxSuggestLimit     = 50
)

// Skill is a registry entry.
type Skill struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Canonical bool   `json:"canonical"`
}

// Registry looks up and registers skills.
type Registry interface {
	// Suggest returns up to limit skills for q. An empty q returns canonical
	// skills alphabetically; otherwise prefix matches come first, then
	// substring matches, each alphabetical. Matching is case-insensitive.
	Suggest(ctx context.Context, q string, limit int) ([]Skill, error)

	// Ensure returns the existing skill whose name equals name
	// case-insensitively, or registers a new non-canonical skill. The bool
	// reports whether a new skill was created.
	Ensure(ctx context.Context, name string) (Skill, bool, error)
}

// Normalize trims, collapses whitespace and title-cases name.
// It returns an InvalidQuery error for empty or oversized names.
func Normalize(name string) (string, error) {
	cleaned, err := validate.SkillName(name)
	if err != nil {
		return "", apperr.Newf(apperr.ErrInvalidQuery, "invalid skill name: %v", err)
	}
	return titleCase(cleaned), nil
}

// titleCase upper-cases every letter that follows a non-letter and
// lower-cases the rest, so "3d printing" becomes "3D Printing".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}

// seedName cleans a canonical name without changing its casing, so
// acronyms such as "GIS" survive.
func seedName(name string) (string, error) {
	return validate.SkillName(name)
}

// ClampLimit returns limit bounded to [1, MaxSuggestLimit], defaulting when <= 0.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultSuggestLimit
	}
	if limit > MaxSuggestLimit {
		return MaxSuggestLimit
	}
	return limit
}

// ValidateLimit rejects limits outside [1, MaxSuggestLimit].
func ValidateLimit(limit int) error {
	if limit < 1 || limit > MaxSuggestLimit {
		return apperr.Newf(apperr.ErrInvalidQuery, "limit must be between 1 and %d", MaxSuggestLimit)
	}
	return nil
}

// RegisterAll ensures every name in names exists and returns the stored names
// in input order with duplicates removed.
func RegisterAll(ctx context.Context, r Registry, names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		skill, _, err := r.Ensure(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("register skill %q: %w", n, err)
		}
		key := strings.ToLower(skill.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, skill.Name)
	}
	return out, nil
}
