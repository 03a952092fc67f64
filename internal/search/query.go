package search

import (
	"math"

	"github.com/onnwee/civitas/internal/capability"
	"github.com/onnwee/civitas/internal/civilian"
	"github.com/onnwee/civitas/internal/geo"
)

// SortMode selects the result ordering.
type SortMode string

// Sort modes.
const (
	SortDistance   SortMode = "distance"
	SortCapability SortMode = "capability"
	SortCombined   SortMode = "combined"
)

// Valid reports whether m is a known sort mode.
func (m SortMode) Valid() bool {
	switch m {
	case SortDistance, SortCapability, SortCombined:
		return true
	}
	return false
}

// Radius bounds in kilometres, inclusive.
const (
	MinRadiusKm = 5
	MaxRadiusKm = 300
)

// Center sources reported alongside the resolved center.
const (
	SourceDevice   = "device"
	SourceGeocoder = "geocoder"
	SourceMap      = "map"
)

// Query is a normalised search: a concrete center plus validated filters.
// Skills and tags are lowercased and deduplicated.
type Query struct {
	Center       geo.Point
	CenterSource string
	PlaceName    string

	RadiusKm           float64
	Statuses           []civilian.Status
	Availability       []civilian.Availability
	Skills             []string
	MinLevels          capability.Levels
	IncludeTags        []string
	ExcludeTags        []string
	MinCapabilityScore int

	Sort  SortMode
	Page  int
	Limit int
}

// Offset is the number of ranked results before the requested page. It
// saturates at math.MaxInt, which pages past any result set.
func (q Query) Offset() int {
	if q.Page <= 1 || q.Limit <= 0 {
		return 0
	}
	if q.Page-1 > math.MaxInt/q.Limit {
		return math.MaxInt
	}
	return (q.Page - 1) * q.Limit
}

// HasRelevance reports whether the query asks for skills or tags, which
// switches the combined score to its relevance-weighted form.
func (q Query) HasRelevance() bool {
	return len(q.Skills) > 0 || len(q.IncludeTags) > 0
}

// allowsAvailability reports whether a is requested. An empty list
// accepts every bucket.
func (q Query) allowsAvailability(a civilian.Availability) bool {
	if len(q.Availability) == 0 {
		return true
	}
	for _, want := range q.Availability {
		if want == a {
			return true
		}
	}
	return false
}

func (q Query) allowsStatus(s civilian.Status) bool {
	for _, want := range q.Statuses {
		if want == s {
			return true
		}
	}
	return false
}
