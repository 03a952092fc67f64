package search

import (
	"github.com/onnwee/civitas/internal/civilian"
	"github.com/onnwee/civitas/internal/geo"
)

// Candidate is a profile that passed every filter, with its distance from
// the query center.
type Candidate struct {
	Profile    *civilian.Profile
	DistanceKm float64
}

// Filter returns the profiles matching q. Profiles failing
// civilian.Profile.Check are skipped and reported to onCorrupt, which may be
// nil; one bad record never fails the search.
func Filter(q Query, profiles []*civilian.Profile, onCorrupt func(*civilian.Profile, error)) []Candidate {
	out := make([]Candidate, 0, len(profiles))
	for _, p := range profiles {
		if p == nil {
			continue
		}
		if err := p.Check(); err != nil {
			if onCorrupt != nil {
				onCorrupt(p, err)
			}
			continue
		}
		if d, ok := q.match(p); ok {
			out = append(out, Candidate{Profile: p, DistanceKm: d})
		}
	}
	return out
}

// match applies every filter to a well-formed profile, cheapest first.
func (q Query) match(p *civilian.Profile) (float64, bool) {
	if !q.allowsStatus(p.Status) {
		return 0, false
	}
	if !q.allowsAvailability(p.Availability) {
		return 0, false
	}
	if p.Location == nil {
		return 0, false
	}
	if p.CapabilityScore < q.MinCapabilityScore {
		return 0, false
	}
	for id, min := range q.MinLevels {
		if p.SkillLevels.Get(id) < min {
			return 0, false
		}
	}
	for _, tag := range q.IncludeTags {
		if !p.HasTag(tag) {
			return 0, false
		}
	}
	for _, tag := range q.ExcludeTags {
		if p.HasTag(tag) {
			return 0, false
		}
	}
	d := geo.HaversineKm(q.Center, *p.Location)
	if d > q.RadiusKm {
		return 0, false
	}
	return d, true
}
