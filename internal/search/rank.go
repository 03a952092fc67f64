package search

import "sort"

// Rank orders results in place for mode. Every mode falls back to distance
// ascending and then user id ascending, so the order is total.
func Rank(results []Scored, mode SortMode) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		switch mode {
		case SortCapability:
			if a.Profile.CapabilityScore != b.Profile.CapabilityScore {
				return a.Profile.CapabilityScore > b.Profile.CapabilityScore
			}
		case SortCombined:
			if a.Combined != b.Combined {
				return a.Combined > b.Combined
			}
		}
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		return a.Profile.UserID < b.Profile.UserID
	})
}

// Paginate returns the page of ranked results starting at offset. A page
// past the end is empty rather than an error.
func Paginate(results []Scored, offset, limit int) []Scored {
	if offset < 0 || offset >= len(results) || limit <= 0 {
		return []Scored{}
	}
	if limit > len(results)-offset {
		limit = len(results) - offset
	}
	return results[offset : offset+limit]
}
