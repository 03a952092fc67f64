package search

import (
	"math"

	"github.com/onnwee/civitas/internal/ranking"
)

// Scored is a candidate with its score components.
type Scored struct {
	Candidate
	Proximity float64
	Relevance float64
	Combined  float64
}

// Score computes the proximity, relevance and combined score of every
// candidate. A nil weights pointer uses ranking.DefaultWeights.
func Score(q Query, candidates []Candidate, weights *ranking.Weights) []Scored {
	out := make([]Scored, len(candidates))
	for i, c := range candidates {
		s := Scored{
			Candidate: c,
			Proximity: ranking.ProximityWeight(c.DistanceKm, q.RadiusKm),
			Relevance: Relevance(q, c),
		}
		s.Combined = round2(ranking.CombinedScore(ranking.CombinedParams{
			Proximity:    s.Proximity,
			Capability:   float64(c.Profile.CapabilityScore) / 100,
			Relevance:    s.Relevance,
			HasRelevance: q.HasRelevance(),
		}, weights))
		out[i] = s
	}
	return out
}

// Relevance is the share of requested skills and include tags the candidate
// has, in [0, 1]. It is 0 when the query requests neither.
func Relevance(q Query, c Candidate) float64 {
	matched := len(MatchedSkills(q.Skills, c))
	for _, tag := range q.IncludeTags {
		if c.Profile.HasTag(tag) {
			matched++
		}
	}
	return ranking.RelevanceWeight(matched, len(q.Skills)+len(q.IncludeTags))
}

// MatchedSkills returns the requested skills the candidate lists, in request
// order.
func MatchedSkills(skills []string, c Candidate) []string {
	var out []string
	for _, s := range skills {
		if c.Profile.HasSkill(s) {
			out = append(out, s)
		}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
