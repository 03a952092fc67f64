package capability

import (
	"math"
	"strings"

	"github.com/onnwee/civitas/internal/ranking"
)

// Saturation points for count-based components.
const (
	skillCountCap = 10
	tagCountCap   = 5
)

// Score computes the capability score in [0, 100] for a profile with the
// given derived tags:
//
//	round(100 * (wE*edu/7 + wS*min(skills,10)/10 + wM*max/5
//	             + wA*sum/(5*5) + wT*min(tags,5)/5) / sum(w))
//
// The mean level divides by the size of the fixed skill-id set rather than
// by the number of claimed skills, so claiming an additional low level never
// lowers the score. Levels outside [0,5] are clamped.
func Score(in Input, tags []string, w ranking.CapabilityWeights) int {
	total := w.Sum()
	if total <= 0 {
		return 0
	}

	edu := float64(in.Education.Rank()) / MaxEducationRank
	skills := math.Min(float64(distinctSkills(in.Skills)), skillCountCap) / skillCountCap

	maxLevel, sumLevel := 0, 0
	for _, id := range SkillIDs {
		l := clampLevel(in.SkillLevels.Get(id))
		sumLevel += l
		if l > maxLevel {
			maxLevel = l
		}
	}
	maxComp := float64(maxLevel) / MaxLevel
	meanComp := float64(sumLevel) / float64(MaxLevel*len(SkillIDs))
	tagComp := math.Min(float64(len(tags)), tagCountCap) / tagCountCap

	raw := w.Education*edu + w.SkillCount*skills + w.MaxLevel*maxComp + w.MeanLevel*meanComp + w.Tags*tagComp
	score := int(math.Round(100 * raw / total))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func distinctSkills(skills []string) int {
	seen := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		key := strings.ToLower(strings.Join(strings.Fields(s), " "))
		if key == "" {
			continue
		}
		seen[key] = struct{}{}
	}
	return len(seen)
}

func clampLevel(l int) int {
	if l < MinLevel {
		return MinLevel
	}
	if l > MaxLevel {
		return MaxLevel
	}
	return l
}

// Result is the derived part of a profile.
type Result struct {
	Tags  []string
	Score int
}

// Scorer bundles a Tagger with capability weights.
type Scorer struct {
	tagger  *Tagger
	weights ranking.CapabilityWeights
}

// NewScorer returns a Scorer. A nil weights pointer uses ranking.DefaultWeights.
func NewScorer(tagger *Tagger, weights *ranking.Weights) *Scorer {
	if weights == nil {
		weights = ranking.DefaultWeights()
	}
	return &Scorer{tagger: tagger, weights: weights.Capability}
}

// Evaluate derives tags and score for in.
func (s *Scorer) Evaluate(in Input) Result {
	tags := s.tagger.Tags(in)
	return Result{Tags: tags, Score: Score(in, tags, s.weights)}
}

// Tagger returns the underlying tagger.
func (s *Scorer) Tagger() *Tagger {
	return s.tagger
}
