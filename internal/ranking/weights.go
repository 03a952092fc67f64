package ranking

import "math"

// ProximityWeight converts a distance into a proximity score in [0, 1]:
// max(0, 1 - distance/radius). A candidate exactly on the radius scores 0.
// A non-positive radius yields 0.
func ProximityWeight(distanceKm, radiusKm float64) float64 {
	if radiusKm <= 0 {
		return 0
	}
	if distanceKm < 0 {
		distanceKm = 0
	}
	return clamp01(1 - distanceKm/radiusKm)
}

// CombinedParams holds the normalised components of a combined score.
type CombinedParams struct {
	Proximity    float64 // [0, 1]
	Capability   float64 // capability score / 100, [0, 1]
	Relevance    float64 // [0, 1], only used when HasRelevance is set
	HasRelevance bool    // whether the query asked for skills or tags
}

// CombinedScore blends proximity, capability and optional relevance into a
// score in [0, 100].
//
// Default formulas:
//
//	without relevance: 100 * (0.5*proximity + 0.5*capability)
//	with relevance:    100 * (0.4*proximity + 0.4*capability + 0.2*relevance)
//
// Weights are normalised by their sum so a calibration that does not sum to 1
// still yields a bounded score. A nil weights pointer uses DefaultWeights.
func CombinedScore(p CombinedParams, weights *Weights) float64 {
	if weights == nil {
		weights = DefaultWeights()
	}

	prox := clamp01(p.Proximity)
	capability := clamp01(p.Capability)

	var raw, sum float64
	if p.HasRelevance {
		w := weights.WithRelevance
		raw = w.Proximity*prox + w.Capability*capability + w.Relevance*clamp01(p.Relevance)
		sum = w.Proximity + w.Capability + w.Relevance
	} else {
		w := weights.Combined
		raw = w.Proximity*prox + w.Capability*capability
		sum = w.Proximity + w.Capability
	}
	if sum <= 0 {
		return 0
	}
	return 100 * raw / sum
}

// RelevanceWeight returns matched/requested in [0, 1], or 0 when nothing was requested.
func RelevanceWeight(matched, requested int) float64 {
	if requested <= 0 {
		return 0
	}
	return clamp01(float64(matched) / float64(requested))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
