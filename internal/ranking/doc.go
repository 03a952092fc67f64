// Package ranking holds the documented weight constants used to score and
// rank civilians, with optional deploy-time calibration from JSON.
//
// Basic usage:
//
//	// Load calibration once at startup.
//	weights, err := ranking.LoadCalibration("configs/ranking.calibration.json")
//	if err != nil {
//		logger.Warn("using default ranking weights", "error", err)
//	}
//
//	// Combine proximity and capability for one candidate.
//	score := ranking.CombinedScore(ranking.CombinedParams{
//		Proximity:  ranking.ProximityWeight(distanceKm, radiusKm),
//		Capability: float64(profile.CapabilityScore) / 100,
//	}, weights)
//
// All component functions return values in [0, 1]; CombinedScore scales the
// result to [0, 100] so it is comparable with the capability score.
//
// Calibration:
//
// Weights are constants unless a calibration file overrides them. The file is
// read once at startup, so a change requires a restart. Identical inputs always
// produce identical scores; nothing here reads the clock or a random source.
package ranking
