package ranking

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// CapabilityWeights weights the components of the capability score.
type CapabilityWeights struct {
	Education  float64 `json:"education"`   // education ordinal / 7 (default: 0.25)
	SkillCount float64 `json:"skill_count"` // min(skills, 10) / 10 (default: 0.25)
	MaxLevel   float64 `json:"max_level"`   // highest skill level / 5 (default: 0.15)
	MeanLevel  float64 `json:"mean_level"`  // mean level over the fixed skill ids / 5 (default: 0.15)
	Tags       float64 `json:"tags"`        // min(tags, 5) / 5 (default: 0.20)
}

// Sum returns the total of all capability weights.
func (w CapabilityWeights) Sum() float64 {
	return w.Education + w.SkillCount + w.MaxLevel + w.MeanLevel + w.Tags
}

// CombinedWeights is used by the combined sort when no skills or tags were requested.
type CombinedWeights struct {
	Proximity  float64 `json:"proximity"`  // default: 0.5
	Capability float64 `json:"capability"` // default: 0.5
}

// RelevanceWeights is used by the combined sort when skills or tags were requested.
type RelevanceWeights struct {
	Proximity  float64 `json:"proximity"`  // default: 0.4
	Capability float64 `json:"capability"` // default: 0.4
	Relevance  float64 `json:"relevance"`  // default: 0.2
}

// Weights holds all ranking weight configurations.
type Weights struct {
	Capability    CapabilityWeights `json:"capability"`
	Combined      CombinedWeights   `json:"combined"`
	WithRelevance RelevanceWeights  `json:"with_relevance"`
}

// CalibrationConfig is the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string  `json:"version"`
	Weights Weights `json:"weights"`
}

// DefaultWeights returns the documented default weights.
//
// Capability: education 0.25, skill count 0.25, max level 0.15, mean level 0.15, tags 0.20.
// Every component is non-decreasing in its input, so the capability score is
// monotonic in skills, levels and education.
//
// Combined: proximity 0.5, capability 0.5; with relevance 0.4 / 0.4 / 0.2.
func DefaultWeights() *Weights {
	return &Weights{
		Capability: CapabilityWeights{
			Education:  0.25,
			SkillCount: 0.25,
			MaxLevel:   0.15,
			MeanLevel:  0.15,
			Tags:       0.20,
		},
		Combined: CombinedWeights{
			Proximity:  0.5,
			Capability: 0.5,
		},
		WithRelevance: RelevanceWeights{
			Proximity:  0.4,
			Capability: 0.4,
			Relevance:  0.2,
		},
	}
}

// Validate rejects negative weights and weight groups that sum to zero.
func (w *Weights) Validate() error {
	var errs []error
	check := func(name string, v float64) {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %.3f", name, v))
		}
	}
	check("capability.education", w.Capability.Education)
	check("capability.skill_count", w.Capability.SkillCount)
	check("capability.max_level", w.Capability.MaxLevel)
	check("capability.mean_level", w.Capability.MeanLevel)
	check("capability.tags", w.Capability.Tags)
	check("combined.proximity", w.Combined.Proximity)
	check("combined.capability", w.Combined.Capability)
	check("with_relevance.proximity", w.WithRelevance.Proximity)
	check("with_relevance.capability", w.WithRelevance.Capability)
	check("with_relevance.relevance", w.WithRelevance.Relevance)

	if w.Capability.Sum() <= 0 {
		errs = append(errs, errors.New("capability weights must sum to a positive value"))
	}
	if w.Combined.Proximity+w.Combined.Capability <= 0 {
		errs = append(errs, errors.New("combined weights must sum to a positive value"))
	}
	if w.WithRelevance.Proximity+w.WithRelevance.Capability+w.WithRelevance.Relevance <= 0 {
		errs = append(errs, errors.New("with_relevance weights must sum to a positive value"))
	}
	return errors.Join(errs...)
}

// LoadCalibration loads weights from a JSON calibration file.
// An empty path returns the defaults. On any read, parse or validation error
// the defaults are returned together with the error, so callers can log and
// continue. Partial files are merged over the defaults.
func LoadCalibration(filePath string) (*Weights, error) {
	if filePath == "" {
		return DefaultWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults", "path", filePath, "error", err)
		return DefaultWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults", "path", filePath, "error", err)
		return DefaultWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	defaults := DefaultWeights()
	merged := MergeCalibration(defaults, &config.Weights)
	if err := merged.Validate(); err != nil {
		slog.Warn("invalid calibration file, using defaults", "path", filePath, "error", err)
		return DefaultWeights(), fmt.Errorf("invalid calibration file: %w", err)
	}
	logCalibrationOverrides(defaults, merged)

	return merged, nil
}

// MergeCalibration applies the non-zero values of override on top of base.
// A zero in the override means "keep the base value".
func MergeCalibration(base *Weights, override *Weights) *Weights {
	if base == nil {
		return DefaultWeights()
	}
	result := *base
	if override == nil {
		return &result
	}

	mergeField(&result.Capability.Education, override.Capability.Education)
	mergeField(&result.Capability.SkillCount, override.Capability.SkillCount)
	mergeField(&result.Capability.MaxLevel, override.Capability.MaxLevel)
	mergeField(&result.Capability.MeanLevel, override.Capability.MeanLevel)
	mergeField(&result.Capability.Tags, override.Capability.Tags)

	mergeField(&result.Combined.Proximity, override.Combined.Proximity)
	mergeField(&result.Combined.Capability, override.Combined.Capability)

	mergeField(&result.WithRelevance.Proximity, override.WithRelevance.Proximity)
	mergeField(&result.WithRelevance.Capability, override.WithRelevance.Capability)
	mergeField(&result.WithRelevance.Relevance, override.WithRelevance.Relevance)

	return &result
}

func mergeField(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

// logCalibrationOverrides logs which weights differ from the defaults.
func logCalibrationOverrides(defaults, loaded *Weights) {
	var overrides []string
	diff := func(name string, before, after float64) {
		if before != after {
			overrides = append(overrides, fmt.Sprintf("%s: %.2f -> %.2f", name, before, after))
		}
	}

	diff("capability.education", defaults.Capability.Education, loaded.Capability.Education)
	diff("capability.skill_count", defaults.Capability.SkillCount, loaded.Capability.SkillCount)
	diff("capability.max_level", defaults.Capability.MaxLevel, loaded.Capability.MaxLevel)
	diff("capability.mean_level", defaults.Capability.MeanLevel, loaded.Capability.MeanLevel)
	diff("capability.tags", defaults.Capability.Tags, loaded.Capability.Tags)
	diff("combined.proximity", defaults.Combined.Proximity, loaded.Combined.Proximity)
	diff("combined.capability", defaults.Combined.Capability, loaded.Combined.Capability)
	diff("with_relevance.proximity", defaults.WithRelevance.Proximity, loaded.WithRelevance.Proximity)
	diff("with_relevance.capability", defaults.WithRelevance.Capability, loaded.WithRelevance.Capability)
	diff("with_relevance.relevance", defaults.WithRelevance.Relevance, loaded.WithRelevance.Relevance)

	if len(overrides) > 0 {
		slog.Info("loaded ranking calibration with overrides", "overrides", overrides)
	} else {
		slog.Info("loaded ranking calibration (using all defaults)")
	}
}
