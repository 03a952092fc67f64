package ranking

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// TestDefaultWeights verifies the documented default weights.
func TestDefaultWeights(t *testing.T) {
	w := DefaultWeights()

	if w.Capability.Education != 0.25 {
		t.Errorf("expected capability education 0.25, got %f", w.Capability.Education)
	}
	if w.Capability.SkillCount != 0.25 {
		t.Errorf("expected capability skill_count 0.25, got %f", w.Capability.SkillCount)
	}
	if w.Capability.MaxLevel != 0.15 || w.Capability.MeanLevel != 0.15 {
		t.Errorf("expected level weights 0.15/0.15, got %f/%f", w.Capability.MaxLevel, w.Capability.MeanLevel)
	}
	if w.Capability.Tags != 0.20 {
		t.Errorf("expected capability tags 0.20, got %f", w.Capability.Tags)
	}
	if math.Abs(w.Capability.Sum()-1.0) > 1e-9 {
		t.Errorf("expected capability weights to sum to 1, got %f", w.Capability.Sum())
	}

	if w.Combined.Proximity != 0.5 || w.Combined.Capability != 0.5 {
		t.Errorf("expected combined 0.5/0.5, got %+v", w.Combined)
	}
	if w.WithRelevance.Proximity != 0.4 || w.WithRelevance.Capability != 0.4 || w.WithRelevance.Relevance != 0.2 {
		t.Errorf("expected with_relevance 0.4/0.4/0.2, got %+v", w.WithRelevance)
	}

	if err := w.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

// TestLoadCalibration_DefaultFile loads the calibration file shipped in configs/.
func TestLoadCalibration_DefaultFile(t *testing.T) {
	configPath := filepath.Join("..", "..", "configs", "ranking.calibration.json")
	if _, err := os.Stat(configPath); err != nil {
		t.Skipf("default calibration file not present: %v", err)
	}

	weights, err := LoadCalibration(configPath)
	if err != nil {
		t.Fatalf("expected no error loading default calibration file, got: %v", err)
	}
	if *weights != *DefaultWeights() {
		t.Errorf("shipped calibration differs from defaults:\nloaded: %+v\ndefaults: %+v", weights, DefaultWeights())
	}
}

func TestLoadCalibration_EmptyPath(t *testing.T) {
	weights, err := LoadCalibration("")
	if err != nil {
		t.Errorf("expected no error with empty path, got: %v", err)
	}
	if *weights != *DefaultWeights() {
		t.Error("should return defaults when path is empty")
	}
}

func TestLoadCalibration_NonExistentFile(t *testing.T) {
	weights, err := LoadCalibration("/nonexistent/path/to/file.json")
	if err == nil {
		t.Error("expected error when file doesn't exist")
	}
	if *weights != *DefaultWeights() {
		t.Error("should return defaults when file doesn't exist")
	}
}

func TestLoadCalibration_CustomWeights(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "custom.json")

	custom := CalibrationConfig{
		Version: "2",
		Weights: Weights{
			Capability: CapabilityWeights{Education: 0.1, Tags: 0.4},
			Combined:   CombinedWeights{Proximity: 0.7, Capability: 0.3},
		},
	}
	data, err := json.MarshalIndent(custom, "", "  ")
	if err != nil {
		t.Fatalf("failed to marshal config: %v", err)
	}
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	weights, err := LoadCalibration(tmpFile)
	if err != nil {
		t.Fatalf("expected no error loading custom file, got: %v", err)
	}

	if weights.Capability.Education != 0.1 {
		t.Errorf("expected education 0.1, got %f", weights.Capability.Education)
	}
	if weights.Capability.Tags != 0.4 {
		t.Errorf("expected tags 0.4, got %f", weights.Capability.Tags)
	}
	// Fields left at zero keep their defaults.
	if weights.Capability.SkillCount != 0.25 {
		t.Errorf("expected skill_count default 0.25, got %f", weights.Capability.SkillCount)
	}
	if weights.Combined.Proximity != 0.7 {
		t.Errorf("expected combined proximity 0.7, got %f", weights.Combined.Proximity)
	}
	if weights.WithRelevance != DefaultWeights().WithRelevance {
		t.Errorf("expected default with_relevance, got %+v", weights.WithRelevance)
	}
}

func TestLoadCalibration_InvalidJSON(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "invalid.json")
	if err := os.WriteFile(tmpFile, []byte("{invalid json}"), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	weights, err := LoadCalibration(tmpFile)
	if err == nil {
		t.Error("expected error when JSON is invalid")
	}
	if *weights != *DefaultWeights() {
		t.Error("should return defaults when JSON is invalid")
	}
}

func TestLoadCalibration_NegativeWeightRejected(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "negative.json")
	body := `{"version":"1","weights":{"capability":{"education":-0.5}}}`
	if err := os.WriteFile(tmpFile, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	weights, err := LoadCalibration(tmpFile)
	if err == nil {
		t.Error("expected error for negative weight")
	}
	if *weights != *DefaultWeights() {
		t.Error("should return defaults when calibration is invalid")
	}
}

func TestMergeCalibration(t *testing.T) {
	t.Run("nil base returns defaults", func(t *testing.T) {
		got := MergeCalibration(nil, &Weights{})
		if *got != *DefaultWeights() {
			t.Errorf("expected defaults, got %+v", got)
		}
	})

	t.Run("nil override copies base", func(t *testing.T) {
		base := DefaultWeights()
		got := MergeCalibration(base, nil)
		if got == base {
			t.Error("expected a copy, got the same pointer")
		}
		if *got != *base {
			t.Errorf("expected copy of base, got %+v", got)
		}
	})

	t.Run("override does not mutate base", func(t *testing.T) {
		base := DefaultWeights()
		_ = MergeCalibration(base, &Weights{Combined: CombinedWeights{Proximity: 0.9}})
		if base.Combined.Proximity != 0.5 {
			t.Errorf("base mutated: %+v", base.Combined)
		}
	})
}
