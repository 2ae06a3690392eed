package scoring

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// CalibrationConfig is the JSON structure of the weights calibration file.
// Partial configurations are merged over the defaults.
type CalibrationConfig struct {
	Version string        `json:"version"`
	Weights SignalWeights `json:"weights"`
}

// LoadCalibration loads signal weights from a JSON calibration file and
// merges them over the defaults, so operations can tune individual weights
// without redeploying. An empty path returns the defaults. On any read or
// parse failure the defaults are returned alongside the error so callers can
// degrade gracefully.
func LoadCalibration(filePath string) (SignalWeights, error) {
	defaults := DefaultWeights()
	if filePath == "" {
		return defaults, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read weights calibration file, using defaults",
			"path", filePath,
			"error", err)
		return defaults, fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse weights calibration file, using defaults",
			"path", filePath,
			"error", err)
		return defaults, fmt.Errorf("failed to parse calibration file: %w", err)
	}

	merged := MergeWeights(defaults, config.Weights)
	if !ValidateWeights(merged) {
		slog.Warn("calibrated weights do not sum to 1.0, using defaults",
			"path", filePath,
			"sum", merged.Sum())
		return defaults, fmt.Errorf("calibrated weights sum to %.3f, want 1.0", merged.Sum())
	}

	logCalibrationOverrides(defaults, merged)
	return merged, nil
}

// logCalibrationOverrides logs which weights were changed from the defaults.
func logCalibrationOverrides(defaults, loaded SignalWeights) {
	var overrides []string
	check := func(name string, from, to float64) {
		if from != to {
			overrides = append(overrides, fmt.Sprintf("%s: %.2f -> %.2f", name, from, to))
		}
	}
	check("temporal_fit", defaults.TemporalFit, loaded.TemporalFit)
	check("skills_alignment", defaults.SkillsAlignment, loaded.SkillsAlignment)
	check("sustainability", defaults.Sustainability, loaded.Sustainability)
	check("growth_trajectory", defaults.GrowthTrajectory, loaded.GrowthTrajectory)
	check("trust_reliability", defaults.TrustReliability, loaded.TrustReliability)
	check("network_affinity", defaults.NetworkAffinity, loaded.NetworkAffinity)

	if len(overrides) > 0 {
		slog.Info("loaded weights calibration with overrides", "overrides", overrides)
	} else {
		slog.Info("loaded weights calibration (using all defaults)")
	}
}
