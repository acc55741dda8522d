// Package scorer computes occupancy and air-quality density scores for
// monitored areas and classifies them into planning tiers.
package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dsa-planner/internal/config"
)

// DefaultScorerConfig returns a config.ScorerConfig with the reference policy.
// Weights sum to 1.
func DefaultScorerConfig() config.ScorerConfig {
	return config.ScorerConfig{
		// Weights (sum = 1).
		OccupancyWeight:  0.65,
		AirQualityWeight: 0.35,

		// AQI normalization: (aqi - 50) / 80, saturating at 1.5 (AQI 170).
		AQIBaseline: 50,
		AQIScale:    80,
		AQINormMax:  1.5,

		// Clamps.
		OccupancyRatioMax: 2,
		ScoreMax:          2,

		// Tier thresholds.
		LowThreshold:  0.45,
		HighThreshold: 0.75,
	}
}

// Thresholds returns the tier boundaries held in c.
func Thresholds(c config.ScorerConfig) TierThresholds {
	return TierThresholds{Low: c.LowThreshold, High: c.HighThreshold}
}

// ValidateConfig checks that a ScorerConfig is internally consistent.
func ValidateConfig(c config.ScorerConfig) error {
	var errs []string

	// All weights must be non-negative.
	weights := map[string]float64{
		"occupancy_weight":   c.OccupancyWeight,
		"air_quality_weight": c.AirQualityWeight,
	}
	for name, w := range weights {
		if w < 0 || math.IsNaN(w) {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", name))
		}
	}
	if c.OccupancyWeight+c.AirQualityWeight <= 0 {
		errs = append(errs, "weight sum must be > 0")
	}

	if c.AQIScale <= 0 {
		errs = append(errs, "aqi_scale must be > 0")
	}
	if c.AQINormMax < 0 {
		errs = append(errs, "aqi_norm_max must be >= 0")
	}
	if c.OccupancyRatioMax <= 0 {
		errs = append(errs, "occupancy_ratio_max must be > 0")
	}
	if c.ScoreMax <= 0 {
		errs = append(errs, "score_max must be > 0")
	}

	// Thresholds.
	if c.LowThreshold < 0 {
		errs = append(errs, "low_threshold must be >= 0")
	}
	if c.LowThreshold >= c.HighThreshold {
		errs = append(errs, "low_threshold must be < high_threshold")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
