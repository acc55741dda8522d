package scorer

// Tier is the planning urgency band for a density score.
type Tier string

// Density tiers.
const (
	TierLow    Tier = "Low"
	TierMedium Tier = "Medium"
	TierHigh   Tier = "High"
)

// TierThresholds are the upper bounds (exclusive) of the Low and Medium tiers.
type TierThresholds struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Classify returns the tier for a density score.
// Rules:
//   - Low: score < Low
//   - Medium: Low <= score < High
//   - High: score >= High
func Classify(score float64, t TierThresholds) Tier {
	if score < t.Low {
		return TierLow
	}
	if score < t.High {
		return TierMedium
	}
	return TierHigh
}
