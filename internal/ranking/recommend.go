package ranking

import (
	"cmp"
	"slices"

	"github.com/sells-group/dsa-planner/internal/compliance"
	"github.com/sells-group/dsa-planner/internal/config"
	"github.com/sells-group/dsa-planner/internal/model"
)

// Recommendation is a proposal annotated with its buffer check and adjusted
// score. Proposal is a copy; the stored proposal is never modified.
type Recommendation struct {
	Proposal        model.Proposal    `json:"proposal"`
	Compliance      compliance.Result `json:"compliance"`
	AdjustedScore   float64           `json:"adjusted_score"`
	PressureBoosted bool              `json:"pressure_boosted"`
}

// RecommendProposals checks each proposal against the zone buffer, adds the
// pressure bonus when the proposal sits in the highest-pressure district, and
// orders the results by adjusted score, highest first.
func RecommendProposals(
	proposals []model.Proposal,
	areas []model.MonitoredArea,
	sensors []model.AirQualitySensor,
	zones []model.ProtectedZone,
	c config.PlannerConfig,
) ([]Recommendation, error) {
	if len(proposals) == 0 {
		return []Recommendation{}, nil
	}

	var (
		pressure    string
		hasPressure bool
	)
	if len(areas) > 0 {
		scored, err := ScoreAreas(areas, sensors, c.Scorer)
		if err != nil {
			return nil, err
		}
		pressure, hasPressure = PressureDistrict(scored)
	}

	return Recommend(proposals, zones, pressure, hasPressure, c), nil
}

// Recommend is RecommendProposals with the pressure district already known.
func Recommend(proposals []model.Proposal, zones []model.ProtectedZone, pressure string, hasPressure bool, c config.PlannerConfig) []Recommendation {
	recs := make([]Recommendation, 0, len(proposals))
	for _, p := range proposals {
		boosted := hasPressure && p.District == pressure
		score := p.Score
		if boosted {
			score += c.Recommend.PressureBonus
		}
		recs = append(recs, Recommendation{
			Proposal:        p.Clone(),
			Compliance:      compliance.Check(p.Location, zones, c.Compliance.BufferMeters),
			AdjustedScore:   clampUnit(score),
			PressureBoosted: boosted,
		})
	}

	slices.SortStableFunc(recs, func(a, b Recommendation) int {
		return cmp.Compare(b.AdjustedScore, a.AdjustedScore)
	})
	return recs
}

func clampUnit(v float64) float64 {
	return max(0, min(1, v))
}
