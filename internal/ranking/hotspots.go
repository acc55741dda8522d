// Package ranking orders monitored areas, coverage-gap candidates and proposals
// for planning review.
package ranking

import (
	"cmp"
	"slices"

	"github.com/sells-group/dsa-planner/internal/config"
	"github.com/sells-group/dsa-planner/internal/model"
	"github.com/sells-group/dsa-planner/internal/scorer"
)

// Hotspot is a monitored area with its current density score.
type Hotspot struct {
	Area  model.MonitoredArea `json:"area"`
	Score float64             `json:"score"`
	Tier  scorer.Tier         `json:"tier"`
}

// ScoreAreas scores every area in input order.
func ScoreAreas(areas []model.MonitoredArea, sensors []model.AirQualitySensor, c config.ScorerConfig) ([]Hotspot, error) {
	th := scorer.Thresholds(c)
	out := make([]Hotspot, 0, len(areas))
	for _, a := range areas {
		s, err := scorer.DensityScore(a, sensors, c)
		if err != nil {
			return nil, err
		}
		out = append(out, Hotspot{Area: a, Score: s, Tier: scorer.Classify(s, th)})
	}
	return out, nil
}

// RankHotspots returns the n highest-scoring areas, highest first. Equal scores
// keep input order. n <= 0 returns no areas.
func RankHotspots(areas []model.MonitoredArea, sensors []model.AirQualitySensor, n int, c config.ScorerConfig) ([]Hotspot, error) {
	if n <= 0 || len(areas) == 0 {
		return []Hotspot{}, nil
	}
	scored, err := ScoreAreas(areas, sensors, c)
	if err != nil {
		return nil, err
	}
	return TopHotspots(scored, n), nil
}

// TopHotspots sorts already-scored areas and returns the first n. The input
// slice is not modified.
func TopHotspots(scored []Hotspot, n int) []Hotspot {
	if n <= 0 {
		return []Hotspot{}
	}
	ranked := slices.Clone(scored)
	slices.SortStableFunc(ranked, func(a, b Hotspot) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return ranked[:min(n, len(ranked))]
}

// PressureDistrict returns the district with the highest summed density score.
// Ties keep the district seen first. ok is false when there are no areas.
func PressureDistrict(scored []Hotspot) (district string, ok bool) {
	totals := map[string]float64{}
	var order []string
	for _, h := range scored {
		if _, seen := totals[h.Area.District]; !seen {
			order = append(order, h.Area.District)
		}
		totals[h.Area.District] += h.Score
	}

	best := -1.0
	for _, d := range order {
		if totals[d] > best {
			best = totals[d]
			district = d
			ok = true
		}
	}
	return district, ok
}
