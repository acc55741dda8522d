package ranking

import (
	"cmp"
	"encoding/json"
	"math"
	"slices"

	"github.com/sells-group/dsa-planner/internal/geo"
	"github.com/sells-group/dsa-planner/internal/model"
)

// Gap is a candidate site with its distance to the nearest existing area.
type Gap struct {
	Site model.CandidateSite `json:"site"`
	// NearestAreaID is empty when there are no existing areas.
	NearestAreaID  string  `json:"nearest_area_id,omitempty"`
	DistanceMeters float64 `json:"distance_meters"`
}

// MarshalJSON encodes an infinite distance as null.
func (g Gap) MarshalJSON() ([]byte, error) {
	type plain Gap
	d := &g.DistanceMeters
	if math.IsInf(g.DistanceMeters, 0) {
		d = nil
	}
	return json.Marshal(struct {
		plain
		DistanceMeters *float64 `json:"distance_meters"`
	}{plain: plain(g), DistanceMeters: d})
}

// FindCoverageGaps ranks candidate sites by straight-line distance to the
// nearest existing area, farthest first, and returns the first n. This is a
// proxy for an underserved location, not a coverage or Voronoi computation.
// With no existing areas every candidate is infinitely far and input order is
// kept.
func FindCoverageGaps(existing []model.MonitoredArea, candidates []model.CandidateSite, n int) []Gap {
	if n <= 0 || len(candidates) == 0 {
		return []Gap{}
	}

	locs := make([]geo.Coordinate, len(existing))
	for i, a := range existing {
		locs[i] = a.Location
	}

	gaps := make([]Gap, 0, len(candidates))
	for _, c := range candidates {
		g := Gap{Site: c, DistanceMeters: geo.MinDistance(c.Location, locs)}
		if m, err := geo.Nearest(c.Location, existing, model.AreaLocation); err == nil {
			g.NearestAreaID = m.Item.ID
		}
		gaps = append(gaps, g)
	}

	slices.SortStableFunc(gaps, func(a, b Gap) int {
		return cmp.Compare(b.DistanceMeters, a.DistanceMeters)
	})
	return gaps[:min(n, len(gaps))]
}
