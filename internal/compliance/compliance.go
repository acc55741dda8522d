// Package compliance checks candidate sites against protected-zone buffers.
package compliance

import (
	"encoding/json"
	"math"

	"github.com/sells-group/dsa-planner/internal/geo"
	"github.com/sells-group/dsa-planner/internal/model"
)

// Result is the outcome of a buffer check.
type Result struct {
	Compliant         bool    `json:"compliant"`
	MinDistanceMeters float64 `json:"min_distance_meters"`
	// NearestZoneID is empty when there are no zones.
	NearestZoneID string `json:"nearest_zone_id,omitempty"`
}

// Unconstrained reports whether the result came from an empty zone set.
func (r Result) Unconstrained() bool {
	return math.IsInf(r.MinDistanceMeters, 1)
}

// MarshalJSON encodes an infinite margin as null.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	return json.Marshal(struct {
		plain
		MinDistanceMeters *float64 `json:"min_distance_meters"`
	}{plain: plain(r), MinDistanceMeters: finite(r.MinDistanceMeters)})
}

func finite(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

// Check returns whether site is at least bufferMeters from every zone. With no
// zones there is no constraint and the margin is +Inf.
func Check(site geo.Coordinate, zones []model.ProtectedZone, bufferMeters float64) Result {
	if len(zones) == 0 {
		return Result{Compliant: true, MinDistanceMeters: math.Inf(1)}
	}

	// zones is non-empty so Nearest cannot fail.
	m, _ := geo.Nearest(site, zones, model.ZoneLocation)
	return Result{
		Compliant:         m.DistanceMeters >= bufferMeters,
		MinDistanceMeters: m.DistanceMeters,
		NearestZoneID:     m.Item.ID,
	}
}
