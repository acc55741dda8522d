package compliance

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dsa-planner/internal/geo"
	"github.com/sells-group/dsa-planner/internal/model"
)

var schools = []model.ProtectedZone{
	{ID: "S1", Name: "School Zone: Cantonment", Location: geo.Coordinate{Lat: 1.2769, Lng: 103.8402}},
	{ID: "S5", Name: "School Zone: Bishan", Location: geo.Coordinate{Lat: 1.3527, Lng: 103.8468}},
	{ID: "S6", Name: "School Zone: Yishun", Location: geo.Coordinate{Lat: 1.4310, Lng: 103.8380}},
}

func TestCheck_TooClose(t *testing.T) {
	site := geo.OffsetNorth(schools[1].Location, 199)

	r := Check(site, schools, 200)
	assert.False(t, r.Compliant)
	assert.InDelta(t, 199, r.MinDistanceMeters, 1e-6)
	assert.Equal(t, "S5", r.NearestZoneID)
}

func TestCheck_FarEnough(t *testing.T) {
	site := geo.OffsetNorth(schools[0].Location, -250)

	r := Check(site, schools, 200)
	assert.True(t, r.Compliant)
	assert.InDelta(t, 250, r.MinDistanceMeters, 1e-6)
	assert.Equal(t, "S1", r.NearestZoneID)
	assert.False(t, r.Unconstrained())
}

func TestCheck_ExactlyAtBufferIsCompliant(t *testing.T) {
	site := schools[2].Location
	r := Check(site, schools, 0)
	assert.True(t, r.Compliant)
	assert.Equal(t, 0.0, r.MinDistanceMeters)
}

func TestCheck_NoZones(t *testing.T) {
	sites := []geo.Coordinate{{}, schools[0].Location, {Lat: -45, Lng: 170}}
	for _, buffer := range []float64{0, 200, 1e9, math.Inf(1)} {
		for _, s := range sites {
			r := Check(s, nil, buffer)
			assert.True(t, r.Compliant)
			assert.True(t, math.IsInf(r.MinDistanceMeters, 1))
			assert.Empty(t, r.NearestZoneID)
			assert.True(t, r.Unconstrained())
		}
	}
	r := Check(sites[0], []model.ProtectedZone{}, 200)
	assert.True(t, r.Compliant)
}

func TestCheck_Deterministic(t *testing.T) {
	site := geo.Coordinate{Lat: 1.3512, Lng: 103.8455}
	first := Check(site, schools, 200)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Check(site, schools, 200))
	}
}

func TestResult_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Check(geo.Coordinate{}, nil, 200))
	require.NoError(t, err)
	assert.JSONEq(t, `{"compliant":true,"min_distance_meters":null}`, string(data))

	data, err = json.Marshal(Result{Compliant: false, MinDistanceMeters: 150, NearestZoneID: "S1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"compliant":false,"min_distance_meters":150,"nearest_zone_id":"S1"}`, string(data))
}
