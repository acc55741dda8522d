package scorer

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/dsa-planner/internal/config"
	"github.com/sells-group/dsa-planner/internal/geo"
	"github.com/sells-group/dsa-planner/internal/model"
)

// Breakdown exposes the components behind a density score.
type Breakdown struct {
	OccupancyRatio float64 `json:"occupancy_ratio"`
	AQINorm        float64 `json:"aqi_norm"`
	SensorID       string  `json:"sensor_id"`
	SensorAQI      int     `json:"sensor_aqi"`
	SensorMeters   float64 `json:"sensor_meters"`
	Score          float64 `json:"score"`
}

// OccupancyRatio returns occupancy/capacity clamped to [0, maxRatio]. An area
// without capacity has ratio 0.
func OccupancyRatio(area model.MonitoredArea, maxRatio float64) float64 {
	if area.Capacity <= 0 {
		return 0
	}
	return clamp(float64(area.Occupancy)/float64(area.Capacity), 0, maxRatio)
}

// NormalizeAQI maps a raw reading onto the score scale.
func NormalizeAQI(aqi int, c config.ScorerConfig) float64 {
	return clamp((float64(aqi)-c.AQIBaseline)/c.AQIScale, 0, c.AQINormMax)
}

// DensityScore combines the area's occupancy ratio with the reading of its
// nearest sensor. sensors must not be empty.
func DensityScore(area model.MonitoredArea, sensors []model.AirQualitySensor, c config.ScorerConfig) (float64, error) {
	b, err := Explain(area, sensors, c)
	if err != nil {
		return 0, err
	}
	return b.Score, nil
}

// Explain is DensityScore with the intermediate values kept.
func Explain(area model.MonitoredArea, sensors []model.AirQualitySensor, c config.ScorerConfig) (Breakdown, error) {
	nearest, err := geo.Nearest(area.Location, sensors, model.SensorLocation)
	if err != nil {
		return Breakdown{}, eris.Wrapf(err, "scorer: density for area %s", area.ID)
	}

	occ := OccupancyRatio(area, c.OccupancyRatioMax)
	aqiNorm := NormalizeAQI(nearest.Item.AQI, c)
	score := clamp(c.OccupancyWeight*occ+c.AirQualityWeight*aqiNorm, 0, c.ScoreMax)

	return Breakdown{
		OccupancyRatio: occ,
		AQINorm:        aqiNorm,
		SensorID:       nearest.Item.ID,
		SensorAQI:      nearest.Item.AQI,
		SensorMeters:   nearest.DistanceMeters,
		Score:          score,
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
