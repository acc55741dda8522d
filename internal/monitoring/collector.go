// Package monitoring summarizes a planning session for the dashboard overview
// and raises risk alerts for overcrowding, poor air quality and buffer
// violations.
package monitoring

import (
	"math"
	"time"

	"github.com/sells-group/dsa-planner/internal/config"
	"github.com/sells-group/dsa-planner/internal/model"
	"github.com/sells-group/dsa-planner/internal/scorer"
	"github.com/sells-group/dsa-planner/internal/session"
)

// AQIBand is the display band for a sensor reading.
type AQIBand string

const (
	BandLow      AQIBand = "Low"
	BandModerate AQIBand = "Moderate"
	BandHigh     AQIBand = "High"
)

// Band classifies a reading: Low below moderateAQI, High at or above highAQI.
func Band(aqi int, c config.PlannerConfig) AQIBand {
	switch {
	case aqi >= c.HighAQI:
		return BandHigh
	case aqi >= c.ModerateAQI:
		return BandModerate
	default:
		return BandLow
	}
}

// Overview holds the headline statistics for a session.
type Overview struct {
	ActiveAreas       int `json:"active_areas"`
	ProtectedZones    int `json:"protected_zones"`
	Overcrowded       int `json:"overcrowded"`
	ApprovedProposals int `json:"approved_proposals"`
	NonCompliant      int `json:"non_compliant_proposals"`
	// RiskFlags is Overcrowded plus NonCompliant.
	RiskFlags int `json:"risk_flags"`

	// AverageAQI is rounded to the nearest integer; 0 when there are no sensors.
	AverageAQI  int                     `json:"average_aqi"`
	WorstSensor *model.AirQualitySensor `json:"worst_sensor,omitempty"`

	PressureDistrict string              `json:"pressure_district,omitempty"`
	Tiers            map[scorer.Tier]int `json:"tiers"`

	Tick        int64     `json:"tick"`
	CollectedAt time.Time `json:"collected_at"`
}

// Collector computes overviews from session snapshots.
type Collector struct {
	cfg config.PlannerConfig
}

// NewCollector creates a collector using the planner thresholds in cfg.
func NewCollector(cfg config.PlannerConfig) *Collector {
	return &Collector{cfg: cfg}
}

// Collect summarizes snap. It reads only the snapshot so the figures are
// consistent with each other.
func (c *Collector) Collect(snap session.Snapshot) Overview {
	ds, d := snap.Dataset, snap.Derived
	ov := Overview{
		ActiveAreas:      len(ds.Areas),
		ProtectedZones:   len(ds.Zones),
		PressureDistrict: d.PressureDistrict,
		Tiers:            map[scorer.Tier]int{scorer.TierLow: 0, scorer.TierMedium: 0, scorer.TierHigh: 0},
		Tick:             d.Tick,
		CollectedAt:      d.ComputedAt,
	}

	for _, a := range ds.Areas {
		if c.overcrowded(a) {
			ov.Overcrowded++
		}
	}
	for _, h := range d.Areas {
		ov.Tiers[h.Tier]++
	}

	for _, p := range ds.Proposals {
		if p.Status == model.StatusApproved {
			ov.ApprovedProposals++
		}
		if r, ok := d.Compliance[p.ID]; ok && !r.Compliant {
			ov.NonCompliant++
		}
	}
	ov.RiskFlags = ov.Overcrowded + ov.NonCompliant

	if len(ds.Sensors) > 0 {
		sum := 0
		worst := ds.Sensors[0]
		for _, s := range ds.Sensors {
			sum += s.AQI
			// Ties keep the first sensor in dataset order.
			if s.AQI > worst.AQI {
				worst = s
			}
		}
		ov.AverageAQI = int(math.Round(float64(sum) / float64(len(ds.Sensors))))
		ov.WorstSensor = &worst
	}

	return ov
}

func (c *Collector) overcrowded(a model.MonitoredArea) bool {
	if a.Capacity <= 0 {
		return false
	}
	return float64(a.Occupancy)/float64(a.Capacity) >= c.cfg.OvercrowdedRatio
}
