// Package model defines the planning records shared by the scoring, compliance
// and simulation packages.
package model

import (
	"slices"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dsa-planner/internal/geo"
)

// MonitoredArea is a designated smoking area whose occupancy is tracked.
// Occupancy may exceed capacity.
type MonitoredArea struct {
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	District  string         `json:"district" yaml:"district"`
	Location  geo.Coordinate `json:"location" yaml:",inline"`
	Capacity  int            `json:"capacity" yaml:"capacity"`
	Occupancy int            `json:"occupancy" yaml:"occupancy"`
}

// NewMonitoredArea returns a validated area.
func NewMonitoredArea(id, name, district string, at geo.Coordinate, capacity, occupancy int) (MonitoredArea, error) {
	a := MonitoredArea{ID: id, Name: name, District: district, Location: at, Capacity: capacity, Occupancy: occupancy}
	return a, a.Validate()
}

// Validate checks identity, coordinate and capacity.
func (a MonitoredArea) Validate() error {
	if a.ID == "" {
		return eris.New("model: area id is required")
	}
	if !a.Location.Valid() {
		return eris.Errorf("model: area %s has invalid coordinate %v", a.ID, a.Location)
	}
	if a.Capacity < 0 {
		return eris.Errorf("model: area %s capacity must be >= 0 (got %d)", a.ID, a.Capacity)
	}
	if a.Occupancy < 0 {
		return eris.Errorf("model: area %s occupancy must be >= 0 (got %d)", a.ID, a.Occupancy)
	}
	return nil
}

// ProtectedZone is a location, typically a school, surrounded by an exclusion
// buffer.
type ProtectedZone struct {
	ID       string         `json:"id" yaml:"id"`
	Name     string         `json:"name" yaml:"name"`
	Location geo.Coordinate `json:"location" yaml:",inline"`
}

// NewProtectedZone returns a validated zone.
func NewProtectedZone(id, name string, at geo.Coordinate) (ProtectedZone, error) {
	z := ProtectedZone{ID: id, Name: name, Location: at}
	return z, z.Validate()
}

// Validate checks identity and coordinate.
func (z ProtectedZone) Validate() error {
	if z.ID == "" {
		return eris.New("model: zone id is required")
	}
	if !z.Location.Valid() {
		return eris.Errorf("model: zone %s has invalid coordinate %v", z.ID, z.Location)
	}
	return nil
}

// AirQualitySensor is a point AQI reading.
type AirQualitySensor struct {
	ID       string         `json:"id" yaml:"id"`
	Name     string         `json:"name" yaml:"name"`
	Location geo.Coordinate `json:"location" yaml:",inline"`
	AQI      int            `json:"aqi" yaml:"aqi"`
}

// NewAirQualitySensor returns a validated sensor.
func NewAirQualitySensor(id, name string, at geo.Coordinate, aqi int) (AirQualitySensor, error) {
	s := AirQualitySensor{ID: id, Name: name, Location: at, AQI: aqi}
	return s, s.Validate()
}

// Validate checks identity, coordinate and reading.
func (s AirQualitySensor) Validate() error {
	if s.ID == "" {
		return eris.New("model: sensor id is required")
	}
	if !s.Location.Valid() {
		return eris.Errorf("model: sensor %s has invalid coordinate %v", s.ID, s.Location)
	}
	if s.AQI < 0 {
		return eris.Errorf("model: sensor %s aqi must be >= 0 (got %d)", s.ID, s.AQI)
	}
	return nil
}

// Proposal is a candidate site under review.
type Proposal struct {
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	District  string         `json:"district" yaml:"district"`
	Location  geo.Coordinate `json:"location" yaml:",inline"`
	Score     float64        `json:"score" yaml:"score"`
	Status    ProposalStatus `json:"status" yaml:"status"`
	Rationale []string       `json:"rationale" yaml:"rationale"`
}

// Validate checks identity, coordinate, score range and status.
func (p Proposal) Validate() error {
	if p.ID == "" {
		return eris.New("model: proposal id is required")
	}
	if !p.Location.Valid() {
		return eris.Errorf("model: proposal %s has invalid coordinate %v", p.ID, p.Location)
	}
	if !(p.Score >= 0 && p.Score <= 1) {
		return eris.Errorf("model: proposal %s score must be in [0,1] (got %v)", p.ID, p.Score)
	}
	if !p.Status.Valid() {
		return eris.Errorf("model: proposal %s has unknown status %q", p.ID, p.Status)
	}
	return nil
}

// Clone returns a copy that shares no slices with p.
func (p Proposal) Clone() Proposal {
	p.Rationale = slices.Clone(p.Rationale)
	return p
}

// CandidateSite is a fixed sample point for the coverage-gap heuristic.
type CandidateSite struct {
	Name     string         `json:"name" yaml:"name"`
	Location geo.Coordinate `json:"location" yaml:",inline"`
}

// AreaLocation returns the area's coordinate.
func AreaLocation(a MonitoredArea) geo.Coordinate { return a.Location }

// ZoneLocation returns the zone's coordinate.
func ZoneLocation(z ProtectedZone) geo.Coordinate { return z.Location }

// SensorLocation returns the sensor's coordinate.
func SensorLocation(s AirQualitySensor) geo.Coordinate { return s.Location }
