// Package geo provides great-circle distance and nearest-neighbour search over
// WGS84 coordinates.
package geo

import (
	"math"
)

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6_371_000.0

// Coordinate is a latitude/longitude pair in degrees. No datum correction is
// applied.
type Coordinate struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Valid reports whether c holds finite values inside the latitude and
// longitude ranges.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// LngLat returns the coordinate as [lng, lat] for GeoJSON-style consumers.
func (c Coordinate) LngLat() []float64 { return []float64{c.Lng, c.Lat} }

// DistanceMeters returns the haversine great-circle distance between a and b.
// Callers are expected to pass valid coordinates; this is a straight-line
// approximation, not a walking distance.
func DistanceMeters(a, b Coordinate) float64 {
	if a == b {
		return 0
	}
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)

	s1 := math.Sin(dLat / 2)
	s2 := math.Sin(dLng / 2)
	q := s1*s1 + math.Cos(lat1)*math.Cos(lat2)*s2*s2
	// Rounding can push q a hair past 1 for antipodal points.
	q = math.Min(1, q)
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(q))
}

// MinDistance returns the smallest distance from p to any of coords, or +Inf
// when coords is empty.
func MinDistance(p Coordinate, coords []Coordinate) float64 {
	best := math.Inf(1)
	for _, c := range coords {
		if d := DistanceMeters(p, c); d < best {
			best = d
		}
	}
	return best
}

// OffsetNorth returns the coordinate reached by moving meters due north (or
// south for negative meters) along the meridian.
func OffsetNorth(c Coordinate, meters float64) Coordinate {
	return Coordinate{Lat: c.Lat + meters/EarthRadiusMeters*180/math.Pi, Lng: c.Lng}
}

// Destination returns the point reached by travelling meters along a great
// circle from c on the initial bearing (degrees clockwise from north).
func Destination(c Coordinate, bearingDeg, meters float64) Coordinate {
	delta := meters / EarthRadiusMeters
	theta := toRad(bearingDeg)
	lat1, lng1 := toRad(c.Lat), toRad(c.Lng)

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(delta) + math.Cos(lat1)*math.Sin(delta)*math.Cos(theta))
	lng2 := lng1 + math.Atan2(math.Sin(theta)*math.Sin(delta)*math.Cos(lat1), math.Cos(delta)-math.Sin(lat1)*math.Sin(lat2))

	// Normalize to [-180, 180).
	lng := math.Mod(toDeg(lng2)+540, 360) - 180
	return Coordinate{Lat: toDeg(lat2), Lng: lng}
}

func toDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
