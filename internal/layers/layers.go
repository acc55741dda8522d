// Package layers renders session state as GeoJSON feature collections for the
// dashboard map.
package layers

import (
	"math"
	"slices"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/dsa-planner/internal/config"
	"github.com/sells-group/dsa-planner/internal/geo"
	"github.com/sells-group/dsa-planner/internal/monitoring"
	"github.com/sells-group/dsa-planner/internal/ranking"
	"github.com/sells-group/dsa-planner/internal/session"
)

// Name identifies a map layer.
type Name string

const (
	Density   Name = "density"
	Schools   Name = "schools"
	Buffers   Name = "buffers"
	Existing  Name = "existing"
	Proposals Name = "proposals"
	AQI       Name = "aqi"
	Gaps      Name = "gaps"
)

// All lists the layers in drawing order.
func All() []Name {
	return []Name{Density, Schools, Buffers, Existing, Proposals, AQI, Gaps}
}

// ErrUnknownLayer is returned by Build for an unrecognized layer name.
var ErrUnknownLayer = eris.New("layers: unknown layer")

// bufferSegments is the number of vertices used to approximate a buffer
// circle.
const bufferSegments = 32

// Builder renders layers using the planner thresholds.
type Builder struct {
	cfg config.PlannerConfig
}

// NewBuilder creates a layer builder.
func NewBuilder(cfg config.PlannerConfig) *Builder {
	return &Builder{cfg: cfg}
}

// Build renders the named layer from snap.
func (b *Builder) Build(name Name, snap session.Snapshot) (*geojson.FeatureCollection, error) {
	switch name {
	case Density:
		return b.density(snap), nil
	case Schools:
		return b.schools(snap), nil
	case Buffers:
		return b.buffers(snap)
	case Existing:
		return b.existing(snap), nil
	case Proposals:
		return b.proposals(snap), nil
	case AQI:
		return b.aqi(snap), nil
	case Gaps:
		return b.gaps(snap), nil
	}
	return nil, eris.Wrapf(ErrUnknownLayer, "layer %q", name)
}

func point(c geo.Coordinate) *geom.Point {
	return geom.NewPointFlat(geom.XY, c.LngLat())
}

// collection wraps features and sets the bounding box when there are any.
func collection(features []*geojson.Feature) *geojson.FeatureCollection {
	if len(features) == 0 {
		return &geojson.FeatureCollection{Features: []*geojson.Feature{}}
	}
	bounds := geom.NewBounds(geom.XY)
	for _, f := range features {
		bounds.Extend(f.Geometry)
	}
	return &geojson.FeatureCollection{BBox: bounds, Features: features}
}

// density is a weighted point layer: one feature per area with its score.
func (b *Builder) density(snap session.Snapshot) *geojson.FeatureCollection {
	var fs []*geojson.Feature
	for _, h := range snap.Derived.Areas {
		fs = append(fs, &geojson.Feature{
			ID:       h.Area.ID,
			Geometry: point(h.Area.Location),
			Properties: map[string]any{
				"name":     h.Area.Name,
				"district": h.Area.District,
				"score":    h.Score,
				"tier":     string(h.Tier),
			},
		})
	}
	return collection(fs)
}

func (b *Builder) schools(snap session.Snapshot) *geojson.FeatureCollection {
	var fs []*geojson.Feature
	for _, z := range snap.Dataset.Zones {
		fs = append(fs, &geojson.Feature{
			ID:       z.ID,
			Geometry: point(z.Location),
			Properties: map[string]any{
				"name":            z.Name,
				"buffer_radius_m": b.cfg.Compliance.BufferMeters,
			},
		})
	}
	return collection(fs)
}

// buffers approximates each zone's exclusion circle as a polygon.
func (b *Builder) buffers(snap session.Snapshot) (*geojson.FeatureCollection, error) {
	var fs []*geojson.Feature
	for _, z := range snap.Dataset.Zones {
		poly, err := circle(z.Location, b.cfg.Compliance.BufferMeters)
		if err != nil {
			return nil, eris.Wrapf(err, "layers: buffer for zone %s", z.ID)
		}
		fs = append(fs, &geojson.Feature{
			ID:       z.ID,
			Geometry: poly,
			Properties: map[string]any{
				"name":     z.Name,
				"radius_m": b.cfg.Compliance.BufferMeters,
			},
		})
	}
	return collection(fs), nil
}

func circle(center geo.Coordinate, meters float64) (*geom.Polygon, error) {
	flat := make([]float64, 0, 2*(bufferSegments+1))
	for i := range bufferSegments {
		p := geo.Destination(center, float64(i)*360/bufferSegments, meters)
		flat = append(flat, p.Lng, p.Lat)
	}
	// Close the ring.
	flat = append(flat, flat[0], flat[1])

	poly := geom.NewPolygon(geom.XY)
	if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flat)); err != nil {
		return nil, err
	}
	return poly, nil
}

func (b *Builder) existing(snap session.Snapshot) *geojson.FeatureCollection {
	var fs []*geojson.Feature
	for _, a := range snap.Dataset.Areas {
		fs = append(fs, &geojson.Feature{
			ID:       a.ID,
			Geometry: point(a.Location),
			Properties: map[string]any{
				"name":      a.Name,
				"district":  a.District,
				"capacity":  a.Capacity,
				"occupancy": a.Occupancy,
			},
		})
	}
	return collection(fs)
}

func (b *Builder) proposals(snap session.Snapshot) *geojson.FeatureCollection {
	var fs []*geojson.Feature
	for _, p := range snap.Dataset.Proposals {
		props := map[string]any{
			"name":      p.Name,
			"district":  p.District,
			"score":     p.Score,
			"status":    string(p.Status),
			"rationale": slices.Clone(p.Rationale),
		}
		if r, ok := snap.Derived.Compliance[p.ID]; ok {
			props["compliant"] = r.Compliant
			props["min_distance_m"] = finite(r.MinDistanceMeters)
			props["nearest_zone_id"] = r.NearestZoneID
		}
		fs = append(fs, &geojson.Feature{ID: p.ID, Geometry: point(p.Location), Properties: props})
	}
	return collection(fs)
}

func (b *Builder) aqi(snap session.Snapshot) *geojson.FeatureCollection {
	var fs []*geojson.Feature
	for _, s := range snap.Dataset.Sensors {
		fs = append(fs, &geojson.Feature{
			ID:       s.ID,
			Geometry: point(s.Location),
			Properties: map[string]any{
				"name": s.Name,
				"aqi":  s.AQI,
				"band": string(monitoring.Band(s.AQI, b.cfg)),
			},
		})
	}
	return collection(fs)
}

// gaps renders every candidate site ranked farthest first.
func (b *Builder) gaps(snap session.Snapshot) *geojson.FeatureCollection {
	ranked := ranking.FindCoverageGaps(snap.Dataset.Areas, snap.Dataset.GapCandidates, len(snap.Dataset.GapCandidates))
	fs := make([]*geojson.Feature, 0, len(ranked))
	for i, g := range ranked {
		fs = append(fs, &geojson.Feature{
			ID:       g.Site.Name,
			Geometry: point(g.Site.Location),
			Properties: map[string]any{
				"name":            g.Site.Name,
				"rank":            i + 1,
				"nearest_area_id": g.NearestAreaID,
				"distance_m":      finite(g.DistanceMeters),
			},
		})
	}
	return collection(fs)
}

// finite maps non-finite distances to nil so they encode as JSON null.
func finite(v float64) any {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return v
}
