package geo

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

const minRingPositions = 4

// Boundary is a jurisdiction polygon (or set of polygons) used to clip the candidate grid.
type Boundary struct {
	shape orb.MultiPolygon
}

// NewBoundary builds a boundary from closed rings of points, first ring outer.
func NewBoundary(rings ...[]Point) (*Boundary, error) {
	poly := make(orb.Polygon, 0, len(rings))
	for _, r := range rings {
		ring := make(orb.Ring, 0, len(r))
		for _, p := range r {
			ring = append(ring, p.Orb())
		}
		poly = append(poly, ring)
	}
	b := &Boundary{shape: orb.MultiPolygon{poly}}
	if err := b.validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// ParseBoundary decodes a GeoJSON Polygon, MultiPolygon, Feature or FeatureCollection.
// Polygons found in a FeatureCollection are unioned; other geometry types are ignored.
func ParseBoundary(data []byte) (*Boundary, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedBoundary, err)
	}

	var shape orb.MultiPolygon
	switch probe.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedBoundary, err)
		}
		for _, f := range fc.Features {
			shape = appendPolygons(shape, f.Geometry)
		}
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedBoundary, err)
		}
		shape = appendPolygons(shape, f.Geometry)
	case "Polygon", "MultiPolygon":
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedBoundary, err)
		}
		shape = appendPolygons(shape, g.Geometry())
	default:
		return nil, fmt.Errorf("%w: unsupported geojson type %q", ErrMalformedBoundary, probe.Type)
	}

	b := &Boundary{shape: shape}
	if err := b.validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func appendPolygons(mp orb.MultiPolygon, g orb.Geometry) orb.MultiPolygon {
	switch v := g.(type) {
	case orb.Polygon:
		return append(mp, v)
	case orb.MultiPolygon:
		return append(mp, v...)
	}
	return mp
}

func (b *Boundary) validate() error {
	if len(b.shape) == 0 {
		return fmt.Errorf("%w: no polygon geometry", ErrMalformedBoundary)
	}
	for pi, poly := range b.shape {
		if len(poly) == 0 {
			return fmt.Errorf("%w: polygon %d has no rings", ErrMalformedBoundary, pi)
		}
		for ri, ring := range poly {
			if len(ring) < minRingPositions {
				return fmt.Errorf("%w: polygon %d ring %d has %d positions, need at least %d",
					ErrMalformedBoundary, pi, ri, len(ring), minRingPositions)
			}
			for _, p := range ring {
				if !finite(p[0]) || !finite(p[1]) {
					return fmt.Errorf("%w: polygon %d ring %d has a non-finite coordinate", ErrMalformedBoundary, pi, ri)
				}
			}
			if !ring.Closed() {
				return fmt.Errorf("%w: polygon %d ring %d is not closed", ErrMalformedBoundary, pi, ri)
			}
		}
	}
	return nil
}

// Contains reports whether p lies inside the boundary. Points on holes are outside.
func (b *Boundary) Contains(p Point) bool {
	if b == nil {
		return true
	}
	return planar.MultiPolygonContains(b.shape, p.Orb())
}

// Bounds returns the bounding box of the boundary.
func (b *Boundary) Bounds() Bounds {
	bound := b.shape.Bound()
	return Bounds{South: bound.Min.Lat(), North: bound.Max.Lat(), West: bound.Min.Lon(), East: bound.Max.Lon()}
}

// Polygons returns the number of polygons in the boundary.
func (b *Boundary) Polygons() int {
	return len(b.shape)
}

// MarshalJSON encodes the boundary as a GeoJSON geometry.
func (b *Boundary) MarshalJSON() ([]byte, error) {
	if len(b.shape) == 1 {
		return json.Marshal(geojson.NewGeometry(b.shape[0]))
	}
	return json.Marshal(geojson.NewGeometry(b.shape))
}
