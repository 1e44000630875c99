// Package geo holds the coordinate primitives shared by the coverage domain:
// points, viewport bounds, great-circle distance and jurisdiction boundaries.
package geo

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
)

// MetersPerMile converts the meters returned by orb into statute miles.
const MetersPerMile = 1609.344

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Orb returns the point in orb's (lon, lat) order.
func (p Point) Orb() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// FromOrb converts an orb point back into a Point.
func FromOrb(p orb.Point) Point {
	return Point{Lat: p.Lat(), Lon: p.Lon()}
}

// Valid reports whether the point is finite and inside the lat/lon ranges.
func (p Point) Valid() bool {
	return finite(p.Lat) && finite(p.Lon) &&
		p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Bounds is the visible map viewport.
type Bounds struct {
	South float64 `json:"south"`
	North float64 `json:"north"`
	West  float64 `json:"west"`
	East  float64 `json:"east"`
}

// Validate checks that the bounds are on the globe and enclose a non-empty area.
func (b Bounds) Validate() error {
	for name, v := range map[string]float64{"south": b.South, "north": b.North, "west": b.West, "east": b.East} {
		if !finite(v) {
			return fmt.Errorf("%w: %s is not a finite number", ErrInvalidBounds, name)
		}
	}
	if b.South < -90 || b.North > 90 {
		return fmt.Errorf("%w: latitude must lie within [-90, 90], got south %g north %g", ErrInvalidBounds, b.South, b.North)
	}
	if b.West < -180 || b.East > 180 {
		return fmt.Errorf("%w: longitude must lie within [-180, 180], got west %g east %g", ErrInvalidBounds, b.West, b.East)
	}
	if b.North <= b.South {
		return fmt.Errorf("%w: north (%g) must be greater than south (%g)", ErrInvalidBounds, b.North, b.South)
	}
	if b.East <= b.West {
		return fmt.Errorf("%w: east (%g) must be greater than west (%g)", ErrInvalidBounds, b.East, b.West)
	}
	return nil
}

// Center returns the midpoint of the viewport.
func (b Bounds) Center() Point {
	return Point{Lat: (b.South + b.North) / 2, Lon: (b.West + b.East) / 2}
}

// LatSpan is north minus south.
func (b Bounds) LatSpan() float64 { return b.North - b.South }

// LonSpan is east minus west.
func (b Bounds) LonSpan() float64 { return b.East - b.West }

// DistanceMiles is the haversine great-circle distance between two points in miles.
// Every coverage comparison in the service goes through this function.
func DistanceMiles(a, b Point) float64 {
	return orbgeo.DistanceHaversine(a.Orb(), b.Orb()) / MetersPerMile
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
