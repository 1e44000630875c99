// Package grid produces the lattice of candidate station sites over a viewport.
package grid

import (
	"iter"
	"math"

	"github.com/okian/covergap/internal/domain/geo"
)

const (
	// DefaultDivisions is the number of longitude steps across the viewport.
	DefaultDivisions = 25

	edgeTolerance = 1e-9
)

// Clip restricts which lattice points are yielded. *geo.Boundary satisfies it.
type Clip interface {
	Contains(p geo.Point) bool
}

// Generate yields lattice points south to north, west to east within each row.
// The step is (east-west)/divisions and is reused for latitude, so cells are
// square in degrees rather than in ground distance. Both far edges are
// included within a small tolerance. A nil clip yields every point.
//
// The sequence is lazy and may be ranged over more than once.
func Generate(b geo.Bounds, clip Clip, divisions int) iter.Seq[geo.Point] {
	if divisions <= 0 {
		divisions = DefaultDivisions
	}
	step := b.LonSpan() / float64(divisions)

	return func(yield func(geo.Point) bool) {
		if step <= 0 || b.LatSpan() < 0 {
			return
		}
		for i := 0; ; i++ {
			lat := b.South + float64(i)*step
			if lat > b.North+edgeTolerance {
				return
			}
			for j := 0; j <= divisions; j++ {
				p := geo.Point{Lat: lat, Lon: b.West + float64(j)*step}
				if clip != nil && !clip.Contains(p) {
					continue
				}
				if !yield(p) {
					return
				}
			}
		}
	}
}

// Size returns how many points Generate yields before clipping. It is
// computed without walking the lattice, so it is safe to call on viewports
// that would be far too large to generate.
func Size(b geo.Bounds, divisions int) int {
	if divisions <= 0 {
		divisions = DefaultDivisions
	}
	step := b.LonSpan() / float64(divisions)
	if step <= 0 || b.LatSpan() < 0 || math.IsNaN(step) || math.IsInf(step, 0) {
		return 0
	}
	limit := b.North + edgeTolerance
	last := math.Floor(b.LatSpan() / step)
	if last > math.MaxInt32 {
		return math.MaxInt
	}
	// Settle rounding so the count matches the comparison Generate makes.
	n := int(last)
	for n > 0 && b.South+float64(n)*step > limit {
		n--
	}
	for b.South+float64(n+1)*step <= limit {
		n++
	}
	rows := n + 1
	if rows > math.MaxInt/(divisions+1) {
		return math.MaxInt
	}
	return rows * (divisions + 1)
}
