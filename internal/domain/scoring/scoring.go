// Package scoring ranks uncovered grid points as candidate station sites.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/okian/covergap/internal/domain/coverage"
	"github.com/okian/covergap/internal/domain/geo"
	"github.com/okian/covergap/internal/domain/grid"
)

// Component constants.
const (
	maxPopulationScore = 10.0
	maxIncidentScore   = 20.0
	areaScore          = 5.0

	// incidentSaturation is how many nearby uncovered incidents earn the full incident score.
	incidentSaturation = 10.0
	// distanceFalloff is the weight lost by an incident at the edge of the radius.
	distanceFalloff = 0.75

	ctxCheckEvery = 256

	// DefaultMaxGridPoints bounds a single pass. A square viewport at the
	// default resolution is 676 points.
	DefaultMaxGridPoints = 250_000
)

// Option applies a configuration option to the GridScorer.
type Option func(*GridScorer)

// WithDivisions sets the number of longitude steps across the viewport.
func WithDivisions(n int) Option {
	return func(s *GridScorer) {
		if n > 0 {
			s.divisions = n
		}
	}
}

// WithMaxGridPoints caps the lattice size of one pass. Larger viewports are
// rejected with geo.ErrInvalidBounds before any point is generated.
func WithMaxGridPoints(n int) Option {
	return func(s *GridScorer) {
		if n > 0 {
			s.maxPoints = n
		}
	}
}

// Input is everything a scoring pass reads. It is never mutated.
type Input struct {
	Bounds      geo.Bounds
	Circles     []coverage.Circle
	Incidents   []geo.Point
	Boundary    *geo.Boundary
	RadiusMiles float64
	Target      Target
}

// Point is a scored candidate site.
type Point struct {
	geo.Point
	Score           float64 `json:"score"`
	PopulationScore float64 `json:"population_score"`
	IncidentScore   float64 `json:"incident_score"`
	AreaScore       float64 `json:"area_score"`
}

// Summary describes one scoring pass.
type Summary struct {
	GridPoints      int     `json:"grid_points"`
	Excluded        int     `json:"excluded"`
	Scored          int     `json:"scored"`
	MaxScore        float64 `json:"max_score"`
	BoundaryApplied bool    `json:"boundary_applied"`
	// BoundaryFallback is set when containment failed mid-pass and the pass
	// was rerun over the whole viewport.
	BoundaryFallback bool `json:"boundary_fallback,omitempty"`
}

// Result holds the scored points in grid order.
type Result struct {
	Points  []Point
	Summary Summary
}

// Best returns the index of the highest scoring point; ties go to the earliest
// point in grid order. It returns -1 for an empty result.
func (r Result) Best() int {
	best := -1
	for i := range r.Points {
		if best < 0 || r.Points[i].Score > r.Points[best].Score {
			best = i
		}
	}
	return best
}

// Scorer computes candidate scores for a viewport.
type Scorer interface {
	// Score runs one pass, honoring ctx for cancellation.
	Score(ctx context.Context, in Input) (Result, error)
}

// GridScorer scores every uncovered lattice point with a brute-force pass.
// It holds no mutable state and is safe for concurrent use.
type GridScorer struct {
	divisions int
	maxPoints int
}

// NewGridScorer creates a scorer with the given options.
func NewGridScorer(opts ...Option) *GridScorer {
	s := &GridScorer{divisions: grid.DefaultDivisions, maxPoints: DefaultMaxGridPoints}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Divisions returns the configured lattice resolution.
func (s *GridScorer) Divisions() int { return s.divisions }

// Score generates the grid, drops covered points and scores the rest.
// Identical inputs always produce identical results.
func (s *GridScorer) Score(ctx context.Context, in Input) (Result, error) {
	if err := in.Bounds.Validate(); err != nil {
		return Result{}, err
	}
	if in.RadiusMiles < 0 || math.IsNaN(in.RadiusMiles) || math.IsInf(in.RadiusMiles, 0) {
		return Result{}, fmt.Errorf("%w: radius must be a finite non-negative number", ErrInvalidInput)
	}
	target := in.Target
	if target == "" {
		target = TargetBalanced
	}
	if !target.Valid() {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidTarget, in.Target)
	}
	if n := grid.Size(in.Bounds, s.divisions); n > s.maxPoints {
		return Result{}, fmt.Errorf("%w: viewport needs %d grid points, limit is %d", geo.ErrInvalidBounds, n, s.maxPoints)
	}

	var clip grid.Clip
	if in.Boundary != nil {
		clip = in.Boundary
	}
	return s.clipped(ctx, in, target.Weights(), clip)
}

// clipped runs a pass restricted to clip and reruns it unrestricted when the
// containment test panics.
func (s *GridScorer) clipped(ctx context.Context, in Input, weights Weights, clip grid.Clip) (Result, error) { //nolint:gocritic // hugeParam
	res, err := s.pass(ctx, in, weights, clip)
	if !errors.Is(err, errClipFailed) {
		return res, err
	}
	res, err = s.pass(ctx, in, weights, nil)
	if err != nil {
		return Result{}, err
	}
	res.Summary.BoundaryFallback = true
	return res, nil
}

var errClipFailed = errors.New("boundary containment failed")

// guardedClip turns a panic inside the boundary test into a recorded failure.
type guardedClip struct {
	clip   grid.Clip
	failed bool
}

func (g *guardedClip) Contains(p geo.Point) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			g.failed = true
			ok = false
		}
	}()
	return g.clip.Contains(p)
}

func (s *GridScorer) pass(ctx context.Context, in Input, weights Weights, clip grid.Clip) (Result, error) { //nolint:gocritic // hugeParam
	open := uncovered(in.Incidents, in.Circles)
	center := in.Bounds.Center()

	res := Result{Summary: Summary{BoundaryApplied: clip != nil}}
	var guard *guardedClip
	if clip != nil {
		guard = &guardedClip{clip: clip}
		clip = guard
	}

	for p := range grid.Generate(in.Bounds, clip, s.divisions) {
		if guard != nil && guard.failed {
			return Result{}, errClipFailed
		}
		res.Summary.GridPoints++
		if res.Summary.GridPoints%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, fmt.Errorf("scoring cancelled: %w", err)
			}
		}
		if coverage.Covered(p, in.Circles) {
			res.Summary.Excluded++
			continue
		}

		sp := Point{
			Point:           p,
			PopulationScore: PopulationScore(p, center, in.Bounds),
			IncidentScore:   IncidentScore(p, open, in.RadiusMiles),
			AreaScore:       areaScore,
		}
		sp.Score = sp.PopulationScore*weights.Population +
			sp.IncidentScore*weights.Incidents +
			sp.AreaScore*weights.Area
		if sp.Score > res.Summary.MaxScore {
			res.Summary.MaxScore = sp.Score
		}
		res.Points = append(res.Points, sp)
	}
	if guard != nil && guard.failed {
		return Result{}, errClipFailed
	}
	res.Summary.Scored = len(res.Points)
	return res, nil
}

// PopulationScore is a placeholder density proxy: 10 at the viewport center,
// falling linearly with normalized distance and clamped at zero.
func PopulationScore(p, center geo.Point, b geo.Bounds) float64 {
	dLat := (p.Lat - center.Lat) / b.LatSpan()
	dLon := (p.Lon - center.Lon) / b.LonSpan()
	v := maxPopulationScore * (1 - math.Sqrt(dLat*dLat+dLon*dLon))
	return math.Max(0, math.Min(maxPopulationScore, v))
}

// IncidentScore rewards uncovered incidents within radius of p. Each incident
// counts with weight 1-0.75*d/r; the score is 20*min(1, n/10)*mean(weight).
// With a zero radius only incidents exactly at p qualify, each with weight 1.
func IncidentScore(p geo.Point, uncoveredIncidents []geo.Point, radiusMiles float64) float64 {
	n := 0
	sum := 0.0
	for _, inc := range uncoveredIncidents {
		d := geo.DistanceMiles(p, inc)
		if d > radiusMiles {
			continue
		}
		n++
		if radiusMiles == 0 {
			sum++
			continue
		}
		sum += 1 - distanceFalloff*d/radiusMiles
	}
	if n == 0 {
		return 0
	}
	return maxIncidentScore * math.Min(1, float64(n)/incidentSaturation) * (sum / float64(n))
}

func uncovered(incidents []geo.Point, circles []coverage.Circle) []geo.Point {
	out := make([]geo.Point, 0, len(incidents))
	for _, p := range incidents {
		if !coverage.Covered(p, circles) {
			out = append(out, p)
		}
	}
	return out
}
