// Package selector places new stations one at a time at the best scoring
// candidate, treating each placement as coverage for the next round.
package selector

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/covergap/internal/domain/coverage"
	"github.com/okian/covergap/internal/domain/geo"
	"github.com/okian/covergap/internal/domain/scoring"
)

// Site is one suggested station location.
type Site struct {
	Rank                  int     `json:"rank"`
	Name                  string  `json:"name"`
	Score                 float64 `json:"score"`
	PopulationScore       float64 `json:"population_score"`
	IncidentScore         float64 `json:"incident_score"`
	AreaScore             float64 `json:"area_score"`
	NewlyCoveredIncidents int     `json:"newly_covered_incidents"`
	geo.Point
}

// Pass describes one scoring round of a selection run.
type Pass struct {
	Summary scoring.Summary
	Took    time.Duration
}

// Result is the outcome of a selection run.
type Result struct {
	Sites  []Site           `json:"sites"`
	Before coverage.Summary `json:"coverage_before"`
	After  coverage.Summary `json:"coverage_after"`
	// Passes holds every scoring round in order, including a final round
	// that found nothing left to place.
	Passes []Pass `json:"-"`
}

// Selector runs greedy placement on top of a Scorer.
type Selector struct {
	scorer scoring.Scorer
}

// New creates a Selector.
func New(scorer scoring.Scorer) *Selector {
	return &Selector{scorer: scorer}
}

// Suggest places up to count stations. Each round rescores the grid with the
// previously placed sites added as circles, then takes the highest score
// (earliest in grid order on ties). It stops early when nothing uncovered remains.
func (s *Selector) Suggest(ctx context.Context, in scoring.Input, count int) (Result, error) {
	if count < 0 {
		return Result{}, fmt.Errorf("%w: count must not be negative", scoring.ErrInvalidInput)
	}

	circles := append([]coverage.Circle(nil), in.Circles...)
	res := Result{Before: coverage.Summarize(in.Incidents, circles)}

	for i := 0; i < count; i++ {
		round := in
		round.Circles = circles
		start := time.Now()
		scored, err := s.scorer.Score(ctx, round)
		if err != nil {
			return Result{}, err
		}
		res.Passes = append(res.Passes, Pass{Summary: scored.Summary, Took: time.Since(start)})
		best := scored.Best()
		if best < 0 {
			break
		}
		p := scored.Points[best]
		placed := coverage.Circle{Center: p.Point, RadiusMiles: in.RadiusMiles}

		newly := 0
		for _, inc := range in.Incidents {
			if placed.Contains(inc) && !coverage.Covered(inc, circles) {
				newly++
			}
		}

		res.Sites = append(res.Sites, Site{
			Rank:                  i + 1,
			Name:                  "Proposed Station " + strconv.Itoa(i+1),
			Score:                 p.Score,
			PopulationScore:       p.PopulationScore,
			IncidentScore:         p.IncidentScore,
			AreaScore:             p.AreaScore,
			NewlyCoveredIncidents: newly,
			Point:                 p.Point,
		})
		circles = append(circles, placed)
	}

	res.After = coverage.Summarize(in.Incidents, circles)
	return res, nil
}
