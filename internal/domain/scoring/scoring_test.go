package scoring_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/covergap/internal/domain/coverage"
	"github.com/okian/covergap/internal/domain/geo"
	"github.com/okian/covergap/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

var viewport = geo.Bounds{South: 30, North: 30.5, West: -98, East: -97.5}

func TestParseTarget(t *testing.T) {
	Convey("Given target names", t, func() {
		for _, tgt := range scoring.Targets() {
			got, err := scoring.ParseTarget(string(tgt))
			So(err, ShouldBeNil)
			So(got, ShouldEqual, tgt)
		}

		got, err := scoring.ParseTarget("  Incidents ")
		So(err, ShouldBeNil)
		So(got, ShouldEqual, scoring.TargetIncidents)

		got, err = scoring.ParseTarget("")
		So(err, ShouldBeNil)
		So(got, ShouldEqual, scoring.TargetBalanced)

		_, err = scoring.ParseTarget("cost")
		So(errors.Is(err, scoring.ErrInvalidTarget), ShouldBeTrue)
	})
}

func TestTargetWeights(t *testing.T) {
	Convey("Given each target", t, func() {
		So(scoring.TargetPopulation.Weights(), ShouldResemble, scoring.Weights{Population: 2, Incidents: 0.5, Area: 0.5})
		So(scoring.TargetArea.Weights(), ShouldResemble, scoring.Weights{Population: 0.5, Incidents: 0.5, Area: 2})
		So(scoring.TargetIncidents.Weights(), ShouldResemble, scoring.Weights{Population: 0.5, Incidents: 2, Area: 0.5})
		So(scoring.TargetBalanced.Weights(), ShouldResemble, scoring.Weights{Population: 1, Incidents: 1, Area: 1})
		So(scoring.Target("bogus").Weights(), ShouldResemble, scoring.TargetBalanced.Weights())
		So(scoring.TargetIncidents.Label(), ShouldEqual, "Incident Response")
	})
}

func TestWeightedTotal(t *testing.T) {
	Convey("Given components population 8, incidents 4, area 5", t, func() {
		total := func(w scoring.Weights) float64 { return 8*w.Population + 4*w.Incidents + 5*w.Area }

		Convey("Then the population target totals 20.5", func() {
			So(total(scoring.TargetPopulation.Weights()), ShouldAlmostEqual, 20.5, 1e-12)
		})

		Convey("Then the balanced target is the plain sum", func() {
			So(total(scoring.TargetBalanced.Weights()), ShouldAlmostEqual, 17, 1e-12)
		})
	})
}

func TestPopulationScore(t *testing.T) {
	Convey("Given the viewport center", t, func() {
		c := viewport.Center()

		Convey("Then the center scores 10", func() {
			So(scoring.PopulationScore(c, c, viewport), ShouldEqual, 10)
		})

		Convey("Then a corner scores 10*(1-sqrt(0.5))", func() {
			So(scoring.PopulationScore(geo.Point{Lat: 30, Lon: -98}, c, viewport), ShouldAlmostEqual, 2.9289, 1e-3)
		})

		Convey("Then points far outside clamp to zero", func() {
			So(scoring.PopulationScore(geo.Point{Lat: 40, Lon: -90}, c, viewport), ShouldEqual, 0)
		})
	})
}

func TestIncidentScore(t *testing.T) {
	Convey("Given a candidate and a 4 mile radius", t, func() {
		p := geo.Point{Lat: 30.25, Lon: -97.75}

		Convey("When there are no incidents", func() {
			So(scoring.IncidentScore(p, nil, 4), ShouldEqual, 0)
		})

		Convey("When ten incidents sit on the candidate", func() {
			incs := make([]geo.Point, 10)
			for i := range incs {
				incs[i] = p
			}
			Convey("Then the score saturates at 20", func() {
				So(scoring.IncidentScore(p, incs, 4), ShouldAlmostEqual, 20, 1e-9)
			})
		})

		Convey("When five incidents sit on the candidate", func() {
			incs := []geo.Point{p, p, p, p, p}
			So(scoring.IncidentScore(p, incs, 4), ShouldAlmostEqual, 10, 1e-9)
		})

		Convey("When one incident is near the radius edge", func() {
			edge := geo.Point{Lat: p.Lat + 0.0575, Lon: p.Lon} // just under 4 miles
			d := geo.DistanceMiles(p, edge)
			So(d, ShouldBeLessThan, 4)
			want := 20 * 0.1 * (1 - 0.75*d/4)
			So(scoring.IncidentScore(p, []geo.Point{edge}, 4), ShouldAlmostEqual, want, 1e-9)
		})

		Convey("When one incident sits exactly at the radius", func() {
			edge := geo.Point{Lat: p.Lat + 0.05, Lon: p.Lon}
			r := geo.DistanceMiles(p, edge)
			Convey("Then it weighs 0.25 and scores 20 * 0.1 * 0.25", func() {
				So(scoring.IncidentScore(p, []geo.Point{edge}, r), ShouldAlmostEqual, 0.5, 1e-9)
			})
		})

		Convey("When an incident is beyond the radius", func() {
			far := geo.Point{Lat: p.Lat + 0.2, Lon: p.Lon}
			So(scoring.IncidentScore(p, []geo.Point{far}, 4), ShouldEqual, 0)
		})

		Convey("When the radius is zero", func() {
			near := geo.Point{Lat: p.Lat + 0.001, Lon: p.Lon}
			So(scoring.IncidentScore(p, []geo.Point{p, near}, 0), ShouldAlmostEqual, 2, 1e-9)
		})

		Convey("When many incidents are spread out", func() {
			var incs []geo.Point
			for i := 0; i < 50; i++ {
				incs = append(incs, geo.Point{Lat: p.Lat + float64(i)*0.001, Lon: p.Lon})
			}
			s := scoring.IncidentScore(p, incs, 4)
			So(s, ShouldBeGreaterThan, 0)
			So(s, ShouldBeLessThanOrEqualTo, 20)
		})
	})
}

func TestGridScorer(t *testing.T) {
	Convey("Given a grid scorer", t, func() {
		scorer := scoring.NewGridScorer(scoring.WithDivisions(10))
		ctx := context.Background()
		So(scorer.Divisions(), ShouldEqual, 10)

		station := geo.Point{Lat: 30.1, Lon: -97.9}
		circles := []coverage.Circle{{Center: station, RadiusMiles: 4}}
		incidents := []geo.Point{
			{Lat: 30.4, Lon: -97.6}, {Lat: 30.41, Lon: -97.6}, {Lat: 30.4, Lon: -97.61},
			{Lat: 30.1, Lon: -97.9}, // covered by the station
		}
		in := scoring.Input{
			Bounds:      viewport,
			Circles:     circles,
			Incidents:   incidents,
			RadiusMiles: 4,
			Target:      scoring.TargetBalanced,
		}

		Convey("When scoring", func() {
			res, err := scorer.Score(ctx, in)
			So(err, ShouldBeNil)

			Convey("Then no scored point lies inside an existing circle", func() {
				So(res.Points, ShouldNotBeEmpty)
				for _, p := range res.Points {
					So(coverage.Covered(p.Point, circles), ShouldBeFalse)
				}
				So(res.Summary.Excluded, ShouldBeGreaterThan, 0)
				So(res.Summary.GridPoints, ShouldEqual, res.Summary.Excluded+res.Summary.Scored)
				So(res.Summary.Scored, ShouldEqual, len(res.Points))
				So(res.Summary.BoundaryApplied, ShouldBeFalse)
			})

			Convey("And every score is the weighted sum of non-negative components", func() {
				for _, p := range res.Points {
					So(p.PopulationScore, ShouldBeBetweenOrEqual, 0, 10)
					So(p.IncidentScore, ShouldBeBetweenOrEqual, 0, 20)
					So(p.AreaScore, ShouldEqual, 5)
					So(p.Score, ShouldAlmostEqual, p.PopulationScore+p.IncidentScore+p.AreaScore, 1e-9)
					So(p.Score, ShouldBeLessThanOrEqualTo, res.Summary.MaxScore)
				}
			})

			Convey("And the best site is near the uncovered incident cluster", func() {
				best := res.Points[res.Best()]
				So(best.IncidentScore, ShouldBeGreaterThan, 0)
				So(best.Score, ShouldEqual, res.Summary.MaxScore)
			})

			Convey("And rescoring gives an identical result", func() {
				again, err := scorer.Score(ctx, in)
				So(err, ShouldBeNil)
				So(again, ShouldResemble, res)
			})
		})

		Convey("When there are no incidents", func() {
			in.Incidents = nil
			res, err := scorer.Score(ctx, in)
			So(err, ShouldBeNil)
			for _, p := range res.Points {
				So(p.IncidentScore, ShouldEqual, 0)
			}
		})

		Convey("When there are no stations", func() {
			in.Circles = nil
			res, err := scorer.Score(ctx, in)
			So(err, ShouldBeNil)
			So(res.Summary.Excluded, ShouldEqual, 0)
			So(res.Summary.Scored, ShouldEqual, 11*11)
		})

		Convey("When the target changes", func() {
			in.Target = scoring.TargetIncidents
			res, err := scorer.Score(ctx, in)
			So(err, ShouldBeNil)
			for _, p := range res.Points {
				So(p.Score, ShouldAlmostEqual, 0.5*p.PopulationScore+2*p.IncidentScore+0.5*p.AreaScore, 1e-9)
			}
		})

		Convey("When the target is empty it defaults to balanced", func() {
			in.Target = ""
			res, err := scorer.Score(ctx, in)
			So(err, ShouldBeNil)
			p := res.Points[0]
			So(p.Score, ShouldAlmostEqual, p.PopulationScore+p.IncidentScore+p.AreaScore, 1e-9)
		})

		Convey("When a boundary is supplied", func() {
			b, err := geo.ParseBoundary([]byte(`{"type":"Polygon","coordinates":[[[-97.8,30.2],[-97.5,30.2],[-97.5,30.5],[-97.8,30.5],[-97.8,30.2]]]}`))
			So(err, ShouldBeNil)
			in.Boundary = b
			res, err := scorer.Score(ctx, in)
			So(err, ShouldBeNil)
			So(res.Summary.BoundaryApplied, ShouldBeTrue)
			for _, p := range res.Points {
				So(b.Contains(p.Point), ShouldBeTrue)
			}
		})

		Convey("When the target is unknown", func() {
			in.Target = "cost"
			_, err := scorer.Score(ctx, in)
			So(errors.Is(err, scoring.ErrInvalidTarget), ShouldBeTrue)
		})

		Convey("When the bounds are inverted", func() {
			in.Bounds = geo.Bounds{South: 31, North: 30, West: -98, East: -97}
			_, err := scorer.Score(ctx, in)
			So(errors.Is(err, geo.ErrInvalidBounds), ShouldBeTrue)
		})

		Convey("When the viewport is a tall sliver", func() {
			in.Bounds = geo.Bounds{South: 0, North: 10, West: 0, East: 0.001}
			_, err := scoring.NewGridScorer().Score(ctx, in)
			Convey("Then it is refused before any point is generated", func() {
				So(errors.Is(err, geo.ErrInvalidBounds), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "6500026 grid points")
			})
		})

		Convey("When the lattice exceeds a configured cap", func() {
			capped := scoring.NewGridScorer(scoring.WithDivisions(10), scoring.WithMaxGridPoints(50))
			_, err := capped.Score(ctx, in)
			So(errors.Is(err, geo.ErrInvalidBounds), ShouldBeTrue)

			roomy := scoring.NewGridScorer(scoring.WithDivisions(10), scoring.WithMaxGridPoints(121))
			_, err = roomy.Score(ctx, in)
			So(err, ShouldBeNil)
		})

		Convey("When the radius is negative", func() {
			in.RadiusMiles = -1
			_, err := scorer.Score(ctx, in)
			So(errors.Is(err, scoring.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			fine := scoring.NewGridScorer(scoring.WithDivisions(60))
			in.Circles = nil
			_, err := fine.Score(cctx, in)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestResultBest(t *testing.T) {
	Convey("Given tied scores", t, func() {
		r := scoring.Result{Points: []scoring.Point{{Score: 1}, {Score: 3}, {Score: 3}, {Score: 2}}}
		So(r.Best(), ShouldEqual, 1)
		So(scoring.Result{}.Best(), ShouldEqual, -1)
	})
}
