package service_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/covergap/internal/app"
	"github.com/okian/covergap/internal/domain/coverage"
	"github.com/okian/covergap/internal/domain/geo"
	"github.com/okian/covergap/internal/domain/model"
	"github.com/okian/covergap/internal/domain/scoring"
	"github.com/okian/covergap/pkg/logger"
	"github.com/okian/covergap/pkg/metrics"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var (
	viewport = geo.Bounds{South: 30, North: 30.1, West: -98, East: -97.9}
	westHalf = []byte(`{"type":"Polygon","coordinates":[[[-98,30],[-97.95,30],[-97.95,30.1],[-98,30.1],[-98,30]]]}`)
)

func startService(opts ...service.Option) (*service.Service, context.Context, context.CancelFunc) {
	svc := service.New(append([]service.Option{service.WithWorkerCount(2), service.WithQueueSize(100)}, opts...)...)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	So(svc.Start(ctx), ShouldBeNil)
	return svc, ctx, cancel
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithWorkerCount(2))

		Convey("When it is not started", func() {
			_, err := svc.Score(context.Background(), service.CoverageRequest{Bounds: viewport})

			Convey("Then operations fail with ErrNotStarted", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
				So(svc.Ready(), ShouldBeFalse)
				So(svc.GetStats()["started"], ShouldEqual, false)
				So(svc.Size(), ShouldEqual, 0)
			})
		})

		Convey("When starting and stopping", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["incidents"], ShouldEqual, 0)
			So(stats["boundary_set"], ShouldEqual, false)

			svc.Stop()
			svc.Stop()

			Convey("Then it reports stopped", func() {
				So(svc.Ready(), ShouldBeFalse)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_SubmitIncident(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc, ctx, cancel := startService()
		defer cancel()
		defer svc.Stop()

		Convey("When a valid incident is submitted", func() {
			id, err := svc.SubmitIncident(ctx, model.Incident{ID: "inc-1", Type: "fire", Point: geo.Point{Lat: 30.05, Lon: -97.95}})

			Convey("Then it is accepted and stored by the workers", func() {
				So(err, ShouldBeNil)
				So(id, ShouldEqual, "inc-1")
				So(waitFor(func() bool {
					incs, _ := svc.Incidents(ctx)
					return len(incs) == 1
				}), ShouldBeTrue)
				incs, _ := svc.Incidents(ctx)
				So(incs[0].Type, ShouldEqual, "fire")
				So(incs[0].ReceivedAt.IsZero(), ShouldBeFalse)
			})

			Convey("Then a replay is reported as a duplicate", func() {
				_, err := svc.SubmitIncident(ctx, model.Incident{ID: "inc-1", Point: geo.Point{Lat: 30.05, Lon: -97.95}})
				So(errors.Is(err, service.ErrDuplicate), ShouldBeTrue)
			})
		})

		Convey("When an incident has no id", func() {
			id, err := svc.SubmitIncident(ctx, model.Incident{Point: geo.Point{Lat: 30.05, Lon: -97.95}})

			Convey("Then a UUID is assigned", func() {
				So(err, ShouldBeNil)
				So(id, ShouldHaveLength, 36)
			})
		})

		Convey("When an incident has invalid coordinates", func() {
			_, err := svc.SubmitIncident(ctx, model.Incident{ID: "bad", Point: geo.Point{Lat: 95, Lon: 0}})

			Convey("Then it is rejected without being recorded", func() {
				So(errors.Is(err, service.ErrInvalidRequest), ShouldBeTrue)
				So(svc.Size(), ShouldEqual, 0)
			})
		})

		Convey("When a stored incident is deleted", func() {
			_, err := svc.SubmitIncident(ctx, model.Incident{ID: "inc-2", Point: geo.Point{Lat: 30.01, Lon: -97.99}})
			So(err, ShouldBeNil)
			So(waitFor(func() bool { incs, _ := svc.Incidents(ctx); return len(incs) == 1 }), ShouldBeTrue)

			So(svc.DeleteIncident(ctx, "inc-2"), ShouldBeNil)

			Convey("Then it is gone and may be resubmitted", func() {
				incs, _ := svc.Incidents(ctx)
				So(incs, ShouldBeEmpty)
				_, err := svc.SubmitIncident(ctx, model.Incident{ID: "inc-2", Point: geo.Point{Lat: 30.01, Lon: -97.99}})
				So(err, ShouldBeNil)
			})

			Convey("Then deleting again reports not found", func() {
				So(errors.Is(svc.DeleteIncident(ctx, "inc-2"), service.ErrNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestService_StationsAndBoundary(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc, ctx, cancel := startService()
		defer cancel()
		defer svc.Stop()

		Convey("When stations are replaced", func() {
			err := svc.PutStations(ctx, []model.Station{{ID: "s1", Name: "Station 1", Point: geo.Point{Lat: 30.05, Lon: -97.95}}})
			So(err, ShouldBeNil)

			stations, err := svc.Stations(ctx)
			So(err, ShouldBeNil)
			So(stations, ShouldHaveLength, 1)
			So(stations[0].Name, ShouldEqual, "Station 1")
		})

		Convey("When a station has invalid coordinates", func() {
			err := svc.PutStations(ctx, []model.Station{{ID: "s1", Point: geo.Point{Lat: 100, Lon: 0}}})
			So(errors.Is(err, service.ErrInvalidRequest), ShouldBeTrue)
		})

		Convey("When a boundary is stored and cleared", func() {
			b, err := svc.PutBoundary(ctx, westHalf)
			So(err, ShouldBeNil)
			So(b.Polygons(), ShouldEqual, 1)

			got, err := svc.Boundary(ctx)
			So(err, ShouldBeNil)
			So(got.Contains(geo.Point{Lat: 30.05, Lon: -97.99}), ShouldBeTrue)

			So(svc.ClearBoundary(ctx), ShouldBeNil)
			_, err = svc.Boundary(ctx)
			So(errors.Is(err, service.ErrNotFound), ShouldBeTrue)
		})

		Convey("When a malformed boundary is stored", func() {
			_, err := svc.PutBoundary(ctx, []byte(`{"type":"Polygon","coordinates":[[[0,0],[1,1]]]}`))
			So(errors.Is(err, service.ErrInvalidRequest), ShouldBeTrue)
		})
	})
}

func TestService_Score(t *testing.T) {
	Convey("Given a started service with one station at the viewport center", t, func() {
		svc, ctx, cancel := startService()
		defer cancel()
		defer svc.Stop()

		center := viewport.Center()
		So(svc.PutStations(ctx, []model.Station{{ID: "s1", Point: center}}), ShouldBeNil)
		radius := coverage.DefaultParams().RadiusMiles()

		Convey("When the viewport is scored", func() {
			res, err := svc.Score(ctx, service.CoverageRequest{Bounds: viewport})
			So(err, ShouldBeNil)

			Convey("Then no scored point lies inside the station circle", func() {
				So(res.RadiusMiles, ShouldAlmostEqual, radius, 1e-9)
				So(res.Summary.Excluded, ShouldBeGreaterThan, 0)
				So(len(res.Points), ShouldEqual, res.Summary.Scored)
				for _, p := range res.Points {
					So(geo.DistanceMiles(p.Point.Point, center), ShouldBeGreaterThan, radius)
				}
			})

			Convey("Then the best point is painted red", func() {
				So(res.Best, ShouldNotBeNil)
				So(res.Best.Score, ShouldEqual, res.Summary.MaxScore)
				So(res.Best.Color.Hex(), ShouldEqual, "#ff0000")
				So(res.Target, ShouldEqual, scoring.TargetBalanced)
				So(res.Legend.TargetLabel, ShouldEqual, "Balanced Approach")
			})

			Convey("Then rescoring yields identical output", func() {
				again, err := svc.Score(ctx, service.CoverageRequest{Bounds: viewport})
				So(err, ShouldBeNil)
				So(again.Points, ShouldResemble, res.Points)
			})
		})

		Convey("When inline stations replace the stored ones", func() {
			res, err := svc.Score(ctx, service.CoverageRequest{Bounds: viewport, Stations: []model.Station{}})
			So(err, ShouldBeNil)

			Convey("Then nothing is excluded", func() {
				So(res.Summary.Excluded, ShouldEqual, 0)
				So(res.Summary.Scored, ShouldEqual, res.Summary.GridPoints)
			})
		})

		Convey("When a stored boundary clips the grid", func() {
			_, err := svc.PutBoundary(ctx, westHalf)
			So(err, ShouldBeNil)

			res, err := svc.Score(ctx, service.CoverageRequest{Bounds: viewport})
			So(err, ShouldBeNil)

			Convey("Then every scored point is inside the boundary", func() {
				So(res.Summary.BoundaryApplied, ShouldBeTrue)
				for _, p := range res.Points {
					So(p.Lon, ShouldBeLessThanOrEqualTo, -97.95+1e-9)
				}
			})

			Convey("Then the boundary can be ignored per request", func() {
				res, err := svc.Score(ctx, service.CoverageRequest{Bounds: viewport, IgnoreBoundary: true})
				So(err, ShouldBeNil)
				So(res.Summary.BoundaryApplied, ShouldBeFalse)
			})
		})

		Convey("When an inline boundary is malformed", func() {
			res, err := svc.Score(ctx, service.CoverageRequest{Bounds: viewport, Boundary: []byte(`{"type":"Polygon"`)})

			Convey("Then scoring proceeds unrestricted with a warning", func() {
				So(err, ShouldBeNil)
				So(res.Summary.BoundaryApplied, ShouldBeFalse)
				So(res.Warnings, ShouldHaveLength, 1)
			})
		})

		Convey("When the request is invalid", func() {
			_, errBounds := svc.Score(ctx, service.CoverageRequest{Bounds: geo.Bounds{South: 1, North: 0, West: 0, East: 1}})
			_, errTarget := svc.Score(ctx, service.CoverageRequest{Bounds: viewport, Target: "votes"})
			_, errParams := svc.Score(ctx, service.CoverageRequest{Bounds: viewport, Params: &coverage.RawParams{TravelSpeed: "fast"}})
			_, errIncident := svc.Score(ctx, service.CoverageRequest{Bounds: viewport, Incidents: []geo.Point{{Lat: 200}}})

			Convey("Then each fails with ErrInvalidRequest", func() {
				So(errors.Is(errBounds, service.ErrInvalidRequest), ShouldBeTrue)
				So(errors.Is(errTarget, service.ErrInvalidRequest), ShouldBeTrue)
				So(errors.Is(errParams, service.ErrInvalidRequest), ShouldBeTrue)
				So(errors.Is(errIncident, service.ErrInvalidRequest), ShouldBeTrue)
			})
		})
	})
}

func TestService_Suggest(t *testing.T) {
	Convey("Given a started service with clustered incidents", t, func() {
		svc, ctx, cancel := startService(service.WithMaxSuggestions(3))
		defer cancel()
		defer svc.Stop()

		incidents := []geo.Point{
			{Lat: 30.01, Lon: -97.99}, {Lat: 30.011, Lon: -97.991}, {Lat: 30.012, Lon: -97.989},
			{Lat: 30.09, Lon: -97.91}, {Lat: 30.091, Lon: -97.909},
		}
		req := service.CoverageRequest{Bounds: viewport, Incidents: incidents, Target: "incidents", Stations: []model.Station{}}

		Convey("When two sites are requested", func() {
			res, err := svc.Suggest(ctx, req, 2)
			So(err, ShouldBeNil)

			Convey("Then sites are ranked and coverage improves", func() {
				So(len(res.Sites), ShouldBeBetweenOrEqual, 1, 2)
				So(res.Sites[0].Rank, ShouldEqual, 1)
				So(res.Sites[0].Name, ShouldEqual, "Proposed Station 1")
				So(res.Before.IncidentsCovered, ShouldEqual, 0)
				So(res.After.IncidentsCovered, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When two rounds run", func() {
			passes := gathered("covergap_coverage_scoring_passes_total", "target", "incidents")
			generated := gathered("covergap_coverage_grid_points_total", "outcome", "generated")
			runs := gathered("covergap_coverage_suggest_duration_milliseconds", "", "")

			_, err := svc.Suggest(ctx, req, 2)
			So(err, ShouldBeNil)

			Convey("Then each round is recorded as its own scoring pass", func() {
				So(gathered("covergap_coverage_scoring_passes_total", "target", "incidents")-passes, ShouldEqual, 2)
				So(gathered("covergap_coverage_grid_points_total", "outcome", "generated")-generated, ShouldEqual, 2*26*26)
				So(gathered("covergap_coverage_suggest_duration_milliseconds", "", "")-runs, ShouldEqual, 1)
			})
		})

		Convey("When the count is out of range", func() {
			_, errZero := svc.Suggest(ctx, req, 0)
			_, errMax := svc.Suggest(ctx, req, 4)
			So(errors.Is(errZero, service.ErrInvalidRequest), ShouldBeTrue)
			So(errors.Is(errMax, service.ErrInvalidRequest), ShouldBeTrue)
		})
	})
}

func TestService_ExportAndRadius(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc, ctx, cancel := startService()
		defer cancel()
		defer svc.Stop()

		Convey("When exporting a scored viewport with suggestions", func() {
			data, err := svc.Export(ctx, service.CoverageRequest{Bounds: viewport}, 1)

			Convey("Then a zip-based workbook is returned", func() {
				So(err, ShouldBeNil)
				So(bytes.HasPrefix(data, []byte("PK")), ShouldBeTrue)
			})
		})

		Convey("When resolving the radius", func() {
			def, err := svc.Radius(nil)
			So(err, ShouldBeNil)
			So(def.RadiusMiles, ShouldAlmostEqual, 245.0/60, 1e-9)

			custom, err := svc.Radius(&coverage.RawParams{ResponseTime: "custom", ResponseTimeCustom: "13", TurnoutTime: "1", TravelSpeed: "30"})
			So(err, ShouldBeNil)
			So(custom.RadiusMiles, ShouldAlmostEqual, 6, 1e-9)

			_, err = svc.Radius(&coverage.RawParams{ResponseTime: "custom"})
			So(errors.Is(err, service.ErrInvalidRequest), ShouldBeTrue)
		})
	})

	Convey("Given configured default parameters", t, func() {
		svc := service.New(service.WithDefaultParams(coverage.Params{ResponseTimeMinutes: 5, TurnoutTimeMinutes: 1, TravelSpeedMph: 30}))

		res, err := svc.Radius(&coverage.RawParams{})
		So(err, ShouldBeNil)
		So(res.RadiusMiles, ShouldAlmostEqual, 2, 1e-9)
	})
}

// gathered reads a counter value or a histogram sample count from the global
// registry, optionally filtered by one label.
func gathered(name, label, value string) float64 {
	families, err := metrics.GetRegistry().Gather()
	So(err, ShouldBeNil)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			matched := label == ""
			for _, l := range m.GetLabel() {
				if l.GetName() == label && l.GetValue() == value {
					matched = true
				}
			}
			if !matched {
				continue
			}
			if h := m.GetHistogram(); h != nil {
				return float64(h.GetSampleCount())
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestService_GridCap(t *testing.T) {
	Convey("Given a service with a small grid cap", t, func() {
		svc, ctx, cancel := startService(service.WithGridDivisions(10), service.WithMaxGridPoints(200))
		defer cancel()
		defer svc.Stop()

		Convey("When the viewport fits", func() {
			_, err := svc.Score(ctx, service.CoverageRequest{Bounds: viewport})
			So(err, ShouldBeNil)
		})

		Convey("When a tall viewport would exceed it", func() {
			tall := geo.Bounds{South: 30, North: 31, West: -98, East: -97.9}
			_, err := svc.Score(ctx, service.CoverageRequest{Bounds: tall})
			So(errors.Is(err, service.ErrInvalidRequest), ShouldBeTrue)
			So(errors.Is(err, geo.ErrInvalidBounds), ShouldBeTrue)
			So(svc.GetStats()["max_grid_points"], ShouldEqual, 200)
		})

		Convey("When latitude leaves the globe", func() {
			_, err := svc.Score(ctx, service.CoverageRequest{Bounds: geo.Bounds{South: 30, North: 1000, West: -98, East: -97.9}})
			So(errors.Is(err, geo.ErrInvalidBounds), ShouldBeTrue)
		})
	})
}
