package scenario

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/covergap/internal/app"
	"github.com/okian/covergap/internal/domain/coverage"
	"github.com/okian/covergap/internal/domain/geo"
	"github.com/okian/covergap/internal/domain/heatmap"
	"github.com/okian/covergap/internal/domain/model"
	"github.com/okian/covergap/internal/domain/scoring"
	"github.com/okian/covergap/internal/domain/selector"
)

func cell(lat, lon, score float64) heatmap.Cell {
	return heatmap.Cell{Point: scoring.Point{Point: geo.Point{Lat: lat, Lon: lon}, Score: score}}
}

func TestVerify(t *testing.T) {
	Convey("Given a jurisdiction with one station", t, func() {
		j := &Jurisdiction{Stations: []model.Station{{ID: "s1", Point: geo.Point{Lat: 30, Lon: -97}}}}
		cells := heatmap.Paint([]scoring.Point{
			{Point: geo.Point{Lat: 30.2, Lon: -97}, Score: 4},
			{Point: geo.Point{Lat: 30.3, Lon: -97}, Score: 8},
		})
		score := service.ScoreResult{RadiusMiles: 5, Points: cells, Best: &cells[1]}
		rescore := score

		Convey("When the results are consistent", func() {
			suggest := &service.SuggestResult{
				RadiusMiles: 5,
				Sites: []selector.Site{
					{Name: "a", Point: geo.Point{Lat: 30.3, Lon: -97}},
					{Name: "b", Point: geo.Point{Lat: 30.5, Lon: -97}},
				},
				Before: coverage.Summary{IncidentsCovered: 3},
				After:  coverage.Summary{IncidentsCovered: 7},
			}
			checks := Verify(j, nil, &score, &rescore, suggest)

			Convey("Then every check passes", func() {
				So(checks, ShouldHaveLength, 6)
				So(Failed(checks), ShouldBeEmpty)
			})
		})

		Convey("When a scored point sits inside a station radius", func() {
			score.Points = append(score.Points, cell(30.01, -97, 1))
			failed := Failed(Verify(j, nil, &score, &score, nil))
			So(failed, ShouldHaveLength, 1)
			So(failed[0].Detail, ShouldContainSubstring, "s1")
		})

		Convey("When the best point is not red", func() {
			best := cells[1]
			best.Color = heatmap.Yellow
			score.Best = &best
			failed := Failed(Verify(j, nil, &score, &score, nil))
			So(failed, ShouldHaveLength, 1)
			So(failed[0].Name, ShouldEqual, "highest scoring point is red")
		})

		Convey("When rescoring differs", func() {
			rescore.Points = cells[:1]
			failed := Failed(Verify(j, nil, &score, &rescore, nil))
			So(failed, ShouldHaveLength, 1)
			So(failed[0].Name, ShouldEqual, "rescoring the same input is identical")
		})

		Convey("When a point falls outside the boundary", func() {
			b, err := geo.NewBoundary([]geo.Point{{Lat: 30.1, Lon: -97.1}, {Lat: 30.1, Lon: -96.9}, {Lat: 30.25, Lon: -96.9}, {Lat: 30.25, Lon: -97.1}, {Lat: 30.1, Lon: -97.1}})
			So(err, ShouldBeNil)
			failed := Failed(Verify(j, b, &score, &score, nil))
			So(failed, ShouldHaveLength, 1)
			So(failed[0].Detail, ShouldContainSubstring, "outside the boundary")
		})

		Convey("When suggested sites overlap or lose coverage", func() {
			suggest := &service.SuggestResult{
				RadiusMiles: 5,
				Sites: []selector.Site{
					{Name: "a", Point: geo.Point{Lat: 30.3, Lon: -97}},
					{Name: "b", Point: geo.Point{Lat: 30.31, Lon: -97}},
				},
				Before: coverage.Summary{IncidentsCovered: 3},
				After:  coverage.Summary{IncidentsCovered: 2},
			}
			So(Failed(Verify(j, nil, &score, &score, suggest)), ShouldHaveLength, 2)
		})
	})

	Convey("Given an empty heat map", t, func() {
		empty := service.ScoreResult{}
		So(Failed(Verify(&Jurisdiction{}, nil, &empty, &empty, nil)), ShouldBeEmpty)
	})
}
