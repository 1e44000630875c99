package scenario

import (
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/covergap/internal/domain/geo"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestGenerate(t *testing.T) {
	Convey("Given the default configuration", t, func() {
		cfg := DefaultConfig()
		cfg.Incidents = 300

		j, err := Generate(&cfg, fixedNow)
		So(err, ShouldBeNil)

		Convey("Then counts match the configuration", func() {
			So(j.Stations, ShouldHaveLength, cfg.Stations)
			So(j.Incidents, ShouldHaveLength, 300)
			So(j.Boundary, ShouldNotBeEmpty)
		})

		Convey("Then everything lies inside the viewport", func() {
			b := cfg.Bounds()
			inside := func(p geo.Point) bool {
				return p.Lat >= b.South && p.Lat <= b.North && p.Lon >= b.West && p.Lon <= b.East
			}
			for _, s := range j.Stations {
				So(inside(s.Point), ShouldBeTrue)
			}
			for _, inc := range j.Incidents {
				So(inside(inc.Point), ShouldBeTrue)
				So(inc.ID, ShouldNotBeEmpty)
				So(inc.OccurredAt.After(fixedNow), ShouldBeFalse)
			}
		})

		Convey("Then the boundary parses and contains the center", func() {
			bnd, err := geo.ParseBoundary(j.Boundary)
			So(err, ShouldBeNil)
			So(bnd.Contains(cfg.Center), ShouldBeTrue)
			So(bnd.Contains(geo.Point{Lat: cfg.Bounds().North, Lon: cfg.Bounds().East}), ShouldBeFalse)
		})

		Convey("Then the same seed reproduces the jurisdiction", func() {
			again, err := Generate(&cfg, fixedNow)
			So(err, ShouldBeNil)
			So(again, ShouldResemble, j)
		})

		Convey("Then a different seed changes it", func() {
			cfg.Seed = 2
			other, err := Generate(&cfg, fixedNow)
			So(err, ShouldBeNil)
			So(other.Incidents[0].ID, ShouldNotEqual, j.Incidents[0].ID)
		})
	})

	Convey("Given a configuration without a boundary or incidents", t, func() {
		cfg := DefaultConfig()
		cfg.Boundary = false
		cfg.Incidents = 0
		cfg.Clusters = 0

		j, err := Generate(&cfg, fixedNow)
		So(err, ShouldBeNil)
		So(j.Boundary, ShouldBeNil)
		So(j.Incidents, ShouldBeEmpty)
	})
}

func TestConfigValidate(t *testing.T) {
	Convey("Given invalid configurations", t, func() {
		mutations := map[string]func(*Config){
			"empty url":      func(c *Config) { c.BaseURL = "" },
			"bad center":     func(c *Config) { c.Center = geo.Point{Lat: 95} },
			"zero span":      func(c *Config) { c.SpanDeg = 0 },
			"negative count": func(c *Config) { c.Stations = -1 },
			"no clusters":    func(c *Config) { c.Clusters = 0 },
			"negative sites": func(c *Config) { c.Suggest = -1 },
			"no workers":     func(c *Config) { c.Workers = 0 },
		}
		for name, mutate := range mutations {
			cfg := DefaultConfig()
			mutate(&cfg)
			Convey(name, func() {
				So(errors.Is(cfg.Validate(), ErrInvalidConfig), ShouldBeTrue)
			})
		}
	})
}
