package repository_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/covergap/internal/adapters/repository"
	"github.com/okian/covergap/internal/domain/geo"
	"github.com/okian/covergap/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func incident(id string, lat, lon float64) model.Incident {
	return model.Incident{ID: id, Point: geo.Point{Lat: lat, Lon: lon}}
}

func TestMemoryStoreStations(t *testing.T) {
	Convey("Given an empty store", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(ctx)
		Reset(func() { _ = store.Close() })

		Convey("When stations are put", func() {
			err := store.PutStations(ctx, []model.Station{
				{ID: "s1", Name: "Station 1", Point: geo.Point{Lat: 30, Lon: -97}},
				{ID: "s2", Point: geo.Point{Lat: 30.1, Lon: -97.1}},
			})
			So(err, ShouldBeNil)

			Convey("Then they are returned in order", func() {
				got := store.Stations(ctx)
				So(got, ShouldHaveLength, 2)
				So(got[0].Name, ShouldEqual, "Station 1")
				_, stations := store.Counts(ctx)
				So(stations, ShouldEqual, 2)
			})

			Convey("And a later put replaces the list", func() {
				So(store.PutStations(ctx, nil), ShouldBeNil)
				So(store.Stations(ctx), ShouldBeEmpty)
			})
		})

		Convey("When a station has no id", func() {
			err := store.PutStations(ctx, []model.Station{{Point: geo.Point{Lat: 30, Lon: -97}}})
			So(errors.Is(err, repository.ErrInvalidStation), ShouldBeTrue)
		})

		Convey("When station ids collide", func() {
			err := store.PutStations(ctx, []model.Station{
				{ID: "a", Point: geo.Point{Lat: 30, Lon: -97}},
				{ID: "a", Point: geo.Point{Lat: 31, Lon: -97}},
			})
			So(errors.Is(err, repository.ErrInvalidStation), ShouldBeTrue)
		})

		Convey("When coordinates are out of range", func() {
			err := store.PutStations(ctx, []model.Station{{ID: "x", Point: geo.Point{Lat: 95, Lon: -97}}})
			So(errors.Is(err, repository.ErrInvalidStation), ShouldBeTrue)
		})
	})
}

func TestMemoryStoreIncidents(t *testing.T) {
	Convey("Given a store capped at three incidents", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(ctx, repository.WithMaxIncidents(3))
		Reset(func() { _ = store.Close() })

		Convey("When incidents are inserted", func() {
			created, err := store.PutIncident(ctx, incident("i1", 30, -97))
			So(err, ShouldBeNil)
			So(created, ShouldBeTrue)

			Convey("Then replacing by id does not create", func() {
				created, err := store.PutIncident(ctx, incident("i1", 30.5, -97))
				So(err, ShouldBeNil)
				So(created, ShouldBeFalse)
				got := store.Incidents(ctx)
				So(got, ShouldHaveLength, 1)
				So(got[0].Lat, ShouldEqual, 30.5)
			})

			Convey("Then the oldest is evicted beyond the cap", func() {
				for i := 2; i <= 4; i++ {
					_, err := store.PutIncident(ctx, incident(fmt.Sprintf("i%d", i), 30, -97))
					So(err, ShouldBeNil)
				}
				got := store.Incidents(ctx)
				So(got, ShouldHaveLength, 3)
				So(got[0].ID, ShouldEqual, "i2")
				So(got[2].ID, ShouldEqual, "i4")
			})

			Convey("Then deleting removes it", func() {
				So(store.DeleteIncident(ctx, "i1"), ShouldBeNil)
				So(store.Incidents(ctx), ShouldBeEmpty)
				err := store.DeleteIncident(ctx, "i1")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When an incident has no id", func() {
			_, err := store.PutIncident(ctx, incident("", 30, -97))
			So(errors.Is(err, repository.ErrInvalidIncident), ShouldBeTrue)
		})

		Convey("When an incident has invalid coordinates", func() {
			_, err := store.PutIncident(ctx, incident("bad", 30, -200))
			So(errors.Is(err, repository.ErrInvalidIncident), ShouldBeTrue)
		})
	})
}

func TestMemoryStoreBoundaryAndSnapshot(t *testing.T) {
	Convey("Given a store with a fixed clock", t, func() {
		ctx := context.Background()
		fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		store := repository.NewMemoryStore(ctx, repository.WithClock(func() time.Time { return fixed }))
		Reset(func() { _ = store.Close() })

		Convey("When no boundary is set", func() {
			_, err := store.Boundary(ctx)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			So(errors.Is(store.SetBoundary(ctx, nil), repository.ErrInvalidBoundary), ShouldBeTrue)
		})

		Convey("When a boundary is set and cleared", func() {
			b, err := geo.ParseBoundary([]byte(`{"type":"Polygon","coordinates":[[[-98,30],[-97,30],[-97,31],[-98,31],[-98,30]]]}`))
			So(err, ShouldBeNil)
			So(store.SetBoundary(ctx, b), ShouldBeNil)
			got, err := store.Boundary(ctx)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, b)

			store.ClearBoundary(ctx)
			_, err = store.Boundary(ctx)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("When snapshots are taken", func() {
			first := store.Snapshot(ctx)
			again := store.Snapshot(ctx)
			So(again, ShouldEqual, first)
			So(first.TakenAt, ShouldEqual, fixed)

			_, err := store.PutIncident(ctx, incident("i1", 30, -97))
			So(err, ShouldBeNil)
			next := store.Snapshot(ctx)

			Convey("Then a write publishes a new version and old snapshots stay unchanged", func() {
				So(next.Version, ShouldBeGreaterThan, first.Version)
				So(next.Incidents, ShouldHaveLength, 1)
				So(first.Incidents, ShouldBeEmpty)
			})
		})
	})
}

func TestMemoryStoreConcurrency(t *testing.T) {
	Convey("Given concurrent writers and readers", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore(ctx, repository.WithMetricsUpdateInterval(time.Millisecond))
		Reset(func() { _ = store.Close() })

		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					_, _ = store.PutIncident(ctx, incident(fmt.Sprintf("w%d-%d", w, i), 30, -97))
					_ = store.Snapshot(ctx)
				}
			}(w)
		}
		wg.Wait()

		incidents, _ := store.Counts(ctx)
		So(incidents, ShouldEqual, 400)
		So(store.Snapshot(ctx).Incidents, ShouldHaveLength, 400)
		So(store.Close(), ShouldBeNil)
		So(store.Close(), ShouldBeNil)
	})
}
