// Package repository stores the stations, incidents and jurisdiction boundary
// that scoring requests fall back to when they do not carry their own.
package repository

import (
	"context"
	"time"

	"github.com/okian/covergap/internal/domain/geo"
	"github.com/okian/covergap/internal/domain/model"
)

// Snapshot is an immutable, internally consistent view of the store.
// Callers must not modify the slices.
type Snapshot struct {
	Version   uint64
	TakenAt   time.Time
	Stations  []model.Station
	Incidents []model.Incident
	Boundary  *geo.Boundary
}

// Store provides read/write access to coverage inputs.
type Store interface {
	// PutStations replaces the full station list.
	PutStations(ctx context.Context, stations []model.Station) error
	// Stations returns the current stations.
	Stations(ctx context.Context) []model.Station

	// PutIncident inserts or replaces an incident by ID. It reports whether the ID was new.
	PutIncident(ctx context.Context, inc model.Incident) (bool, error)
	// DeleteIncident removes an incident. Returns ErrNotFound if it is unknown.
	DeleteIncident(ctx context.Context, id string) error
	// Incidents returns incidents in insertion order.
	Incidents(ctx context.Context) []model.Incident

	// SetBoundary stores the jurisdiction polygon.
	SetBoundary(ctx context.Context, b *geo.Boundary) error
	// ClearBoundary removes the jurisdiction polygon.
	ClearBoundary(ctx context.Context)
	// Boundary returns the polygon, or ErrNotFound when none is set.
	Boundary(ctx context.Context) (*geo.Boundary, error)

	// Snapshot returns the latest published snapshot.
	Snapshot(ctx context.Context) *Snapshot
	// Counts returns the number of incidents and stations.
	Counts(ctx context.Context) (incidents, stations int)
}
