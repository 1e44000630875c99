package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/okian/covergap/internal/adapters/repository"
	"github.com/okian/covergap/internal/domain/geo"
	"github.com/okian/covergap/internal/domain/model"
	"github.com/okian/covergap/pkg/logger"
	"github.com/okian/covergap/pkg/metrics"
)

// SubmitIncident validates an incident and queues it for ingestion. A missing
// ID is replaced with a random UUID. It returns the ID the incident was
// accepted under, ErrDuplicate for a replayed ID and ErrQueueFull under
// backpressure; a rejected submission may be retried with the same ID.
func (s *Service) SubmitIncident(ctx context.Context, inc model.Incident) (string, error) { //nolint:gocritic // hugeParam: incident is copied into the queue anyway
	c, err := s.running()
	if err != nil {
		return "", err
	}
	if !inc.Valid() {
		metrics.RecordIncidentRejected()
		return "", fmt.Errorf("%w: incident coordinates (%g, %g) out of range", ErrInvalidRequest, inc.Lat, inc.Lon)
	}
	if inc.ID == "" {
		inc.ID = uuid.NewString()
	}

	if c.deduper.SeenAndRecord(ctx, inc.ID) {
		metrics.RecordIncidentDuplicate()
		s.logger.Debug(ctx, "duplicate incident", logger.String("incident_id", inc.ID))
		return inc.ID, ErrDuplicate
	}
	if !c.queue.Enqueue(ctx, inc) {
		c.deduper.Unrecord(ctx, inc.ID)
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "", ErrQueueFull
	}
	return inc.ID, nil
}

// Incidents returns stored incidents in insertion order.
func (s *Service) Incidents(ctx context.Context) ([]model.Incident, error) {
	c, err := s.running()
	if err != nil {
		return nil, err
	}
	return c.store.Incidents(ctx), nil
}

// DeleteIncident removes an incident and forgets its ID so it may be resubmitted.
func (s *Service) DeleteIncident(ctx context.Context, id string) error {
	c, err := s.running()
	if err != nil {
		return err
	}
	if err := c.store.DeleteIncident(ctx, id); err != nil {
		return storeErr(err)
	}
	c.deduper.Unrecord(ctx, id)
	return nil
}

// Stations returns the stored stations.
func (s *Service) Stations(ctx context.Context) ([]model.Station, error) {
	c, err := s.running()
	if err != nil {
		return nil, err
	}
	return c.store.Stations(ctx), nil
}

// PutStations replaces the stored station list.
func (s *Service) PutStations(ctx context.Context, stations []model.Station) error {
	c, err := s.running()
	if err != nil {
		return err
	}
	if err := c.store.PutStations(ctx, stations); err != nil {
		return storeErr(err)
	}
	s.logger.Info(ctx, "stations replaced", logger.Int("count", len(stations)))
	return nil
}

// Boundary returns the stored jurisdiction boundary.
func (s *Service) Boundary(ctx context.Context) (*geo.Boundary, error) {
	c, err := s.running()
	if err != nil {
		return nil, err
	}
	b, err := c.store.Boundary(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	return b, nil
}

// PutBoundary parses and stores a GeoJSON jurisdiction boundary. Unlike the
// inline boundary of a scoring request, a malformed stored boundary is rejected.
func (s *Service) PutBoundary(ctx context.Context, data []byte) (*geo.Boundary, error) {
	c, err := s.running()
	if err != nil {
		return nil, err
	}
	b, err := geo.ParseBoundary(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err := c.store.SetBoundary(ctx, b); err != nil {
		return nil, storeErr(err)
	}
	s.logger.Info(ctx, "boundary stored", logger.Int("polygons", b.Polygons()))
	return b, nil
}

// ClearBoundary removes the stored boundary.
func (s *Service) ClearBoundary(ctx context.Context) error {
	c, err := s.running()
	if err != nil {
		return err
	}
	c.store.ClearBoundary(ctx)
	return nil
}

// storeErr maps repository kinds onto service kinds.
func storeErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, repository.ErrInvalidStation),
		errors.Is(err, repository.ErrInvalidIncident),
		errors.Is(err, repository.ErrInvalidBoundary):
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	default:
		return err
	}
}
