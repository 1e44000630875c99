package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/covergap/internal/domain/geo"
	"github.com/okian/covergap/internal/domain/model"
	"github.com/okian/covergap/pkg/metrics"
)

const defaultMetricsUpdateInterval = 5 * time.Second

// MemoryStore is an in-process Store. Writes bump a version; readers get an
// immutable snapshot that is rebuilt lazily the first time a newer version is read.
type MemoryStore struct {
	mu        sync.RWMutex
	stations  []model.Station
	incidents map[string]model.Incident
	order     []string
	boundary  *geo.Boundary
	version   uint64

	maxIncidents          int
	metricsUpdateInterval time.Duration
	now                   func() time.Time

	snapshot atomic.Pointer[Snapshot]

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore constructs a store and starts its metrics updater, which
// stops when ctx is done or Close is called.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		incidents:             make(map[string]model.Incident),
		metricsUpdateInterval: defaultMetricsUpdateInterval,
		now:                   time.Now,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snapshot.Store(&Snapshot{TakenAt: s.now()})
	s.startMetricsUpdater(ctx)
	return s
}

func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *MemoryStore) updateMetrics() {
	incidents, stations := s.Counts(context.Background())
	metrics.UpdateStoreSizes(incidents, stations)
}

// Close stops background goroutines.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

// PutStations implements Store.PutStations. Station IDs must be unique and
// non-empty and coordinates must be valid.
func (s *MemoryStore) PutStations(_ context.Context, stations []model.Station) error {
	seen := make(map[string]struct{}, len(stations))
	for i, st := range stations {
		if st.ID == "" {
			return fmt.Errorf("%w: station %d has no id", ErrInvalidStation, i)
		}
		if _, dup := seen[st.ID]; dup {
			return fmt.Errorf("%w: duplicate station id %q", ErrInvalidStation, st.ID)
		}
		if !st.Valid() {
			return fmt.Errorf("%w: station %q has invalid coordinates", ErrInvalidStation, st.ID)
		}
		seen[st.ID] = struct{}{}
	}

	s.mu.Lock()
	s.stations = slices.Clone(stations)
	s.version++
	s.mu.Unlock()
	return nil
}

// Stations implements Store.Stations.
func (s *MemoryStore) Stations(ctx context.Context) []model.Station {
	return slices.Clone(s.Snapshot(ctx).Stations)
}

// PutIncident implements Store.PutIncident.
func (s *MemoryStore) PutIncident(_ context.Context, inc model.Incident) (bool, error) {
	if inc.ID == "" {
		return false, fmt.Errorf("%w: missing id", ErrInvalidIncident)
	}
	if !inc.Valid() {
		return false, fmt.Errorf("%w: incident %q has invalid coordinates", ErrInvalidIncident, inc.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.incidents[inc.ID]
	s.incidents[inc.ID] = inc
	if !exists {
		s.order = append(s.order, inc.ID)
		if s.maxIncidents > 0 && len(s.order) > s.maxIncidents {
			evict := s.order[0]
			s.order = s.order[1:]
			delete(s.incidents, evict)
		}
	}
	s.version++
	return !exists, nil
}

// DeleteIncident implements Store.DeleteIncident.
func (s *MemoryStore) DeleteIncident(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.incidents[id]; !ok {
		return fmt.Errorf("incident %q: %w", id, ErrNotFound)
	}
	delete(s.incidents, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	s.version++
	return nil
}

// Incidents implements Store.Incidents.
func (s *MemoryStore) Incidents(ctx context.Context) []model.Incident {
	return slices.Clone(s.Snapshot(ctx).Incidents)
}

// SetBoundary implements Store.SetBoundary.
func (s *MemoryStore) SetBoundary(_ context.Context, b *geo.Boundary) error {
	if b == nil {
		return fmt.Errorf("%w: nil boundary", ErrInvalidBoundary)
	}
	s.mu.Lock()
	s.boundary = b
	s.version++
	s.mu.Unlock()
	return nil
}

// ClearBoundary implements Store.ClearBoundary.
func (s *MemoryStore) ClearBoundary(_ context.Context) {
	s.mu.Lock()
	if s.boundary != nil {
		s.boundary = nil
		s.version++
	}
	s.mu.Unlock()
}

// Boundary implements Store.Boundary.
func (s *MemoryStore) Boundary(ctx context.Context) (*geo.Boundary, error) {
	b := s.Snapshot(ctx).Boundary
	if b == nil {
		return nil, fmt.Errorf("boundary: %w", ErrNotFound)
	}
	return b, nil
}

// Snapshot implements Store.Snapshot.
func (s *MemoryStore) Snapshot(_ context.Context) *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if cur := s.snapshot.Load(); cur != nil && cur.Version == s.version {
		return cur
	}

	incidents := make([]model.Incident, 0, len(s.order))
	for _, id := range s.order {
		incidents = append(incidents, s.incidents[id])
	}
	snap := &Snapshot{
		Version:   s.version,
		TakenAt:   s.now(),
		Stations:  slices.Clone(s.stations),
		Incidents: incidents,
		Boundary:  s.boundary,
	}
	s.snapshot.Store(snap)
	return snap
}

// Counts implements Store.Counts.
func (s *MemoryStore) Counts(_ context.Context) (incidents, stations int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.incidents), len(s.stations)
}
