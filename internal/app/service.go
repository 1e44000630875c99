// Package service wires the store, ingest pipeline and coverage scorer into the
// operations the HTTP API and the Kafka consumer call.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	eventqueue "github.com/okian/covergap/internal/adapters/mq/queue"
	workerpool "github.com/okian/covergap/internal/adapters/mq/worker"
	"github.com/okian/covergap/internal/adapters/repository"
	"github.com/okian/covergap/internal/domain/coverage"
	"github.com/okian/covergap/internal/domain/dedupe"
	"github.com/okian/covergap/internal/domain/grid"
	"github.com/okian/covergap/internal/domain/scoring"
	"github.com/okian/covergap/internal/domain/selector"
	"github.com/okian/covergap/pkg/logger"
	"github.com/okian/covergap/pkg/metrics"
)

const (
	defaultQueueSize      = 10_000
	defaultDedupeSize     = 100_000
	defaultMaxSuggestions = 10
	stopTimeout           = 10 * time.Second
)

// Service owns every runtime component.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    *repository.MemoryStore
	deduper  dedupe.Deduper
	queue    *eventqueue.InMemoryQueue
	pool     *workerpool.Pool
	scorer   scoring.Scorer
	selector *selector.Selector

	// Configuration
	workerCount    int
	queueSize      int
	dedupeSize     int
	maxIncidents   int
	divisions      int
	maxGridPoints  int
	defaults       coverage.Params
	defaultTarget  scoring.Target
	maxSuggestions int
	clock          clockwork.Clock

	started bool
	logger  logger.Logger
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    runtime.NumCPU() * 2,
		queueSize:      defaultQueueSize,
		dedupeSize:     defaultDedupeSize,
		divisions:      grid.DefaultDivisions,
		maxGridPoints:  scoring.DefaultMaxGridPoints,
		defaults:       coverage.DefaultParams(),
		defaultTarget:  scoring.TargetBalanced,
		maxSuggestions: defaultMaxSuggestions,
		clock:          clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components. It is a no-op when
// already started.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting coverage service...")

	s.store = repository.NewMemoryStore(ctx,
		repository.WithMaxIncidents(s.maxIncidents),
		repository.WithClock(s.clock.Now),
	)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	gs := scoring.NewGridScorer(scoring.WithDivisions(s.divisions), scoring.WithMaxGridPoints(s.maxGridPoints))
	s.scorer = gs
	s.selector = selector.New(gs)

	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.store,
		workerpool.WithClock(s.clock),
		workerpool.WithLogger(s.logger.Named("worker")),
	)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "coverage service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.Int("grid_divisions", s.divisions),
		logger.Float64("default_radius_miles", s.defaults.RadiusMiles()),
		logger.String("default_target", string(s.defaultTarget)),
	)
	return nil
}

// Stop drains the ingest queue and releases the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping coverage service...")
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "closing store", logger.Error(err))
	}
	s.started = false
	s.logger.Info(ctx, "coverage service stopped")
}

// running returns the components under the read lock, or ErrNotStarted.
func (s *Service) running() (*components, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return &components{
		store:    s.store,
		deduper:  s.deduper,
		queue:    s.queue,
		scorer:   s.scorer,
		selector: s.selector,
	}, nil
}

type components struct {
	store    *repository.MemoryStore
	deduper  dedupe.Deduper
	queue    *eventqueue.InMemoryQueue
	scorer   scoring.Scorer
	selector *selector.Selector
}

// Ready reports whether the service accepts requests.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":         s.started,
		"worker_count":    s.workerCount,
		"queue_size":      s.queueSize,
		"dedupe_size":     s.dedupeSize,
		"grid_divisions":  s.divisions,
		"max_grid_points": s.maxGridPoints,
		"default_target":  string(s.defaultTarget),
		"default_params":  s.defaults,
		"max_suggestions": s.maxSuggestions,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		incidents, stations := s.store.Counts(ctx)
		_, boundaryErr := s.store.Boundary(ctx)

		stats["queue_length"] = queueLen
		stats["incidents"] = incidents
		stats["stations"] = stations
		stats["boundary_set"] = boundaryErr == nil
		stats["dedupe_entries"] = s.deduper.Size()
		stats["processed"] = s.pool.Processed()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateStoreSizes(incidents, stations)
	}
	return stats
}

// Size returns the number of IDs held by the deduper.
func (s *Service) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}
