// Package worker drains the ingest queue and writes validated incidents to the store.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/covergap/internal/adapters/mq/queue"
	"github.com/okian/covergap/pkg/logger"
	"github.com/okian/covergap/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 2
	metricsUpdateInterval   = 5 * time.Second
	poolShutdownTimeout     = 30 * time.Second
)

// Incident abstracts what workers read off the queue.
type Incident = queue.Incident

// Writer persists incidents.
type Writer interface {
	PutIncident(ctx context.Context, inc Incident) (bool, error)
}

// Queue defines how workers receive incidents.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Incident
}

// Worker processes incidents until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)
	// Shutdown stops the worker and waits for the loop to exit.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue  Queue
	writer Writer
	name   string
	clock  clockwork.Clock

	onProcessed func()

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker with configuration options.
func NewInMemoryWorker(q Queue, w Writer, opts ...Option) *InMemoryWorker {
	wk := &InMemoryWorker{
		queue:    q,
		writer:   w,
		name:     "worker",
		clock:    clockwork.NewRealClock(),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(wk)
	}
	if wk.logger == nil {
		wk.logger = logger.Get().Named(wk.name)
	}
	return wk
}

// Run implements Worker.Run.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	incidents := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case inc, ok := <-incidents:
			if !ok {
				return
			}
			if err := w.process(ctx, inc); err != nil {
				w.logger.Warn(ctx, "incident not stored", logger.String("incident_id", inc.ID), logger.Error(err))
			}
		}
	}
}

// Shutdown implements Worker.Shutdown.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) process(ctx context.Context, inc Incident) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	start := w.clock.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(w.clock.Since(start).Milliseconds()))
	}()

	if !inc.Valid() {
		metrics.RecordIncidentRejected()
		metrics.RecordErrorByComponent("worker", "invalid_coordinates")
		return fmt.Errorf("%w: lat %v lon %v", ErrInvalidIncident, inc.Lat, inc.Lon)
	}
	if inc.ReceivedAt.IsZero() {
		inc.ReceivedAt = start.UTC()
	}

	if _, err := w.writer.PutIncident(ctx, inc); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_error")
		metrics.RecordErrorByType("store_error", "high")
		return fmt.Errorf("store incident %s: %w", inc.ID, err)
	}

	metrics.RecordIncidentIngested()
	if w.onProcessed != nil {
		w.onProcessed()
	}
	return nil
}

// Pool manages a fixed set of workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	shutdown chan struct{}

	processed         atomic.Int64
	lastProcessedTime time.Time
	clock             clockwork.Clock

	logger logger.Logger
}

// NewPool creates a pool; workerCount < 1 picks a multiple of NumCPU.
// opts apply to every worker.
func NewPool(workerCount int, q Queue, w Writer, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    q,
		shutdown: make(chan struct{}),
		clock:    clockwork.NewRealClock(),
		logger:   logger.Get().Named("worker-pool"),
	}

	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		wopts = append(wopts, withProcessedHook(p.recordProcessed))
		p.workers[i] = NewInMemoryWorker(q, w, wopts...)
	}
	if len(p.workers) > 0 {
		p.clock = p.workers[0].clock
	}
	p.lastProcessedTime = p.clock.Now()

	metrics.UpdateWorkerActiveCount(workerCount)
	metrics.UpdateWorkerMessagesPerSecond(0)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns how many incidents the pool has stored.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Start launches every worker and the throughput updater.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.startMetricsUpdater(ctx)
}

func (p *Pool) recordProcessed() { p.processed.Add(1) }

func (p *Pool) startMetricsUpdater(ctx context.Context) {
	ticker := p.clock.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	var last int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case <-ticker.Chan():
			now := p.clock.Now()
			cur := p.processed.Load()
			if elapsed := now.Sub(p.lastProcessedTime).Seconds(); elapsed > 0 {
				metrics.UpdateWorkerMessagesPerSecond(float64(cur-last) / elapsed)
			}
			last = cur
			p.lastProcessedTime = now
		}
	}
}

// Shutdown closes the queue so workers drain what is buffered, then waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	select {
	case <-p.shutdown:
	default:
		close(p.shutdown)
	}
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
