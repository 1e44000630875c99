// Package queue buffers submitted incidents between the HTTP/Kafka producers
// and the ingest workers.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/covergap/internal/domain/model"
	"github.com/okian/covergap/pkg/metrics"
)

const (
	defaultQueueCapacity = 10_000
)

// Incident is the payload flowing through the queue.
type Incident = model.Incident

// Queue provides non-blocking enqueue and channel-based dequeue.
type Queue interface {
	// Enqueue adds an incident. It returns false when the queue is full or closed.
	Enqueue(ctx context.Context, inc Incident) bool
	// Dequeue returns a channel of incidents that closes with the queue.
	Dequeue(ctx context.Context) <-chan Incident
	// Len returns the number of buffered incidents.
	Len(ctx context.Context) int
	// Close stops accepting incidents; buffered ones are still delivered.
	Close() error
	// IsClosed reports whether Close was called.
	IsClosed() bool
}

// InMemoryQueue implements Queue on a buffered channel.
type InMemoryQueue struct {
	incidents chan Incident
	capacity  int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a bounded in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.incidents = make(chan Incident, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0)
	return q
}

// Enqueue implements Queue.Enqueue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, inc Incident) bool { //nolint:gocritic // hugeParam: passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordQueueProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}

	select {
	case q.incidents <- inc:
		metrics.RecordQueueEnqueue()
		q.observe()
		return true
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// Dequeue implements Queue.Dequeue. Each call starts a forwarding goroutine that
// exits when the queue is closed and drained or ctx is done.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Incident {
	out := make(chan Incident)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case inc, ok := <-q.incidents:
				if !ok {
					return
				}
				select {
				case out <- inc:
					metrics.RecordQueueDequeue()
					q.observe()
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Len implements Queue.Len.
func (q *InMemoryQueue) Len(_ context.Context) int {
	q.observe()
	return len(q.incidents)
}

func (q *InMemoryQueue) observe() {
	size := len(q.incidents)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}

// Close implements Queue.Close.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.incidents)
	q.closed = true
	return nil
}

// IsClosed implements Queue.IsClosed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
