package repository

import "time"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.metricsUpdateInterval = interval
		}
	}
}

// WithMaxIncidents caps the number of stored incidents; the oldest are evicted first.
// Zero or negative means unbounded.
func WithMaxIncidents(n int) Option {
	return func(s *MemoryStore) {
		s.maxIncidents = n
	}
}

// WithClock sets the time source used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}
