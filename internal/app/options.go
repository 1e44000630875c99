package service

import (
	"github.com/jonboulle/clockwork"

	"github.com/okian/covergap/internal/domain/coverage"
	"github.com/okian/covergap/internal/domain/scoring"
	"github.com/okian/covergap/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of ingest workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the incident queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many incident IDs are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxIncidents caps the incident store; zero keeps everything.
func WithMaxIncidents(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxIncidents = n
		}
	}
}

// WithGridDivisions sets the lattice resolution used for scoring.
func WithGridDivisions(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.divisions = n
		}
	}
}

// WithMaxGridPoints caps the lattice size of a single scoring pass.
func WithMaxGridPoints(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxGridPoints = n
		}
	}
}

// WithDefaultParams sets the response parameters used when a request omits them.
func WithDefaultParams(p coverage.Params) Option {
	return func(s *Service) {
		if p.Validate() == nil {
			s.defaults = p
		}
	}
}

// WithDefaultTarget sets the target used when a request omits one.
func WithDefaultTarget(t scoring.Target) Option {
	return func(s *Service) {
		if t.Valid() {
			s.defaultTarget = t
		}
	}
}

// WithMaxSuggestions caps how many sites a single suggest call may ask for.
func WithMaxSuggestions(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSuggestions = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the clock used for ingest and report timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}
