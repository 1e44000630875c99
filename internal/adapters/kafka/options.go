package kafka

import (
	"time"

	logging "github.com/okian/covergap/pkg/logger"
)

// Option configures a Consumer.
type Option func(*Consumer)

// WithRetryable marks handler errors that should be redelivered instead of committed.
func WithRetryable(fn func(error) bool) Option {
	return func(c *Consumer) {
		if fn != nil {
			c.retryable = fn
		}
	}
}

// WithRetryBackoff sets the pause between redelivery attempts.
func WithRetryBackoff(d time.Duration) Option {
	return func(c *Consumer) {
		if d > 0 {
			c.backoff = d
		}
	}
}

// WithLogger overrides the consumer logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Consumer) {
		if l != nil {
			c.log = l
		}
	}
}
