package channel

import (
	"log/slog"
	"time"

	"github.com/aretw0/cadbridge/internal/telemetry"
)

// DefaultTimeout applies when Send is called with a non-positive timeout.
const DefaultTimeout = 30 * time.Second

// Option configures a Channel.
type Option func(*Channel)

// WithTimeout sets the default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Channel) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Channel) {
		c.metrics = m
	}
}
