package host

import (
	"log/slog"
	"time"

	"github.com/aretw0/cadbridge/internal/telemetry"
	"github.com/aretw0/cadbridge/pkg/ports"
	"github.com/aretw0/cadbridge/pkg/wire"
)

type options struct {
	logger  *slog.Logger
	metrics *telemetry.Metrics
	journal ports.JournalStore
	framing wire.Framing
	now     func() time.Time
}

// Option configures a Router or a Server.
type Option func(*options)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithJournal records every committed batch (Router only).
func WithJournal(j ports.JournalStore) Option {
	return func(o *options) {
		o.journal = j
	}
}

// WithFraming sets the byte stream framing (Server only). Default is newline.
func WithFraming(f wire.Framing) Option {
	return func(o *options) {
		o.framing = f
	}
}

// WithClock overrides the time source used for journal timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
