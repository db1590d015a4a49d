package cadbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/cadbridge/internal/logging"
	"github.com/aretw0/cadbridge/internal/telemetry"
	"github.com/aretw0/cadbridge/pkg/channel"
	"github.com/aretw0/cadbridge/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Bridge is the high-level client of a command host. It owns exactly one Channel.
type Bridge struct {
	channel *channel.Channel
	logger  *slog.Logger
}

type settings struct {
	timeout    time.Duration
	logger     *slog.Logger
	registerer prometheus.Registerer
}

// Option defines a functional option for configuring the Bridge.
type Option func(*settings)

// WithTimeout sets the default per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.timeout = d
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithMetrics registers the channel metrics on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *settings) {
		s.registerer = reg
	}
}

// New creates a bridge dialing the host through dialer. No connection is made
// until the first request.
func New(dialer channel.Dialer, opts ...Option) *Bridge {
	s := settings{timeout: channel.DefaultTimeout}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}

	chOpts := []channel.Option{
		channel.WithTimeout(s.timeout),
		channel.WithLogger(s.logger),
	}
	if s.registerer != nil {
		chOpts = append(chOpts, channel.WithMetrics(telemetry.New(s.registerer)))
	}

	return &Bridge{
		channel: channel.New(dialer, chOpts...),
		logger:  s.logger,
	}
}

// Send sends one command. A zero timeout uses the bridge default.
func (b *Bridge) Send(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	return b.channel.Send(ctx, method, params, timeout)
}

// Batch sends a batch method and decodes the per-item outcomes.
// A non-nil error is a channel fault: no outcome is available.
func (b *Bridge) Batch(ctx context.Context, method string, items []map[string]any) (*domain.BatchReply, error) {
	if items == nil {
		items = []map[string]any{}
	}
	res, err := b.channel.Send(ctx, method, domain.BatchRequest{Items: items}, 0)
	if err != nil {
		return nil, err
	}

	var reply domain.BatchReply
	if err := json.Unmarshal(res, &reply); err != nil {
		return nil, fmt.Errorf("failed to decode %s reply: %w", method, err)
	}
	if len(reply.Results) != len(items) {
		b.logger.Warn("Batch reply size mismatch", "method", method, "items", len(items), "results", len(reply.Results))
	}
	return &reply, nil
}

// Ping checks that the host answers.
func (b *Bridge) Ping(ctx context.Context) error {
	_, err := b.channel.Send(ctx, "ping", nil, 0)
	return err
}

// Connected reports whether the bridge currently holds a connection.
func (b *Bridge) Connected() bool {
	return b.channel.Connected()
}

// Close drops the connection, rejecting in-flight requests. The bridge may be used again.
func (b *Bridge) Close() error {
	return b.channel.Close()
}
