// Package http relays commands received over HTTP to the host channel.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/cadbridge/internal/logging"
	"github.com/aretw0/cadbridge/internal/telemetry"
	"github.com/aretw0/cadbridge/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// MaxBodySize bounds a relayed request body.
const MaxBodySize = 4 << 20

// Sender sends one command to the host and waits for its reply.
type Sender interface {
	Send(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error)
}

// connectionReporter is implemented by senders that know their connection state.
type connectionReporter interface {
	Connected() bool
}

type config struct {
	logger   *slog.Logger
	timeout  time.Duration
	gatherer prometheus.Gatherer
}

// Option configures the handler.
type Option func(*config)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout sets the per-command timeout. Zero uses the channel default.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithMetrics serves g on GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(c *config) {
		c.gatherer = g
	}
}

type errorBody struct {
	Error string `json:"error"`
	Fault string `json:"fault,omitempty"`
}

// NewHandler creates the relay HTTP handler.
func NewHandler(sender Sender, opts ...Option) http.Handler {
	cfg := config{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{"status": "ok"}
		if cr, ok := sender.(connectionReporter); ok {
			body["connected"] = cr.Connected()
		}
		writeJSON(w, http.StatusOK, body)
	})
	if cfg.gatherer != nil {
		r.Handle("/metrics", telemetry.Handler(cfg.gatherer))
	}
	r.Post("/v1/commands/{method}", func(w http.ResponseWriter, r *http.Request) {
		method := chi.URLParam(r, "method")

		body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodySize+1))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "failed to read request body"})
			return
		}
		if len(body) > MaxBodySize {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large"})
			return
		}
		var params json.RawMessage
		if len(body) > 0 {
			if !json.Valid(body) {
				writeJSON(w, http.StatusBadRequest, errorBody{Error: "request body must be JSON"})
				return
			}
			params = body
		}

		res, err := sender.Send(r.Context(), method, params, cfg.timeout)
		if err != nil {
			status, fault := statusFor(err)
			cfg.logger.Warn("Relayed command failed", "method", method, "status", status, "error", err)
			writeJSON(w, status, errorBody{Error: err.Error(), Fault: fault})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(res); err != nil {
			cfg.logger.Error("Relay response write failed", "error", err)
		}
	})

	return enableCORS(r)
}

// statusFor maps channel faults onto HTTP status codes.
func statusFor(err error) (int, string) {
	fault, ok := domain.FaultOf(err)
	if !ok {
		if errors.Is(err, context.Canceled) {
			return 499, ""
		}
		return http.StatusInternalServerError, ""
	}
	switch fault {
	case domain.TimedOut:
		return http.StatusGatewayTimeout, fault.String()
	case domain.Disconnected:
		return http.StatusServiceUnavailable, fault.String()
	case domain.HostRejected:
		return http.StatusUnprocessableEntity, fault.String()
	default:
		return http.StatusInternalServerError, fault.String()
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
