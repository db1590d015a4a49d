// Package telemetry holds the Prometheus collectors shared by the channel,
// the batch executor and the host server.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cadbridge"

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Requests     *prometheus.CounterVec
	Latency      *prometheus.HistogramVec
	Pending      prometheus.Gauge
	Dials        *prometheus.CounterVec
	Disconnects  prometheus.Counter
	StrayReplies prometheus.Counter

	Batches *prometheus.CounterVec
	Items   *prometheus.CounterVec

	HostRequests *prometheus.CounterVec
}

// New creates the collectors and registers them on reg (if not nil).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "requests_total",
			Help:      "Requests sent to the host, by method and outcome.",
		}, []string{"method", "outcome"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "request_duration_seconds",
			Help:      "Time from send to resolution of a request.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		Pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "pending_requests",
			Help:      "Requests awaiting a reply.",
		}),
		Dials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "dials_total",
			Help:      "Connection attempts to the host, by result.",
		}, []string{"result"}),
		Disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "disconnects_total",
			Help:      "Lost or closed host connections.",
		}),
		StrayReplies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "channel",
			Name:      "stray_replies_total",
			Help:      "Replies dropped because no request was pending for their id.",
		}),
		Batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "transactions_total",
			Help:      "Batch transactions, by result (committed or aborted).",
		}, []string{"result"}),
		Items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "items_total",
			Help:      "Batch items, by operation kind and result.",
		}, []string{"kind", "result"}),
		HostRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "requests_total",
			Help:      "Requests handled by the host, by method and result.",
		}, []string{"method", "result"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Requests, m.Latency, m.Pending, m.Dials, m.Disconnects, m.StrayReplies,
			m.Batches, m.Items, m.HostRequests,
		)
	}
	return m
}

// ObserveRequest records a resolved channel request.
func (m *Metrics) ObserveRequest(method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, outcome).Inc()
	m.Latency.WithLabelValues(method).Observe(d.Seconds())
}

// SetPending records the size of the pending request table.
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.Pending.Set(float64(n))
}

// ObserveDial records a connection attempt.
func (m *Metrics) ObserveDial(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Dials.WithLabelValues(result).Inc()
}

// ObserveDisconnect records a lost connection.
func (m *Metrics) ObserveDisconnect() {
	if m == nil {
		return
	}
	m.Disconnects.Inc()
}

// ObserveStray records a dropped reply.
func (m *Metrics) ObserveStray() {
	if m == nil {
		return
	}
	m.StrayReplies.Inc()
}

// ObserveBatch records the end of a batch transaction.
func (m *Metrics) ObserveBatch(committed bool) {
	if m == nil {
		return
	}
	result := "committed"
	if !committed {
		result = "aborted"
	}
	m.Batches.WithLabelValues(result).Inc()
}

// ObserveItem records one batch item outcome.
func (m *Metrics) ObserveItem(kind string, success bool) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.Items.WithLabelValues(kind, result).Inc()
}

// ObserveHostRequest records a request handled by the host.
func (m *Metrics) ObserveHostRequest(method string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.HostRequests.WithLabelValues(method, result).Inc()
}

// Handler exposes the gatherer in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
