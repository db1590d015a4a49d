package telemetry_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/cadbridge/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *telemetry.Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("ping", "ok", time.Millisecond)
		m.SetPending(3)
		m.ObserveDial(nil)
		m.ObserveDisconnect()
		m.ObserveStray()
		m.ObserveBatch(true)
		m.ObserveItem("move_element", false)
		m.ObserveHostRequest("ping", nil)
	})
}

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.New(reg)

	m.ObserveRequest("set_parameters", "ok", 5*time.Millisecond)
	m.ObserveRequest("set_parameters", "timed_out", time.Second)
	m.SetPending(2)
	m.ObserveDial(errors.New("refused"))
	m.ObserveItem("set_parameter", true)
	m.ObserveItem("set_parameter", false)
	m.ObserveItem("set_parameter", true)
	m.ObserveBatch(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("set_parameters", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Pending))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dials.WithLabelValues("error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Items.WithLabelValues("set_parameter", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Batches.WithLabelValues("aborted")))
}

func TestHandler_ServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.New(reg)
	m.ObserveDisconnect()

	srv := httptest.NewServer(telemetry.Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "cadbridge_channel_disconnects_total 1")
}
