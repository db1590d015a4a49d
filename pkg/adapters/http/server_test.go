package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/cadbridge/internal/telemetry"
	"github.com/aretw0/cadbridge/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSender struct {
	method    string
	params    any
	reply     json.RawMessage
	err       error
	connected bool
}

func (s *stubSender) Send(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	s.method = method
	s.params = params
	return s.reply, s.err
}

func (s *stubSender) Connected() bool { return s.connected }

func post(h http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRelay_ForwardsBodyAsParams(t *testing.T) {
	sender := &stubSender{reply: json.RawMessage(`{"success":true,"results":[]}`)}
	h := NewHandler(sender)

	w := post(h, "/v1/commands/set_parameters", `{"items":[]}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"results":[]}`, w.Body.String())
	assert.Equal(t, "set_parameters", sender.method)
	assert.JSONEq(t, `{"items":[]}`, string(sender.params.(json.RawMessage)))
}

func TestRelay_EmptyBody(t *testing.T) {
	sender := &stubSender{reply: json.RawMessage(`{"status":"ok"}`)}
	w := post(NewHandler(sender), "/v1/commands/ping", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, sender.params.(json.RawMessage))
}

func TestRelay_InvalidBody(t *testing.T) {
	w := post(NewHandler(&stubSender{}), "/v1/commands/ping", `{nope`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRelay_FaultMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		fault  string
	}{
		{"timeout", domain.NewChannelError(domain.TimedOut, "m", nil), http.StatusGatewayTimeout, "timed_out"},
		{"disconnected", domain.NewChannelError(domain.Disconnected, "m", nil), http.StatusServiceUnavailable, "disconnected"},
		{"rejected", domain.Rejected("m", "method not found: m"), http.StatusUnprocessableEntity, "host_rejected"},
		{"other", errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(NewHandler(&stubSender{err: tt.err}), "/v1/commands/m", `{}`)
			assert.Equal(t, tt.status, w.Code)

			var body errorBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.fault, body.Fault)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestRelay_HealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.New(reg)
	m.ObserveDial(nil)

	h := NewHandler(&stubSender{connected: true}, WithMetrics(reg))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","connected":true}`, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cadbridge_channel_dials_total")
}

func TestRelay_CORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/v1/commands/ping", nil)
	w := httptest.NewRecorder()
	NewHandler(&stubSender{}).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
