package host_test

import (
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/cadbridge/pkg/channel"
	"github.com/aretw0/cadbridge/pkg/domain"
	"github.com/aretw0/cadbridge/pkg/host"
	"github.com/aretw0/cadbridge/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter() *host.Router {
	r := host.NewRouter()
	r.Handle("ping", func(ctx context.Context, params json.RawMessage) (any, error) {
		return map[string]string{"status": "ok"}, nil
	})
	r.Handle("echo", func(ctx context.Context, params json.RawMessage) (any, error) {
		return params, nil
	})
	r.HandleBatch("echo_all", "echo", echoExecutor())
	return r
}

func startTCP(t *testing.T, framing wire.Framing) (addr string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := host.NewServer(newTestRouter(), host.WithFraming(framing))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	return ln.Addr().String(), func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("server did not stop")
		}
	}
}

func TestServer_TCPRoundTrip(t *testing.T) {
	for _, framing := range []wire.Framing{wire.Newline, wire.LengthPrefix} {
		t.Run(string(framing), func(t *testing.T) {
			addr, stop := startTCP(t, framing)
			defer stop()

			ch := channel.New(channel.TCPDialer{Address: addr, Framing: framing})
			defer ch.Close()

			res, err := ch.Send(context.Background(), "ping", nil, time.Second)
			require.NoError(t, err)
			assert.JSONEq(t, `{"status":"ok"}`, string(res))

			res, err = ch.Send(context.Background(), "echo_all", map[string]any{
				"items": []map[string]any{{"n": 1}, {"kind": "fail"}},
			}, time.Second)
			require.NoError(t, err)

			var reply domain.BatchReply
			require.NoError(t, json.Unmarshal(res, &reply))
			assert.Equal(t, 1, reply.Succeeded())
			assert.Equal(t, 1, reply.Failed())

			_, err = ch.Send(context.Background(), "nope", nil, time.Second)
			assert.ErrorIs(t, err, domain.ErrHostRejected)
			assert.ErrorContains(t, err, "method not found")
		})
	}
}

func TestServer_ConcurrentRequestsOnOneConnection(t *testing.T) {
	addr, stop := startTCP(t, wire.Newline)
	defer stop()

	ch := channel.New(channel.TCPDialer{Address: addr})
	defer ch.Close()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := ch.Send(context.Background(), "echo", map[string]int{"n": i}, 2*time.Second)
			if assert.NoError(t, err) {
				var got map[string]int
				assert.NoError(t, json.Unmarshal(res, &got))
				assert.Equal(t, i, got["n"])
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, ch.Pending())
}

func TestServer_IgnoresMalformedRequests(t *testing.T) {
	addr, stop := startTCP(t, wire.Newline)
	defer stop()

	nc, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	conn := wire.NewConn(nc, wire.Newline)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage([]byte(`{not json`)))
	require.NoError(t, conn.WriteMessage([]byte(`{"method":"ping"}`)))
	require.NoError(t, conn.WriteMessage([]byte(`{"id":5}`)))
	require.NoError(t, conn.WriteMessage([]byte(`{"id":6,"method":"ping"}`)))

	var seen []string
	for i := 0; i < 2; i++ {
		msg, err := conn.ReadMessage()
		require.NoError(t, err)
		var resp domain.Response
		require.NoError(t, json.Unmarshal(msg, &resp))
		seen = append(seen, string(resp.ID))
		if string(resp.ID) == "5" {
			require.NotNil(t, resp.Error)
			assert.Contains(t, resp.Error.Message, "missing method")
		}
	}
	assert.ElementsMatch(t, []string{"5", "6"}, seen)
}

func TestServer_WebSocket(t *testing.T) {
	srv := host.NewServer(newTestRouter())
	ts := httptest.NewServer(srv.WebSocketHandler())
	defer ts.Close()
	defer srv.Close()

	ch := channel.New(channel.WebSocketDialer{URL: "ws" + strings.TrimPrefix(ts.URL, "http")})
	defer ch.Close()

	res, err := ch.Send(context.Background(), "echo", map[string]string{"via": "ws"}, time.Second)
	require.NoError(t, err)
	assert.JSONEq(t, `{"via":"ws"}`, string(res))
}

func TestServer_StopDisconnectsClients(t *testing.T) {
	addr, stop := startTCP(t, wire.Newline)

	ch := channel.New(channel.TCPDialer{Address: addr})
	defer ch.Close()
	_, err := ch.Send(context.Background(), "ping", nil, time.Second)
	require.NoError(t, err)

	stop()
	assert.Eventually(t, func() bool { return !ch.Connected() }, 2*time.Second, 10*time.Millisecond)
}

// scriptedListener hands out the results of accepts in order, then reports closed.
type scriptedListener struct {
	accepts []func() (net.Conn, error)
}

func (l *scriptedListener) Accept() (net.Conn, error) {
	if len(l.accepts) == 0 {
		return nil, net.ErrClosed
	}
	next := l.accepts[0]
	l.accepts = l.accepts[1:]
	return next()
}

func (l *scriptedListener) Close() error   { return nil }
func (l *scriptedListener) Addr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }

func TestServer_ConnectionAcceptedDuringCloseIsDropped(t *testing.T) {
	srv := host.NewServer(newTestRouter())
	client, server := net.Pipe()
	defer client.Close()

	ln := &scriptedListener{accepts: []func() (net.Conn, error){
		func() (net.Conn, error) {
			assert.NoError(t, srv.Close())
			return server, nil
		},
	}}

	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background(), ln) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve waited on a connection accepted after close")
	}

	require.NoError(t, client.SetReadDeadline(time.Now().Add(time.Second)))
	_, err := client.Read(make([]byte, 1))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, os.ErrDeadlineExceeded, "late connection must be closed, not left open")
}

func TestServer_WebSocketRefusedAfterClose(t *testing.T) {
	srv := host.NewServer(newTestRouter())
	ts := httptest.NewServer(srv.WebSocketHandler())
	defer ts.Close()
	require.NoError(t, srv.Close())

	ch := channel.New(channel.WebSocketDialer{URL: "ws" + strings.TrimPrefix(ts.URL, "http")})
	defer ch.Close()

	_, err := ch.Send(context.Background(), "ping", nil, time.Second)
	assert.ErrorIs(t, err, domain.ErrDisconnected)
}
