package channel

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/aretw0/cadbridge/pkg/wire"
	"github.com/gorilla/websocket"
)

// Conn is a message-oriented connection to the host.
// The transport delivers whole messages; framing is its own concern.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(msg []byte) error
	Close() error
}

// Dialer opens a new connection to the host.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Conn, error)

// Dial calls f(ctx).
func (f DialerFunc) Dial(ctx context.Context) (Conn, error) {
	return f(ctx)
}

// TCPDialer connects to a fixed host address over a byte stream.
type TCPDialer struct {
	Network string // default "tcp"
	Address string
	Framing wire.Framing
	Timeout time.Duration
}

// Dial connects and wraps the stream with the configured framing.
func (d TCPDialer) Dial(ctx context.Context) (Conn, error) {
	network := d.Network
	if network == "" {
		network = "tcp"
	}
	nd := net.Dialer{Timeout: d.Timeout}
	conn, err := nd.DialContext(ctx, network, d.Address)
	if err != nil {
		return nil, fmt.Errorf("dial %s %s: %w", network, d.Address, err)
	}
	return wire.NewConn(conn, d.Framing), nil
}

// WebSocketDialer connects to a host exposing a WebSocket endpoint.
type WebSocketDialer struct {
	URL              string
	Header           http.Header
	HandshakeTimeout time.Duration
}

// Dial performs the WebSocket handshake.
func (d WebSocketDialer) Dial(ctx context.Context) (Conn, error) {
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	ws, resp, err := dialer.DialContext(ctx, d.URL, d.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial websocket %s: %w", d.URL, err)
	}
	return wire.NewWebSocketConn(ws), nil
}
