package host

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"

	"github.com/aretw0/cadbridge/internal/logging"
	"github.com/aretw0/cadbridge/pkg/domain"
	"github.com/aretw0/cadbridge/pkg/wire"
	"github.com/gorilla/websocket"
)

// messageConn is a connection that carries whole messages.
type messageConn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(msg []byte) error
	Close() error
}

// Server accepts channel connections and serves them with a Router.
type Server struct {
	router   *Router
	opts     options
	upgrader websocket.Upgrader

	mu     sync.Mutex
	closed bool
	conns  map[messageConn]struct{}
	wg     sync.WaitGroup
}

// NewServer creates a server dispatching to router.
func NewServer(router *Router, opts ...Option) *Server {
	o := options{logger: logging.NewNop(), framing: wire.Newline}
	for _, opt := range opts {
		opt(&o)
	}
	return &Server{
		router: router,
		opts:   o,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[messageConn]struct{}),
	}
}

// Serve accepts byte stream connections on ln until ctx is done or ln fails.
// Open connections are closed before Serve returns, and the server refuses
// new connections from then on.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	s.opts.logger.Info("Host listening", "address", ln.Addr().String(), "framing", string(s.opts.framing))
	var err error
	for {
		var nc net.Conn
		nc, err = ln.Accept()
		if err != nil {
			break
		}
		conn := wire.NewConn(nc, s.opts.framing)
		if !s.track(conn) {
			_ = conn.Close()
			continue
		}
		go s.serveConn(ctx, conn)
	}

	s.closeAll()
	s.wg.Wait()
	if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// WebSocketHandler serves the channel protocol over WebSocket, one message per frame.
func (s *Server) WebSocketHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.opts.logger.Warn("WebSocket upgrade failed", "error", err)
			return
		}
		conn := wire.NewWebSocketConn(ws)
		if !s.track(conn) {
			_ = conn.Close()
			return
		}
		s.serveConn(r.Context(), conn)
	})
}

// Close drops every open connection, refuses new ones and waits for the
// connection handlers to finish.
func (s *Server) Close() error {
	s.closeAll()
	s.wg.Wait()
	return nil
}

// track registers c with the server, or reports false once the server is closed.
// wg grows only under mu while the server is open.
func (s *Server) track(c messageConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(c messageConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
	s.wg.Done()
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for c := range s.conns {
		_ = c.Close()
	}
}

// serveConn reads requests from a tracked connection until it fails. Requests
// run concurrently; when the connection goes away their context is canceled.
func (s *Server) serveConn(parent context.Context, conn messageConn) {
	ctx, cancel := context.WithCancel(parent)
	var inflight sync.WaitGroup
	defer func() {
		cancel()
		inflight.Wait()
		s.untrack(conn)
		_ = conn.Close()
	}()

	s.opts.logger.Debug("Client connected")
	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			s.opts.logger.Debug("Client disconnected", "error", err)
			return
		}

		var req domain.IncomingRequest
		if err := json.Unmarshal(msg, &req); err != nil || len(req.ID) == 0 {
			s.opts.logger.Warn("Dropping malformed request", "error", err)
			continue
		}

		inflight.Add(1)
		go func() {
			defer inflight.Done()
			s.respond(ctx, conn, req)
		}()
	}
}

func (s *Server) respond(ctx context.Context, conn messageConn, req domain.IncomingRequest) {
	var resp domain.Response
	if req.Method == "" {
		resp = domain.NewErrorResponse(req.ID, "invalid request: missing method")
	} else {
		resp = s.router.Dispatch(ctx, req)
	}

	data, err := json.Marshal(resp)
	if err != nil {
		s.opts.logger.Error("Failed to encode response", "method", req.Method, "error", err)
		return
	}
	if err := conn.WriteMessage(data); err != nil {
		s.opts.logger.Debug("Failed to write response", "method", req.Method, "error", err)
	}
}
