package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/cadbridge/internal/logging"
	"github.com/aretw0/cadbridge/internal/telemetry"
	"github.com/aretw0/cadbridge/pkg/domain"
	"github.com/aretw0/cadbridge/pkg/wire"
)

// ErrClosed is the cause attached to requests rejected by Close.
var ErrClosed = errors.New("channel closed")

var errConnectionLost = errors.New("connection lost before the request was sent")

type reply struct {
	result json.RawMessage
	err    error
}

// pendingCall is one entry of the pending request table.
// done is buffered: whoever removes the entry from the table writes exactly once.
type pendingCall struct {
	id     uint64
	method string
	conn   Conn
	done   chan reply
}

// Channel correlates requests to the host with their asynchronous replies.
type Channel struct {
	dialer  Dialer
	timeout time.Duration
	logger  *slog.Logger
	metrics *telemetry.Metrics

	dialMu  sync.Mutex // one dial at a time
	writeMu sync.Mutex // exclusive access to the transport write side

	mu      sync.Mutex // guards conn and pending
	conn    Conn
	pending map[uint64]*pendingCall

	nextID atomic.Uint64
}

// New creates a disconnected channel. No connection is made until the first Send.
func New(dialer Dialer, opts ...Option) *Channel {
	c := &Channel{
		dialer:  dialer,
		timeout: DefaultTimeout,
		logger:  logging.NewNop(),
		pending: make(map[uint64]*pendingCall),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send issues method with params and waits for the matching reply.
// A non-positive timeout uses the channel default.
func (c *Channel) Send(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = c.timeout
	}
	start := time.Now()

	raw, err := encodeParams(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode params for %s: %w", method, err)
	}
	if len(raw) > wire.MaxMessageSize {
		return nil, fmt.Errorf("%s: %w", method, wire.ErrMessageTooLarge)
	}

	conn, err := c.connect(ctx)
	if err != nil {
		c.metrics.ObserveRequest(method, domain.Disconnected.String(), time.Since(start))
		return nil, domain.NewChannelError(domain.Disconnected, method, err)
	}

	call := &pendingCall{
		id:     c.nextID.Add(1),
		method: method,
		conn:   conn,
		done:   make(chan reply, 1),
	}
	if !c.register(call) {
		c.metrics.ObserveRequest(method, domain.Disconnected.String(), time.Since(start))
		return nil, domain.NewChannelError(domain.Disconnected, method, errConnectionLost)
	}

	data, err := json.Marshal(domain.Request{ID: call.id, Method: method, Params: raw})
	if err != nil {
		c.take(call.id)
		return nil, fmt.Errorf("failed to encode request %s: %w", method, err)
	}

	c.writeMu.Lock()
	err = conn.WriteMessage(data)
	c.writeMu.Unlock()
	if wire.IsUnframeable(err) {
		// Nothing was written: only this call fails, the connection stays up.
		c.take(call.id)
		return nil, fmt.Errorf("failed to frame request %s: %w", method, err)
	}
	if err != nil {
		c.logger.Warn("Channel write failed", "method", method, "id", call.id, "error", err)
		// Rejects this call (and every other call on the connection) with Disconnected.
		c.drop(conn, err)
	} else {
		c.logger.Debug("Channel request sent", "method", method, "id", call.id)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var res reply
	select {
	case res = <-call.done:
	case <-timer.C:
		if c.take(call.id) != nil {
			c.logger.Warn("Channel request timed out", "method", method, "id", call.id, "timeout", timeout)
			c.metrics.ObserveRequest(method, domain.TimedOut.String(), time.Since(start))
			return nil, domain.NewChannelError(domain.TimedOut, method, nil)
		}
		// Resolved concurrently; the reply is already buffered.
		res = <-call.done
	case <-ctx.Done():
		if c.take(call.id) != nil {
			c.metrics.ObserveRequest(method, "canceled", time.Since(start))
			return nil, fmt.Errorf("%s: %w", method, ctx.Err())
		}
		res = <-call.done
	}

	outcome := "ok"
	if kind, ok := domain.FaultOf(res.err); ok {
		outcome = kind.String()
	}
	c.metrics.ObserveRequest(method, outcome, time.Since(start))
	return res.result, res.err
}

// Close disconnects from the host. Pending requests are rejected with
// Disconnected. The channel stays usable: the next Send dials again.
func (c *Channel) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	c.drop(conn, ErrClosed)
	return nil
}

// Connected reports whether a transport connection is currently held.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Pending returns the number of requests awaiting a reply.
func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Channel) current() Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// connect returns the live connection, dialing one if needed.
func (c *Channel) connect(ctx context.Context) (Conn, error) {
	if conn := c.current(); conn != nil {
		return conn, nil
	}

	c.dialMu.Lock()
	defer c.dialMu.Unlock()

	// Another caller may have dialed while we waited.
	if conn := c.current(); conn != nil {
		return conn, nil
	}

	conn, err := c.dialer.Dial(ctx)
	c.metrics.ObserveDial(err)
	if err != nil {
		c.logger.Warn("Channel dial failed", "error", err)
		return nil, err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.logger.Info("Channel connected")
	go c.readLoop(conn)
	return conn, nil
}

// register adds call to the pending table, unless its connection is already gone.
func (c *Channel) register(call *pendingCall) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != call.conn {
		return false
	}
	c.pending[call.id] = call
	c.metrics.SetPending(len(c.pending))
	return true
}

// take removes and returns the pending entry for id, or nil if it is gone.
// It is the only way an entry leaves the table, which makes removal exactly-once.
func (c *Channel) take(id uint64) *pendingCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	call, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	c.metrics.SetPending(len(c.pending))
	return call
}

// drop forgets conn and rejects every pending entry written to it.
func (c *Channel) drop(conn Conn, cause error) {
	c.mu.Lock()
	current := c.conn == conn
	if current {
		c.conn = nil
	}
	var lost []*pendingCall
	for id, call := range c.pending {
		if call.conn == conn {
			lost = append(lost, call)
			delete(c.pending, id)
		}
	}
	c.metrics.SetPending(len(c.pending))
	c.mu.Unlock()

	if current {
		_ = conn.Close()
		c.metrics.ObserveDisconnect()
		c.logger.Info("Channel disconnected", "pending", len(lost), "error", cause)
	}

	for _, call := range lost {
		call.done <- reply{err: domain.NewChannelError(domain.Disconnected, call.method, cause)}
	}
}

func (c *Channel) readLoop(conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.drop(conn, err)
			return
		}

		var resp domain.Response
		if err := json.Unmarshal(data, &resp); err != nil {
			c.logger.Warn("Channel received malformed reply", "error", err, "size", len(data))
			continue
		}
		id, err := resp.RequestID()
		if err != nil {
			c.logger.Warn("Channel received reply without usable id", "error", err)
			continue
		}

		call := c.take(id)
		if call == nil {
			// Late reply for a request that timed out or was canceled.
			c.logger.Debug("Channel dropped stray reply", "id", id)
			c.metrics.ObserveStray()
			continue
		}

		if resp.Error != nil {
			call.done <- reply{err: domain.Rejected(call.method, resp.Error.Message)}
			continue
		}
		result := resp.Result
		if len(result) == 0 {
			result = json.RawMessage("null")
		}
		call.done <- reply{result: result}
	}
}

func encodeParams(params any) (json.RawMessage, error) {
	switch p := params.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case json.RawMessage:
		if len(p) == 0 {
			return json.RawMessage("{}"), nil
		}
		if !json.Valid(p) {
			return nil, errors.New("params is not valid JSON")
		}
		return p, nil
	case []byte:
		if !json.Valid(p) {
			return nil, errors.New("params is not valid JSON")
		}
		return json.RawMessage(p), nil
	default:
		return json.Marshal(p)
	}
}
