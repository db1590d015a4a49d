// Package host is a reference command host: it accepts channel connections,
// routes each request by method and writes exactly one response per request.
package host

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/cadbridge/internal/logging"
	"github.com/aretw0/cadbridge/pkg/batch"
	"github.com/aretw0/cadbridge/pkg/domain"
	"github.com/google/uuid"
)

// MethodFunc handles one request. The returned value becomes the response result.
type MethodFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Router dispatches requests to method handlers.
// Handlers run one at a time: the document is never touched by two requests at once.
type Router struct {
	exec    sync.Mutex
	mu      sync.RWMutex
	methods map[string]MethodFunc
	opts    options
}

// NewRouter creates an empty router.
func NewRouter(opts ...Option) *Router {
	o := options{logger: logging.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Router{
		methods: make(map[string]MethodFunc),
		opts:    o,
	}
}

// Handle registers fn for method, replacing any previous handler.
func (r *Router) Handle(method string, fn MethodFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[method] = fn
}

// HandleBatch registers a batch method: params are {"items": [...]} and items
// default to kind. Committed batches are appended to the journal, if any.
func (r *Router) HandleBatch(method, kind string, executor *batch.Executor) {
	r.Handle(method, func(ctx context.Context, params json.RawMessage) (any, error) {
		var req domain.BatchRequest
		if len(params) > 0 {
			if err := json.Unmarshal(params, &req); err != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
			}
		}

		res, err := executor.ExecuteBatch(ctx, req.Specs(kind))
		if err != nil {
			return nil, err
		}
		reply := res.Reply()
		r.record(ctx, method, reply)
		return reply, nil
	})
}

func (r *Router) record(ctx context.Context, method string, reply domain.BatchReply) {
	if r.opts.journal == nil {
		return
	}
	entry := domain.JournalEntry{
		ID:          uuid.NewString(),
		Method:      method,
		Items:       len(reply.Results),
		Succeeded:   reply.Succeeded(),
		Failed:      reply.Failed(),
		CommittedAt: r.opts.now().UTC(),
	}
	if err := r.opts.journal.Append(context.WithoutCancel(ctx), entry); err != nil {
		r.opts.logger.Warn("Failed to append journal entry", "method", method, "error", err)
	}
}

// Methods lists the registered method names in sorted order.
func (r *Router) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the handler for req and builds its response.
func (r *Router) Dispatch(ctx context.Context, req domain.IncomingRequest) domain.Response {
	r.mu.RLock()
	fn, ok := r.methods[req.Method]
	r.mu.RUnlock()

	if !ok {
		err := fmt.Errorf("%w: %s", domain.ErrMethodNotFound, req.Method)
		r.opts.metrics.ObserveHostRequest(req.Method, err)
		return domain.NewErrorResponse(req.ID, err.Error())
	}

	result, err := r.call(ctx, req, fn)
	r.opts.metrics.ObserveHostRequest(req.Method, err)
	if err != nil {
		r.opts.logger.Debug("Request failed", "method", req.Method, "error", err)
		return domain.NewErrorResponse(req.ID, err.Error())
	}

	resp, err := domain.NewResult(req.ID, result)
	if err != nil {
		return domain.NewErrorResponse(req.ID, err.Error())
	}
	return resp
}

func (r *Router) call(ctx context.Context, req domain.IncomingRequest, fn MethodFunc) (result any, err error) {
	r.exec.Lock()
	defer r.exec.Unlock()

	defer func() {
		if p := recover(); p != nil {
			r.opts.logger.Error("Handler panicked", slog.String("method", req.Method), slog.Any("panic", p))
			err = fmt.Errorf("internal error in %s", req.Method)
		}
	}()
	return fn(ctx, req.Params)
}
