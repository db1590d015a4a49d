package batch

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/cadbridge/pkg/domain"
)

// HandlerFunc performs one batch item. It returns the item value or an item fault.
// A handler may cause any number of host effects; it still yields one outcome.
type HandlerFunc func(ctx context.Context, spec domain.OperationSpec) (any, error)

// PostStep runs after a successful handler, inside the same item isolation.
// It receives the handler value and returns the (possibly replaced) value.
type PostStep func(ctx context.Context, spec domain.OperationSpec, value any) (any, error)

type entry struct {
	handler HandlerFunc
	post    []PostStep
}

// Registry maps operation kinds to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]entry
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]entry),
	}
}

// Register adds a handler for kind, with optional post-process steps run in order.
// If a handler with the same kind exists, it is overwritten.
func (r *Registry) Register(kind string, fn HandlerFunc, post ...PostStep) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = entry{handler: fn, post: post}
}

// Kinds lists the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func (r *Registry) lookup(kind string) (entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.handlers[kind]
	return e, ok
}
