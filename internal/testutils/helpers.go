package testutils

import (
	"context"
	"net"
	"testing"

	"github.com/aretw0/cadbridge/pkg/adapters/memory"
	"github.com/aretw0/cadbridge/pkg/host"
	"github.com/aretw0/cadbridge/pkg/operations"
	"github.com/stretchr/testify/require"
)

// SeedDocument returns a document with two walls (ids 1 and 3) carrying an empty Comments parameter.
func SeedDocument() *memory.Document {
	return memory.NewDocument(
		memory.Element{ID: 1, Category: "Walls", Parameters: map[string]memory.Parameter{"Comments": {Value: ""}}},
		memory.Element{ID: 3, Category: "Walls", Parameters: map[string]memory.Parameter{"Comments": {Value: ""}}},
	)
}

// NewRouter mounts every operation over doc with an in-memory journal.
func NewRouter(doc *memory.Document, opts ...host.Option) *host.Router {
	journal := memory.NewJournal(0)
	r := host.NewRouter(append([]host.Option{host.WithJournal(journal)}, opts...)...)
	operations.Mount(r, doc, operations.NewExecutor(doc), journal)
	return r
}

// StartHost serves doc on a TCP listener at addr until the test ends or stop is called.
// It fails the test immediately if the listener cannot be opened.
func StartHost(t *testing.T, doc *memory.Document, addr string, opts ...host.Option) (string, func()) {
	t.Helper()

	ln, err := net.Listen("tcp", addr)
	require.NoError(t, err, "Failed to listen for test host")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = host.NewServer(NewRouter(doc, opts...), opts...).Serve(ctx, ln)
	}()

	stop := func() {
		cancel()
		<-done
	}
	t.Cleanup(stop)
	return ln.Addr().String(), stop
}
