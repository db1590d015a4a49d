package operations

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aretw0/cadbridge/pkg/adapters/memory"
	"github.com/aretw0/cadbridge/pkg/batch"
	"github.com/aretw0/cadbridge/pkg/domain"
	"github.com/aretw0/cadbridge/pkg/host"
	"github.com/aretw0/cadbridge/pkg/ports"
)

// DefaultJournalLimit is used by get_journal when no limit is given.
const DefaultJournalLimit = 20

// PingResult is the reply to ping.
type PingResult struct {
	Status   string `json:"status"`
	Elements int    `json:"elements"`
	Revision int    `json:"revision"`
}

type elementQuery struct {
	ElementID int64 `json:"element_id"`
}

type listQuery struct {
	Category string `json:"category"`
}

type journalQuery struct {
	Limit int `json:"limit"`
}

func decodeQuery(params json.RawMessage, out any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

// Mount registers every batch method and query on r.
// journal may be nil, in which case get_journal is not served.
func Mount(r *host.Router, doc *memory.Document, executor *batch.Executor, journal ports.JournalStore) {
	for _, m := range BatchMethods {
		r.HandleBatch(m.Method, m.Kind, executor)
	}

	r.Handle("ping", func(ctx context.Context, params json.RawMessage) (any, error) {
		return PingResult{Status: "ok", Elements: len(doc.Elements("")), Revision: doc.Revision()}, nil
	})

	r.Handle("get_element", func(ctx context.Context, params json.RawMessage) (any, error) {
		var q elementQuery
		if err := decodeQuery(params, &q); err != nil {
			return nil, err
		}
		return doc.Element(q.ElementID)
	})

	r.Handle("list_elements", func(ctx context.Context, params json.RawMessage) (any, error) {
		var q listQuery
		if err := decodeQuery(params, &q); err != nil {
			return nil, err
		}
		return doc.Elements(q.Category), nil
	})

	if journal == nil {
		return
	}
	r.Handle("get_journal", func(ctx context.Context, params json.RawMessage) (any, error) {
		q := journalQuery{Limit: DefaultJournalLimit}
		if err := decodeQuery(params, &q); err != nil {
			return nil, err
		}
		return journal.Recent(ctx, q.Limit)
	})
}

// NewExecutor builds the batch executor for doc with every operation registered.
func NewExecutor(doc *memory.Document, opts ...batch.Option) *batch.Executor {
	reg := batch.NewRegistry()
	NewHandlers(doc).Register(reg)
	return batch.NewExecutor(doc, reg, opts...)
}
