package ports

import (
	"context"

	"github.com/aretw0/cadbridge/pkg/domain"
)

// JournalStore records committed batches for later inspection.
// The journal is informational: a failure to append never fails a batch.
type JournalStore interface {
	// Append records an entry.
	Append(ctx context.Context, entry domain.JournalEntry) error
	// Recent returns up to limit entries, newest first. limit <= 0 means all retained entries.
	Recent(ctx context.Context, limit int) ([]domain.JournalEntry, error)
}
