package memory

import (
	"context"
	"sync"

	"github.com/aretw0/cadbridge/pkg/domain"
)

// DefaultJournalSize bounds the in-memory journal.
const DefaultJournalSize = 256

// Journal implements ports.JournalStore in memory, keeping the newest entries.
// Safe for concurrent use.
type Journal struct {
	mu      sync.RWMutex
	entries []domain.JournalEntry
	max     int
}

// NewJournal creates a journal retaining at most size entries (DefaultJournalSize if size <= 0).
func NewJournal(size int) *Journal {
	if size <= 0 {
		size = DefaultJournalSize
	}
	return &Journal{max: size}
}

// Append records an entry, evicting the oldest one when full.
func (j *Journal) Append(ctx context.Context, entry domain.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
	if over := len(j.entries) - j.max; over > 0 {
		j.entries = append([]domain.JournalEntry(nil), j.entries[over:]...)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	n := len(j.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.JournalEntry, 0, n)
	for i := len(j.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, j.entries[i])
	}
	return out, nil
}
