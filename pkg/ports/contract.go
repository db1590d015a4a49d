package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/cadbridge/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunJournalStoreContract runs a suite of tests to verify that a JournalStore implementation
// adheres to the defined interface contract. The store must start empty and retain at least 5 entries.
func RunJournalStoreContract(t *testing.T, store JournalStore) {
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("Empty", func(t *testing.T) {
		entries, err := store.Recent(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("Append and Recent", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			err := store.Append(ctx, domain.JournalEntry{
				ID:          fmt.Sprintf("entry-%d", i),
				Method:      "set_parameters",
				Items:       3,
				Succeeded:   2,
				Failed:      1,
				CommittedAt: base.Add(time.Duration(i) * time.Second),
			})
			require.NoError(t, err, "Append should not return error")
		}

		entries, err := store.Recent(ctx, 3)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "entry-4", entries[0].ID, "newest first")
		assert.Equal(t, "entry-3", entries[1].ID)
		assert.Equal(t, "entry-2", entries[2].ID)
		assert.Equal(t, 2, entries[0].Succeeded)
		assert.True(t, entries[0].CommittedAt.Equal(base.Add(4*time.Second)))
	})

	t.Run("Recent Without Limit", func(t *testing.T) {
		entries, err := store.Recent(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, entries, 5)
	})
}
