package memory_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/aretw0/cadbridge/pkg/adapters/memory"
	"github.com/aretw0/cadbridge/pkg/domain"
	"github.com/aretw0/cadbridge/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournal_Contract(t *testing.T) {
	ports.RunJournalStoreContract(t, memory.NewJournal(0))
}

func TestJournal_EvictsOldest(t *testing.T) {
	ctx := context.Background()
	j := memory.NewJournal(3)
	for i := 0; i < 5; i++ {
		require.NoError(t, j.Append(ctx, domain.JournalEntry{ID: fmt.Sprint(i)}))
	}

	entries, err := j.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "4", entries[0].ID)
	assert.Equal(t, "2", entries[2].ID)
}
