package memory_test

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/cadbridge/pkg/adapters/memory"
	"github.com/aretw0/cadbridge/pkg/domain"
	"github.com/aretw0/cadbridge/pkg/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wall() memory.Element {
	return memory.Element{
		ID:       10,
		Category: "Walls",
		Name:     "Basic Wall",
		Location: units.Point{X: 1, Y: 0, Z: 0},
		Parameters: map[string]memory.Parameter{
			"Comments": {Value: ""},
			"Height":   {Value: 10.0},
			"Length":   {Value: 20.0, ReadOnly: true},
		},
	}
}

func TestDocument_AssignsIdentity(t *testing.T) {
	doc := memory.NewDocument(wall(), memory.Element{Category: "Floors"})

	floors := doc.Elements("Floors")
	require.Len(t, floors, 1)
	assert.Equal(t, int64(11), floors[0].ID)
	assert.NotEmpty(t, floors[0].UniqueID)
	assert.Len(t, doc.Elements(""), 2)
}

func TestDocument_MutationRequiresTransaction(t *testing.T) {
	doc := memory.NewDocument(wall())
	err := doc.SetParameter(10, "Comments", "x")
	assert.ErrorIs(t, err, memory.ErrNoTransaction)
}

func TestDocument_OneTransactionAtATime(t *testing.T) {
	ctx := context.Background()
	doc := memory.NewDocument()
	tx, err := doc.Begin(ctx, "first")
	require.NoError(t, err)

	_, err = doc.Begin(ctx, "second")
	assert.ErrorIs(t, err, memory.ErrTransactionActive)

	require.NoError(t, tx.Commit(ctx))
	assert.ErrorIs(t, tx.Commit(ctx), memory.ErrTransactionClosed)
	assert.Equal(t, 1, doc.Revision())

	_, err = doc.Begin(ctx, "third")
	assert.NoError(t, err)
}

func TestDocument_SetParameter(t *testing.T) {
	ctx := context.Background()
	doc := memory.NewDocument(wall())
	tx, err := doc.Begin(ctx, "edit")
	require.NoError(t, err)
	defer func() { _ = tx.Commit(ctx) }()

	require.NoError(t, doc.SetParameter(10, "Comments", "Fire rated"))
	require.NoError(t, doc.SetParameter(10, "Height", 12))

	assert.ErrorIs(t, doc.SetParameter(99, "Comments", "x"), domain.ErrElementNotFound)
	assert.ErrorIs(t, doc.SetParameter(10, "Missing", "x"), domain.ErrParameterNotFound)
	assert.ErrorIs(t, doc.SetParameter(10, "Length", 3.0), domain.ErrReadOnly)
	assert.ErrorIs(t, doc.SetParameter(10, "Height", "tall"), domain.ErrInvalidArgument)

	e, err := doc.Element(10)
	require.NoError(t, err)
	assert.Equal(t, "Fire rated", e.Parameters["Comments"].Value)
	assert.Equal(t, 12.0, e.Parameters["Height"].Value)
}

func TestDocument_SavepointRollbackRestoresState(t *testing.T) {
	ctx := context.Background()
	doc := memory.NewDocument(wall())
	tx, err := doc.Begin(ctx, "batch")
	require.NoError(t, err)

	sp1, err := tx.Savepoint("item-0")
	require.NoError(t, err)
	_, err = doc.Move(10, units.Point{X: 2})
	require.NoError(t, err)
	require.NoError(t, sp1.Release())

	sp2, err := tx.Savepoint("item-1")
	require.NoError(t, err)
	ids, err := doc.Copy(10, units.Point{Y: 1}, 3)
	require.NoError(t, err)
	require.Len(t, ids, 3)
	require.NoError(t, sp2.RollbackTo())
	assert.ErrorIs(t, sp2.Release(), memory.ErrTransactionClosed)

	require.NoError(t, tx.Commit(ctx))

	assert.Len(t, doc.Elements(""), 1)
	e, err := doc.Element(10)
	require.NoError(t, err)
	assert.Equal(t, 3.0, e.Location.X)
}

func TestDocument_RollbackDiscardsEverything(t *testing.T) {
	ctx := context.Background()
	doc := memory.NewDocument(wall())
	tx, err := doc.Begin(ctx, "batch")
	require.NoError(t, err)
	_, err = doc.Move(10, units.Point{X: 5})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback(ctx))

	e, err := doc.Element(10)
	require.NoError(t, err)
	assert.Equal(t, 1.0, e.Location.X)
	assert.Equal(t, 0, doc.Revision())
}

func TestDocument_Rotate(t *testing.T) {
	ctx := context.Background()
	doc := memory.NewDocument(wall())
	tx, err := doc.Begin(ctx, "rotate")
	require.NoError(t, err)
	defer func() { _ = tx.Commit(ctx) }()

	e, err := doc.Rotate(10, math.Pi/2, units.Point{})
	require.NoError(t, err)
	assert.InDelta(t, 0, e.Location.X, 1e-9)
	assert.InDelta(t, 1, e.Location.Y, 1e-9)
	assert.InDelta(t, math.Pi/2, e.Rotation, 1e-9)
}

func TestDocument_CopyTagDimension(t *testing.T) {
	ctx := context.Background()
	doc := memory.NewDocument(wall())
	tx, err := doc.Begin(ctx, "create")
	require.NoError(t, err)
	defer func() { _ = tx.Commit(ctx) }()

	_, err = doc.Copy(10, units.Point{X: 1}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	ids, err := doc.Copy(10, units.Point{X: 1}, 2)
	require.NoError(t, err)
	second, err := doc.Element(ids[1])
	require.NoError(t, err)
	assert.Equal(t, 3.0, second.Location.X)

	tag, err := doc.CreateTag(10, "Wall Tag", units.Point{Y: 1})
	require.NoError(t, err)
	assert.Equal(t, memory.CategoryTags, tag.Category)
	assert.Equal(t, int64(10), tag.HostID)
	_, err = doc.CreateTag(404, "Wall Tag", units.Point{})
	assert.ErrorIs(t, err, domain.ErrElementNotFound)

	_, err = doc.CreateDimension([]units.Point{{}})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	dim, err := doc.CreateDimension([]units.Point{{}, {X: 3}, {X: 3, Y: 4}})
	require.NoError(t, err)
	require.Len(t, dim.Segments, 2)
	assert.Equal(t, 3.0, dim.Segments[0].Value)
	assert.Equal(t, 4.0, dim.Segments[1].Value)

	dim, err = doc.OverrideSegments(dim.ID, "EQ")
	require.NoError(t, err)
	for _, s := range dim.Segments {
		assert.Equal(t, "EQ", s.TextOverride)
	}
	_, err = doc.OverrideSegments(10, "EQ")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestDocument_CopyCountIsBounded(t *testing.T) {
	ctx := context.Background()
	doc := memory.NewDocument(wall())
	tx, err := doc.Begin(ctx, "copy")
	require.NoError(t, err)
	defer func() { _ = tx.Commit(ctx) }()

	_, err = doc.Copy(10, units.Point{X: 1}, 1_000_000_000)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = doc.Copy(10, units.Point{X: 1}, memory.MaxCopyCount+1)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Len(t, doc.Elements(""), 1)

	ids, err := doc.Copy(10, units.Point{X: 1}, memory.MaxCopyCount)
	require.NoError(t, err)
	assert.Len(t, ids, memory.MaxCopyCount)
}

func TestDocument_ElementIsACopy(t *testing.T) {
	doc := memory.NewDocument(wall())
	e, err := doc.Element(10)
	require.NoError(t, err)
	e.Parameters["Comments"] = memory.Parameter{Value: "tampered"}

	again, err := doc.Element(10)
	require.NoError(t, err)
	assert.Equal(t, "", again.Parameters["Comments"].Value)
}

func TestLoadDocument(t *testing.T) {
	doc, err := memory.LoadDocument(filepath.Join("testdata", "office.yaml"))
	require.NoError(t, err)

	walls := doc.Elements("Walls")
	require.Len(t, walls, 1)
	assert.Equal(t, int64(1001), walls[0].ID)
	assert.True(t, walls[0].Parameters["Length"].ReadOnly)
	assert.Equal(t, 10, walls[0].Parameters["Unconnected Height"].Value)

	door, err := doc.Element(1002)
	require.NoError(t, err)
	assert.Equal(t, "6f1c2c1e-1111-4c3a-9d55-0c7a3f3f0002", door.UniqueID)
	assert.Equal(t, int64(1001), door.HostID)
	assert.Equal(t, 5.0, door.Location.X)
}

func TestLoadDocument_Errors(t *testing.T) {
	_, err := memory.LoadDocument(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	dup := filepath.Join(t.TempDir(), "dup.yaml")
	require.NoError(t, os.WriteFile(dup, []byte("elements:\n  - id: 1\n  - id: 1\n"), 0o644))
	_, err = memory.LoadDocument(dup)
	assert.ErrorContains(t, err, "duplicate id")

	doc, err := memory.LoadDocument("")
	require.NoError(t, err)
	assert.Empty(t, doc.Elements(""))
}
