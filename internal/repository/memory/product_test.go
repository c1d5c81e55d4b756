package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/websync-digital/sunlit-blue-spark/internal/repository"
	apperrors "github.com/websync-digital/sunlit-blue-spark/pkg/errors"
)

func TestNewProductTable_SortsNewestFirst(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	table := NewProductTable(
		repository.Row{ID: "old", CreatedAt: base},
		repository.Row{ID: "new", CreatedAt: base.Add(time.Hour)},
	)

	rows, err := table.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new", rows[0].ID)
	assert.Equal(t, "old", rows[1].ID)
}

func TestInsertUpdateDelete(t *testing.T) {
	ctx := context.Background()
	table := NewProductTable()

	row, err := table.Insert(ctx, repository.Fields{Name: "Panel", PriceCents: 10})
	require.NoError(t, err)
	assert.NotEmpty(t, row.ID)
	assert.False(t, row.CreatedAt.IsZero())

	updated, err := table.Update(ctx, row.ID, repository.Fields{Name: "Renamed", PriceCents: 10})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)

	removed, err := table.Delete(ctx, row.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = table.Delete(ctx, row.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = table.Update(ctx, row.ID, repository.Fields{})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestInsert_RejectsNegativePrice(t *testing.T) {
	_, err := NewProductTable().Insert(context.Background(), repository.Fields{Name: "x", PriceCents: -1})
	assert.ErrorIs(t, err, apperrors.ErrUnprocessable)
}

func TestList_ReturnsCopy(t *testing.T) {
	table := NewProductTable(repository.Row{ID: "a"})
	rows, _ := table.List(context.Background())
	rows[0].ID = "changed"

	again, _ := table.List(context.Background())
	assert.Equal(t, "a", again[0].ID)
}
