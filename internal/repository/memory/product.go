// Package memory is an in-process products table for development and tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/websync-digital/sunlit-blue-spark/internal/repository"
	apperrors "github.com/websync-digital/sunlit-blue-spark/pkg/errors"
)

// ProductTable keeps rows newest first.
type ProductTable struct {
	mu   sync.RWMutex
	rows []repository.Row
	now  func() time.Time
}

// NewProductTable returns a table seeded with rows, which are sorted newest first.
func NewProductTable(rows ...repository.Row) *ProductTable {
	t := &ProductTable{rows: slices.Clone(rows), now: time.Now}
	slices.SortStableFunc(t.rows, func(a, b repository.Row) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return t
}

var _ repository.ProductTable = (*ProductTable)(nil)

func (t *ProductTable) List(_ context.Context) ([]repository.Row, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.rows), nil
}

func (t *ProductTable) Insert(_ context.Context, f repository.Fields) (repository.Row, error) {
	if f.PriceCents < 0 {
		return repository.Row{}, apperrors.Unprocessable("price_cents must not be negative")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	row := repository.Row{ID: uuid.NewString(), Fields: f, CreatedAt: t.now().UTC()}
	t.rows = slices.Insert(t.rows, 0, row)
	return row, nil
}

func (t *ProductTable) Update(_ context.Context, id string, f repository.Fields) (repository.Row, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.index(id)
	if i < 0 {
		return repository.Row{}, apperrors.NotFound("product", id)
	}
	t.rows[i].Fields = f
	return t.rows[i], nil
}

func (t *ProductTable) Delete(_ context.Context, id string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.index(id)
	if i < 0 {
		return false, nil
	}
	t.rows = slices.Delete(t.rows, i, i+1)
	return true, nil
}

func (t *ProductTable) Ping(context.Context) error { return nil }

func (t *ProductTable) index(id string) int {
	return slices.IndexFunc(t.rows, func(r repository.Row) bool { return r.ID == id })
}
