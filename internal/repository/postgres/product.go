package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/websync-digital/sunlit-blue-spark/internal/repository"
	"github.com/websync-digital/sunlit-blue-spark/pkg/database"
	apperrors "github.com/websync-digital/sunlit-blue-spark/pkg/errors"
)

const productColumns = `id, name, short_description, full_description, price_cents, image_url, created_at`

const (
	listProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY created_at DESC`

	insertProductSQL = `
		INSERT INTO products (name, short_description, full_description, price_cents, image_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + productColumns

	updateProductSQL = `
		UPDATE products
		SET name = $1, short_description = $2, full_description = $3, price_cents = $4, image_url = $5
		WHERE id = $6
		RETURNING ` + productColumns

	deleteProductSQL = `DELETE FROM products WHERE id = $1`
)

// ProductTable implements repository.ProductTable on PostgreSQL.
type ProductTable struct {
	db database.DBTX
}

// NewProductTable creates a table backed by db, usually a *pgxpool.Pool.
func NewProductTable(db database.DBTX) *ProductTable {
	return &ProductTable{db: db}
}

var _ repository.ProductTable = (*ProductTable)(nil)

// List returns every product, newest first.
func (t *ProductTable) List(ctx context.Context) (rows []repository.Row, err error) {
	ctx, end := database.TraceQuery(ctx, "ListProducts", listProductsSQL)
	defer func() { end(err) }()

	result, err := t.db.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer result.Close()

	rows = []repository.Row{}
	for result.Next() {
		row, err := scanRow(result)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return rows, nil
}

// Insert adds a product and returns it with its generated id and timestamp.
func (t *ProductTable) Insert(ctx context.Context, f repository.Fields) (row repository.Row, err error) {
	ctx, end := database.TraceQuery(ctx, "InsertProduct", insertProductSQL)
	defer func() { end(err) }()

	row, err = scanRow(t.db.QueryRow(ctx, insertProductSQL,
		f.Name, f.ShortDescription, f.FullDescription, f.PriceCents, f.ImageURL,
	))
	if err != nil {
		return repository.Row{}, mapWriteError("insert product", err)
	}
	return row, nil
}

// Update overwrites the writable columns of the product with id.
func (t *ProductTable) Update(ctx context.Context, id string, f repository.Fields) (row repository.Row, err error) {
	ctx, end := database.TraceQuery(ctx, "UpdateProduct", updateProductSQL)
	defer func() { end(err) }()

	row, err = scanRow(t.db.QueryRow(ctx, updateProductSQL,
		f.Name, f.ShortDescription, f.FullDescription, f.PriceCents, f.ImageURL, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidID(err) {
			return repository.Row{}, apperrors.NotFound("product", id)
		}
		return repository.Row{}, mapWriteError("update product", err)
	}
	return row, nil
}

// Delete removes the product with id. A malformed id cannot match any row
// and is reported as not removed.
func (t *ProductTable) Delete(ctx context.Context, id string) (removed bool, err error) {
	ctx, end := database.TraceQuery(ctx, "DeleteProduct", deleteProductSQL)
	defer func() { end(err) }()

	ct, err := t.db.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		if isInvalidID(err) {
			return false, nil
		}
		return false, fmt.Errorf("delete product: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// Ping runs a trivial query.
func (t *ProductTable) Ping(ctx context.Context) error {
	var one int
	if err := t.db.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("ping products table: %w", err)
	}
	return nil
}

func scanRow(s pgx.Row) (repository.Row, error) {
	var r repository.Row
	err := s.Scan(
		&r.ID,
		&r.Name,
		&r.ShortDescription,
		&r.FullDescription,
		&r.PriceCents,
		&r.ImageURL,
		&r.CreatedAt,
	)
	return r, err
}

// mapWriteError turns constraint violations into 422s.
func mapWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23502", "23514":
			return apperrors.Unprocessable(fmt.Sprintf("%s: %s", op, pgErr.Message))
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isInvalidID reports an invalid_text_representation error, raised when a
// non-UUID string is compared against the id column.
func isInvalidID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}
