package repository

import (
	"context"
	"time"
)

// Fields are the writable columns of the products table, named as the
// remote schema names them.
type Fields struct {
	Name             string `json:"name"`
	ShortDescription string `json:"short_description"`
	FullDescription  string `json:"full_description"`
	PriceCents       int64  `json:"price_cents"`
	ImageURL         string `json:"image_url"`
}

// Row is one record of the products table.
type Row struct {
	ID string `json:"id"`
	Fields
	CreatedAt time.Time `json:"created_at"`
}

// ProductTable is the remote products table.
type ProductTable interface {
	// List returns every row, newest first.
	List(ctx context.Context) ([]Row, error)

	// Insert adds a row and returns it as stored, with its id and created_at.
	Insert(ctx context.Context, f Fields) (Row, error)

	// Update overwrites the writable columns of the row with id and returns
	// the stored row. A missing id yields an apperrors.ErrNotFound error.
	Update(ctx context.Context, id string, f Fields) (Row, error)

	// Delete removes the row with id and reports whether one existed.
	Delete(ctx context.Context, id string) (bool, error)

	// Ping checks that the table is reachable.
	Ping(ctx context.Context) error
}
