package domain

import (
	"strings"
	"time"
)

// Product is one catalog entry as the storefront shows it.
type Product struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	ShortDescription string    `json:"short_description"`
	FullDescription  string    `json:"full_description"`
	PriceMinor       int64     `json:"price_minor"`
	ImageURL         string    `json:"image_url"`
	CreatedAt        time.Time `json:"created_at"`
}

// ProductDraft holds the editable fields of a product that has not been
// saved yet, or the full patch for an existing one.
type ProductDraft struct {
	Name             string `json:"name" validate:"notblank,max=200"`
	ShortDescription string `json:"short_description" validate:"notblank,max=500"`
	FullDescription  string `json:"full_description" validate:"notblank"`
	PriceMinor       int64  `json:"price_minor" validate:"gte=0"`
	ImageURL         string `json:"image_url"`
}

// Draft returns the editable fields of p.
func (p Product) Draft() ProductDraft {
	return ProductDraft{
		Name:             p.Name,
		ShortDescription: p.ShortDescription,
		FullDescription:  p.FullDescription,
		PriceMinor:       p.PriceMinor,
		ImageURL:         p.ImageURL,
	}
}

// Matches reports whether query (already trimmed and lower-cased) is a
// substring of the product's name or short description.
func (p Product) Matches(query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Name), query) ||
		strings.Contains(strings.ToLower(p.ShortDescription), query)
}

// NormalizeQuery trims and lower-cases a search query.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// Filter returns the products matching query, keeping their order.
// An empty query returns a copy of the whole list.
func Filter(products []Product, query string) []Product {
	q := NormalizeQuery(query)
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if p.Matches(q) {
			out = append(out, p)
		}
	}
	return out
}

// Stats summarises a product list.
type Stats struct {
	Count          int   `json:"count"`
	InventoryValue int64 `json:"inventory_value"`
}

// Summarize counts products and sums their prices.
func Summarize(products []Product) Stats {
	s := Stats{Count: len(products)}
	for _, p := range products {
		s.InventoryValue += p.PriceMinor
	}
	return s
}

// IndexOf returns the position of the product with id, or -1.
func IndexOf(products []Product, id string) int {
	for i, p := range products {
		if p.ID == id {
			return i
		}
	}
	return -1
}
