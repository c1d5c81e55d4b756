// Package prefs persists small per-visitor preferences such as the theme,
// the favorite product ids and the last loaded catalog.
package prefs

import (
	"context"
	"encoding/json"
	"fmt"
)

// Well-known preference keys.
const (
	KeyTheme     = "theme"
	KeyFavorites = "favorites"
	KeyProducts  = "products"
)

// Store is a key-value store scoped by visitor profile id.
type Store interface {
	// Get returns the value stored under key. A missing key yields an
	// apperrors.ErrNotFound error.
	Get(ctx context.Context, profile, key string) (string, error)

	// Set stores value under key.
	Set(ctx context.Context, profile, key, value string) error

	// Clear removes key. Clearing a missing key is not an error.
	Clear(ctx context.Context, profile, key string) error
}

// Profile binds a Store to one visitor.
type Profile struct {
	store Store
	id    string
}

// ForProfile returns the preferences of the visitor with id.
func ForProfile(store Store, id string) Profile {
	return Profile{store: store, id: id}
}

// ID returns the visitor profile id.
func (p Profile) ID() string { return p.id }

func (p Profile) Get(ctx context.Context, key string) (string, error) {
	return p.store.Get(ctx, p.id, key)
}

func (p Profile) Set(ctx context.Context, key, value string) error {
	return p.store.Set(ctx, p.id, key, value)
}

func (p Profile) Clear(ctx context.Context, key string) error {
	return p.store.Clear(ctx, p.id, key)
}

// GetJSON decodes the JSON value under key into dst.
func (p Profile) GetJSON(ctx context.Context, key string, dst any) error {
	raw, err := p.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("decode preference %s: %w", key, err)
	}
	return nil
}

// SetJSON stores v as JSON under key.
func (p Profile) SetJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode preference %s: %w", key, err)
	}
	return p.Set(ctx, key, string(raw))
}
