package storage

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
)

// ErrNotOwned is returned when a URL does not point into this store.
var ErrNotOwned = errors.New("url does not belong to this store")

// Storage stores product images and hands out their public URLs.
type Storage interface {
	// Upload stores a new object. Existing keys are never overwritten.
	Upload(ctx context.Context, input *UploadInput) (*UploadResult, error)

	// Delete removes an object by its key.
	Delete(ctx context.Context, key string) error

	// KeyFromURL returns the key of an object this store served at url.
	KeyFromURL(rawURL string) (string, bool)
}

// UploadInput holds the parameters for uploading a file.
type UploadInput struct {
	Key          string
	ContentType  string
	Size         int64
	Data         io.Reader
	CacheControl string
}

// UploadResult holds the result of a successful upload.
type UploadResult struct {
	Key string
	URL string
}

// DeleteURL removes the object behind rawURL when it belongs to s.
func DeleteURL(ctx context.Context, s Storage, rawURL string) error {
	key, ok := s.KeyFromURL(rawURL)
	if !ok {
		return ErrNotOwned
	}
	return s.Delete(ctx, key)
}

// TrimPrefixKey strips prefix from rawURL and returns the rest as a key.
// Query strings and fragments are ignored.
func TrimPrefixKey(rawURL, prefix string) (string, bool) {
	if prefix == "" {
		return "", false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	u.RawQuery, u.Fragment = "", ""

	key, ok := strings.CutPrefix(u.String(), strings.TrimRight(prefix, "/")+"/")
	if !ok || key == "" {
		return "", false
	}
	if unescaped, err := url.PathUnescape(key); err == nil {
		key = unescaped
	}
	return key, true
}
