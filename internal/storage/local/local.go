// Package local stores product images on the filesystem and serves them.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/websync-digital/sunlit-blue-spark/internal/storage"
	apperrors "github.com/websync-digital/sunlit-blue-spark/pkg/errors"
)

// Storage writes objects under baseDir and exposes them below urlPrefix.
type Storage struct {
	baseDir      string
	urlPrefix    string
	cacheControl string
}

// New creates a filesystem store. The directory is created on first upload.
// cacheControl is sent with every served file.
func New(baseDir, urlPrefix, cacheControl string) *Storage {
	return &Storage{baseDir: baseDir, urlPrefix: strings.TrimRight(urlPrefix, "/"), cacheControl: cacheControl}
}

var _ storage.Storage = (*Storage)(nil)

// Upload creates the file exclusively, so an existing key is never replaced.
func (s *Storage) Upload(_ context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	key := filepath.Base(input.Key)
	if key != input.Key || key == "." || key == "/" {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid object key %q", input.Key))
	}

	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	path := filepath.Join(s.baseDir, key)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, apperrors.Conflict(fmt.Sprintf("object %s already exists", key))
		}
		return nil, fmt.Errorf("create %s: %w", key, err)
	}

	if _, err := io.Copy(f, input.Data); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("write %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close %s: %w", key, err)
	}

	return &storage.UploadResult{Key: key, URL: s.urlPrefix + "/" + key}, nil
}

// Delete removes a stored file.
func (s *Storage) Delete(_ context.Context, key string) error {
	err := os.Remove(filepath.Join(s.baseDir, filepath.Base(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return apperrors.NotFound("object", key)
	}
	return err
}

func (s *Storage) KeyFromURL(rawURL string) (string, bool) {
	return storage.TrimPrefixKey(rawURL, s.urlPrefix)
}

// ServeHTTP serves a stored file by the key left in the path once the mount
// prefix has been stripped.
func (s *Storage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := filepath.Base(strings.TrimPrefix(r.URL.Path, "/"))
	path := filepath.Join(s.baseDir, key)

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	if s.cacheControl != "" {
		w.Header().Set("Cache-Control", s.cacheControl)
	}
	http.ServeFile(w, r, path)
}

func (s *Storage) String() string { return fmt.Sprintf("local(%s)", s.baseDir) }
