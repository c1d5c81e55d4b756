package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/websync-digital/sunlit-blue-spark/internal/storage"
	apperrors "github.com/websync-digital/sunlit-blue-spark/pkg/errors"
)

// object is one stored file.
type object struct {
	contentType  string
	cacheControl string
	data         []byte
	modified     time.Time
}

// Storage implements storage.Storage in memory and serves the stored bytes
// over HTTP, so development setups need no external blob store.
type Storage struct {
	mu      sync.RWMutex
	objects map[string]*object
	baseURL string
}

// New creates an empty store whose URLs start with baseURL, e.g. "/media".
func New(baseURL string) *Storage {
	return &Storage{
		objects: make(map[string]*object),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

var _ storage.Storage = (*Storage)(nil)

// Upload keeps a copy of the data. A key that already exists is a conflict.
func (s *Storage) Upload(_ context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	data, err := io.ReadAll(input.Data)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[input.Key]; exists {
		return nil, apperrors.Conflict(fmt.Sprintf("object %s already exists", input.Key))
	}
	s.objects[input.Key] = &object{
		contentType:  input.ContentType,
		cacheControl: input.CacheControl,
		data:         data,
		modified:     time.Now(),
	}

	return &storage.UploadResult{Key: input.Key, URL: s.baseURL + "/" + input.Key}, nil
}

// Delete removes an object.
func (s *Storage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[key]; !exists {
		return apperrors.NotFound("object", key)
	}
	delete(s.objects, key)
	return nil
}

// KeyFromURL recognises URLs produced by Upload.
func (s *Storage) KeyFromURL(rawURL string) (string, bool) {
	return storage.TrimPrefixKey(rawURL, s.baseURL)
}

// Len returns the number of stored objects.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// ServeHTTP serves an object by the key left in the request path after the
// mount prefix has been stripped.
func (s *Storage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/")

	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	if obj.contentType != "" {
		w.Header().Set("Content-Type", obj.contentType)
	}
	if obj.cacheControl != "" {
		w.Header().Set("Cache-Control", obj.cacheControl)
	}
	http.ServeContent(w, r, key, obj.modified, bytes.NewReader(obj.data))
}
