// Package rest stores product images in the hosted storage API that sits
// next to the catalog table.
package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/websync-digital/sunlit-blue-spark/internal/storage"
	apperrors "github.com/websync-digital/sunlit-blue-spark/pkg/errors"
	"github.com/websync-digital/sunlit-blue-spark/pkg/httpclient"
)

const serviceName = "storage"

// Storage implements storage.Storage on /storage/v1/object.
type Storage struct {
	client  httpclient.Doer
	baseURL string
	bucket  string
}

// New creates a store for bucket on the service at baseURL. The API key
// headers are expected to be set on the client.
func New(client httpclient.Doer, baseURL, bucket string) *Storage {
	return &Storage{client: client, baseURL: strings.TrimRight(baseURL, "/"), bucket: bucket}
}

var _ storage.Storage = (*Storage)(nil)

// Upload posts the object with x-upsert: false, so an existing key fails.
func (s *Storage) Upload(ctx context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.objectURL(input.Key), input.Data)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	if input.ContentType != "" {
		req.Header.Set("Content-Type", input.ContentType)
	}
	if input.Size > 0 {
		req.ContentLength = input.Size
	}
	if input.CacheControl != "" {
		req.Header.Set("Cache-Control", input.CacheControl)
	}
	req.Header.Set("x-upsert", "false")

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, apperrors.Remote(serviceName, err)
	}
	if !httpclient.IsSuccess(resp.StatusCode) {
		return nil, httpclient.ParseResponseError(resp, serviceName)
	}
	_ = resp.Body.Close()

	return &storage.UploadResult{Key: input.Key, URL: s.publicURL(input.Key)}, nil
}

// Delete removes one object.
func (s *Storage) Delete(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.objectURL(key), nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}

	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return apperrors.Remote(serviceName, err)
	}
	if !httpclient.IsSuccess(resp.StatusCode) {
		return httpclient.ParseResponseError(resp, serviceName)
	}
	_ = resp.Body.Close()
	return nil
}

// KeyFromURL recognises the public URLs handed out by Upload.
func (s *Storage) KeyFromURL(rawURL string) (string, bool) {
	return storage.TrimPrefixKey(rawURL, s.baseURL+"/storage/v1/object/public/"+s.bucket)
}

func (s *Storage) objectURL(key string) string {
	return s.baseURL + "/storage/v1/object/" + s.bucket + "/" + url.PathEscape(key)
}

func (s *Storage) publicURL(key string) string {
	return s.baseURL + "/storage/v1/object/public/" + s.bucket + "/" + url.PathEscape(key)
}
