package rest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/websync-digital/sunlit-blue-spark/internal/storage"
	apperrors "github.com/websync-digital/sunlit-blue-spark/pkg/errors"
	"github.com/websync-digital/sunlit-blue-spark/pkg/httpclient"
)

func newStore(t *testing.T, h http.HandlerFunc) (*Storage, string) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := httpclient.DefaultConfig()
	cfg.MaxRetries = 0
	cfg.Headers = http.Header{"Apikey": {"anon-key"}}
	return New(httpclient.New(cfg), srv.URL, "product-images"), srv.URL
}

func TestUpload_PostsObject(t *testing.T) {
	s, base := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/storage/v1/object/product-images/17-abc.png", r.URL.Path)
		assert.Equal(t, "false", r.Header.Get("x-upsert"))
		assert.Equal(t, "max-age=3600", r.Header.Get("Cache-Control"))
		assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "png-bytes", string(body))
		_, _ = w.Write([]byte(`{"Key":"product-images/17-abc.png"}`))
	})

	res, err := s.Upload(context.Background(), &storage.UploadInput{
		Key:          "17-abc.png",
		ContentType:  "image/png",
		Data:         strings.NewReader("png-bytes"),
		CacheControl: "max-age=3600",
	})
	require.NoError(t, err)
	assert.Equal(t, base+"/storage/v1/object/public/product-images/17-abc.png", res.URL)

	key, ok := s.KeyFromURL(res.URL)
	assert.True(t, ok)
	assert.Equal(t, "17-abc.png", key)
}

func TestUpload_DuplicateIsConflict(t *testing.T) {
	s, _ := newStore(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"statusCode":"409","error":"Duplicate","message":"The resource already exists"}`))
	})

	_, err := s.Upload(context.Background(), &storage.UploadInput{Key: "k.png", Data: strings.NewReader("x")})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestUpload_QuotaFailureIsRemote(t *testing.T) {
	s, _ := newStore(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInsufficientStorage)
	})

	_, err := s.Upload(context.Background(), &storage.UploadInput{Key: "k.png", Data: strings.NewReader("x")})
	assert.ErrorIs(t, err, apperrors.ErrRemote)
}

func TestDelete(t *testing.T) {
	s, _ := newStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		if strings.HasSuffix(r.URL.Path, "/missing.png") {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not_found","message":"Object not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"message":"Successfully deleted"}`))
	})

	assert.NoError(t, s.Delete(context.Background(), "k.png"))
	assert.ErrorIs(t, s.Delete(context.Background(), "missing.png"), apperrors.ErrNotFound)
}

func TestKeyFromURL_Foreign(t *testing.T) {
	s := New(nil, "https://xyz.supabase.co", "product-images")
	_, ok := s.KeyFromURL("https://images.unsplash.com/photo.png")
	assert.False(t, ok)
	_, ok = s.KeyFromURL("https://xyz.supabase.co/storage/v1/object/public/other-bucket/a.png")
	assert.False(t, ok)
}
