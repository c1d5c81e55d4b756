package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/websync-digital/sunlit-blue-spark/pkg/logger"
)

func TestRequestLogging_CorrelationIDAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var seen string
	h := RequestLogging(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.CorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusBadGateway)
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/products", nil)
	r.Header.Set(correlationHeader, "corr-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	assert.Equal(t, "corr-42", seen)
	assert.Equal(t, "corr-42", rec.Header().Get(correlationHeader))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "ERROR", line["level"])
	assert.Equal(t, float64(http.StatusBadGateway), line["status"])
}

func TestRequestLogging_GeneratesCorrelationID(t *testing.T) {
	h := RequestLogging(testLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Len(t, rec.Header().Get(correlationHeader), 36)
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, levelFor("/health/live", http.StatusOK))
	assert.Equal(t, slog.LevelInfo, levelFor("/products", http.StatusOK))
	assert.Equal(t, slog.LevelWarn, levelFor("/products/x", http.StatusNotFound))
	assert.Equal(t, slog.LevelError, levelFor("/metrics", http.StatusInternalServerError))
}

func TestRequestLogger_EnrichesWithSession(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	h := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Info("handled")
	}))

	r := httptest.NewRequest(http.MethodGet, "/admin", nil)
	ctx := logger.WithCorrelationID(r.Context(), "corr-1")
	ctx = WithClaims(ctx, &Claims{Subject: "sess-7", Role: "admin"})
	h.ServeHTTP(httptest.NewRecorder(), r.WithContext(ctx))

	out := buf.String()
	assert.True(t, strings.Contains(out, `"session_id":"sess-7"`), out)
	assert.Contains(t, out, `"correlation_id":"corr-1"`)
}

func TestRecovery_Returns500(t *testing.T) {
	h := Recovery(testLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func TestCacheControl(t *testing.T) {
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	rec := httptest.NewRecorder()
	CacheControl(time.Hour)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/site.css", nil))
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))

	rec = httptest.NewRecorder()
	NoStore(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/products", nil))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}
