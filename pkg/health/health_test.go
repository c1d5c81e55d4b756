package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h http.HandlerFunc) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	var resp Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return rec, resp
}

func TestLivenessHandler_AlwaysReturns200(t *testing.T) {
	h := NewHandler()
	h.Register("catalog", func(context.Context) error { return fmt.Errorf("down") })

	rec, resp := serve(t, h.LivenessHandler())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, StatusUp, resp.Status)
	assert.False(t, resp.Timestamp.IsZero())
	assert.Empty(t, resp.Checks)
}

func TestReadinessHandler_AllHealthy(t *testing.T) {
	h := NewHandler()
	h.Register("catalog", func(context.Context) error { return nil })
	h.Register("storage", func(context.Context) error { return nil })

	rec, resp := serve(t, h.ReadinessHandler())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusUp, resp.Status)
	assert.Equal(t, StatusUp, resp.Checks["catalog"].Status)
	assert.Equal(t, StatusUp, resp.Checks["storage"].Status)
}

func TestReadinessHandler_RequiredDown(t *testing.T) {
	h := NewHandler()
	h.Register("catalog", func(context.Context) error { return fmt.Errorf("connection refused") })

	rec, resp := serve(t, h.ReadinessHandler())

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, StatusDown, resp.Status)
	assert.Equal(t, "connection refused", resp.Checks["catalog"].Error)
}

func TestReadinessHandler_OptionalDownStaysReady(t *testing.T) {
	h := NewHandler()
	h.Register("catalog", func(context.Context) error { return nil })
	h.RegisterOptional("prefs", func(context.Context) error { return fmt.Errorf("redis unavailable") })

	rec, resp := serve(t, h.ReadinessHandler())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusUp, resp.Status)
	assert.Equal(t, StatusDown, resp.Checks["prefs"].Status)
	assert.True(t, resp.Checks["prefs"].Optional)
}

func TestReadinessHandler_NoCheckers(t *testing.T) {
	rec, resp := serve(t, NewHandler().ReadinessHandler())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, StatusUp, resp.Status)
}

func TestReadinessHandler_TimeoutReachesChecker(t *testing.T) {
	h := NewHandler()
	h.timeout = 10 * time.Millisecond
	h.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	rec, resp := serve(t, h.ReadinessHandler())

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, resp.Checks["slow"].Error, "deadline exceeded")
}
