package httpclient

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/websync-digital/sunlit-blue-spark/pkg/errors"
)

func response(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestParseResponseError_TableAPIBody(t *testing.T) {
	err := ParseResponseError(response(http.StatusBadRequest,
		`{"code":"23502","message":"null value in column \"name\"","details":"Failing row contains (...)","hint":null}`), "catalog")

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.Status)
	assert.Contains(t, appErr.Message, `catalog: null value in column "name"`)
	assert.Contains(t, appErr.Message, "Failing row")
}

func TestParseResponseError_StorageAPIBody(t *testing.T) {
	err := ParseResponseError(response(http.StatusNotFound,
		`{"statusCode":"404","error":"not_found","message":"Object not found"}`), "storage")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Contains(t, err.Error(), "storage: Object not found")
}

func TestParseResponseError_StatusMapping(t *testing.T) {
	tests := []struct {
		status   int
		sentinel error
	}{
		{http.StatusUnauthorized, apperrors.ErrUnauthorized},
		{http.StatusForbidden, apperrors.ErrForbidden},
		{http.StatusConflict, apperrors.ErrConflict},
		{http.StatusUnprocessableEntity, apperrors.ErrUnprocessable},
		{http.StatusTooManyRequests, apperrors.ErrRateLimited},
		{http.StatusBadGateway, apperrors.ErrRemote},
		{http.StatusTeapot, apperrors.ErrRemote},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := ParseResponseError(response(tt.status, `plain text failure`), "catalog")
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestParseResponseError_EmptyBodyUsesStatusText(t *testing.T) {
	err := ParseResponseError(response(http.StatusForbidden, ``), "catalog")
	assert.Contains(t, err.Error(), "Forbidden")
}

func TestIsSuccess(t *testing.T) {
	assert.True(t, IsSuccess(http.StatusOK))
	assert.True(t, IsSuccess(http.StatusNoContent))
	assert.False(t, IsSuccess(http.StatusMultipleChoices))
	assert.False(t, IsSuccess(http.StatusBadRequest))
}
