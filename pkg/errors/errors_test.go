package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrInvalidInput, ErrUnauthorized, ErrForbidden,
		ErrInternal, ErrConflict, ErrUnprocessable, ErrRemote, ErrRateLimited,
	}

	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j],
				"sentinels %d and %d should be distinct", i, j)
		}
	}
}

func TestAppError_ErrorString(t *testing.T) {
	withCause := &AppError{Code: "REMOTE_FAILURE", Message: "catalog is unavailable", Err: fmt.Errorf("dial tcp: refused")}
	assert.Contains(t, withCause.Error(), "REMOTE_FAILURE")
	assert.Contains(t, withCause.Error(), "dial tcp: refused")

	bare := &AppError{Code: "NOT_FOUND", Message: "product not found"}
	assert.Equal(t, "NOT_FOUND: product not found", bare.Error())
	assert.Nil(t, bare.Unwrap())
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		code     string
		status   int
		sentinel error
	}{
		{"not found", NotFound("product", "p-1"), "NOT_FOUND", http.StatusNotFound, ErrNotFound},
		{"invalid input", InvalidInput("name is required"), "INVALID_INPUT", http.StatusBadRequest, ErrInvalidInput},
		{"unauthorized", Unauthorized("login required"), "UNAUTHORIZED", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", Forbidden("admins only"), "FORBIDDEN", http.StatusForbidden, ErrForbidden},
		{"conflict", Conflict("a modal is already open"), "CONFLICT", http.StatusConflict, ErrConflict},
		{"unprocessable", Unprocessable("row rejected"), "UNPROCESSABLE", http.StatusUnprocessableEntity, ErrUnprocessable},
		{"remote", Remote("catalog", errors.New("timeout")), "REMOTE_FAILURE", http.StatusBadGateway, ErrRemote},
		{"rate limited", RateLimited("slow down"), "RATE_LIMITED", http.StatusTooManyRequests, ErrRateLimited},
		{"internal", Internal(errors.New("sign token")), "INTERNAL_ERROR", http.StatusInternalServerError, ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotNil(t, tt.err)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.Status)
			assert.ErrorIs(t, tt.err, tt.sentinel)
		})
	}
}

func TestRemote_KeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Remote("blob store", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Message, "blob store")
}

func TestInternal_KeepsCauseHidden(t *testing.T) {
	cause := errors.New("signing key rejected")
	err := Internal(cause)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrInternal)
	assert.NotContains(t, err.Message, "signing key")
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(fmt.Errorf("wrapped: %w", ErrNotFound)))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(fmt.Errorf("wrapped: %w", ErrRemote)))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(Unprocessable("x")))
	assert.Equal(t, http.StatusConflict, HTTPStatus(ErrConflict))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestWrap(t *testing.T) {
	err := Wrap(ErrNotFound, "load product")
	assert.Equal(t, "load product: resource not found", err.Error())
	assert.ErrorIs(t, err, ErrNotFound)
}
