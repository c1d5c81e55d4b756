package catalog

import (
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/websync-digital/sunlit-blue-spark/pkg/errors"
)

// FetchError reports a failed list load.
type FetchError struct {
	Message string
	Err     error
}

func (e *FetchError) Error() string { return e.Message }
func (e *FetchError) Unwrap() error { return e.Err }

// MutationError reports a rejected create, update or delete. Op is one of
// "create", "update" or "delete".
type MutationError struct {
	Op      string
	ID      string
	Message string
	Err     error
}

func (e *MutationError) Error() string { return e.Message }
func (e *MutationError) Unwrap() error { return e.Err }

// UploadError reports a failed image upload.
type UploadError struct {
	FileName string
	Message  string
	Err      error
}

func (e *UploadError) Error() string { return e.Message }
func (e *UploadError) Unwrap() error { return e.Err }

// NotFoundError reports a product id absent from the loaded list.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("product %s not found", e.ID) }
func (e *NotFoundError) Unwrap() error { return apperrors.ErrNotFound }

func describe(prefix string, err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return prefix + ": " + appErr.Message
	}
	return prefix + ": " + err.Error()
}

// AppError maps a catalog error onto the AppError the HTTP layer renders.
// Errors of other types are returned unchanged.
func AppError(err error) error {
	var (
		fetchErr    *FetchError
		mutationErr *MutationError
		uploadErr   *UploadError
		notFoundErr *NotFoundError
	)

	switch {
	case errors.As(err, &notFoundErr):
		return apperrors.NotFound("product", notFoundErr.ID)
	case errors.As(err, &fetchErr):
		return &apperrors.AppError{Code: "FETCH_FAILED", Message: fetchErr.Message, Status: http.StatusBadGateway, Err: err}
	case errors.As(err, &mutationErr):
		if errors.Is(err, apperrors.ErrNotFound) {
			return &apperrors.AppError{Code: "NOT_FOUND", Message: mutationErr.Message, Status: http.StatusNotFound, Err: err}
		}
		return &apperrors.AppError{Code: "MUTATION_FAILED", Message: mutationErr.Message, Status: http.StatusUnprocessableEntity, Err: err}
	case errors.As(err, &uploadErr):
		if errors.Is(err, apperrors.ErrInvalidInput) {
			return &apperrors.AppError{Code: "INVALID_INPUT", Message: uploadErr.Message, Status: http.StatusBadRequest, Err: err}
		}
		return &apperrors.AppError{Code: "UPLOAD_FAILED", Message: uploadErr.Message, Status: http.StatusBadGateway, Err: err}
	default:
		return err
	}
}
