package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/websync-digital/sunlit-blue-spark/pkg/errors"
)

// remoteErrorBody covers the error shapes of the hosted table API
// ({"code","message","details","hint"}) and of its storage API
// ({"statusCode","error","message"}).
type remoteErrorBody struct {
	Code    string `json:"code"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// ParseResponseError consumes and closes the body of a non-2xx response and
// translates it into an AppError named after service.
func ParseResponseError(resp *http.Response, service string) error {
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperrors.Remote(service, fmt.Errorf("status %d (read body: %w)", resp.StatusCode, err))
	}

	message := string(raw)
	var body remoteErrorBody
	if json.Unmarshal(raw, &body) == nil {
		switch {
		case body.Message != "":
			message = body.Message
		case body.Error != "":
			message = body.Error
		}
		if body.Details != "" {
			message += " (" + body.Details + ")"
		}
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	return mapRemoteStatus(resp.StatusCode, service, message)
}

func mapRemoteStatus(status int, service, message string) error {
	qualified := fmt.Sprintf("%s: %s", service, message)

	switch {
	case status == http.StatusNotFound:
		return &apperrors.AppError{Code: "NOT_FOUND", Message: qualified, Status: status, Err: apperrors.ErrNotFound}
	case status == http.StatusUnauthorized:
		return apperrors.Unauthorized(qualified)
	case status == http.StatusForbidden:
		return apperrors.Forbidden(qualified)
	case status == http.StatusConflict:
		return apperrors.Conflict(qualified)
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return apperrors.Unprocessable(qualified)
	case status == http.StatusTooManyRequests:
		return apperrors.RateLimited(qualified)
	default:
		return apperrors.Remote(service, fmt.Errorf("status %d: %s", status, message))
	}
}

// IsSuccess reports whether status is 2xx.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}
