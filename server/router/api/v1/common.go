package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apierrors "github.com/campfire-chat/campfire/server/internal/errors"
)

// errorResponse is the JSON body of every API error. Error carries the
// human-readable text; Code is the machine-readable taxonomy entry.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var codeStatuses = map[apierrors.ErrorCode]int{
	apierrors.ErrCodeUnauthorized:      http.StatusUnauthorized,
	apierrors.ErrCodeRateLimitExceeded: http.StatusTooManyRequests,
	apierrors.ErrCodeInvalidArgument:   http.StatusBadRequest,
	apierrors.ErrCodeConflict:          http.StatusConflict,
	apierrors.ErrCodeAgentNotFound:     http.StatusBadRequest,
	apierrors.ErrCodeProviderFailed:    http.StatusInternalServerError,
	apierrors.ErrCodeContextCanceled:   499,
	apierrors.ErrCodeInternal:          http.StatusInternalServerError,
}

// writeError maps a request error to its HTTP status and JSON body. Internal
// causes are not echoed to clients.
func writeError(c echo.Context, err error) error {
	code := apierrors.GetCodeFromError(err, apierrors.ErrCodeInternal)
	message := "internal server error"
	if reqErr, ok := err.(*apierrors.RequestError); ok {
		message = reqErr.Message
	}
	status, ok := codeStatuses[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return c.JSON(status, &errorResponse{
		Error: message,
		Code:  string(code),
	})
}
