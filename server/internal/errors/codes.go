package errors

import (
	"fmt"
)

// ErrorCode represents a specific error type for request handling.
type ErrorCode string

const (
	// ErrCodeUnauthorized indicates authentication failure.
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrCodeRateLimitExceeded indicates rate limit has been exceeded.
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeConflict indicates a uniqueness conflict, e.g. a duplicate email.
	ErrCodeConflict ErrorCode = "CONFLICT"
	// ErrCodeAgentNotFound indicates the requested agent selector does not resolve.
	ErrCodeAgentNotFound ErrorCode = "AGENT_NOT_FOUND"
	// ErrCodeProviderFailed indicates a failure from the completion provider.
	ErrCodeProviderFailed ErrorCode = "PROVIDER_FAILED"
	// ErrCodeContextCanceled indicates the operation was canceled.
	ErrCodeContextCanceled ErrorCode = "CONTEXT_CANCELED"
	// ErrCodeInternal indicates an unexpected server failure.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// RequestError represents a structured error surfaced at the request boundary.
type RequestError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *RequestError) Unwrap() error {
	return e.Cause
}

// GetCode returns the error code.
func (e *RequestError) GetCode() ErrorCode {
	return e.Code
}

// Convenience constructors for common error types.

// Unauthorized creates an unauthorized error.
func Unauthorized(msg string) *RequestError {
	return &RequestError{Code: ErrCodeUnauthorized, Message: msg}
}

// RateLimitExceeded creates a rate limit exceeded error.
func RateLimitExceeded(msg string) *RequestError {
	return &RequestError{Code: ErrCodeRateLimitExceeded, Message: msg}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *RequestError {
	return &RequestError{Code: ErrCodeInvalidArgument, Message: msg}
}

// Conflict creates a conflict error.
func Conflict(msg string) *RequestError {
	return &RequestError{Code: ErrCodeConflict, Message: msg}
}

// AgentNotFound creates an agent not found error.
func AgentNotFound(selector string) *RequestError {
	return &RequestError{
		Code:    ErrCodeAgentNotFound,
		Message: fmt.Sprintf("agent not found: %s", selector),
	}
}

// ProviderFailed creates a provider failed error.
func ProviderFailed(msg string, cause error) *RequestError {
	return &RequestError{Code: ErrCodeProviderFailed, Message: msg, Cause: cause}
}

// ContextCanceled creates a context canceled error.
func ContextCanceled(cause error) *RequestError {
	return &RequestError{Code: ErrCodeContextCanceled, Message: "operation canceled", Cause: cause}
}

// Internal creates an internal error.
func Internal(msg string, cause error) *RequestError {
	return &RequestError{Code: ErrCodeInternal, Message: msg, Cause: cause}
}

// Wrap wraps an existing error with additional context.
func Wrap(cause error, code ErrorCode, msg string) *RequestError {
	return &RequestError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	if reqErr, ok := err.(*RequestError); ok {
		return reqErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not a RequestError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	if reqErr, ok := err.(*RequestError); ok {
		return reqErr.Code
	}
	return defaultCode
}
