// Package errors defines the structured error type used across the Sentinel
// service. Errors carry a stable code, an HTTP status, and optional metadata
// so handlers can map them to responses without string matching.
package errors

import (
	"fmt"
	"net/http"
)

// Code is a stable, machine-readable error code.
type Code string

const (
	CodeInvalidRequest     Code = "invalid_request"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeRateLimitExceeded  Code = "rate_limit_exceeded"
	CodeInternal           Code = "internal_error"
	CodeServiceUnavailable Code = "service_unavailable"
)

// AppError is a structured application error.
type AppError struct {
	code       Code
	httpStatus int
	message    string
	cause      error
	metadata   map[string]interface{}
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return e.message
}

// Code returns the machine-readable error code.
func (e *AppError) Code() Code {
	return e.code
}

// HTTPStatus returns the HTTP status this error maps to.
func (e *AppError) HTTPStatus() int {
	return e.httpStatus
}

// Unwrap returns the underlying cause, if any.
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause attaches an underlying error.
func (e *AppError) WithCause(cause error) *AppError {
	e.cause = cause
	return e
}

// WithMetadata attaches a key-value pair of context metadata.
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.metadata == nil {
		e.metadata = make(map[string]interface{})
	}
	e.metadata[key] = value
	return e
}

// Metadata returns all attached metadata.
func (e *AppError) Metadata() map[string]interface{} {
	return e.metadata
}

// New creates an AppError with an explicit code and HTTP status.
func New(code Code, httpStatus int, message string) *AppError {
	return &AppError{code: code, httpStatus: httpStatus, message: message}
}

// ================================================================================
// Predefined Constructors
// ================================================================================

// ErrInvalidRequest creates an invalid_request error (HTTP 400).
func ErrInvalidRequest(message string) *AppError {
	return New(CodeInvalidRequest, http.StatusBadRequest, message)
}

// ErrUnauthorized creates an unauthorized error (HTTP 401).
func ErrUnauthorized(message string) *AppError {
	return New(CodeUnauthorized, http.StatusUnauthorized, message)
}

// ErrForbidden creates a forbidden error (HTTP 403).
func ErrForbidden(message string) *AppError {
	return New(CodeForbidden, http.StatusForbidden, message)
}

// ErrNotFound creates a not_found error (HTTP 404).
func ErrNotFound(message string) *AppError {
	return New(CodeNotFound, http.StatusNotFound, message)
}

// ErrConflict creates a conflict error (HTTP 409).
func ErrConflict(message string) *AppError {
	return New(CodeConflict, http.StatusConflict, message)
}

// ErrRateLimitExceeded creates a rate_limit_exceeded error (HTTP 429).
func ErrRateLimitExceeded(scope string, limit int) *AppError {
	return New(CodeRateLimitExceeded, http.StatusTooManyRequests,
		fmt.Sprintf("rate limit exceeded for %s: %d requests", scope, limit)).
		WithMetadata("scope", scope).
		WithMetadata("limit", limit)
}

// ErrInternal creates an internal_error error (HTTP 500).
func ErrInternal(message string) *AppError {
	return New(CodeInternal, http.StatusInternalServerError, message)
}

// ErrServiceUnavailable creates a service_unavailable error (HTTP 503).
func ErrServiceUnavailable(message string) *AppError {
	return New(CodeServiceUnavailable, http.StatusServiceUnavailable, message)
}

// Wrap converts a generic error into an internal AppError, preserving the
// original as the cause.
func Wrap(err error, message string) *AppError {
	return ErrInternal(message).WithCause(err)
}

// ================================================================================
// Inspection Helpers
// ================================================================================

// AsAppError attempts to cast an error to *AppError.
func AsAppError(err error) (*AppError, bool) {
	appErr, ok := err.(*AppError)
	return appErr, ok
}

// IsNotFound reports whether err is a not_found AppError.
func IsNotFound(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.code == CodeNotFound
	}
	return false
}

// IsRateLimit reports whether err is a rate_limit_exceeded AppError.
func IsRateLimit(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.code == CodeRateLimitExceeded
	}
	return false
}

// ================================================================================
// Error Response Shape
// ================================================================================

// ErrorResponse is the JSON body returned for failed requests.
type ErrorResponse struct {
	Error            string                 `json:"error"`
	ErrorDescription string                 `json:"error_description"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// ToErrorResponse converts any error to the wire shape. Unknown errors map
// to a generic internal_error so internals never leak to clients.
func ToErrorResponse(err error) *ErrorResponse {
	if appErr, ok := AsAppError(err); ok {
		return &ErrorResponse{
			Error:            string(appErr.Code()),
			ErrorDescription: appErr.Error(),
			Metadata:         appErr.Metadata(),
		}
	}
	return &ErrorResponse{
		Error:            string(CodeInternal),
		ErrorDescription: "an unexpected error occurred",
	}
}
