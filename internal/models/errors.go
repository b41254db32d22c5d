// Package models defines the error taxonomy shared by the data layer and the
// HTTP API.
package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies a class of failure.
type ErrorCode string

const (
	// ErrorCodeValidationFailed is returned when input data fails validation
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrorCodeMissingField is returned when a required field is missing
	ErrorCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrorCodeInvalidFormat is returned when a field has an invalid format
	ErrorCodeInvalidFormat ErrorCode = "INVALID_FORMAT"

	// ErrorCodeNotFound is returned when a document or collection is not found
	ErrorCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrorCodeConflict is returned when a versioned write lost the race after
	// exhausting retries
	ErrorCodeConflict ErrorCode = "CONFLICT"

	// ErrorCodeUnauthorized is returned when credentials, OTP codes or session
	// tokens are missing or invalid
	ErrorCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrorCodeForbidden is returned when a user lacks a role or permission
	ErrorCodeForbidden ErrorCode = "FORBIDDEN"
	// ErrorCodeExpired is returned when an OTP or session has expired
	ErrorCodeExpired ErrorCode = "EXPIRED"

	// ErrorCodeNetwork is returned when the blob store transport fails for any
	// reason other than not-found
	ErrorCodeNetwork ErrorCode = "NETWORK_ERROR"
	// ErrorCodeInternal is returned when an unexpected server error occurs
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrorCodeRateLimited is returned when a client exceeds a rate limit
	ErrorCodeRateLimited ErrorCode = "RATE_LIMITED"
)

// ErrorDetails defines the structured error information in a response.
type ErrorDetails struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error   ErrorDetails   `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorWithStatus is an error that includes an HTTP status code and error code.
type ErrorWithStatus interface {
	Error() string
	StatusCode() int
	Code() ErrorCode
	Details() map[string]any
}

// APIError is a concrete error type with status code, code, and optional details.
type APIError struct {
	statusCode int
	code       ErrorCode
	message    string
	details    map[string]any
	wrappedErr error
}

// NewAPIError creates a new APIError with the given status code and message.
func NewAPIError(statusCode int, code ErrorCode, message string) *APIError {
	return &APIError{
		statusCode: statusCode,
		code:       code,
		message:    message,
	}
}

// WithDetail adds a single detail to the error.
func (e *APIError) WithDetail(key string, value any) *APIError {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

// Wrap wraps an underlying error.
func (e *APIError) Wrap(err error) *APIError {
	e.wrappedErr = err
	return e
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.wrappedErr != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrappedErr)
	}
	return e.message
}

// StatusCode returns the HTTP status code.
func (e *APIError) StatusCode() int {
	return e.statusCode
}

// Code returns the error code.
func (e *APIError) Code() ErrorCode {
	return e.code
}

// Details returns additional error details.
func (e *APIError) Details() map[string]any {
	return e.details
}

// Unwrap returns the wrapped error if any.
func (e *APIError) Unwrap() error {
	return e.wrappedErr
}

// IsCode reports whether err is, or wraps, an APIError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.code == code
}

// Predefined error constructors for common cases

// NotFound creates a 404 Not Found error.
func NotFound(resource string) *APIError {
	return NewAPIError(http.StatusNotFound, ErrorCodeNotFound, fmt.Sprintf("%s not found", resource))
}

// Validation creates a 400 error for a failed validation check.
func Validation(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorCodeValidationFailed, message)
}

// MissingField creates a 400 error for a missing required field.
func MissingField(fieldName string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorCodeMissingField, fmt.Sprintf("missing required field: %s", fieldName)).
		WithDetail("field", fieldName)
}

// TypeMismatch creates a 400 error for a field whose value has the wrong kind.
func TypeMismatch(fieldName, expected string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorCodeValidationFailed, fmt.Sprintf("field %s should be %s", fieldName, expected)).
		WithDetail("field", fieldName).
		WithDetail("expected", expected)
}

// Conflict creates a 409 error for a write that lost a version race.
func Conflict(resource string) *APIError {
	return NewAPIError(http.StatusConflict, ErrorCodeConflict, fmt.Sprintf("%s was modified concurrently", resource))
}

// Unauthorized creates a 401 Unauthorized error.
func Unauthorized(message string) *APIError {
	return NewAPIError(http.StatusUnauthorized, ErrorCodeUnauthorized, message)
}

// Forbidden creates a 403 Forbidden error.
func Forbidden(message string) *APIError {
	return NewAPIError(http.StatusForbidden, ErrorCodeForbidden, message)
}

// Expired creates a 400 error for expired resources.
func Expired(resource string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorCodeExpired, fmt.Sprintf("%s expired", resource))
}

// Network creates a 502 error wrapping a blob store transport failure.
func Network(message string, err error) *APIError {
	return NewAPIError(http.StatusBadGateway, ErrorCodeNetwork, message).Wrap(err)
}

// Internal returns a 500 Internal Server Error.
func Internal(message string) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrorCodeInternal, message)
}

// RateLimited creates a 429 error with the retry delay in seconds.
func RateLimited(retryAfter int) *APIError {
	return NewAPIError(http.StatusTooManyRequests, ErrorCodeRateLimited, "rate limit exceeded").
		WithDetail("retry_after", retryAfter)
}
