// Package errors defines structured error types for the API.
package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode defines specific error types for the API.
type ErrorCode string

const (
	// ErrValidationFailed is returned when input data fails validation
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrMissingField is returned when a required field is missing
	ErrMissingField ErrorCode = "MISSING_FIELD"
	// ErrInvalidFormat is returned when a field has an invalid format
	ErrInvalidFormat ErrorCode = "INVALID_FORMAT"
	// ErrUnknownColumn is returned when a query names a column outside the schema
	ErrUnknownColumn ErrorCode = "UNKNOWN_COLUMN"
	// ErrInvalidType is returned when an item type is not supported
	ErrInvalidType ErrorCode = "INVALID_TYPE"

	// ErrItemNotFound is returned when no item has the requested id
	ErrItemNotFound ErrorCode = "ITEM_NOT_FOUND"

	// ErrUpstream is returned when the spreadsheet or the image host fails
	ErrUpstream ErrorCode = "UPSTREAM_ERROR"
	// ErrTimeout is returned when a request runs out of time
	ErrTimeout ErrorCode = "TIMEOUT"

	// ErrInternal is returned when an unexpected server error occurs
	ErrInternal ErrorCode = "INTERNAL_ERROR"
	// ErrNotImplemented is returned when a feature is not implemented
	ErrNotImplemented ErrorCode = "NOT_IMPLEMENTED"
)

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
		details:    make(map[string]any),
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

// Predefined error constructors for common cases

// ItemNotFound creates a 404 Not Found error for a missing item.
func ItemNotFound(err error) *APIError {
	return NewAPIError(http.StatusNotFound, ErrItemNotFound, err.Error())
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrValidationFailed, message)
}

// MissingField creates a 400 Bad Request error for a missing field.
func MissingField(fieldName string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrMissingField, fmt.Sprintf("Missing required field: %s", fieldName))
}

// InternalWithError creates a 500 error wrapping an underlying error.
func InternalWithError(message string, err error) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrInternal, message).Wrap(err)
}

// NotImplemented creates a 501 Not Implemented error.
func NotImplemented(feature string) *APIError {
	return NewAPIError(http.StatusNotImplemented, ErrNotImplemented, fmt.Sprintf("%s is not configured", feature))
}

// Upstream creates a 502 Bad Gateway error wrapping a remote failure.
func Upstream(message string, err error) *APIError {
	return NewAPIError(http.StatusBadGateway, ErrUpstream, message).Wrap(err)
}

// Timeout creates a 504 Gateway Timeout error.
func Timeout(err error) *APIError {
	return NewAPIError(http.StatusGatewayTimeout, ErrTimeout, "request timed out").Wrap(err)
}
