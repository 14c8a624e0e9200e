// Package errors provides the error taxonomy shared by the Discovery client.
package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode identifies the class of a client error.
type ErrorCode string

const (
	// Raised once, when a client is constructed
	DISCOVERY_CONFIGURATION ErrorCode = "DISCOVERY_CONFIGURATION" // Missing or invalid service configuration

	// Raised while describing a request, before any network attempt
	DISCOVERY_MISSING_PARAMETER ErrorCode = "DISCOVERY_MISSING_PARAMETER" // Required path or body parameter absent
	DISCOVERY_INVALID_PARAMETER ErrorCode = "DISCOVERY_INVALID_PARAMETER" // Parameter present but unusable

	// Raised by transports
	DISCOVERY_TRANSPORT ErrorCode = "DISCOVERY_TRANSPORT" // Network failure or non-2xx response
)

// Sentinels for errors.Is. Matching is by code only.
var (
	ErrConfiguration    = &Error{Code: DISCOVERY_CONFIGURATION}
	ErrMissingParameter = &Error{Code: DISCOVERY_MISSING_PARAMETER}
	ErrInvalidParameter = &Error{Code: DISCOVERY_INVALID_PARAMETER}
	ErrTransport        = &Error{Code: DISCOVERY_TRANSPORT}
)

// Error is the concrete error type returned by every package in this module.
type Error struct {
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Operation  string      `json:"operation,omitempty"`
	Parameter  string      `json:"parameter,omitempty"`
	StatusCode int         `json:"statusCode,omitempty"` // HTTP status, transport errors only
	Details    interface{} `json:"details,omitempty"`
	Err        error       `json:"-"`
}

// New creates a new Error with the specified code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Configuration reports an unusable service configuration.
func Configuration(format string, args ...interface{}) *Error {
	return New(DISCOVERY_CONFIGURATION, fmt.Sprintf(format, args...))
}

// MissingParameter reports a required parameter that was not supplied.
func MissingParameter(operation, parameter string) *Error {
	return &Error{
		Code:      DISCOVERY_MISSING_PARAMETER,
		Message:   fmt.Sprintf("missing required parameter %q", parameter),
		Operation: operation,
		Parameter: parameter,
	}
}

// InvalidParameter reports a parameter whose value cannot be used.
func InvalidParameter(operation, parameter, reason string) *Error {
	return &Error{
		Code:      DISCOVERY_INVALID_PARAMETER,
		Message:   fmt.Sprintf("invalid parameter %q: %s", parameter, reason),
		Operation: operation,
		Parameter: parameter,
	}
}

// Transport wraps a network-level failure.
func Transport(operation string, err error) *Error {
	return &Error{
		Code:      DISCOVERY_TRANSPORT,
		Message:   err.Error(),
		Operation: operation,
		Err:       err,
	}
}

// HTTPStatus reports a non-2xx response. The response body is kept in Details.
func HTTPStatus(operation string, status int, body []byte) *Error {
	e := &Error{
		Code:       DISCOVERY_TRANSPORT,
		Message:    fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Operation:  operation,
		StatusCode: status,
	}
	if len(body) > 0 {
		e.Details = string(body)
	}
	return e
}

// WithOperation returns a copy of e attributed to operation.
func (e *Error) WithOperation(operation string) *Error {
	c := *e
	c.Operation = operation
	return &c
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Operation != "" {
		msg = e.Operation + ": " + msg
	}
	if e.Details != nil {
		msg = fmt.Sprintf("%s (details: %v)", msg, e.Details)
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Temporary reports whether retrying the same descriptor could succeed.
// Only transport failures without a client-side status qualify.
func (e *Error) Temporary() bool {
	if e.Code != DISCOVERY_TRANSPORT {
		return false
	}
	return e.StatusCode == 0 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}
