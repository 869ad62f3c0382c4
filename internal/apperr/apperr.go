// Package apperr defines the structured errors surfaced at the API boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies the error class for clients and for HTTP status mapping.
type Code string

const (
	CodeValidation    Code = "VALIDATION"     // 400
	CodeAuth          Code = "AUTH"           // 401
	CodePermission    Code = "PERMISSION"     // 403
	CodeNotFound      Code = "NOT_FOUND"      // 404
	CodeQuotaExceeded Code = "QUOTA_EXCEEDED" // 429
	CodeUpstream      Code = "UPSTREAM"       // 502
	CodeInternal      Code = "INTERNAL"       // 500
)

// Error carries a machine code, HTTP status, human-readable message and
// optional structured details.
type Error struct {
	Code    Code           `json:"code"`
	Status  int            `json:"-"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`

	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NewValidation creates a 400 error for a missing or malformed field.
func NewValidation(msg string) *Error {
	return &Error{Code: CodeValidation, Status: http.StatusBadRequest, Message: msg}
}

// NewAuth creates a 401 error. The message must never reveal whether the
// referenced identity exists.
func NewAuth(msg string) *Error {
	return &Error{Code: CodeAuth, Status: http.StatusUnauthorized, Message: msg}
}

// NewPermission creates a 403 error for a non-owner mutation.
func NewPermission(msg string) *Error {
	return &Error{Code: CodePermission, Status: http.StatusForbidden, Message: msg}
}

// NewNotFound creates a 404 error for an unknown entity.
func NewNotFound(what string) *Error {
	return &Error{
		Code:    CodeNotFound,
		Status:  http.StatusNotFound,
		Message: fmt.Sprintf("%s not found", what),
	}
}

// NewQuotaExceeded creates a 429 error carrying the exact counter values so a
// client can render "X/Y characters used".
func NewQuotaExceeded(used, limit, attempted int64) *Error {
	return &Error{
		Code:   CodeQuotaExceeded,
		Status: http.StatusTooManyRequests,
		Message: fmt.Sprintf("quota exceeded: %d of %d characters used, write of %d characters rejected",
			used, limit, attempted),
		Details: map[string]any{
			"used":      used,
			"limit":     limit,
			"attempted": attempted,
		},
	}
}

// NewUpstream creates a 502 error for a failed call to an external provider
// (extraction, embedding, chat model).
func NewUpstream(op string, err error) *Error {
	return &Error{
		Code:    CodeUpstream,
		Status:  http.StatusBadGateway,
		Message: fmt.Sprintf("%s failed", op),
		cause:   err,
	}
}

// NewInternal wraps an unexpected error.
func NewInternal(err error) *Error {
	return &Error{
		Code:    CodeInternal,
		Status:  http.StatusInternalServerError,
		Message: "internal error",
		cause:   err,
	}
}

// From coerces any error into an *Error, wrapping unknown errors as internal.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return NewInternal(err)
}

// IsCode reports whether err is an *Error with the given code.
func IsCode(err error, code Code) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == code
}
