// Package apperr defines the error kinds surfaced to API callers and the
// translation of storage failures into those kinds.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for the transport layer
type Kind int

const (
	Internal Kind = iota
	BadRequest
	ValidationFailed
	Unauthenticated
	InvalidCredentials
	Forbidden
	NotFound
	DuplicateIsbn
	DuplicateEmail
	DuplicateResource
	ReferencedResource
	InvalidReference
	MissingRequiredField
	IntegrityViolation
	InvalidCurrentPassword
	LastAdminProtected
	RateLimited
	ServiceUnavailable
	InternalStorageError
)

var kindNames = map[Kind]string{
	Internal:               "internal_error",
	BadRequest:             "bad_request",
	ValidationFailed:       "validation_failed",
	Unauthenticated:        "unauthenticated",
	InvalidCredentials:     "invalid_credentials",
	Forbidden:              "forbidden",
	NotFound:               "not_found",
	DuplicateIsbn:          "duplicate_isbn",
	DuplicateEmail:         "duplicate_email",
	DuplicateResource:      "duplicate_resource",
	ReferencedResource:     "referenced_resource",
	InvalidReference:       "invalid_reference",
	MissingRequiredField:   "missing_required_field",
	IntegrityViolation:     "integrity_violation",
	InvalidCurrentPassword: "invalid_current_password",
	LastAdminProtected:     "last_admin_protected",
	RateLimited:            "rate_limited",
	ServiceUnavailable:     "service_unavailable",
	InternalStorageError:   "internal_storage_error",
}

var kindStatus = map[Kind]int{
	Internal:               http.StatusInternalServerError,
	BadRequest:             http.StatusBadRequest,
	ValidationFailed:       http.StatusUnprocessableEntity,
	Unauthenticated:        http.StatusUnauthorized,
	InvalidCredentials:     http.StatusUnauthorized,
	Forbidden:              http.StatusForbidden,
	NotFound:               http.StatusNotFound,
	DuplicateIsbn:          http.StatusConflict,
	DuplicateEmail:         http.StatusConflict,
	DuplicateResource:      http.StatusConflict,
	ReferencedResource:     http.StatusConflict,
	InvalidReference:       http.StatusBadRequest,
	MissingRequiredField:   http.StatusBadRequest,
	IntegrityViolation:     http.StatusBadRequest,
	InvalidCurrentPassword: http.StatusBadRequest,
	LastAdminProtected:     http.StatusBadRequest,
	RateLimited:            http.StatusTooManyRequests,
	ServiceUnavailable:     http.StatusServiceUnavailable,
	InternalStorageError:   http.StatusInternalServerError,
}

// String returns the error_type value sent to clients
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[Internal]
}

// HTTPStatus returns the response status for the kind
func (k Kind) HTTPStatus() int {
	if status, ok := kindStatus[k]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// IsServerSide reports whether the kind signals an infrastructure failure
// rather than a problem with the request.
func (k Kind) IsServerSide() bool {
	return k.HTTPStatus() >= http.StatusInternalServerError
}

// Error carries a caller-safe message. Err holds the underlying cause and is
// only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error without an underlying cause
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error with a formatted message
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a new Error
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or Internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is matches errors of the same kind and message so sentinel values can be
// compared with errors.Is even after being re-created with a cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}
