// Package apperr defines the typed errors returned across service boundaries.
// Each Kind maps to exactly one HTTP status and error code.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindAuth
	KindNotAcceptable
	KindConflict
	KindUnavailable
)

// InternalMessage is the only text a client sees for internal failures.
const InternalMessage = "An unexpected error occurred, please contact support"

type Error struct {
	Kind    Kind
	Message string
	Details map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(msg string) *Error    { return &Error{Kind: KindValidation, Message: msg} }
func NotFound(msg string) *Error      { return &Error{Kind: KindNotFound, Message: msg} }
func Forbidden(msg string) *Error     { return &Error{Kind: KindForbidden, Message: msg} }
func Auth(msg string) *Error          { return &Error{Kind: KindAuth, Message: msg} }
func NotAcceptable(msg string) *Error { return &Error{Kind: KindNotAcceptable, Message: msg} }
func Conflict(msg string) *Error      { return &Error{Kind: KindConflict, Message: msg} }

func Unavailable(msg string, err error) *Error {
	return &Error{Kind: KindUnavailable, Message: msg, Err: err}
}

func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// From returns err as an *Error. Anything that is not already typed becomes
// an internal error wrapping the original.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal("unhandled error", err)
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// HTTPStatus returns the status and wire code for k.
func (k Kind) HTTPStatus() (int, string) {
	switch k {
	case KindValidation:
		return http.StatusBadRequest, "INVALID_REQUEST"
	case KindNotFound:
		return http.StatusNotFound, "NOT_FOUND"
	case KindForbidden:
		return http.StatusForbidden, "FORBIDDEN"
	case KindAuth:
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case KindNotAcceptable:
		return http.StatusNotAcceptable, "NOT_ACCEPTABLE"
	case KindConflict:
		return http.StatusConflict, "CONFLICT"
	case KindUnavailable:
		return http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func (k Kind) String() string {
	_, code := k.HTTPStatus()
	return code
}
