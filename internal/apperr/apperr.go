// Package apperr defines the error taxonomy shared by the workflows and the
// HTTP layer. Store packages keep their own sentinel errors; workflows wrap
// them into an *Error carrying a Kind and a message that is safe to show to
// the caller.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for the caller.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindConflict
	KindInsufficientFunds
	KindInvalidCredentials
	KindInvalidOTP
	KindUnauthorized
	KindForbidden
	KindInvalid
	KindServiceUnavailable
)

var kindNames = map[Kind]string{
	KindInternal:           "internal_error",
	KindNotFound:           "not_found",
	KindConflict:           "conflict",
	KindInsufficientFunds:  "insufficient_funds",
	KindInvalidCredentials: "invalid_credentials",
	KindInvalidOTP:         "invalid_otp",
	KindUnauthorized:       "unauthorized",
	KindForbidden:          "forbidden",
	KindInvalid:            "invalid",
	KindServiceUnavailable: "service_unavailable",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// HTTPStatus maps a Kind onto the status code used in response envelopes.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindInsufficientFunds:
		return http.StatusUnprocessableEntity
	case KindInvalidCredentials, KindUnauthorized:
		return http.StatusUnauthorized
	case KindInvalidOTP, KindInvalid:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified application error. Message is shown to the caller,
// Err holds the underlying cause for operator logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error without an underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error that keeps err for errors.Is/As and logging.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NotFound(message string) *Error           { return New(KindNotFound, message) }
func Conflict(message string) *Error           { return New(KindConflict, message) }
func InsufficientFunds(message string) *Error  { return New(KindInsufficientFunds, message) }
func InvalidCredentials(message string) *Error { return New(KindInvalidCredentials, message) }
func InvalidOTP(message string) *Error         { return New(KindInvalidOTP, message) }
func Unauthorized(message string) *Error       { return New(KindUnauthorized, message) }
func Forbidden(message string) *Error          { return New(KindForbidden, message) }
func Invalid(message string) *Error            { return New(KindInvalid, message) }

// Unavailable reports a collaborator or store failure the caller may retry later.
func Unavailable(message string, err error) *Error {
	return Wrap(KindServiceUnavailable, message, err)
}

// Internal hides err behind a generic message.
func Internal(err error) *Error {
	return Wrap(KindInternal, "internal server error", err)
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
