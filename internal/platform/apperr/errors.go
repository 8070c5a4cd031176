// Package apperr defines the error taxonomy shared by all domain packages.
// Services and repositories return these errors; the HTTP layer maps them to
// status codes in a single place so no handler invents its own variants.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrConflict signals a uniqueness violation (duplicate username, email,
	// license number). Distinguishable from generic failures so the caller can
	// correct the input.
	ErrConflict = errors.New("conflict")

	// ErrNotFound signals that the requested resource does not exist or is
	// not visible to the caller.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized signals a missing, invalid, or expired credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden signals a valid credential with insufficient scope.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError reports malformed input caught before persistence.
// The message is user-correctable and safe to return verbatim.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Status maps an error to its HTTP status code. Unrecognized errors map to
// 500 so that internal details never leak through a status choice.
func Status(err error) int {
	switch {
	case IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the user-facing message for an error. Internal errors are
// collapsed to a generic message; stack traces, ciphertext, and digests never
// reach the client.
func Message(err error) string {
	if Status(err) == http.StatusInternalServerError {
		return "internal server error"
	}
	return err.Error()
}
