// Package domainerrors provides typed domain errors. Services return these so
// transport layers can translate a code into a status without string
// matching, and so tests can assert on the class of a failure rather than
// its message.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeInvalidInput marks bad caller input (malformed IDs, empty fields).
	CodeInvalidInput Code = "invalid_input"
	// CodeUnauthorized marks missing or invalid authentication.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden marks an authenticated caller acting outside its rights.
	CodeForbidden Code = "forbidden"
	// CodeNotFound marks a referenced entity that does not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict marks a write racing an existing entity.
	CodeConflict Code = "conflict"
	// CodeUnavailable marks a dependency that could not be reached. Retryable.
	CodeUnavailable Code = "unavailable"
	// CodeTooManyRequests marks a rate-limited caller. Retryable after backoff.
	CodeTooManyRequests Code = "too_many_requests"
	// CodeProfileRejected marks an application identity the remote service
	// refused. Not retryable with the same profile.
	CodeProfileRejected Code = "profile_rejected"
	// CodeTimeout marks a bounded wait that elapsed with no confirmation.
	// Retryable: the caller may simply start a new handshake.
	CodeTimeout Code = "timeout"
	// CodeAuthIncomplete marks a confirmation that arrived but never turned
	// into an authorized session. Needs user action before retrying.
	CodeAuthIncomplete Code = "auth_incomplete"
	// CodeInternal marks everything we cannot attribute to the caller.
	CodeInternal Code = "internal"
)

// Error is a domain error with a classification code. The wrapped cause, if
// any, stays reachable through errors.Is/As.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Msg: msg}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message while keeping it unwrappable.
// Wrapping nil returns nil.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Msg: msg, Err: err}
}

// Wrapf annotates err with a code and a formatted message.
func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...), Err: err}
}

// HasCode reports whether any error in the chain is a domain error with the
// given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost domain error in the chain, or
// CodeInternal when err carries no classification.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
