// Package apperror defines the error taxonomy shared by the signing workflow.
// Every failure returned to a caller carries a Kind so the delivery layer can
// map it without string matching.
package apperror

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation    Kind = "validation"
	KindAccessDenied  Kind = "access_denied"
	KindNotFound      Kind = "not_found"
	KindStateConflict Kind = "state_conflict"
	KindIntegrity     Kind = "integrity_violation"
	KindTransient     Kind = "transient"
)

// Error is a classified failure. Err is optional and kept for logging.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, apperror.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is checks. They carry no message.
var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrAccessDenied  = &Error{Kind: KindAccessDenied}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrStateConflict = &Error{Kind: KindStateConflict}
	ErrIntegrity     = &Error{Kind: KindIntegrity}
	ErrTransient     = &Error{Kind: KindTransient}
)

func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func AccessDenied(format string, args ...interface{}) *Error {
	return &Error{Kind: KindAccessDenied, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func StateConflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindStateConflict, Message: fmt.Sprintf(format, args...)}
}

// Integrity reports a confirmed mismatch between baseline and current digests.
func Integrity(expected, actual string) *Error {
	return &Error{
		Kind:    KindIntegrity,
		Message: fmt.Sprintf("document content changed since request creation (expected %s, got %s)", expected, actual),
	}
}

func Transient(message string, err error) *Error {
	return &Error{Kind: KindTransient, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
