package service

import (
	"errors"
	"fmt"
)

// Kind classifies a business error. Handlers map kinds to HTTP status codes;
// nothing above this package inspects error strings.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindConflict
	KindNotFound
	KindInvalidState
	KindNoOpenSession
	KindAlreadyCancelled
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindNoOpenSession:
		return "no_open_session"
	case KindAlreadyCancelled:
		return "already_cancelled"
	case KindForbidden:
		return "forbidden"
	}
	return "unknown"
}

// Error is the typed error returned by every service operation for expected
// business outcomes. Anything else is an internal failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func validationErr(format string, args ...any) *Error {
	return newError(KindValidation, format, args...)
}

// KindOf returns the Kind of err, or 0 when err is not a service error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}
