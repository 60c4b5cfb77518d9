// Package errs defines the error taxonomy shared by every component of
// the simulator. Each failure carries a Kind so callers can branch on
// the class of failure without string matching.
package errs

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// Unknown is the zero Kind, reported for errors that did not
	// originate in this module.
	Unknown Kind = iota
	InvalidArgument
	NotFound
	Duplicate
	InsufficientFunds
	InsufficientPosition
	InvalidState
	IOError
	ParseError
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid_argument"
	case NotFound:
		return "not_found"
	case Duplicate:
		return "duplicate"
	case InsufficientFunds:
		return "insufficient_funds"
	case InsufficientPosition:
		return "insufficient_position"
	case InvalidState:
		return "invalid_state"
	case IOError:
		return "io_error"
	case ParseError:
		return "parse_error"
	}
	return "unknown"
}

// Error is the concrete error type returned by all public operations.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and context to an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from err, unwrapping as needed.
// Returns Unknown for nil or foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
