package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the HTTP boundary.
type Kind int

const (
	// Validation covers client-correctable input problems: oversized or
	// undecodable images, unknown job ids, illegal state transitions.
	Validation Kind = iota
	// Service covers downstream dependency failures (broker or status
	// store unreachable).
	Service
	// ServiceUnavailable is reported when a dependency health check fails.
	ServiceUnavailable
	// Internal covers unexpected local failures: disk I/O, serialization.
	Internal
	// RateLimit is reserved; the job pipeline itself never emits it.
	RateLimit
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "Validation error"
	case Service:
		return "Service error"
	case ServiceUnavailable:
		return "Service unavailable"
	case Internal:
		return "Internal server error"
	case RateLimit:
		return "Rate limit exceeded"
	default:
		return "Unknown error"
	}
}

// Error is the typed error surfaced by services to the HTTP layer.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Msg != "" {
			return e.Msg + ": " + e.Err.Error()
		}
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error with the given kind and message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind from err. Untyped errors are Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// IsValidation reports whether err is client-correctable.
func IsValidation(err error) bool {
	return KindOf(err) == Validation
}
