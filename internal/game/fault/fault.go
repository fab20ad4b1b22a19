// Package fault defines the error taxonomy shared by the game coordinator:
// validation failures, missing entities, precondition violations, and
// internal faults. Throttled events are not faults and never produce errors.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a coordinator error.
type Kind int

const (
	// KindValidation marks malformed or out-of-range input. No state was mutated.
	KindValidation Kind = iota
	// KindNotFound marks a reference to an unknown room or player.
	KindNotFound
	// KindPrecondition marks an operation that is invalid for the current
	// state (room full, name taken, game already running, too few players).
	KindPrecondition
	// KindInternal marks an unexpected failure inside orchestration. Callers
	// convert it into a safe failed result; it never escapes a public entry point.
	KindInternal
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindPrecondition:
		return "precondition"
	case KindInternal:
		return "internal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a classified coordinator error with a human-readable reason.
type Error struct {
	Kind   Kind
	Reason string
	cause  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// Validation builds a KindValidation error.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Reason: fmt.Sprintf(format, args...)}
}

// NotFound builds a KindNotFound error.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Reason: fmt.Sprintf(format, args...)}
}

// Precondition builds a KindPrecondition error.
func Precondition(format string, args ...any) *Error {
	return &Error{Kind: KindPrecondition, Reason: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected error with KindInternal.
//
// Postcondition: IsKind(result, KindInternal) is true; errors.Unwrap yields cause.
func Internal(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Reason: fmt.Sprintf(format, args...), cause: cause}
}

// IsKind reports whether err is (or wraps) a fault.Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

// ReasonOf extracts the human-readable reason from err, falling back to
// err.Error() for unclassified errors.
func ReasonOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Reason
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
