// Package errs defines the error taxonomy shared by the reminder engine.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for unknown medicines, targets or reminder keys.
	ErrNotFound = errors.New("not found")

	// ErrStoreUnavailable wraps document store and deadline table failures.
	// Callers retry the whole read-modify-write cycle.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrStaleTransition is returned when a response or verification arrives for an
	// instance that is no longer in the expected state.
	ErrStaleTransition = errors.New("stale transition")

	// ErrForbidden is returned when the caller lacks the identity or privilege the
	// operation requires.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError rejects malformed input before any state is mutated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// Unavailable wraps err as a store failure for the given operation.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}
