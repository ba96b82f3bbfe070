package request

import (
	"errors"
	"fmt"
)

// Sentinel errors for engine and store operations.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNoMatch           = errors.New("no matching pending request")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotFound          = errors.New("request not found")
	ErrReadOnly          = errors.New("read-only transaction")
)

// ValidationError describes which argument of a create call was rejected.
// It matches ErrInvalidArgument under errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidArgument
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
