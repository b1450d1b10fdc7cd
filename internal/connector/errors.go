package connector

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a job, analyzer or instance unknown to the whole pool.
	ErrNotFound = errors.New("not found")
	// ErrInstanceNotFound marks an explicit instance id absent from the pool.
	ErrInstanceNotFound = fmt.Errorf("instance %w", ErrNotFound)
	// ErrMissingField marks a request lacking a required routing parameter.
	ErrMissingField = errors.New("missing required field")
	// ErrInstanceUnreachable marks a transport failure talking to one instance.
	// It is absorbed during fan-out and never returned by an aggregate operation.
	ErrInstanceUnreachable = errors.New("instance unreachable")
)

// MissingFieldError names the absent field. It matches ErrMissingField with errors.Is.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}

// Is reports whether target is ErrMissingField.
func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

// MissingField returns a MissingFieldError for field.
func MissingField(field string) error {
	return &MissingFieldError{Field: field}
}
