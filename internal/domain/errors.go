package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput matches every ValidationError.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDivisionDegenerate is returned when a derived metric would divide by zero.
	ErrDivisionDegenerate = errors.New("derived metric: zero divisor")
	// ErrPersistenceCorrupt indicates a stored snapshot does not match the expected schema.
	ErrPersistenceCorrupt = errors.New("stored workouts are corrupt")
	// ErrWorkoutNotFound is returned when no workout has the requested id.
	ErrWorkoutNotFound = errors.New("workout not found")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Is lets errors.Is(err, ErrInvalidInput) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
