package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrValidation        = errors.New("validation failed")
	ErrCapacity          = errors.New("insufficient capacity")
	ErrSeatConflict      = errors.New("seat update lost concurrent race")
	ErrInconsistentState = errors.New("inconsistent booking state")
)

// ValidationError reports malformed input before any store access.
// Field names the offending request field so clients can highlight it.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a ValidationError for a field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// CapacityError reports that a reservation cannot be satisfied, either
// because the ride is not active or because fewer seats remain than
// requested. Available lets clients render "only N seats left".
type CapacityError struct {
	RideID    string
	Requested int
	Available int
	Reason    string
}

func (e *CapacityError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("ride %s: %s", e.RideID, e.Reason)
	}
	return fmt.Sprintf("ride %s: requested %d seats, only %d available", e.RideID, e.Requested, e.Available)
}

func (e *CapacityError) Unwrap() error { return ErrCapacity }
