package booking

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound = errors.New("booking: user not found")
	// ErrGuestNotFound means the caller has no row in the users projection yet.
	ErrGuestNotFound    = errors.New("booking: guest account not found")
	ErrSlotConflict     = errors.New("booking: slot already booked")
	ErrLockTimeout      = errors.New("booking: timed out waiting for slot lock")
	ErrNotFound         = errors.New("booking: not found")
	ErrForbidden        = errors.New("booking: not a participant")
	ErrBookingCancelled = errors.New("booking: booking is cancelled")
)

type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists rejected request fields. Cause, when set, is the
// sentinel that triggered it and is reachable through errors.Is.
type ValidationError struct {
	Errors []FieldError
	Cause  error
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "booking: validation failed"
	}
	return fmt.Sprintf("booking: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
}

func (e *ValidationError) Unwrap() error { return e.Cause }

func invalid(field, message string) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Message: message}}}
}
