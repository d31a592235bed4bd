package service

import (
	"errors"
	"fmt"

	"ridecore/internal/domain"
)

// Error kinds. Every error returned by a service operation either wraps one
// of these or is a storage error passed through unchanged.
var (
	// ErrNotFound is returned when a referenced ride, rider or driver does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the caller does not own the resource or lacks the role.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict is returned when the state machine or an exclusivity rule rejects the operation.
	ErrConflict = errors.New("conflict")

	// ErrValidationFailed is returned when a business precondition does not hold.
	ErrValidationFailed = errors.New("validation failed")
)

// Entity names used in NotFoundError.
const (
	EntityRide   = "ride"
	EntityRider  = "rider"
	EntityDriver = "driver"
	EntityUser   = "user"
)

// NotFoundError reports a missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// StatusConflictError reports a transition attempted from the wrong status,
// including one lost to a concurrent writer.
type StatusConflictError struct {
	RideID   string
	Op       string
	Required domain.RideStatus
	Actual   domain.RideStatus
}

func (e *StatusConflictError) Error() string {
	return fmt.Sprintf("ride must be %s to %s, current status is %s", e.Required, e.Op, e.Actual)
}

func (e *StatusConflictError) Unwrap() error { return ErrConflict }

// ActiveRideError reports that a rider or driver already holds a ride.
type ActiveRideError struct {
	// Subject is EntityRider or EntityDriver.
	Subject   string
	SubjectID string
	RideID    string
	Status    domain.RideStatus
}

func (e *ActiveRideError) Error() string {
	return fmt.Sprintf("%s %s has an existing ride %s with status %s", e.Subject, e.SubjectID, e.RideID, e.Status)
}

func (e *ActiveRideError) Unwrap() error { return ErrConflict }

func forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

func conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

func validationFailed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidationFailed, fmt.Sprintf(format, args...))
}
