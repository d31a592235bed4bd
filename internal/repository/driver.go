package repository

import (
	"context"

	"ridecore/internal/domain"
	"ridecore/internal/query"
)

// DriverRepository defines the persistence operations for driver profiles.
type DriverRepository interface {
	// Create adds a new driver.
	Create(ctx context.Context, driver *domain.Driver) error

	// GetByID retrieves a driver by ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// Find returns the drivers matching q.
	Find(ctx context.Context, q query.Query) ([]*domain.Driver, error)

	// Count returns the number of drivers matching q, ignoring pagination.
	Count(ctx context.Context, q query.Query) (int, error)

	// UpdateAvailability sets the driver's availability.
	UpdateAvailability(ctx context.Context, id string, availability domain.Availability) (*domain.Driver, error)

	// UpdateApplicationStatus moves an application from one review state to
	// another. It returns ErrNotApplied when the application is no longer in from.
	UpdateApplicationStatus(ctx context.Context, id string, from, to domain.ApplicationStatus) (*domain.Driver, error)

	// UpdateAccountStatus mirrors the owning account's status onto the profile
	// and sets its availability in the same write.
	UpdateAccountStatus(ctx context.Context, id string, status domain.AccountStatus, availability domain.Availability) (*domain.Driver, error)

	// UpdateDetails replaces the license number and vehicle. It returns
	// ErrDuplicate when another profile holds the license or plate number.
	UpdateDetails(ctx context.Context, id, licenseNumber string, vehicle domain.Vehicle) (*domain.Driver, error)

	// AppendCompletedRide adds rideID to the driver's completed rides unless already present.
	AppendCompletedRide(ctx context.Context, driverID, rideID string) error
}
