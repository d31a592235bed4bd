package service

import (
	"context"
	"errors"

	"ridecore/internal/domain"
	"ridecore/internal/repository"
)

// DriverAssignmentGuard enforces that a driver holds at most one ride in
// ACCEPTED, PICKED_UP or IN_TRANSIT.
type DriverAssignmentGuard struct {
	rides repository.RideRepository
}

// NewDriverAssignmentGuard creates a new DriverAssignmentGuard.
func NewDriverAssignmentGuard(rides repository.RideRepository) *DriverAssignmentGuard {
	return &DriverAssignmentGuard{rides: rides}
}

// Check returns an *ActiveRideError naming the driver's active ride, if any.
func (g *DriverAssignmentGuard) Check(ctx context.Context, driverID string) error {
	return checkExclusive(ctx, g.rides, EntityDriver, repository.RideFieldDriverID, driverID, domain.ActiveDriverRideStatuses)
}

// RiderExclusivityGuard enforces that a rider holds at most one ride that is
// not COMPLETED, CANCELLED or REJECTED.
type RiderExclusivityGuard struct {
	rides repository.RideRepository
}

// NewRiderExclusivityGuard creates a new RiderExclusivityGuard.
func NewRiderExclusivityGuard(rides repository.RideRepository) *RiderExclusivityGuard {
	return &RiderExclusivityGuard{rides: rides}
}

// Check returns an *ActiveRideError naming the rider's open ride and its status, if any.
func (g *RiderExclusivityGuard) Check(ctx context.Context, riderID string) error {
	return checkExclusive(ctx, g.rides, EntityRider, repository.RideFieldRiderID, riderID, domain.OpenRideStatuses)
}

func checkExclusive(ctx context.Context, rides repository.RideRepository, subject, field, id string, statuses []domain.RideStatus) error {
	ride, err := rides.FindOne(ctx, repository.RidesWithStatus(field, id, statuses))
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return &ActiveRideError{
		Subject:   subject,
		SubjectID: id,
		RideID:    ride.ID,
		Status:    ride.Status,
	}
}
