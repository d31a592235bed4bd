package repository

import (
	"context"

	"ridecore/internal/domain"
	"ridecore/internal/query"
)

// RideRepository defines the persistence operations for rides.
type RideRepository interface {
	// Create persists a new ride.
	// Returns ErrDuplicate if the rider already holds an open ride.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// FindOne returns the first ride matching q, or ErrNotFound.
	FindOne(ctx context.Context, q query.Query) (*domain.Ride, error)

	// Find returns the rides matching q.
	Find(ctx context.Context, q query.Query) ([]*domain.Ride, error)

	// Count returns the number of rides matching q, ignoring pagination.
	Count(ctx context.Context, q query.Query) (int, error)

	// UpdateStatus applies patch only if the stored status still equals from
	// and, when patch.RequireIdleDriver is set, that driver holds no active ride.
	// Returns ErrNotApplied when the predicate fails.
	UpdateStatus(ctx context.Context, id string, from domain.RideStatus, patch domain.RidePatch) (*domain.Ride, error)
}

// RidesWithStatus returns a predicate on field (riderId or driverId) equal to
// id and status in statuses.
func RidesWithStatus(field, id string, statuses []domain.RideStatus) query.Query {
	return query.Query{
		Conditions: []query.Condition{
			{Field: field, Op: query.OpEq, Value: id},
			{Field: RideFieldStatus, Op: query.OpIn, Value: domain.StatusStrings(statuses)},
		},
		Sort: []query.SortKey{{Field: query.FieldCreatedAt, Desc: true}},
	}
}
