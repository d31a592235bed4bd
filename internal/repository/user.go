package repository

import (
	"context"

	"ridecore/internal/domain"
	"ridecore/internal/query"
)

// UserRepository defines the persistence operations for users.
type UserRepository interface {
	// Create adds a new user.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// Find returns the users matching q.
	Find(ctx context.Context, q query.Query) ([]*domain.User, error)

	// Count returns the number of users matching q, ignoring pagination.
	Count(ctx context.Context, q query.Query) (int, error)

	// UpdateRole changes the role a user acts under.
	UpdateRole(ctx context.Context, id string, role domain.Role) error

	// UpdateAccountStatus changes whether a user may act at all.
	UpdateAccountStatus(ctx context.Context, id string, status domain.AccountStatus) error

	// AppendRide adds rideID to the user's ride history unless already present.
	AppendRide(ctx context.Context, userID, rideID string) error
}
