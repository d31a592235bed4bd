package app

import (
	"database/sql"

	"ridecore/internal/repository"
	"ridecore/internal/repository/memory"
	"ridecore/internal/repository/postgres"
)

// Repositories groups the storage backends the services depend on.
type Repositories struct {
	Rides   repository.RideRepository
	Users   repository.UserRepository
	Drivers repository.DriverRepository
}

// NewPostgresRepositories returns repositories backed by db.
func NewPostgresRepositories(db *sql.DB) Repositories {
	return Repositories{
		Rides:   postgres.NewRideRepository(db),
		Users:   postgres.NewUserRepository(db),
		Drivers: postgres.NewDriverRepository(db),
	}
}

// NewMemoryRepositories returns process-local repositories.
func NewMemoryRepositories() Repositories {
	return Repositories{
		Rides:   memory.NewRideRepository(),
		Users:   memory.NewUserRepository(),
		Drivers: memory.NewDriverRepository(),
	}
}
