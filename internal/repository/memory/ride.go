package memory

import (
	"context"
	"sync"

	"ridecore/internal/domain"
	"ridecore/internal/query"
	"ridecore/internal/repository"
)

// RideRepository stores rides in memory. Conditional writes and the
// exclusivity checks they carry run under one lock, so at most one
// concurrent transition wins.
type RideRepository struct {
	mu    sync.RWMutex
	rides map[string]*domain.Ride
}

// NewRideRepository creates an empty in-memory ride repository.
func NewRideRepository() *RideRepository {
	return &RideRepository{
		rides: make(map[string]*domain.Ride),
	}
}

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rides[ride.ID]; exists {
		return repository.ErrDuplicate
	}
	for _, existing := range r.rides {
		if existing.RiderID == ride.RiderID && !existing.Status.IsTerminal() {
			return repository.ErrDuplicate
		}
	}
	r.rides[ride.ID] = ride.Clone()
	return nil
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ride, exists := r.rides[id]
	if !exists {
		return nil, repository.ErrNotFound
	}
	return ride.Clone(), nil
}

// FindOne returns the first ride matching q.
func (r *RideRepository) FindOne(ctx context.Context, q query.Query) (*domain.Ride, error) {
	q.Paginated, q.Page, q.Limit = true, 1, 1
	rides, err := r.Find(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(rides) == 0 {
		return nil, repository.ErrNotFound
	}
	return rides[0], nil
}

// Find returns the rides matching q.
func (r *RideRepository) Find(ctx context.Context, q query.Query) ([]*domain.Ride, error) {
	page, _ := query.Apply(repository.RideSchema, q, r.snapshot())
	return page, nil
}

// Count returns the number of rides matching q.
func (r *RideRepository) Count(ctx context.Context, q query.Query) (int, error) {
	_, total := query.Apply(repository.RideSchema, q.Unpaged(), r.snapshot())
	return total, nil
}

// UpdateStatus applies patch if the ride is still in status from.
func (r *RideRepository) UpdateStatus(ctx context.Context, id string, from domain.RideStatus, patch domain.RidePatch) (*domain.Ride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ride, exists := r.rides[id]
	if !exists {
		return nil, repository.ErrNotFound
	}
	if ride.Status != from {
		return nil, repository.ErrNotApplied
	}
	if patch.RequireIdleDriver != "" && r.driverBusy(patch.RequireIdleDriver) {
		return nil, repository.ErrNotApplied
	}

	updated := ride.Clone()
	updated.Status = patch.To
	if updated.Timestamps == nil {
		updated.Timestamps = domain.TransitionTimestamps{}
	}
	updated.Timestamps.Record(patch.Transition, patch.At)
	if !updated.Driver.IsAssigned() && patch.Driver.IsAssigned() {
		updated.Driver = patch.Driver
	}
	updated.UpdatedAt = patch.At

	r.rides[id] = updated
	return updated.Clone(), nil
}

// driverBusy must be called with the lock held.
func (r *RideRepository) driverBusy(driverID string) bool {
	for _, ride := range r.rides {
		if ride.Driver.Is(driverID) && ride.Status.OccupiesDriver() {
			return true
		}
	}
	return false
}

func (r *RideRepository) snapshot() []*domain.Ride {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Ride, 0, len(r.rides))
	for _, ride := range r.rides {
		out = append(out, ride.Clone())
	}
	return out
}
