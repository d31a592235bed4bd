package memory

import (
	"context"
	"sync"
	"time"

	"ridecore/internal/domain"
	"ridecore/internal/query"
	"ridecore/internal/repository"
)

// DriverRepository stores driver profiles in memory.
type DriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*domain.Driver
}

// NewDriverRepository creates an empty in-memory driver repository.
func NewDriverRepository() *DriverRepository {
	return &DriverRepository{
		drivers: make(map[string]*domain.Driver),
	}
}

// Create adds a new driver.
func (r *DriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.drivers[driver.ID]; exists {
		return repository.ErrDuplicate
	}
	if r.taken(driver.ID, driver.LicenseNumber, driver.Vehicle.PlateNumber) {
		return repository.ErrDuplicate
	}
	r.drivers[driver.ID] = cloneDriver(driver)
	return nil
}

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	driver, exists := r.drivers[id]
	if !exists {
		return nil, repository.ErrNotFound
	}
	return cloneDriver(driver), nil
}

// Find returns the drivers matching q.
func (r *DriverRepository) Find(ctx context.Context, q query.Query) ([]*domain.Driver, error) {
	page, _ := query.Apply(repository.DriverSchema, q, r.snapshot())
	return page, nil
}

// Count returns the number of drivers matching q.
func (r *DriverRepository) Count(ctx context.Context, q query.Query) (int, error) {
	_, total := query.Apply(repository.DriverSchema, q.Unpaged(), r.snapshot())
	return total, nil
}

// UpdateAvailability sets the driver's availability.
func (r *DriverRepository) UpdateAvailability(ctx context.Context, id string, availability domain.Availability) (*domain.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	driver, exists := r.drivers[id]
	if !exists {
		return nil, repository.ErrNotFound
	}
	driver.Availability = availability
	driver.UpdatedAt = time.Now()
	return cloneDriver(driver), nil
}

// UpdateApplicationStatus moves an application from one review state to another.
func (r *DriverRepository) UpdateApplicationStatus(ctx context.Context, id string, from, to domain.ApplicationStatus) (*domain.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	driver, exists := r.drivers[id]
	if !exists {
		return nil, repository.ErrNotFound
	}
	if driver.ApplicationStatus != from {
		return nil, repository.ErrNotApplied
	}
	driver.ApplicationStatus = to
	driver.UpdatedAt = time.Now()
	return cloneDriver(driver), nil
}

// UpdateAccountStatus sets the profile's account status and availability.
func (r *DriverRepository) UpdateAccountStatus(ctx context.Context, id string, status domain.AccountStatus, availability domain.Availability) (*domain.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	driver, exists := r.drivers[id]
	if !exists {
		return nil, repository.ErrNotFound
	}
	driver.AccountStatus = status
	driver.Availability = availability
	driver.UpdatedAt = time.Now()
	return cloneDriver(driver), nil
}

// UpdateDetails replaces the license number and vehicle.
func (r *DriverRepository) UpdateDetails(ctx context.Context, id, licenseNumber string, vehicle domain.Vehicle) (*domain.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	driver, exists := r.drivers[id]
	if !exists {
		return nil, repository.ErrNotFound
	}
	if r.taken(id, licenseNumber, vehicle.PlateNumber) {
		return nil, repository.ErrDuplicate
	}
	driver.LicenseNumber = licenseNumber
	driver.Vehicle = vehicle
	driver.UpdatedAt = time.Now()
	return cloneDriver(driver), nil
}

// AppendCompletedRide adds rideID to the driver's completed rides unless already present.
func (r *DriverRepository) AppendCompletedRide(ctx context.Context, driverID, rideID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	driver, exists := r.drivers[driverID]
	if !exists {
		return repository.ErrNotFound
	}
	rides, added := appendUnique(driver.CompletedRides, rideID)
	if added {
		driver.CompletedRides = rides
		driver.UpdatedAt = time.Now()
	}
	return nil
}

// taken reports whether a profile other than id holds the license or plate.
// Callers hold r.mu.
func (r *DriverRepository) taken(id, licenseNumber, plateNumber string) bool {
	for _, existing := range r.drivers {
		if existing.ID == id {
			continue
		}
		if existing.LicenseNumber == licenseNumber {
			return true
		}
		if plateNumber != "" && existing.Vehicle.PlateNumber == plateNumber {
			return true
		}
	}
	return false
}

func (r *DriverRepository) snapshot() []*domain.Driver {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Driver, 0, len(r.drivers))
	for _, d := range r.drivers {
		out = append(out, cloneDriver(d))
	}
	return out
}

func cloneDriver(d *domain.Driver) *domain.Driver {
	c := *d
	c.CompletedRides = append([]string(nil), d.CompletedRides...)
	return &c
}

// Compile-time interface checks.
var (
	_ repository.RideRepository   = (*RideRepository)(nil)
	_ repository.UserRepository   = (*UserRepository)(nil)
	_ repository.DriverRepository = (*DriverRepository)(nil)
)
