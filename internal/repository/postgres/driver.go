package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"ridecore/internal/domain"
	"ridecore/internal/query"
	"ridecore/internal/repository"
)

const driverColumns = `id, license_number, vehicle_type, vehicle_model, plate_number, application_status, account_status, availability, completed_rides, created_at, updated_at`

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

// Create adds a new driver.
func (r *DriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	stmt := `
		INSERT INTO drivers (` + driverColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.q.ExecContext(ctx, stmt,
		driver.ID,
		driver.LicenseNumber,
		driver.Vehicle.Type,
		driver.Vehicle.Model,
		driver.Vehicle.PlateNumber,
		driver.ApplicationStatus,
		driver.AccountStatus,
		driver.Availability,
		pq.Array(nonNil(driver.CompletedRides)),
		driver.CreatedAt,
		driver.UpdatedAt,
	)
	return translateError(err)
}

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	driver, err := scanDriver(r.q.QueryRowContext(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, id))
	if err != nil {
		return nil, translateError(err)
	}
	return driver, nil
}

// Find returns the drivers matching q.
func (r *DriverRepository) Find(ctx context.Context, q query.Query) ([]*domain.Driver, error) {
	compiled := query.CompileSQL(repository.DriverSchema, q)

	rows, err := r.q.QueryContext(ctx, `SELECT `+driverColumns+` FROM drivers`+compiled.Clause(), compiled.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []*domain.Driver
	for rows.Next() {
		driver, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, driver)
	}
	return drivers, rows.Err()
}

// Count returns the number of drivers matching q.
func (r *DriverRepository) Count(ctx context.Context, q query.Query) (int, error) {
	compiled := query.CompileSQL(repository.DriverSchema, q.Unpaged())

	var total int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM drivers WHERE `+compiled.Where, compiled.Args...).Scan(&total)
	return total, err
}

// UpdateAvailability sets the driver's availability.
func (r *DriverRepository) UpdateAvailability(ctx context.Context, id string, availability domain.Availability) (*domain.Driver, error) {
	stmt := `UPDATE drivers SET availability = $2, updated_at = now() WHERE id = $1 RETURNING ` + driverColumns

	driver, err := scanDriver(r.q.QueryRowContext(ctx, stmt, id, availability))
	if err != nil {
		return nil, translateError(err)
	}
	return driver, nil
}

// UpdateApplicationStatus moves an application from one review state to another.
func (r *DriverRepository) UpdateApplicationStatus(ctx context.Context, id string, from, to domain.ApplicationStatus) (*domain.Driver, error) {
	stmt := `
		UPDATE drivers SET application_status = $3, updated_at = now()
		WHERE id = $1 AND application_status = $2
		RETURNING ` + driverColumns

	driver, err := scanDriver(r.q.QueryRowContext(ctx, stmt, id, from, to))
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, repository.ErrNotApplied
	}
	if err != nil {
		return nil, translateError(err)
	}
	return driver, nil
}

// UpdateAccountStatus sets the profile's account status and availability.
func (r *DriverRepository) UpdateAccountStatus(ctx context.Context, id string, status domain.AccountStatus, availability domain.Availability) (*domain.Driver, error) {
	stmt := `UPDATE drivers SET account_status = $2, availability = $3, updated_at = now() WHERE id = $1 RETURNING ` + driverColumns

	driver, err := scanDriver(r.q.QueryRowContext(ctx, stmt, id, status, availability))
	if err != nil {
		return nil, translateError(err)
	}
	return driver, nil
}

// UpdateDetails replaces the license number and vehicle. The unique
// constraints on license_number and plate_number report clashes.
func (r *DriverRepository) UpdateDetails(ctx context.Context, id, licenseNumber string, vehicle domain.Vehicle) (*domain.Driver, error) {
	stmt := `
		UPDATE drivers
		SET license_number = $2, vehicle_type = $3, vehicle_model = $4, plate_number = $5, updated_at = now()
		WHERE id = $1
		RETURNING ` + driverColumns

	driver, err := scanDriver(r.q.QueryRowContext(ctx, stmt, id, licenseNumber, vehicle.Type, vehicle.Model, vehicle.PlateNumber))
	if err != nil {
		return nil, translateError(err)
	}
	return driver, nil
}

// AppendCompletedRide adds rideID to the driver's completed rides unless already present.
func (r *DriverRepository) AppendCompletedRide(ctx context.Context, driverID, rideID string) error {
	stmt := `
		UPDATE drivers
		SET completed_rides = CASE WHEN $2 = ANY (completed_rides) THEN completed_rides ELSE array_append(completed_rides, $2) END,
			updated_at = CASE WHEN $2 = ANY (completed_rides) THEN updated_at ELSE now() END
		WHERE id = $1
	`
	result, err := r.q.ExecContext(ctx, stmt, driverID, rideID)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func scanDriver(row scanner) (*domain.Driver, error) {
	var driver domain.Driver
	err := row.Scan(
		&driver.ID,
		&driver.LicenseNumber,
		&driver.Vehicle.Type,
		&driver.Vehicle.Model,
		&driver.Vehicle.PlateNumber,
		&driver.ApplicationStatus,
		&driver.AccountStatus,
		&driver.Availability,
		pq.Array(&driver.CompletedRides),
		&driver.CreatedAt,
		&driver.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &driver, nil
}

// Compile-time interface checks.
var (
	_ repository.RideRepository   = (*RideRepository)(nil)
	_ repository.UserRepository   = (*UserRepository)(nil)
	_ repository.DriverRepository = (*DriverRepository)(nil)
)
