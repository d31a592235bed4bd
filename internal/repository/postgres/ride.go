package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ridecore/internal/domain"
	"ridecore/internal/query"
	"ridecore/internal/repository"
)

const rideColumns = `id, rider_id, driver_id, pickup, destination, distance, fare, payment_method, status, transition_timestamps, created_at, updated_at`

// updateRideStatusQuery is the conditional write behind every lifecycle
// transition. The NOT EXISTS arm re-checks driver exclusivity in the same
// statement; rides_one_active_per_driver catches what it cannot see.
var updateRideStatusQuery = fmt.Sprintf(`
	UPDATE rides
	SET status = $3,
		driver_id = COALESCE(driver_id, $4),
		transition_timestamps = jsonb_build_object($5::text, $6::text) || transition_timestamps,
		updated_at = $7
	WHERE id = $1 AND status = $2
		AND ($8::text = '' OR NOT EXISTS (
			SELECT 1 FROM rides busy
			WHERE busy.driver_id = $8::text AND busy.status IN (%s)
		))
	RETURNING %s
`, sqlList(domain.StatusStrings(domain.ActiveDriverRideStatuses)), rideColumns)

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q Querier
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	stmt := `
		INSERT INTO rides (` + rideColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	var driverID sql.NullString
	if id, ok := ride.Driver.DriverID(); ok {
		driverID = sql.NullString{String: id, Valid: true}
	}

	recorded := ride.Timestamps
	if recorded == nil {
		recorded = domain.TransitionTimestamps{}
	}
	timestamps, err := json.Marshal(recorded)
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx, stmt,
		ride.ID,
		ride.RiderID,
		driverID,
		ride.Pickup,
		ride.Destination,
		ride.Distance,
		ride.Fare,
		ride.PaymentMethod,
		ride.Status,
		timestamps,
		ride.CreatedAt,
		ride.UpdatedAt,
	)
	return translateError(err)
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	stmt := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`

	ride, err := scanRide(r.q.QueryRowContext(ctx, stmt, id))
	if err != nil {
		return nil, translateError(err)
	}
	return ride, nil
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
	compiled := query.CompileSQL(repository.RideSchema, q)

	rows, err := r.q.QueryContext(ctx, `SELECT `+rideColumns+` FROM rides`+compiled.Clause(), compiled.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

// Count returns the number of rides matching q.
func (r *RideRepository) Count(ctx context.Context, q query.Query) (int, error) {
	compiled := query.CompileSQL(repository.RideSchema, q.Unpaged())

	var total int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM rides WHERE `+compiled.Where, compiled.Args...).Scan(&total)
	return total, err
}

// UpdateStatus applies patch if the ride is still in status from.
func (r *RideRepository) UpdateStatus(ctx context.Context, id string, from domain.RideStatus, patch domain.RidePatch) (*domain.Ride, error) {
	var driverID sql.NullString
	if assigned, ok := patch.Driver.DriverID(); ok {
		driverID = sql.NullString{String: assigned, Valid: true}
	}

	ride, err := scanRide(r.q.QueryRowContext(ctx, updateRideStatusQuery,
		id,
		from,
		patch.To,
		driverID,
		string(patch.Transition),
		patch.At.Format(time.RFC3339Nano),
		patch.At,
		patch.RequireIdleDriver,
	))
	if err == nil {
		return ride, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, translateError(err)
	}

	var exists bool
	if err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM rides WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, repository.ErrNotFound
	}
	return nil, repository.ErrNotApplied
}

func scanRide(row scanner) (*domain.Ride, error) {
	var ride domain.Ride
	var driverID sql.NullString
	var timestamps []byte

	err := row.Scan(
		&ride.ID,
		&ride.RiderID,
		&driverID,
		&ride.Pickup,
		&ride.Destination,
		&ride.Distance,
		&ride.Fare,
		&ride.PaymentMethod,
		&ride.Status,
		&timestamps,
		&ride.CreatedAt,
		&ride.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if driverID.Valid {
		ride.Driver = domain.AssignedTo(driverID.String)
	}
	ride.Timestamps = domain.TransitionTimestamps{}
	if len(timestamps) > 0 {
		if err := json.Unmarshal(timestamps, &ride.Timestamps); err != nil {
			return nil, fmt.Errorf("decode transition timestamps of ride %s: %w", ride.ID, err)
		}
	}
	return &ride, nil
}

// sqlList renders constant values as a quoted SQL list.
func sqlList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return strings.Join(quoted, ", ")
}
