package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"ridecore/internal/domain"
	"ridecore/internal/query"
	"ridecore/internal/repository"
)

const userColumns = `id, name, email, phone, address, role, account_status, is_verified, rides, created_at, updated_at`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	q Querier
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{q: db}
}

// Create adds a new user.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	stmt := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.q.ExecContext(ctx, stmt,
		user.ID,
		user.Name,
		user.Email,
		user.Phone,
		user.Address,
		user.Role,
		user.AccountStatus,
		user.IsVerified,
		pq.Array(nonNil(user.Rides)),
		user.CreatedAt,
		user.UpdatedAt,
	)
	return translateError(err)
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := scanUser(r.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, translateError(err)
	}
	return user, nil
}

// Find returns the users matching q.
func (r *UserRepository) Find(ctx context.Context, q query.Query) ([]*domain.User, error) {
	compiled := query.CompileSQL(repository.UserSchema, q)

	rows, err := r.q.QueryContext(ctx, `SELECT `+userColumns+` FROM users`+compiled.Clause(), compiled.Args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// Count returns the number of users matching q.
func (r *UserRepository) Count(ctx context.Context, q query.Query) (int, error) {
	compiled := query.CompileSQL(repository.UserSchema, q.Unpaged())

	var total int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE `+compiled.Where, compiled.Args...).Scan(&total)
	return total, err
}

// UpdateRole changes the role a user acts under.
func (r *UserRepository) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	result, err := r.q.ExecContext(ctx, `UPDATE users SET role = $2, updated_at = now() WHERE id = $1`, id, role)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// UpdateAccountStatus changes whether a user may act at all.
func (r *UserRepository) UpdateAccountStatus(ctx context.Context, id string, status domain.AccountStatus) error {
	result, err := r.q.ExecContext(ctx, `UPDATE users SET account_status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// AppendRide adds rideID to the user's ride history unless already present.
func (r *UserRepository) AppendRide(ctx context.Context, userID, rideID string) error {
	stmt := `
		UPDATE users
		SET rides = CASE WHEN $2 = ANY (rides) THEN rides ELSE array_append(rides, $2) END,
			updated_at = CASE WHEN $2 = ANY (rides) THEN updated_at ELSE now() END
		WHERE id = $1
	`
	result, err := r.q.ExecContext(ctx, stmt, userID, rideID)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func scanUser(row scanner) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Phone,
		&user.Address,
		&user.Role,
		&user.AccountStatus,
		&user.IsVerified,
		pq.Array(&user.Rides),
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
