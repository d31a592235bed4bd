package memory

import (
	"context"
	"sync"
	"time"

	"ridecore/internal/domain"
	"ridecore/internal/query"
	"ridecore/internal/repository"
)

// UserRepository stores users in memory.
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

// NewUserRepository creates an empty in-memory user repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		users: make(map[string]*domain.User),
	}
}

// Create adds a new user.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.ID]; exists {
		return repository.ErrDuplicate
	}
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	r.users[user.ID] = cloneUser(user)
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, repository.ErrNotFound
	}
	return cloneUser(user), nil
}

// Find returns the users matching q.
func (r *UserRepository) Find(ctx context.Context, q query.Query) ([]*domain.User, error) {
	page, _ := query.Apply(repository.UserSchema, q, r.snapshot())
	return page, nil
}

// Count returns the number of users matching q.
func (r *UserRepository) Count(ctx context.Context, q query.Query) (int, error) {
	_, total := query.Apply(repository.UserSchema, q.Unpaged(), r.snapshot())
	return total, nil
}

// UpdateRole changes the role a user acts under.
func (r *UserRepository) UpdateRole(ctx context.Context, id string, role domain.Role) error {
	return r.update(id, func(u *domain.User) { u.Role = role })
}

// UpdateAccountStatus changes whether a user may act at all.
func (r *UserRepository) UpdateAccountStatus(ctx context.Context, id string, status domain.AccountStatus) error {
	return r.update(id, func(u *domain.User) { u.AccountStatus = status })
}

func (r *UserRepository) update(id string, apply func(*domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.users[id]
	if !exists {
		return repository.ErrNotFound
	}
	apply(user)
	user.UpdatedAt = time.Now()
	return nil
}

// AppendRide adds rideID to the user's ride history unless already present.
func (r *UserRepository) AppendRide(ctx context.Context, userID, rideID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, exists := r.users[userID]
	if !exists {
		return repository.ErrNotFound
	}
	rides, added := appendUnique(user.Rides, rideID)
	if added {
		user.Rides = rides
		user.UpdatedAt = time.Now()
	}
	return nil
}

func (r *UserRepository) snapshot() []*domain.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, cloneUser(u))
	}
	return out
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	c.Rides = append([]string(nil), u.Rides...)
	return &c
}

// appendUnique appends id unless list already contains it.
func appendUnique(list []string, id string) ([]string, bool) {
	for _, existing := range list {
		if existing == id {
			return list, false
		}
	}
	return append(list, id), true
}
