package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ridecore/internal/domain"
	"ridecore/internal/query"
	"ridecore/internal/repository"
)

// UserService handles user accounts.
type UserService struct {
	userRepo repository.UserRepository
	logger   *zap.Logger
	now      func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.UserRepository, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{userRepo: userRepo, logger: logger, now: time.Now}
}

// RegisterUserRequest contains the parameters for creating an account.
type RegisterUserRequest struct {
	Name    string
	Email   string
	Phone   string
	Address string
	Role    domain.Role
}

// Register creates an ACTIVE rider or driver account. Admin accounts are
// provisioned out of band.
func (s *UserService) Register(ctx context.Context, req RegisterUserRequest) (*domain.User, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		return nil, validationFailed("name and email are required")
	}
	if req.Role != domain.RoleRider && req.Role != domain.RoleDriver {
		return nil, validationFailed("role must be %s or %s", domain.RoleRider, domain.RoleDriver)
	}

	now := s.now()
	user := &domain.User{
		ID:            uuid.New().String(),
		Name:          req.Name,
		Email:         strings.ToLower(req.Email),
		Phone:         req.Phone,
		Address:       req.Address,
		Role:          req.Role,
		AccountStatus: domain.AccountStatusActive,
		Rides:         []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: email %s is already registered", ErrConflict, user.Email)
		}
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// GetUser returns the caller's own account, or any account for an admin.
func (s *UserService) GetUser(ctx context.Context, caller domain.Caller, userID string) (*domain.User, error) {
	if caller.Role != domain.RoleAdmin && caller.SubjectID != userID {
		return nil, forbidden("user %s is not visible to %s", userID, caller.SubjectID)
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, EntityUser, userID)
	}
	return user, nil
}

// ListUsers lists user accounts. Admin only.
func (s *UserService) ListUsers(ctx context.Context, caller domain.Caller, params query.Params) (*Page[*domain.User], error) {
	if caller.Role != domain.RoleAdmin {
		return nil, forbidden("only admins may list users")
	}
	q := listQuery(params, s.now, repository.UserSearchFields...)
	return list(ctx, q, s.userRepo.Find, s.userRepo.Count)
}
