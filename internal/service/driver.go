package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"go.uber.org/zap"

	"ridecore/internal/domain"
	"ridecore/internal/query"
	"ridecore/internal/repository"
)

// DriverCache is a read-through cache of driver profiles keyed by ID.
// GetDriver returns nil, nil on a miss.
type DriverCache interface {
	GetDriver(ctx context.Context, driverID string) (*domain.Driver, error)
	SetDriver(ctx context.Context, driver *domain.Driver) error
	InvalidateDriver(ctx context.Context, driverID string) error
}

// DriverService handles driver profile operations.
type DriverService struct {
	driverRepo repository.DriverRepository
	userRepo   repository.UserRepository
	cache      DriverCache
	logger     *zap.Logger
	now        func() time.Time
}

// NewDriverService creates a new DriverService. cache may be nil.
func NewDriverService(
	driverRepo repository.DriverRepository,
	userRepo repository.UserRepository,
	cache DriverCache,
	logger *zap.Logger,
) *DriverService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DriverService{
		driverRepo: driverRepo,
		userRepo:   userRepo,
		cache:      cache,
		logger:     logger,
		now:        time.Now,
	}
}

// RegisterDriverRequest contains the parameters for a driver application.
type RegisterDriverRequest struct {
	Caller        domain.Caller
	LicenseNumber string
	Vehicle       domain.Vehicle
}

// Register files a driver application for the calling user. The profile
// shares the user's ID and starts PENDING and OFFLINE.
func (s *DriverService) Register(ctx context.Context, req RegisterDriverRequest) (*domain.Driver, error) {
	defer newrelic.FromContext(ctx).StartSegment("DriverService/Register").End()

	if req.Caller.Role != domain.RoleDriver {
		return nil, forbidden("only driver accounts may apply")
	}
	user, err := s.userRepo.GetByID(ctx, req.Caller.SubjectID)
	if err != nil {
		return nil, notFound(err, EntityUser, req.Caller.SubjectID)
	}
	if user.Role != domain.RoleDriver {
		return nil, forbidden("user %s is registered as %s", user.ID, user.Role)
	}
	if strings.TrimSpace(req.LicenseNumber) == "" {
		return nil, validationFailed("license number is required")
	}
	if !req.Vehicle.Type.Valid() {
		return nil, validationFailed("unknown vehicle type %q", req.Vehicle.Type)
	}
	if strings.TrimSpace(req.Vehicle.PlateNumber) == "" {
		return nil, validationFailed("plate number is required")
	}

	now := s.now()
	driver := &domain.Driver{
		ID:                user.ID,
		LicenseNumber:     req.LicenseNumber,
		Vehicle:           req.Vehicle,
		ApplicationStatus: domain.ApplicationStatusPending,
		AccountStatus:     user.AccountStatus,
		Availability:      domain.AvailabilityOffline,
		CompletedRides:    []string{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.driverRepo.Create(ctx, driver); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, conflict("driver profile for %s, license %s or plate %s already exists", user.ID, req.LicenseNumber, req.Vehicle.PlateNumber)
		}
		return nil, err
	}

	s.logger.Info("driver application filed", zap.String("driver_id", driver.ID))
	return driver, nil
}

// ReviewApplication records an admin's decision on a pending driver
// application. A rejected applicant's account is demoted to RIDER.
func (s *DriverService) ReviewApplication(ctx context.Context, caller domain.Caller, driverID string, status domain.ApplicationStatus) (*domain.Driver, error) {
	defer newrelic.FromContext(ctx).StartSegment("DriverService/ReviewApplication").End()

	if caller.Role != domain.RoleAdmin {
		return nil, forbidden("only admins may review driver applications")
	}
	if !status.Reviewed() {
		return nil, validationFailed("review outcome must be %s or %s", domain.ApplicationStatusApproved, domain.ApplicationStatusRejected)
	}

	driver, err := s.driverRepo.UpdateApplicationStatus(ctx, driverID, domain.ApplicationStatusPending, status)
	if errors.Is(err, repository.ErrNotApplied) {
		current, getErr := s.driverRepo.GetByID(ctx, driverID)
		if getErr != nil {
			return nil, notFound(getErr, EntityDriver, driverID)
		}
		return nil, conflict("driver %s application is already %s", driverID, current.ApplicationStatus)
	}
	if err != nil {
		return nil, notFound(err, EntityDriver, driverID)
	}
	s.invalidate(ctx, driverID)

	if status == domain.ApplicationStatusRejected {
		if err := s.userRepo.UpdateRole(ctx, driverID, domain.RoleRider); err != nil {
			return nil, notFound(err, EntityUser, driverID)
		}
	}

	s.logger.Info("driver application reviewed",
		zap.String("driver_id", driverID),
		zap.String("application_status", string(status)),
	)
	return driver, nil
}

// SuspendDriver suspends an approved driver's account and takes the driver offline.
func (s *DriverService) SuspendDriver(ctx context.Context, caller domain.Caller, driverID string) (*domain.Driver, error) {
	defer newrelic.FromContext(ctx).StartSegment("DriverService/SuspendDriver").End()
	return s.setAccountStatus(ctx, caller, driverID, domain.AccountStatusSuspended, domain.AvailabilityOffline)
}

// UnsuspendDriver reinstates a suspended driver and puts the driver back online.
func (s *DriverService) UnsuspendDriver(ctx context.Context, caller domain.Caller, driverID string) (*domain.Driver, error) {
	defer newrelic.FromContext(ctx).StartSegment("DriverService/UnsuspendDriver").End()
	return s.setAccountStatus(ctx, caller, driverID, domain.AccountStatusActive, domain.AvailabilityOnline)
}

func (s *DriverService) setAccountStatus(ctx context.Context, caller domain.Caller, driverID string, status domain.AccountStatus, availability domain.Availability) (*domain.Driver, error) {
	if caller.Role != domain.RoleAdmin {
		return nil, forbidden("only admins may change a driver's account status")
	}

	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, notFound(err, EntityDriver, driverID)
	}
	if driver.ApplicationStatus != domain.ApplicationStatusApproved {
		return nil, validationFailed("driver %s application is %s", driver.ID, driver.ApplicationStatus)
	}
	user, err := s.userRepo.GetByID(ctx, driver.ID)
	if err != nil {
		return nil, notFound(err, EntityUser, driver.ID)
	}
	if user.Role != domain.RoleDriver {
		return nil, validationFailed("user %s is registered as %s", user.ID, user.Role)
	}
	if user.AccountStatus == status {
		return nil, conflict("driver %s account is already %s", driver.ID, status)
	}

	// The user record is authoritative; the profile mirrors it.
	if err := s.userRepo.UpdateAccountStatus(ctx, user.ID, status); err != nil {
		return nil, notFound(err, EntityUser, user.ID)
	}
	driver, err = s.driverRepo.UpdateAccountStatus(ctx, driverID, status, availability)
	if err != nil {
		return nil, notFound(err, EntityDriver, driverID)
	}
	s.invalidate(ctx, driverID)

	s.logger.Info("driver account status changed",
		zap.String("driver_id", driverID),
		zap.String("account_status", string(status)),
	)
	return driver, nil
}

// UpdateDriverDetailsRequest carries the profile fields to change. Empty
// fields keep their current value.
type UpdateDriverDetailsRequest struct {
	Caller        domain.Caller
	DriverID      string
	LicenseNumber string
	VehicleType   domain.VehicleType
	VehicleModel  string
	PlateNumber   string
}

// UpdateDriverDetails changes an approved driver's license and vehicle.
func (s *DriverService) UpdateDriverDetails(ctx context.Context, req UpdateDriverDetailsRequest) (*domain.Driver, error) {
	defer newrelic.FromContext(ctx).StartSegment("DriverService/UpdateDriverDetails").End()

	if req.Caller.Role != domain.RoleAdmin && req.Caller.SubjectID != req.DriverID {
		return nil, forbidden("driver %s may not update details of %s", req.Caller.SubjectID, req.DriverID)
	}
	if req.VehicleType != "" && !req.VehicleType.Valid() {
		return nil, validationFailed("unknown vehicle type %q", req.VehicleType)
	}

	driver, err := s.driverRepo.GetByID(ctx, req.DriverID)
	if err != nil {
		return nil, notFound(err, EntityDriver, req.DriverID)
	}
	if driver.ApplicationStatus != domain.ApplicationStatusApproved {
		return nil, validationFailed("driver %s application is %s", driver.ID, driver.ApplicationStatus)
	}

	license := keep(req.LicenseNumber, driver.LicenseNumber)
	vehicle := domain.Vehicle{
		Type:        domain.VehicleType(keep(string(req.VehicleType), string(driver.Vehicle.Type))),
		Model:       keep(req.VehicleModel, driver.Vehicle.Model),
		PlateNumber: keep(req.PlateNumber, driver.Vehicle.PlateNumber),
	}

	updated, err := s.driverRepo.UpdateDetails(ctx, driver.ID, license, vehicle)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, conflict("license %s or plate %s is registered to another driver", license, vehicle.PlateNumber)
	}
	if err != nil {
		return nil, notFound(err, EntityDriver, driver.ID)
	}
	s.invalidate(ctx, driver.ID)
	return updated, nil
}

// UpdateAvailability sets an approved driver ONLINE or OFFLINE. A suspended
// driver may only go OFFLINE.
func (s *DriverService) UpdateAvailability(ctx context.Context, caller domain.Caller, driverID string, availability domain.Availability) (*domain.Driver, error) {
	defer newrelic.FromContext(ctx).StartSegment("DriverService/UpdateAvailability").End()

	if caller.Role != domain.RoleAdmin && caller.SubjectID != driverID {
		return nil, forbidden("driver %s may not change availability of %s", caller.SubjectID, driverID)
	}
	if !availability.Valid() {
		return nil, validationFailed("unknown availability %q", availability)
	}

	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, notFound(err, EntityDriver, driverID)
	}
	if driver.ApplicationStatus != domain.ApplicationStatusApproved {
		return nil, validationFailed("driver %s application is %s", driver.ID, driver.ApplicationStatus)
	}
	if availability == domain.AvailabilityOnline && driver.AccountStatus != domain.AccountStatusActive {
		return nil, forbidden("driver %s account is %s", driver.ID, driver.AccountStatus)
	}

	driver, err = s.driverRepo.UpdateAvailability(ctx, driverID, availability)
	if err != nil {
		return nil, notFound(err, EntityDriver, driverID)
	}
	s.invalidate(ctx, driverID)
	return driver, nil
}

// GetDriver returns a driver profile, served from cache when possible.
func (s *DriverService) GetDriver(ctx context.Context, driverID string) (*domain.Driver, error) {
	if s.cache != nil {
		cached, err := s.cache.GetDriver(ctx, driverID)
		if err != nil {
			s.logger.Warn("driver cache read failed", zap.String("driver_id", driverID), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, notFound(err, EntityDriver, driverID)
	}
	if s.cache != nil {
		if err := s.cache.SetDriver(ctx, driver); err != nil {
			s.logger.Warn("driver cache write failed", zap.String("driver_id", driverID), zap.Error(err))
		}
	}
	return driver, nil
}

// ListDrivers lists driver profiles. Admin only.
func (s *DriverService) ListDrivers(ctx context.Context, caller domain.Caller, params query.Params) (*Page[*domain.Driver], error) {
	if caller.Role != domain.RoleAdmin {
		return nil, forbidden("only admins may list drivers")
	}
	q := listQuery(params, s.now, repository.DriverSearchFields...)
	return list(ctx, q, s.driverRepo.Find, s.driverRepo.Count)
}

func (s *DriverService) invalidate(ctx context.Context, driverID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateDriver(ctx, driverID); err != nil {
		s.logger.Warn("driver cache invalidation failed", zap.String("driver_id", driverID), zap.Error(err))
	}
}

func keep(value, current string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return current
}
