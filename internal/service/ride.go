package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/newrelic"
	"go.uber.org/zap"

	"ridecore/internal/domain"
	"ridecore/internal/repository"
)

// RideCache is a read-through cache of rides keyed by ID.
// GetRide returns nil, nil on a miss. SetRide keeps the stored entry when it
// carries a later UpdatedAt than ride.
type RideCache interface {
	GetRide(ctx context.Context, rideID string) (*domain.Ride, error)
	SetRide(ctx context.Context, ride *domain.Ride) error
	InvalidateRide(ctx context.Context, rideID string) error
}

// transition is one edge of the ride state machine.
type transition struct {
	op    string
	from  domain.RideStatus
	to    domain.RideStatus
	name  domain.Transition
	event EventType
}

var (
	cancelTransition   = transition{"cancel", domain.RideStatusRequested, domain.RideStatusCancelled, domain.TransitionCancelled, EventRideCancelled}
	acceptTransition   = transition{"accept", domain.RideStatusRequested, domain.RideStatusAccepted, domain.TransitionAccepted, EventRideAccepted}
	rejectTransition   = transition{"reject", domain.RideStatusRequested, domain.RideStatusRejected, domain.TransitionRejected, EventRideRejected}
	pickUpTransition   = transition{"pick up", domain.RideStatusAccepted, domain.RideStatusPickedUp, domain.TransitionPickedUp, EventRidePickedUp}
	transitTransition  = transition{"start transit", domain.RideStatusPickedUp, domain.RideStatusInTransit, domain.TransitionInTransit, EventRideInTransit}
	completeTransition = transition{"complete", domain.RideStatusInTransit, domain.RideStatusCompleted, domain.TransitionCompleted, EventRideCompleted}
)

// RideService owns the ride state machine. Every transition is a single
// conditional write; a write that loses a race is reported as a conflict and
// never retried.
type RideService struct {
	rideRepo            repository.RideRepository
	userRepo            repository.UserRepository
	driverRepo          repository.DriverRepository
	fare                FareCalculator
	driverGuard         *DriverAssignmentGuard
	riderGuard          *RiderExclusivityGuard
	cache               RideCache
	notificationService *NotificationService
	logger              *zap.Logger
	now                 func() time.Time
}

// NewRideService creates a new RideService. cache and notificationService may be nil.
func NewRideService(
	rideRepo repository.RideRepository,
	userRepo repository.UserRepository,
	driverRepo repository.DriverRepository,
	fare FareCalculator,
	cache RideCache,
	notificationService *NotificationService,
	logger *zap.Logger,
) *RideService {
	if fare == nil {
		fare = NewFlatRateFare(DefaultFareRate)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RideService{
		rideRepo:            rideRepo,
		userRepo:            userRepo,
		driverRepo:          driverRepo,
		fare:                fare,
		driverGuard:         NewDriverAssignmentGuard(rideRepo),
		riderGuard:          NewRiderExclusivityGuard(rideRepo),
		cache:               cache,
		notificationService: notificationService,
		logger:              logger,
		now:                 time.Now,
	}
}

// WithClock overrides the clock used for transition timestamps.
func (s *RideService) WithClock(now func() time.Time) *RideService {
	s.now = now
	return s
}

// RequestRideRequest contains the parameters for requesting a ride.
type RequestRideRequest struct {
	Caller        domain.Caller
	RiderID       string
	Pickup        string
	Destination   string
	Distance      float64
	PaymentMethod domain.PaymentMethod
}

// RequestRide creates a ride in REQUESTED for a rider holding no open ride.
func (s *RideService) RequestRide(ctx context.Context, req RequestRideRequest) (*domain.Ride, error) {
	defer newrelic.FromContext(ctx).StartSegment("RideService/RequestRide").End()

	if req.Caller.SubjectID != req.RiderID {
		return nil, forbidden("riders may only request rides for themselves")
	}

	rider, err := s.userRepo.GetByID(ctx, req.RiderID)
	if err != nil {
		return nil, notFound(err, EntityRider, req.RiderID)
	}
	if !rider.HasPhone() {
		return nil, validationFailed("rider %s has no phone number", rider.ID)
	}
	if req.Distance <= 0 {
		return nil, validationFailed("distance must be positive")
	}
	if !req.PaymentMethod.Valid() {
		return nil, validationFailed("unknown payment method %q", req.PaymentMethod)
	}

	if err := s.riderGuard.Check(ctx, rider.ID); err != nil {
		return nil, err
	}

	now := s.now()
	ride := &domain.Ride{
		ID:            uuid.New().String(),
		RiderID:       rider.ID,
		Driver:        domain.Unassigned(),
		Pickup:        req.Pickup,
		Destination:   req.Destination,
		Distance:      req.Distance,
		Fare:          s.fare.Fare(req.Distance),
		PaymentMethod: req.PaymentMethod,
		Status:        domain.RideStatusRequested,
		Timestamps:    domain.TransitionTimestamps{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	ride.Timestamps.Record(domain.TransitionRequested, now)

	if err := s.rideRepo.Create(ctx, ride); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost a race with another request by the same rider.
			if guardErr := s.riderGuard.Check(ctx, rider.ID); guardErr != nil {
				return nil, guardErr
			}
			return nil, fmt.Errorf("%w: rider %s requested concurrently", ErrConflict, rider.ID)
		}
		return nil, err
	}

	if err := s.userRepo.AppendRide(ctx, rider.ID, ride.ID); err != nil {
		s.logger.Warn("failed to record ride in rider history",
			zap.String("ride_id", ride.ID), zap.String("rider_id", rider.ID), zap.Error(err))
	}

	s.logger.Info("ride requested",
		zap.String("ride_id", ride.ID),
		zap.String("rider_id", ride.RiderID),
		zap.Float64("fare", ride.Fare),
	)
	if s.notificationService != nil {
		s.notificationService.NotifyRideChanged(ctx, EventRideRequested, ride)
	}
	return ride, nil
}

// CancelRide cancels a REQUESTED ride on behalf of its rider.
func (s *RideService) CancelRide(ctx context.Context, caller domain.Caller, rideID string) (*domain.Ride, error) {
	defer newrelic.FromContext(ctx).StartSegment("RideService/CancelRide").End()

	ride, err := s.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.RiderID != caller.SubjectID {
		return nil, forbidden("only the rider may cancel ride %s", ride.ID)
	}
	return s.apply(ctx, ride, cancelTransition, domain.Unassigned(), "")
}

// AcceptRide assigns a REQUESTED ride to the calling driver.
func (s *RideService) AcceptRide(ctx context.Context, caller domain.Caller, rideID string) (*domain.Ride, error) {
	defer newrelic.FromContext(ctx).StartSegment("RideService/AcceptRide").End()

	return s.respond(ctx, caller, rideID, acceptTransition)
}

// RejectRide rejects a REQUESTED ride. The rejecting driver is not assigned
// but must not be holding an active ride.
func (s *RideService) RejectRide(ctx context.Context, caller domain.Caller, rideID string) (*domain.Ride, error) {
	defer newrelic.FromContext(ctx).StartSegment("RideService/RejectRide").End()

	return s.respond(ctx, caller, rideID, rejectTransition)
}

// respond runs the shared preconditions of accept and reject.
func (s *RideService) respond(ctx context.Context, caller domain.Caller, rideID string, t transition) (*domain.Ride, error) {
	if caller.Role != domain.RoleDriver {
		return nil, forbidden("only drivers may %s rides", t.op)
	}
	ride, err := s.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}

	driver, err := s.driverRepo.GetByID(ctx, caller.SubjectID)
	if err != nil {
		return nil, notFound(err, EntityDriver, caller.SubjectID)
	}
	if !driver.CanDrive() {
		return nil, forbidden("driver %s cannot take rides: application %s, account %s",
			driver.ID, driver.ApplicationStatus, driver.AccountStatus)
	}

	if ride.Status != t.from {
		return nil, statusConflict(ride, t)
	}
	if err := s.driverGuard.Check(ctx, driver.ID); err != nil {
		return nil, err
	}

	assignment := domain.Unassigned()
	if t == acceptTransition {
		assignment = domain.AssignedTo(driver.ID)
	}
	return s.apply(ctx, ride, t, assignment, driver.ID)
}

// PickUpRider moves an ACCEPTED ride to PICKED_UP.
func (s *RideService) PickUpRider(ctx context.Context, caller domain.Caller, rideID string) (*domain.Ride, error) {
	defer newrelic.FromContext(ctx).StartSegment("RideService/PickUpRider").End()

	return s.advance(ctx, caller, rideID, pickUpTransition)
}

// StartTransit moves a PICKED_UP ride to IN_TRANSIT.
func (s *RideService) StartTransit(ctx context.Context, caller domain.Caller, rideID string) (*domain.Ride, error) {
	defer newrelic.FromContext(ctx).StartSegment("RideService/StartTransit").End()

	return s.advance(ctx, caller, rideID, transitTransition)
}

// CompleteRide moves an IN_TRANSIT ride to COMPLETED and records it in the
// driver's completed rides.
func (s *RideService) CompleteRide(ctx context.Context, caller domain.Caller, rideID string) (*domain.Ride, error) {
	defer newrelic.FromContext(ctx).StartSegment("RideService/CompleteRide").End()

	ride, err := s.advance(ctx, caller, rideID, completeTransition)
	if err != nil {
		return nil, err
	}

	if driverID, ok := ride.Driver.DriverID(); ok {
		if err := s.driverRepo.AppendCompletedRide(ctx, driverID, ride.ID); err != nil {
			s.logger.Warn("failed to record completed ride for driver",
				zap.String("ride_id", ride.ID), zap.String("driver_id", driverID), zap.Error(err))
		}
	}
	return ride, nil
}

// advance runs a transition performed by the assigned driver (or an admin).
func (s *RideService) advance(ctx context.Context, caller domain.Caller, rideID string, t transition) (*domain.Ride, error) {
	ride, err := s.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status != t.from {
		return nil, statusConflict(ride, t)
	}
	if caller.Role != domain.RoleAdmin && !ride.Driver.Is(caller.SubjectID) {
		return nil, forbidden("ride %s is not assigned to %s", ride.ID, caller.SubjectID)
	}
	return s.apply(ctx, ride, t, domain.Unassigned(), "")
}

// apply performs the conditional write for t on ride.
func (s *RideService) apply(ctx context.Context, ride *domain.Ride, t transition, assignment domain.DriverAssignment, idleDriver string) (*domain.Ride, error) {
	if ride.Status != t.from {
		return nil, statusConflict(ride, t)
	}

	updated, err := s.rideRepo.UpdateStatus(ctx, ride.ID, t.from, domain.RidePatch{
		To:                t.to,
		Transition:        t.name,
		At:                s.now(),
		Driver:            assignment,
		RequireIdleDriver: idleDriver,
	})
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotApplied), errors.Is(err, repository.ErrDuplicate):
		return nil, s.explainLostWrite(ctx, ride.ID, t, idleDriver)
	default:
		return nil, notFound(err, EntityRide, ride.ID)
	}

	s.refresh(ctx, updated)
	s.logger.Info("ride transition committed",
		zap.String("ride_id", updated.ID),
		zap.String("from", string(t.from)),
		zap.String("to", string(t.to)),
	)
	if s.notificationService != nil {
		s.notificationService.NotifyRideChanged(ctx, t.event, updated)
	}
	return updated, nil
}

// explainLostWrite re-reads storage to report why a conditional write did not apply.
func (s *RideService) explainLostWrite(ctx context.Context, rideID string, t transition, idleDriver string) error {
	current, err := s.loadRide(ctx, rideID)
	if err != nil {
		return err
	}
	if current.Status != t.from {
		return statusConflict(current, t)
	}
	if idleDriver != "" {
		if err := s.driverGuard.Check(ctx, idleDriver); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: ride %s was modified concurrently", ErrConflict, rideID)
}

// GetRide returns a ride visible to the caller: admins see every ride, riders
// their own, drivers the rides assigned to them and any REQUESTED ride.
func (s *RideService) GetRide(ctx context.Context, caller domain.Caller, rideID string) (*domain.Ride, error) {
	ride, err := s.cachedRide(ctx, rideID)
	if err != nil {
		return nil, err
	}

	switch {
	case caller.Role == domain.RoleAdmin,
		ride.RiderID == caller.SubjectID,
		ride.Driver.Is(caller.SubjectID),
		caller.Role == domain.RoleDriver && ride.Status == domain.RideStatusRequested:
		return ride, nil
	}
	return nil, forbidden("ride %s is not visible to %s", ride.ID, caller.SubjectID)
}

func (s *RideService) cachedRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	if s.cache != nil {
		cached, err := s.cache.GetRide(ctx, rideID)
		if err != nil {
			s.logger.Warn("ride cache read failed", zap.String("ride_id", rideID), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	ride, err := s.loadRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetRide(ctx, ride); err != nil {
			s.logger.Warn("ride cache write failed", zap.String("ride_id", rideID), zap.Error(err))
		}
	}
	return ride, nil
}

// refresh writes a committed ride through to the cache. A reader that loaded
// the ride before the commit cannot overwrite it afterwards.
func (s *RideService) refresh(ctx context.Context, ride *domain.Ride) {
	if s.cache == nil {
		return
	}
	err := s.cache.SetRide(ctx, ride)
	if err == nil {
		return
	}
	s.logger.Warn("ride cache write failed", zap.String("ride_id", ride.ID), zap.Error(err))
	if err := s.cache.InvalidateRide(ctx, ride.ID); err != nil {
		s.logger.Warn("ride cache invalidation failed", zap.String("ride_id", ride.ID), zap.Error(err))
	}
}

func (s *RideService) loadRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, notFound(err, EntityRide, rideID)
	}
	return ride, nil
}

func statusConflict(ride *domain.Ride, t transition) *StatusConflictError {
	return &StatusConflictError{
		RideID:   ride.ID,
		Op:       t.op,
		Required: t.from,
		Actual:   ride.Status,
	}
}

// notFound converts repository.ErrNotFound into a NotFoundError and passes
// any other error through unchanged.
func notFound(err error, entity, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return err
}
