package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"ridecore/internal/domain"
	"ridecore/internal/repository/memory"
)

// ──────────────────────────────────────────────
// TEST FIXTURE
// ──────────────────────────────────────────────

// stepClock returns a strictly increasing time on every call.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []RideEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	if p.err != nil {
		return p.err
	}
	var event RideEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return err
	}
	if string(event.Type) != routingKey {
		return errors.New("routing key does not match event type")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]EventType, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

// fakeRideCache is an in-memory RideCache that counts calls.
type fakeRideCache struct {
	mu          sync.Mutex
	rides       map[string]*domain.Ride
	hits        int
	invalidated []string
}

func newFakeRideCache() *fakeRideCache {
	return &fakeRideCache{rides: make(map[string]*domain.Ride)}
}

func (c *fakeRideCache) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ride, ok := c.rides[rideID]
	if !ok {
		return nil, nil
	}
	c.hits++
	return ride.Clone(), nil
}

func (c *fakeRideCache) SetRide(ctx context.Context, ride *domain.Ride) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.rides[ride.ID]; ok && current.UpdatedAt.After(ride.UpdatedAt) {
		return nil
	}
	c.rides[ride.ID] = ride.Clone()
	return nil
}

func (c *fakeRideCache) status(rideID string) domain.RideStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ride, ok := c.rides[rideID]; ok {
		return ride.Status
	}
	return ""
}

// interleavingRideCache runs beforeSet once, ahead of the first SetRide.
type interleavingRideCache struct {
	*fakeRideCache
	ran       bool
	beforeSet func()
}

func (c *interleavingRideCache) SetRide(ctx context.Context, ride *domain.Ride) error {
	if !c.ran {
		c.ran = true
		c.beforeSet()
	}
	return c.fakeRideCache.SetRide(ctx, ride)
}

func (c *fakeRideCache) InvalidateRide(ctx context.Context, rideID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rides, rideID)
	c.invalidated = append(c.invalidated, rideID)
	return nil
}

type fixture struct {
	rides     *memory.RideRepository
	users     *memory.UserRepository
	drivers   *memory.DriverRepository
	publisher *recordingPublisher
	cache     *fakeRideCache
	clock     *stepClock
	svc       *RideService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		rides:     memory.NewRideRepository(),
		users:     memory.NewUserRepository(),
		drivers:   memory.NewDriverRepository(),
		publisher: &recordingPublisher{},
		cache:     newFakeRideCache(),
		clock:     newStepClock(),
	}
	f.svc = NewRideService(
		f.rides, f.users, f.drivers,
		NewFlatRateFare(DefaultFareRate),
		f.cache,
		NewNotificationService(f.publisher, nil),
		nil,
	).WithClock(f.clock.Now)

	f.addRider(t, "rider-1", "+8801700000001")
	f.addRider(t, "rider-2", "+8801700000002")
	f.addRider(t, "rider-3", "+8801700000003")
	f.addRider(t, "rider-nophone", "")
	f.addDriver(t, "driver-1", domain.ApplicationStatusApproved, domain.AccountStatusActive)
	f.addDriver(t, "driver-2", domain.ApplicationStatusApproved, domain.AccountStatusActive)
	return f
}

func (f *fixture) addRider(t *testing.T, id, phone string) {
	t.Helper()
	err := f.users.Create(context.Background(), &domain.User{
		ID:            id,
		Name:          id,
		Email:         id + "@example.com",
		Phone:         phone,
		Role:          domain.RoleRider,
		AccountStatus: domain.AccountStatusActive,
	})
	if err != nil {
		t.Fatalf("failed to seed rider %s: %v", id, err)
	}
}

func (f *fixture) addDriver(t *testing.T, id string, application domain.ApplicationStatus, account domain.AccountStatus) {
	t.Helper()
	err := f.drivers.Create(context.Background(), &domain.Driver{
		ID:                id,
		LicenseNumber:     "LIC-" + id,
		Vehicle:           domain.Vehicle{Type: domain.VehicleTypeCar, Model: "Axio", PlateNumber: "DHA-" + id},
		ApplicationStatus: application,
		AccountStatus:     account,
		Availability:      domain.AvailabilityOnline,
	})
	if err != nil {
		t.Fatalf("failed to seed driver %s: %v", id, err)
	}
}

func (f *fixture) request(t *testing.T, riderID string, distance float64) *domain.Ride {
	t.Helper()
	ride, err := f.svc.RequestRide(context.Background(), RequestRideRequest{
		Caller:        rider(riderID),
		RiderID:       riderID,
		Pickup:        "Airport",
		Destination:   "Downtown",
		Distance:      distance,
		PaymentMethod: domain.PaymentMethodCash,
	})
	if err != nil {
		t.Fatalf("request ride for %s: %v", riderID, err)
	}
	return ride
}

// complete drives a fresh ride for riderID through every transition.
func (f *fixture) complete(t *testing.T, riderID, driverID string, distance float64) *domain.Ride {
	t.Helper()
	ctx := context.Background()
	ride := f.request(t, riderID, distance)

	steps := []func(context.Context, domain.Caller, string) (*domain.Ride, error){
		f.svc.AcceptRide, f.svc.PickUpRider, f.svc.StartTransit, f.svc.CompleteRide,
	}
	id := ride.ID
	for _, step := range steps {
		var err error
		if ride, err = step(ctx, driver(driverID), id); err != nil {
			t.Fatalf("advance ride %s: %v", id, err)
		}
	}
	return ride
}

func rider(id string) domain.Caller  { return domain.Caller{SubjectID: id, Role: domain.RoleRider} }
func driver(id string) domain.Caller { return domain.Caller{SubjectID: id, Role: domain.RoleDriver} }

var admin = domain.Caller{SubjectID: "admin-1", Role: domain.RoleAdmin}
