package redis

import (
	"context"
	"net/http"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"ridecore/internal/domain"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func testRide(status domain.RideStatus, updatedAt time.Time) *domain.Ride {
	return &domain.Ride{
		ID:            "ride-1",
		RiderID:       "rider-1",
		Driver:        domain.AssignedTo("driver-1"),
		Pickup:        "Banani",
		Destination:   "Gulshan",
		Distance:      4,
		Fare:          20,
		PaymentMethod: domain.PaymentMethodCash,
		Status:        status,
		Timestamps:    domain.TransitionTimestamps{domain.TransitionRequested: updatedAt},
		CreatedAt:     updatedAt,
		UpdatedAt:     updatedAt,
	}
}

// ────────────────────────────────────────────────────────────────
// CacheStore
// ────────────────────────────────────────────────────────────────

func TestCacheStore_Ride(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewCacheStore(client)
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	got, err := store.GetRide(ctx, "ride-1")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil on a miss, got %+v, %v", got, err)
	}

	ride := testRide(domain.RideStatusAccepted, now)
	if err := store.SetRide(ctx, ride); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err = store.GetRide(ctx, ride.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(got, ride) {
		t.Errorf("expected %+v, got %+v", ride, got)
	}
	if ttl := mr.TTL(rideCachePrefix + ride.ID); ttl != RideCacheTTL {
		t.Errorf("expected TTL %s, got %s", RideCacheTTL, ttl)
	}

	if err := store.InvalidateRide(ctx, ride.ID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists(rideCachePrefix + ride.ID) {
		t.Errorf("expected the key to be deleted")
	}
	if got, _ := store.GetRide(ctx, ride.ID); got != nil {
		t.Errorf("expected a miss after invalidation, got %+v", got)
	}
}

func TestCacheStore_SetRideKeepsNewerSnapshot(t *testing.T) {
	_, client := newTestClient(t)
	store := NewCacheStore(client)
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	requested := testRide(domain.RideStatusRequested, now)
	accepted := testRide(domain.RideStatusAccepted, now.Add(time.Second))
	pickedUp := testRide(domain.RideStatusPickedUp, now.Add(2*time.Second))

	steps := []struct {
		name string
		ride *domain.Ride
		want domain.RideStatus
	}{
		{"first write", accepted, domain.RideStatusAccepted},
		{"older snapshot is ignored", requested, domain.RideStatusAccepted},
		{"newer snapshot replaces", pickedUp, domain.RideStatusPickedUp},
		{"same snapshot rewrites", pickedUp, domain.RideStatusPickedUp},
	}
	for _, step := range steps {
		if err := store.SetRide(ctx, step.ride); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		got, err := store.GetRide(ctx, "ride-1")
		if err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if got.Status != step.want {
			t.Errorf("%s: expected %s, got %s", step.name, step.want, got.Status)
		}
	}
}

func TestCacheStore_UnreadableEntry(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewCacheStore(client)
	ctx := context.Background()

	if err := mr.Set(rideCachePrefix+"ride-1", "not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.GetRide(ctx, "ride-1"); err == nil {
		t.Errorf("expected a decode error")
	}

	ride := testRide(domain.RideStatusRequested, time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC))
	if err := store.SetRide(ctx, ride); err != nil {
		t.Fatalf("set over unreadable entry: %v", err)
	}
	if got, err := store.GetRide(ctx, "ride-1"); err != nil || got == nil {
		t.Errorf("expected the entry to be replaced, got %+v, %v", got, err)
	}
}

func TestCacheStore_Driver(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewCacheStore(client)
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	if got, err := store.GetDriver(ctx, "driver-1"); err != nil || got != nil {
		t.Fatalf("expected nil, nil on a miss, got %+v, %v", got, err)
	}

	d := &domain.Driver{
		ID:                "driver-1",
		LicenseNumber:     "LIC-1",
		Vehicle:           domain.Vehicle{Type: domain.VehicleTypeCar, Model: "Axio", PlateNumber: "DHA-1"},
		ApplicationStatus: domain.ApplicationStatusApproved,
		AccountStatus:     domain.AccountStatusActive,
		Availability:      domain.AvailabilityOnline,
		CompletedRides:    []string{"ride-1"},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := store.SetDriver(ctx, d); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := store.GetDriver(ctx, d.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(got, d) {
		t.Errorf("expected %+v, got %+v", d, got)
	}
	if ttl := mr.TTL(driverCachePrefix + d.ID); ttl != DriverCacheTTL {
		t.Errorf("expected TTL %s, got %s", DriverCacheTTL, ttl)
	}

	mr.FastForward(DriverCacheTTL + time.Second)
	if got, _ := store.GetDriver(ctx, d.ID); got != nil {
		t.Errorf("expected the entry to expire, got %+v", got)
	}

	_ = store.SetDriver(ctx, d)
	if err := store.InvalidateDriver(ctx, d.ID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists(driverCachePrefix + d.ID) {
		t.Errorf("expected the key to be deleted")
	}
}

// ────────────────────────────────────────────────────────────────
// IdempotencyStore
// ────────────────────────────────────────────────────────────────

func TestIdempotencyStore_Reservation(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewIdempotencyStore(client)
	ctx := context.Background()
	ttl := 30 * time.Second

	ok, err := store.Reserve(ctx, "key-1", ttl)
	if err != nil || !ok {
		t.Fatalf("expected the first reservation to succeed, got %v, %v", ok, err)
	}
	if got := mr.TTL(idempotencyLockPrefix + "key-1"); got != ttl {
		t.Errorf("expected lock TTL %s, got %s", ttl, got)
	}

	ok, err = store.Reserve(ctx, "key-1", ttl)
	if err != nil || ok {
		t.Errorf("expected the key to be held while in flight, got %v, %v", ok, err)
	}
	if ok, _ := store.Reserve(ctx, "key-2", ttl); !ok {
		t.Errorf("expected a different key to be reservable")
	}

	if err := store.Release(ctx, "key-1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := store.Reserve(ctx, "key-1", ttl); !ok {
		t.Errorf("expected the key to be reservable after release")
	}

	mr.FastForward(ttl + time.Second)
	if ok, _ := store.Reserve(ctx, "key-2", ttl); !ok {
		t.Errorf("expected an abandoned reservation to expire")
	}
}

func TestIdempotencyStore_SaveAndGet(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewIdempotencyStore(client)
	ctx := context.Background()

	got, err := store.Get(ctx, "key-1")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil for an unknown key, got %+v, %v", got, err)
	}

	resp := &StoredResponse{
		StatusCode: http.StatusCreated,
		Body:       []byte(`{"id":"ride-1"}`),
		Headers:    http.Header{"Content-Type": []string{"application/json"}},
	}
	if err := store.Save(ctx, "key-1", resp, time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err = store.Get(ctx, "key-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(got, resp) {
		t.Errorf("expected %+v, got %+v", resp, got)
	}
	if ttl := mr.TTL(idempotencyPrefix + "key-1"); ttl != time.Hour {
		t.Errorf("expected TTL 1h, got %s", ttl)
	}
}

func TestKeyFamily(t *testing.T) {
	testCases := []struct {
		key  string
		want string
	}{
		{rideCachePrefix + "ride-1", "cache:ride"},
		{driverCachePrefix + "driver-1", "cache:driver"},
		{idempotencyPrefix + "a:b", "idempotency"},
		{idempotencyLockPrefix + "a", "lock:idempotency"},
		{"session:1", "other"},
	}
	for _, tc := range testCases {
		if got := KeyFamily(tc.key); got != tc.want {
			t.Errorf("KeyFamily(%q): expected %q, got %q", tc.key, tc.want, got)
		}
	}
}
