package service

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"ridecore/internal/domain"
	"ridecore/internal/query"
)

// ──────────────────────────────────────────────
// REQUEST
// ──────────────────────────────────────────────

func TestRequestRide_PricesByDistance(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	ride := f.request(t, "rider-1", 10)

	if ride.Fare != 50 {
		t.Errorf("expected fare 50, got %v", ride.Fare)
	}
	if ride.Status != domain.RideStatusRequested {
		t.Errorf("expected status %s, got %s", domain.RideStatusRequested, ride.Status)
	}
	if ride.Driver.IsAssigned() {
		t.Error("expected no driver on a new ride")
	}
	if _, ok := ride.Timestamps.At(domain.TransitionRequested); !ok {
		t.Error("expected requested timestamp")
	}

	user, _ := f.users.GetByID(context.Background(), "rider-1")
	if !reflect.DeepEqual(user.Rides, []string{ride.ID}) {
		t.Errorf("expected ride in rider history, got %v", user.Rides)
	}
	if got := f.publisher.Types(); !reflect.DeepEqual(got, []EventType{EventRideRequested}) {
		t.Errorf("expected requested event, got %v", got)
	}
}

func TestRequestRide_RejectsInvalidRequests(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		req     RequestRideRequest
		wantErr error
	}{
		{
			name:    "rider without phone",
			req:     RequestRideRequest{Caller: rider("rider-nophone"), RiderID: "rider-nophone", Distance: 3, PaymentMethod: domain.PaymentMethodCash},
			wantErr: ErrValidationFailed,
		},
		{
			name:    "zero distance",
			req:     RequestRideRequest{Caller: rider("rider-1"), RiderID: "rider-1", Distance: 0, PaymentMethod: domain.PaymentMethodCash},
			wantErr: ErrValidationFailed,
		},
		{
			name:    "unknown payment method",
			req:     RequestRideRequest{Caller: rider("rider-1"), RiderID: "rider-1", Distance: 3, PaymentMethod: "CHEQUE"},
			wantErr: ErrValidationFailed,
		},
		{
			name:    "on behalf of another rider",
			req:     RequestRideRequest{Caller: rider("rider-2"), RiderID: "rider-1", Distance: 3, PaymentMethod: domain.PaymentMethodCash},
			wantErr: ErrForbidden,
		},
		{
			name:    "unknown rider",
			req:     RequestRideRequest{Caller: rider("ghost"), RiderID: "ghost", Distance: 3, PaymentMethod: domain.PaymentMethodCash},
			wantErr: ErrNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.RequestRide(context.Background(), tc.req)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
			if n, _ := f.rides.Count(context.Background(), query.Query{}); n != 0 {
				t.Errorf("expected no ride to be stored, got %d", n)
			}
		})
	}
}

func TestRequestRide_RiderWithOpenRide(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	first := f.request(t, "rider-1", 4)

	_, err := f.svc.RequestRide(ctx, RequestRideRequest{
		Caller: rider("rider-1"), RiderID: "rider-1", Distance: 2, PaymentMethod: domain.PaymentMethodOnline,
	})
	var active *ActiveRideError
	if !errors.As(err, &active) {
		t.Fatalf("expected ActiveRideError, got %v", err)
	}
	if active.RideID != first.ID || active.Status != domain.RideStatusRequested {
		t.Errorf("expected existing ride %s in REQUESTED, got %+v", first.ID, active)
	}
	if !errors.Is(err, ErrConflict) {
		t.Error("expected error to be a conflict")
	}

	// Once the open ride is cancelled the rider may request again.
	if _, err := f.svc.CancelRide(ctx, rider("rider-1"), first.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.request(t, "rider-1", 2)
}

// ──────────────────────────────────────────────
// ACCEPT / REJECT
// ──────────────────────────────────────────────

func TestAcceptRide_AssignsDriver(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ride := f.request(t, "rider-1", 10)

	accepted, err := f.svc.AcceptRide(context.Background(), driver("driver-1"), ride.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if accepted.Status != domain.RideStatusAccepted || !accepted.Driver.Is("driver-1") {
		t.Errorf("expected ACCEPTED by driver-1, got %s %+v", accepted.Status, accepted.Driver)
	}
	if _, ok := accepted.Timestamps.At(domain.TransitionAccepted); !ok {
		t.Error("expected accepted timestamp")
	}
}

func TestAcceptRide_SecondDriverConflicts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	ride := f.request(t, "rider-1", 10)

	if _, err := f.svc.AcceptRide(ctx, driver("driver-1"), ride.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := f.svc.AcceptRide(ctx, driver("driver-2"), ride.ID)
	var conflict *StatusConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected StatusConflictError, got %v", err)
	}
	if conflict.Required != domain.RideStatusRequested || conflict.Actual != domain.RideStatusAccepted {
		t.Errorf("unexpected conflict %+v", conflict)
	}

	stored, _ := f.rides.GetByID(ctx, ride.ID)
	if !stored.Driver.Is("driver-1") {
		t.Errorf("expected driver-1 to keep the ride, got %+v", stored.Driver)
	}
}

func TestAcceptRide_DriverWithActiveRide(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	first := f.request(t, "rider-1", 3)
	second := f.request(t, "rider-2", 3)
	if _, err := f.svc.AcceptRide(ctx, driver("driver-1"), first.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, respond := range []func(context.Context, domain.Caller, string) (*domain.Ride, error){
		f.svc.AcceptRide, f.svc.RejectRide,
	} {
		_, err := respond(ctx, driver("driver-1"), second.ID)
		var active *ActiveRideError
		if !errors.As(err, &active) {
			t.Fatalf("expected ActiveRideError, got %v", err)
		}
		if active.Subject != EntityDriver || active.RideID != first.ID || active.Status != domain.RideStatusAccepted {
			t.Errorf("unexpected active ride error %+v", active)
		}
	}

	stored, _ := f.rides.GetByID(ctx, second.ID)
	if stored.Status != domain.RideStatusRequested {
		t.Errorf("expected second ride to stay REQUESTED, got %s", stored.Status)
	}
}

func TestAcceptRide_Preconditions(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addDriver(t, "driver-pending", domain.ApplicationStatusPending, domain.AccountStatusActive)
	f.addDriver(t, "driver-blocked", domain.ApplicationStatusApproved, domain.AccountStatusBlocked)
	ride := f.request(t, "rider-1", 3)

	testCases := []struct {
		name    string
		caller  domain.Caller
		rideID  string
		wantErr error
	}{
		{"rider role", rider("rider-2"), ride.ID, ErrForbidden},
		{"unknown ride", driver("driver-1"), "missing", ErrNotFound},
		{"no driver profile", driver("nobody"), ride.ID, ErrNotFound},
		{"pending application", driver("driver-pending"), ride.ID, ErrForbidden},
		{"blocked account", driver("driver-blocked"), ride.ID, ErrForbidden},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.AcceptRide(context.Background(), tc.caller, tc.rideID)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestAcceptRide_SuspendedDriver(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	err := f.users.Create(ctx, &domain.User{
		ID:            "driver-1",
		Name:          "driver-1",
		Email:         "driver-1@example.com",
		Role:          domain.RoleDriver,
		AccountStatus: domain.AccountStatusActive,
	})
	if err != nil {
		t.Fatalf("seed driver user: %v", err)
	}
	drivers := NewDriverService(f.drivers, f.users, nil, nil)
	ride := f.request(t, "rider-1", 3)

	if _, err := drivers.SuspendDriver(ctx, admin, "driver-1"); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if _, err := f.svc.AcceptRide(ctx, driver("driver-1"), ride.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected a suspended driver to be refused, got %v", err)
	}

	if _, err := drivers.UnsuspendDriver(ctx, admin, "driver-1"); err != nil {
		t.Fatalf("unsuspend: %v", err)
	}
	accepted, err := f.svc.AcceptRide(ctx, driver("driver-1"), ride.ID)
	if err != nil {
		t.Fatalf("accept after reinstatement: %v", err)
	}
	if accepted.Status != domain.RideStatusAccepted {
		t.Errorf("expected ACCEPTED, got %s", accepted.Status)
	}
}

func TestRejectRide_DoesNotAssignDriver(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	ride := f.request(t, "rider-1", 3)

	rejected, err := f.svc.RejectRide(ctx, driver("driver-1"), ride.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rejected.Status != domain.RideStatusRejected {
		t.Errorf("expected REJECTED, got %s", rejected.Status)
	}
	if rejected.Driver.IsAssigned() {
		t.Errorf("expected no driver on a rejected ride, got %+v", rejected.Driver)
	}

	// Terminal: nothing else applies and the rider is free again.
	if _, err := f.svc.AcceptRide(ctx, driver("driver-2"), ride.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("expected conflict accepting a rejected ride, got %v", err)
	}
	f.request(t, "rider-1", 3)
}

// ──────────────────────────────────────────────
// LIFECYCLE
// ──────────────────────────────────────────────

func TestRideLifecycle_HappyPath(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	ride := f.complete(t, "rider-1", "driver-1", 10)

	if ride.Status != domain.RideStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", ride.Status)
	}
	for _, name := range []domain.Transition{
		domain.TransitionRequested, domain.TransitionAccepted, domain.TransitionPickedUp,
		domain.TransitionInTransit, domain.TransitionCompleted,
	} {
		if _, ok := ride.Timestamps.At(name); !ok {
			t.Errorf("expected %s timestamp", name)
		}
	}
	requested, _ := ride.Timestamps.At(domain.TransitionRequested)
	completed, _ := ride.Timestamps.At(domain.TransitionCompleted)
	if !completed.After(requested) {
		t.Errorf("expected completion after request, got %v and %v", requested, completed)
	}

	d, _ := f.drivers.GetByID(ctx, "driver-1")
	if !reflect.DeepEqual(d.CompletedRides, []string{ride.ID}) {
		t.Errorf("expected completed ride on driver, got %v", d.CompletedRides)
	}

	want := []EventType{EventRideRequested, EventRideAccepted, EventRidePickedUp, EventRideInTransit, EventRideCompleted}
	if got := f.publisher.Types(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected events %v, got %v", want, got)
	}

	// The driver is free for the next ride.
	next := f.request(t, "rider-2", 2)
	if _, err := f.svc.AcceptRide(ctx, driver("driver-1"), next.ID); err != nil {
		t.Errorf("expected driver to accept after completing, got %v", err)
	}
}

func TestCompleteRide_FromAcceptedConflicts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	ride := f.request(t, "rider-1", 3)
	_, _ = f.svc.AcceptRide(ctx, driver("driver-1"), ride.ID)

	_, err := f.svc.CompleteRide(ctx, driver("driver-1"), ride.ID)
	var conflict *StatusConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected StatusConflictError, got %v", err)
	}
	if conflict.Required != domain.RideStatusInTransit || conflict.Actual != domain.RideStatusAccepted {
		t.Errorf("unexpected conflict %+v", conflict)
	}
	if conflict.Error() != "ride must be IN_TRANSIT to complete, current status is ACCEPTED" {
		t.Errorf("unexpected message %q", conflict.Error())
	}

	stored, _ := f.rides.GetByID(ctx, ride.ID)
	if stored.Status != domain.RideStatusAccepted {
		t.Errorf("expected status to stay ACCEPTED, got %s", stored.Status)
	}
}

func TestAdvance_OnlyAssignedDriverOrAdmin(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	ride := f.request(t, "rider-1", 3)
	_, _ = f.svc.AcceptRide(ctx, driver("driver-1"), ride.ID)

	if _, err := f.svc.PickUpRider(ctx, driver("driver-2"), ride.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected forbidden for another driver, got %v", err)
	}
	if _, err := f.svc.PickUpRider(ctx, rider("rider-1"), ride.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected forbidden for the rider, got %v", err)
	}
	picked, err := f.svc.PickUpRider(ctx, admin, ride.ID)
	if err != nil {
		t.Fatalf("expected admin to pick up, got %v", err)
	}
	if picked.Status != domain.RideStatusPickedUp || !picked.Driver.Is("driver-1") {
		t.Errorf("unexpected ride %s %+v", picked.Status, picked.Driver)
	}
}

func TestCancelRide(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	ride := f.request(t, "rider-1", 3)

	if _, err := f.svc.CancelRide(ctx, rider("rider-2"), ride.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected forbidden for another rider, got %v", err)
	}
	if _, err := f.svc.CancelRide(ctx, admin, ride.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected forbidden for an admin, got %v", err)
	}
	if _, err := f.svc.CancelRide(ctx, rider("rider-1"), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	_, _ = f.svc.AcceptRide(ctx, driver("driver-1"), ride.ID)
	_, err := f.svc.CancelRide(ctx, rider("rider-1"), ride.ID)
	var conflict *StatusConflictError
	if !errors.As(err, &conflict) || conflict.Actual != domain.RideStatusAccepted {
		t.Errorf("expected conflict from ACCEPTED, got %v", err)
	}
}

func TestCancelRide_FreesRider(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ride := f.request(t, "rider-1", 3)

	cancelled, err := f.svc.CancelRide(context.Background(), rider("rider-1"), ride.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != domain.RideStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", cancelled.Status)
	}
	if _, ok := cancelled.Timestamps.At(domain.TransitionCancelled); !ok {
		t.Error("expected cancelled timestamp")
	}
	if err := f.svc.riderGuard.Check(context.Background(), "rider-1"); err != nil {
		t.Errorf("expected rider to be free, got %v", err)
	}
}

// ──────────────────────────────────────────────
// CONCURRENCY
// ──────────────────────────────────────────────

func TestAcceptRide_ConcurrentDrivers_OneWins(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	const drivers = 10
	ids := make([]string, drivers)
	for i := range ids {
		ids[i] = "racer-" + string(rune('a'+i))
		f.addDriver(t, ids[i], domain.ApplicationStatusApproved, domain.AccountStatusActive)
	}
	ride := f.request(t, "rider-1", 5)

	var wg sync.WaitGroup
	errs := make([]error, drivers)
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.svc.AcceptRide(ctx, driver(id), ride.ID)
		}(i, id)
	}
	wg.Wait()

	winner := ""
	for i, err := range errs {
		switch {
		case err == nil:
			if winner != "" {
				t.Errorf("both %s and %s accepted", winner, ids[i])
			}
			winner = ids[i]
		case !errors.Is(err, ErrConflict):
			t.Errorf("expected conflict for %s, got %v", ids[i], err)
		}
	}
	if winner == "" {
		t.Fatal("expected one driver to win")
	}

	stored, _ := f.rides.GetByID(ctx, ride.ID)
	if !stored.Driver.Is(winner) {
		t.Errorf("expected stored driver %s, got %+v", winner, stored.Driver)
	}
}

func TestAcceptRide_SameDriverConcurrentRides_OneWins(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	rides := []*domain.Ride{f.request(t, "rider-1", 1), f.request(t, "rider-2", 1), f.request(t, "rider-3", 1)}

	var wg sync.WaitGroup
	errs := make([]error, len(rides))
	for i, ride := range rides {
		wg.Add(1)
		go func(i int, rideID string) {
			defer wg.Done()
			_, errs[i] = f.svc.AcceptRide(ctx, driver("driver-1"), rideID)
		}(i, ride.ID)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		var active *ActiveRideError
		if !errors.As(err, &active) {
			t.Errorf("expected ActiveRideError, got %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("expected exactly one accepted ride, got %d", wins)
	}
}

func TestAcceptAndCancel_Race(t *testing.T) {
	t.Parallel()

	for i := 0; i < 20; i++ {
		f := newFixture(t)
		ctx := context.Background()
		ride := f.request(t, "rider-1", 1)

		var wg sync.WaitGroup
		var acceptErr, cancelErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, acceptErr = f.svc.AcceptRide(ctx, driver("driver-1"), ride.ID)
		}()
		go func() {
			defer wg.Done()
			_, cancelErr = f.svc.CancelRide(ctx, rider("rider-1"), ride.ID)
		}()
		wg.Wait()

		if (acceptErr == nil) == (cancelErr == nil) {
			t.Fatalf("expected exactly one winner, got accept=%v cancel=%v", acceptErr, cancelErr)
		}
		stored, _ := f.rides.GetByID(ctx, ride.ID)
		switch {
		case acceptErr == nil && stored.Status != domain.RideStatusAccepted:
			t.Errorf("accept won but status is %s", stored.Status)
		case cancelErr == nil && stored.Status != domain.RideStatusCancelled:
			t.Errorf("cancel won but status is %s", stored.Status)
		}
	}
}

// ──────────────────────────────────────────────
// READ PATH
// ──────────────────────────────────────────────

func TestGetRide_Visibility(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	ride := f.request(t, "rider-1", 3)

	testCases := []struct {
		name    string
		caller  domain.Caller
		wantErr error
	}{
		{"owner", rider("rider-1"), nil},
		{"other rider", rider("rider-2"), ErrForbidden},
		{"any driver while requested", driver("driver-2"), nil},
		{"admin", admin, nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.GetRide(ctx, tc.caller, ride.ID)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	_, _ = f.svc.AcceptRide(ctx, driver("driver-1"), ride.ID)
	if _, err := f.svc.GetRide(ctx, driver("driver-2"), ride.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected unassigned driver to lose visibility, got %v", err)
	}
	if _, err := f.svc.GetRide(ctx, driver("driver-1"), ride.ID); err != nil {
		t.Errorf("expected assigned driver to see the ride, got %v", err)
	}
	if _, err := f.svc.GetRide(ctx, admin, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestGetRide_ReadThroughCache(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	ride := f.request(t, "rider-1", 3)

	_, _ = f.svc.GetRide(ctx, rider("rider-1"), ride.ID)
	_, _ = f.svc.GetRide(ctx, rider("rider-1"), ride.ID)
	if f.cache.hits != 1 {
		t.Errorf("expected one cache hit, got %d", f.cache.hits)
	}

	_, _ = f.svc.AcceptRide(ctx, driver("driver-1"), ride.ID)
	if got := f.cache.status(ride.ID); got != domain.RideStatusAccepted {
		t.Errorf("expected the accepted ride to be written through, got %q", got)
	}

	got, _ := f.svc.GetRide(ctx, rider("rider-1"), ride.ID)
	if got.Status != domain.RideStatusAccepted {
		t.Errorf("expected fresh status ACCEPTED, got %s", got.Status)
	}
}

func TestGetRide_StaleReadDoesNotOverwriteCommit(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	ride := f.request(t, "rider-1", 3)

	// The accept commits after GetRide loaded the REQUESTED ride but before
	// GetRide writes it to the cache.
	cache := &interleavingRideCache{fakeRideCache: newFakeRideCache()}
	svc := NewRideService(f.rides, f.users, f.drivers, NewFlatRateFare(DefaultFareRate), cache, nil, nil).WithClock(f.clock.Now)
	cache.beforeSet = func() {
		if _, err := svc.AcceptRide(ctx, driver("driver-1"), ride.ID); err != nil {
			t.Errorf("accept: %v", err)
		}
	}

	stale, err := svc.GetRide(ctx, rider("rider-1"), ride.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stale.Status != domain.RideStatusRequested {
		t.Fatalf("expected the in-flight read to see REQUESTED, got %s", stale.Status)
	}

	if got := cache.status(ride.ID); got != domain.RideStatusAccepted {
		t.Errorf("expected the cache to keep ACCEPTED, got %q", got)
	}
	got, err := svc.GetRide(ctx, driver("driver-2"), ride.ID)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("expected an accepted ride to be hidden from other drivers, got %+v %v", got, err)
	}
}

func TestNotifications_PublishFailureDoesNotFailTransition(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	ride := f.request(t, "rider-1", 3)
	if _, err := f.svc.AcceptRide(context.Background(), driver("driver-1"), ride.ID); err != nil {
		t.Errorf("expected transition to succeed, got %v", err)
	}
}
