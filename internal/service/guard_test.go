package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"ridecore/internal/domain"
	"ridecore/internal/repository/memory"
)

func TestFlatRateFare(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		rate, distance, want float64
	}{
		{5, 10, 50},
		{5, 0.5, 2.5},
		{0, 10, 50},
		{-1, 2, 10},
		{7.5, 2, 15},
	}
	for _, tc := range testCases {
		if got := NewFlatRateFare(tc.rate).Fare(tc.distance); got != tc.want {
			t.Errorf("rate %v distance %v: expected %v, got %v", tc.rate, tc.distance, tc.want, got)
		}
	}
}

func TestGuards(t *testing.T) {
	t.Parallel()
	rides := memory.NewRideRepository()
	ctx := context.Background()

	seed := func(id, riderID, driverID string, status domain.RideStatus) {
		ride := &domain.Ride{ID: id, RiderID: riderID, Status: status, CreatedAt: time.Now(), Timestamps: domain.TransitionTimestamps{}}
		if driverID != "" {
			ride.Driver = domain.AssignedTo(driverID)
		}
		if err := rides.Create(ctx, ride); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	seed("r1", "rider-done", "driver-done", domain.RideStatusCompleted)
	seed("r2", "rider-transit", "driver-transit", domain.RideStatusInTransit)
	seed("r3", "rider-waiting", "", domain.RideStatusRequested)
	seed("r4", "rider-rejected", "", domain.RideStatusRejected)

	riders := NewRiderExclusivityGuard(rides)
	drivers := NewDriverAssignmentGuard(rides)

	testCases := []struct {
		name     string
		check    func(context.Context, string) error
		id       string
		wantRide string
	}{
		{"rider with completed ride", riders.Check, "rider-done", ""},
		{"rider with rejected ride", riders.Check, "rider-rejected", ""},
		{"rider in transit", riders.Check, "rider-transit", "r2"},
		{"rider waiting", riders.Check, "rider-waiting", "r3"},
		{"unknown rider", riders.Check, "nobody", ""},
		{"driver with completed ride", drivers.Check, "driver-done", ""},
		{"driver in transit", drivers.Check, "driver-transit", "r2"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.check(ctx, tc.id)
			if tc.wantRide == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			var active *ActiveRideError
			if !errors.As(err, &active) || active.RideID != tc.wantRide {
				t.Errorf("expected active ride %s, got %v", tc.wantRide, err)
			}
		})
	}
}
