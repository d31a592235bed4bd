package redis

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"ridecore/internal/domain"
)

func TestCachedRide_KeepsDriverAssignment(t *testing.T) {
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	testCases := []struct {
		name   string
		driver domain.DriverAssignment
	}{
		{"unassigned", domain.Unassigned()},
		{"assigned", domain.AssignedTo("driver-1")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ride := &domain.Ride{
				ID:            "ride-1",
				RiderID:       "rider-1",
				Driver:        tc.driver,
				Distance:      10,
				Fare:          50,
				PaymentMethod: domain.PaymentMethodCash,
				Status:        domain.RideStatusAccepted,
				Timestamps: domain.TransitionTimestamps{
					domain.TransitionRequested: now,
					domain.TransitionAccepted:  now.Add(time.Minute),
				},
				CreatedAt: now,
				UpdatedAt: now.Add(time.Minute),
			}

			data, err := json.Marshal(newCachedRide(ride))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var cached CachedRide
			if err := json.Unmarshal(data, &cached); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			got := cached.toDomain()
			if !reflect.DeepEqual(got, ride) {
				t.Errorf("expected %+v, got %+v", ride, got)
			}
		})
	}
}
