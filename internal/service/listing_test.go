package service

import (
	"context"
	"errors"
	"testing"

	"ridecore/internal/domain"
	"ridecore/internal/query"
)

func TestRiderRideHistory_CompletedThisMonth(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	for _, distance := range []float64{1, 2, 3} {
		f.complete(t, "rider-1", "driver-1", distance)
	}
	open := f.request(t, "rider-1", 4)
	f.request(t, "rider-2", 5)

	page, err := f.svc.RiderRideHistory(ctx, rider("rider-1"), "rider-1", query.Params{
		"status":    "COMPLETED",
		"dateRange": "month",
		"limit":     "2",
		"fields":    "fare,status",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := query.Meta{Page: 1, Limit: 2, TotalPage: 2, TotalDocs: 3}
	if page.Meta != want {
		t.Errorf("expected meta %+v, got %+v", want, page.Meta)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 rides, got %d", len(page.Items))
	}
	// Newest first.
	if page.Items[0].Fare != 15 || page.Items[1].Fare != 10 {
		t.Errorf("expected fares 15 then 10, got %v and %v", page.Items[0].Fare, page.Items[1].Fare)
	}
	for _, ride := range page.Items {
		if ride.ID == open.ID || ride.RiderID != "rider-1" {
			t.Errorf("unexpected ride %+v", ride)
		}
	}
	if len(page.Fields) != 2 {
		t.Errorf("expected projection fields, got %v", page.Fields)
	}
}

func TestRideListings_Scoping(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	done := f.complete(t, "rider-1", "driver-1", 2)
	waiting := f.request(t, "rider-2", 6)

	requested, err := f.svc.ListRequestedRides(ctx, driver("driver-2"), query.Params{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(requested.Items) != 1 || requested.Items[0].ID != waiting.ID {
		t.Errorf("expected only the waiting ride, got %v", requested.Items)
	}

	// The forced status wins over a caller-supplied filter.
	requested, _ = f.svc.ListRequestedRides(ctx, driver("driver-2"), query.Params{"status": "COMPLETED"})
	if len(requested.Items) != 1 || requested.Items[0].ID != waiting.ID {
		t.Errorf("expected status filter to be overridden, got %v", requested.Items)
	}

	history, _ := f.svc.DriverRideHistory(ctx, driver("driver-1"), "driver-1", query.Params{})
	if len(history.Items) != 1 || history.Items[0].ID != done.ID {
		t.Errorf("expected driver history to hold the completed ride, got %v", history.Items)
	}

	all, _ := f.svc.ListRides(ctx, admin, query.Params{"searchTerm": "airport"})
	if all.Meta.TotalDocs != 2 {
		t.Errorf("expected 2 rides matching search, got %d", all.Meta.TotalDocs)
	}
}

func TestRideListings_Forbidden(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	testCases := []struct {
		name string
		call func() error
	}{
		{"rider lists all rides", func() error {
			_, err := f.svc.ListRides(ctx, rider("rider-1"), query.Params{})
			return err
		}},
		{"rider browses requested rides", func() error {
			_, err := f.svc.ListRequestedRides(ctx, rider("rider-1"), query.Params{})
			return err
		}},
		{"rider reads another history", func() error {
			_, err := f.svc.RiderRideHistory(ctx, rider("rider-1"), "rider-2", query.Params{})
			return err
		}},
		{"driver reads another history", func() error {
			_, err := f.svc.DriverRideHistory(ctx, driver("driver-1"), "driver-2", query.Params{})
			return err
		}},
		{"driver reads another's earnings", func() error {
			_, err := f.svc.DriverEarnings(ctx, driver("driver-1"), "driver-2")
			return err
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.call(); !errors.Is(err, ErrForbidden) {
				t.Errorf("expected forbidden, got %v", err)
			}
		})
	}
}

func TestDriverEarnings(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.complete(t, "rider-1", "driver-1", 2)
	f.complete(t, "rider-2", "driver-1", 4)
	f.complete(t, "rider-3", "driver-2", 8)
	pending := f.request(t, "rider-1", 10)
	_, _ = f.svc.AcceptRide(ctx, driver("driver-1"), pending.ID)

	earnings, err := f.svc.DriverEarnings(ctx, driver("driver-1"), "driver-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if earnings.CompletedRides != 2 || earnings.TotalFare != 30 {
		t.Errorf("expected 2 rides worth 30, got %d worth %v", earnings.CompletedRides, earnings.TotalFare)
	}
	for _, ride := range earnings.Rides {
		if ride.Status != domain.RideStatusCompleted {
			t.Errorf("expected only completed rides, got %s", ride.Status)
		}
	}

	if _, err := f.svc.DriverEarnings(ctx, admin, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
