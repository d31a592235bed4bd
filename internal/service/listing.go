package service

import (
	"context"
	"time"

	"ridecore/internal/domain"
	"ridecore/internal/query"
	"ridecore/internal/repository"
)

// Page is one page of a listing together with its metadata. Fields is the
// requested projection, applied when the page is rendered.
type Page[T any] struct {
	Items  []T
	Fields []string
	Meta   query.Meta
}

// listQuery composes every QueryEngine step for a listing endpoint.
func listQuery(params query.Params, now func() time.Time, searchFields ...string) query.Query {
	return query.NewBuilder(params).
		WithClock(now).
		Filter().
		DateRange().
		Search(searchFields...).
		Select().
		Sort().
		Paginate().
		Build()
}

// list runs q and a count of the same predicates without pagination.
func list[T any](
	ctx context.Context,
	q query.Query,
	find func(context.Context, query.Query) ([]T, error),
	count func(context.Context, query.Query) (int, error),
) (*Page[T], error) {
	items, err := find(ctx, q)
	if err != nil {
		return nil, err
	}
	total, err := count(ctx, q)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return &Page[T]{Items: items, Fields: q.Fields, Meta: query.NewMeta(q, total)}, nil
}

// ListRides lists every ride. Admin only.
func (s *RideService) ListRides(ctx context.Context, caller domain.Caller, params query.Params) (*Page[*domain.Ride], error) {
	if caller.Role != domain.RoleAdmin {
		return nil, forbidden("only admins may list all rides")
	}
	q := listQuery(params, s.now, repository.RideSearchFields...)
	return list(ctx, q, s.rideRepo.Find, s.rideRepo.Count)
}

// ListRequestedRides lists rides waiting for a driver.
func (s *RideService) ListRequestedRides(ctx context.Context, caller domain.Caller, params query.Params) (*Page[*domain.Ride], error) {
	if caller.Role != domain.RoleDriver && caller.Role != domain.RoleAdmin {
		return nil, forbidden("only drivers may browse requested rides")
	}
	q := listQuery(params, s.now, repository.RideSearchFields...).
		Where(repository.RideFieldStatus, string(domain.RideStatusRequested))
	return list(ctx, q, s.rideRepo.Find, s.rideRepo.Count)
}

// RiderRideHistory lists the rides of one rider.
func (s *RideService) RiderRideHistory(ctx context.Context, caller domain.Caller, riderID string, params query.Params) (*Page[*domain.Ride], error) {
	if caller.Role != domain.RoleAdmin && caller.SubjectID != riderID {
		return nil, forbidden("ride history of %s is not visible to %s", riderID, caller.SubjectID)
	}
	q := listQuery(params, s.now, repository.RideSearchFields...).
		Where(repository.RideFieldRiderID, riderID)
	return list(ctx, q, s.rideRepo.Find, s.rideRepo.Count)
}

// DriverRideHistory lists the rides assigned to one driver.
func (s *RideService) DriverRideHistory(ctx context.Context, caller domain.Caller, driverID string, params query.Params) (*Page[*domain.Ride], error) {
	if caller.Role != domain.RoleAdmin && caller.SubjectID != driverID {
		return nil, forbidden("ride history of %s is not visible to %s", driverID, caller.SubjectID)
	}
	q := listQuery(params, s.now, repository.RideSearchFields...).
		Where(repository.RideFieldDriverID, driverID)
	return list(ctx, q, s.rideRepo.Find, s.rideRepo.Count)
}

// Earnings summarises the completed rides of a driver.
type Earnings struct {
	DriverID       string
	CompletedRides int
	TotalFare      float64
	Rides          []*domain.Ride
}

// DriverEarnings sums the fares of a driver's completed rides.
func (s *RideService) DriverEarnings(ctx context.Context, caller domain.Caller, driverID string) (*Earnings, error) {
	if caller.Role != domain.RoleAdmin && caller.SubjectID != driverID {
		return nil, forbidden("earnings of %s are not visible to %s", driverID, caller.SubjectID)
	}
	if _, err := s.driverRepo.GetByID(ctx, driverID); err != nil {
		return nil, notFound(err, EntityDriver, driverID)
	}

	q := query.Query{Sort: []query.SortKey{{Field: query.FieldCreatedAt, Desc: true}}}.
		Where(repository.RideFieldDriverID, driverID).
		Where(repository.RideFieldStatus, string(domain.RideStatusCompleted))
	rides, err := s.rideRepo.Find(ctx, q)
	if err != nil {
		return nil, err
	}

	earnings := &Earnings{DriverID: driverID, Rides: rides}
	if earnings.Rides == nil {
		earnings.Rides = []*domain.Ride{}
	}
	for _, ride := range rides {
		earnings.CompletedRides++
		earnings.TotalFare += ride.Fare
	}
	return earnings, nil
}
