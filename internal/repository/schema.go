package repository

import (
	"ridecore/internal/domain"
	"ridecore/internal/query"
)

// Public field names shared by listings, filters and storage adapters.
const (
	RideFieldRiderID       = "riderId"
	RideFieldDriverID      = "driverId"
	RideFieldPickup        = "pickup"
	RideFieldDestination   = "destination"
	RideFieldStatus        = "status"
	RideFieldPaymentMethod = "paymentMethod"

	UserFieldName  = "name"
	UserFieldEmail = "email"

	DriverFieldLicenseNumber = "licenseNumber"
	DriverFieldVehicleType   = "vehicleType"
	DriverFieldVehicleModel  = "vehicleModel"
	DriverFieldPlateNumber   = "plateNumber"
)

// RideSchema exposes ride attributes to the query engine.
var RideSchema = query.NewSchema(
	query.Field[*domain.Ride]{Name: query.FieldID, Column: "id", Kind: query.KindString,
		Value: func(r *domain.Ride) any { return r.ID }},
	query.Field[*domain.Ride]{Name: RideFieldRiderID, Column: "rider_id", Kind: query.KindString,
		Value: func(r *domain.Ride) any { return r.RiderID }},
	query.Field[*domain.Ride]{Name: RideFieldDriverID, Column: "driver_id", Kind: query.KindString,
		Value: func(r *domain.Ride) any {
			if id, ok := r.Driver.DriverID(); ok {
				return id
			}
			return nil
		}},
	query.Field[*domain.Ride]{Name: RideFieldPickup, Column: "pickup", Kind: query.KindString,
		Value: func(r *domain.Ride) any { return r.Pickup }},
	query.Field[*domain.Ride]{Name: RideFieldDestination, Column: "destination", Kind: query.KindString,
		Value: func(r *domain.Ride) any { return r.Destination }},
	query.Field[*domain.Ride]{Name: "distance", Column: "distance", Kind: query.KindNumber,
		Value: func(r *domain.Ride) any { return r.Distance }},
	query.Field[*domain.Ride]{Name: query.FieldFare, Column: "fare", Kind: query.KindNumber,
		Value: func(r *domain.Ride) any { return r.Fare }},
	query.Field[*domain.Ride]{Name: RideFieldPaymentMethod, Column: "payment_method", Kind: query.KindString,
		Value: func(r *domain.Ride) any { return string(r.PaymentMethod) }},
	query.Field[*domain.Ride]{Name: RideFieldStatus, Column: "status", Kind: query.KindString,
		Value: func(r *domain.Ride) any { return string(r.Status) }},
	query.Field[*domain.Ride]{Name: "transitionTimestamps", Column: "transition_timestamps", Kind: query.KindObject,
		Value: func(r *domain.Ride) any { return r.Timestamps.Clone() }},
	query.Field[*domain.Ride]{Name: query.FieldCreatedAt, Column: "created_at", Kind: query.KindTime,
		Value: func(r *domain.Ride) any { return r.CreatedAt }},
	query.Field[*domain.Ride]{Name: "updatedAt", Column: "updated_at", Kind: query.KindTime,
		Value: func(r *domain.Ride) any { return r.UpdatedAt }},
)

// RideSearchFields are matched by searchTerm on ride listings.
var RideSearchFields = []string{RideFieldPickup, RideFieldDestination}

// UserSchema exposes user attributes to the query engine.
var UserSchema = query.NewSchema(
	query.Field[*domain.User]{Name: query.FieldID, Column: "id", Kind: query.KindString,
		Value: func(u *domain.User) any { return u.ID }},
	query.Field[*domain.User]{Name: UserFieldName, Column: "name", Kind: query.KindString,
		Value: func(u *domain.User) any { return u.Name }},
	query.Field[*domain.User]{Name: UserFieldEmail, Column: "email", Kind: query.KindString,
		Value: func(u *domain.User) any { return u.Email }},
	query.Field[*domain.User]{Name: "phone", Column: "phone", Kind: query.KindString,
		Value: func(u *domain.User) any { return u.Phone }},
	query.Field[*domain.User]{Name: "address", Column: "address", Kind: query.KindString,
		Value: func(u *domain.User) any { return u.Address }},
	query.Field[*domain.User]{Name: "role", Column: "role", Kind: query.KindString,
		Value: func(u *domain.User) any { return string(u.Role) }},
	query.Field[*domain.User]{Name: "accountStatus", Column: "account_status", Kind: query.KindString,
		Value: func(u *domain.User) any { return string(u.AccountStatus) }},
	query.Field[*domain.User]{Name: "isVerified", Column: "is_verified", Kind: query.KindBool,
		Value: func(u *domain.User) any { return u.IsVerified }},
	query.Field[*domain.User]{Name: "rides", Column: "rides", Kind: query.KindObject,
		Value: func(u *domain.User) any { return append([]string{}, u.Rides...) }},
	query.Field[*domain.User]{Name: query.FieldCreatedAt, Column: "created_at", Kind: query.KindTime,
		Value: func(u *domain.User) any { return u.CreatedAt }},
	query.Field[*domain.User]{Name: "updatedAt", Column: "updated_at", Kind: query.KindTime,
		Value: func(u *domain.User) any { return u.UpdatedAt }},
)

// UserSearchFields are matched by searchTerm on user listings.
var UserSearchFields = []string{UserFieldName, UserFieldEmail}

// DriverSchema exposes driver profile attributes to the query engine.
var DriverSchema = query.NewSchema(
	query.Field[*domain.Driver]{Name: query.FieldID, Column: "id", Kind: query.KindString,
		Value: func(d *domain.Driver) any { return d.ID }},
	query.Field[*domain.Driver]{Name: DriverFieldLicenseNumber, Column: "license_number", Kind: query.KindString,
		Value: func(d *domain.Driver) any { return d.LicenseNumber }},
	query.Field[*domain.Driver]{Name: DriverFieldVehicleType, Column: "vehicle_type", Kind: query.KindString,
		Value: func(d *domain.Driver) any { return string(d.Vehicle.Type) }},
	query.Field[*domain.Driver]{Name: DriverFieldVehicleModel, Column: "vehicle_model", Kind: query.KindString,
		Value: func(d *domain.Driver) any { return d.Vehicle.Model }},
	query.Field[*domain.Driver]{Name: DriverFieldPlateNumber, Column: "plate_number", Kind: query.KindString,
		Value: func(d *domain.Driver) any { return d.Vehicle.PlateNumber }},
	query.Field[*domain.Driver]{Name: "applicationStatus", Column: "application_status", Kind: query.KindString,
		Value: func(d *domain.Driver) any { return string(d.ApplicationStatus) }},
	query.Field[*domain.Driver]{Name: "accountStatus", Column: "account_status", Kind: query.KindString,
		Value: func(d *domain.Driver) any { return string(d.AccountStatus) }},
	query.Field[*domain.Driver]{Name: "availability", Column: "availability", Kind: query.KindString,
		Value: func(d *domain.Driver) any { return string(d.Availability) }},
	query.Field[*domain.Driver]{Name: "completedRides", Column: "completed_rides", Kind: query.KindObject,
		Value: func(d *domain.Driver) any { return append([]string{}, d.CompletedRides...) }},
	query.Field[*domain.Driver]{Name: query.FieldCreatedAt, Column: "created_at", Kind: query.KindTime,
		Value: func(d *domain.Driver) any { return d.CreatedAt }},
	query.Field[*domain.Driver]{Name: "updatedAt", Column: "updated_at", Kind: query.KindTime,
		Value: func(d *domain.Driver) any { return d.UpdatedAt }},
)

// DriverSearchFields are matched by searchTerm on driver listings.
var DriverSearchFields = []string{DriverFieldLicenseNumber, DriverFieldVehicleType, DriverFieldPlateNumber, DriverFieldVehicleModel}
