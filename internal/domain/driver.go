package domain

import "time"

// ApplicationStatus represents the review state of a driver application.
type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "PENDING"
	ApplicationStatusApproved ApplicationStatus = "APPROVED"
	ApplicationStatusRejected ApplicationStatus = "REJECTED"
)

// Reviewed reports whether s is a final review outcome.
func (s ApplicationStatus) Reviewed() bool {
	return s == ApplicationStatusApproved || s == ApplicationStatusRejected
}

// Availability represents whether a driver is taking rides.
type Availability string

const (
	AvailabilityOnline  Availability = "ONLINE"
	AvailabilityOffline Availability = "OFFLINE"
)

// Valid reports whether a is a known availability.
func (a Availability) Valid() bool {
	return a == AvailabilityOnline || a == AvailabilityOffline
}

// VehicleType represents the kind of vehicle a driver operates.
type VehicleType string

const (
	VehicleTypeCar  VehicleType = "CAR"
	VehicleTypeBike VehicleType = "BIKE"
)

// Valid reports whether t is a known vehicle type.
func (t VehicleType) Valid() bool {
	return t == VehicleTypeCar || t == VehicleTypeBike
}

// Vehicle describes the vehicle registered with a driver profile.
type Vehicle struct {
	Type        VehicleType
	Model       string
	PlateNumber string
}

// Driver represents a driver profile. A profile shares its ID with the user
// account that owns it.
type Driver struct {
	ID                string
	LicenseNumber     string
	Vehicle           Vehicle
	ApplicationStatus ApplicationStatus
	AccountStatus     AccountStatus
	Availability      Availability
	CompletedRides    []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CanDrive reports whether the profile is approved and not suspended.
func (d *Driver) CanDrive() bool {
	return d.ApplicationStatus == ApplicationStatusApproved && d.AccountStatus == AccountStatusActive
}
