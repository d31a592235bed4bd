package domain

import "time"

// RideStatus represents the current status of a ride.
type RideStatus string

const (
	RideStatusRequested RideStatus = "REQUESTED"
	RideStatusAccepted  RideStatus = "ACCEPTED"
	RideStatusRejected  RideStatus = "REJECTED"
	RideStatusCancelled RideStatus = "CANCELLED"
	RideStatusPickedUp  RideStatus = "PICKED_UP"
	RideStatusInTransit RideStatus = "IN_TRANSIT"
	RideStatusCompleted RideStatus = "COMPLETED"
)

// TerminalRideStatuses are the statuses after which no transition is possible.
var TerminalRideStatuses = []RideStatus{
	RideStatusCompleted,
	RideStatusCancelled,
	RideStatusRejected,
}

// OpenRideStatuses are the non-terminal statuses; a rider holds at most one
// ride in any of them.
var OpenRideStatuses = []RideStatus{
	RideStatusRequested,
	RideStatusAccepted,
	RideStatusPickedUp,
	RideStatusInTransit,
}

// ActiveDriverRideStatuses are the statuses in which a ride occupies its driver.
var ActiveDriverRideStatuses = []RideStatus{
	RideStatusAccepted,
	RideStatusPickedUp,
	RideStatusInTransit,
}

// IsTerminal reports whether no further transition is possible from s.
func (s RideStatus) IsTerminal() bool {
	for _, t := range TerminalRideStatuses {
		if s == t {
			return true
		}
	}
	return false
}

// OccupiesDriver reports whether a ride in status s counts against its driver.
func (s RideStatus) OccupiesDriver() bool {
	for _, a := range ActiveDriverRideStatuses {
		if s == a {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known ride status.
func (s RideStatus) Valid() bool {
	switch s {
	case RideStatusRequested, RideStatusAccepted, RideStatusRejected, RideStatusCancelled,
		RideStatusPickedUp, RideStatusInTransit, RideStatusCompleted:
		return true
	}
	return false
}

// StatusStrings converts statuses for use as query operands.
func StatusStrings(statuses []RideStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// PaymentMethod represents the payment method for a ride.
type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "CASH"
	PaymentMethodOnline PaymentMethod = "ONLINE"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCash || m == PaymentMethodOnline
}

// Transition names a step of the ride lifecycle and keys the timestamp map.
type Transition string

const (
	TransitionRequested Transition = "requested"
	TransitionAccepted  Transition = "accepted"
	TransitionRejected  Transition = "rejected"
	TransitionCancelled Transition = "cancelled"
	TransitionPickedUp  Transition = "pickedUp"
	TransitionInTransit Transition = "inTransit"
	TransitionCompleted Transition = "completed"
)

// TransitionTimestamps records when each transition of a ride happened.
// Entries are append-only.
type TransitionTimestamps map[Transition]time.Time

// Record stores when for name unless name was already recorded.
// It reports whether the entry was added.
func (t TransitionTimestamps) Record(name Transition, when time.Time) bool {
	if _, ok := t[name]; ok {
		return false
	}
	t[name] = when
	return true
}

// At returns the instant name was recorded at, if any.
func (t TransitionTimestamps) At(name Transition) (time.Time, bool) {
	when, ok := t[name]
	return when, ok
}

// Clone returns an independent copy.
func (t TransitionTimestamps) Clone() TransitionTimestamps {
	out := make(TransitionTimestamps, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// DriverAssignment is either unassigned or assigned to exactly one driver.
// The zero value is unassigned.
type DriverAssignment struct {
	driverID string
	assigned bool
}

// Unassigned returns an assignment with no driver.
func Unassigned() DriverAssignment {
	return DriverAssignment{}
}

// AssignedTo returns an assignment to driverID.
func AssignedTo(driverID string) DriverAssignment {
	return DriverAssignment{driverID: driverID, assigned: true}
}

// DriverID returns the assigned driver and whether there is one.
func (a DriverAssignment) DriverID() (string, bool) {
	return a.driverID, a.assigned
}

// IsAssigned reports whether a driver has been set.
func (a DriverAssignment) IsAssigned() bool {
	return a.assigned
}

// Is reports whether the assignment is to driverID.
func (a DriverAssignment) Is(driverID string) bool {
	return a.assigned && a.driverID == driverID
}

// Ride represents a ride request and its progress through the lifecycle.
type Ride struct {
	ID            string
	RiderID       string
	Driver        DriverAssignment
	Pickup        string
	Destination   string
	Distance      float64
	Fare          float64
	PaymentMethod PaymentMethod
	Status        RideStatus
	Timestamps    TransitionTimestamps
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Clone returns a deep copy of the ride.
func (r *Ride) Clone() *Ride {
	c := *r
	c.Timestamps = r.Timestamps.Clone()
	return &c
}

// RidePatch describes a single lifecycle transition applied by a conditional write.
type RidePatch struct {
	To         RideStatus
	Transition Transition
	At         time.Time
	// Driver is applied only when the ride has no driver yet.
	Driver DriverAssignment
	// RequireIdleDriver makes the write also require that this driver holds
	// no ride in ActiveDriverRideStatuses.
	RequireIdleDriver string
}
