package domain

import (
	"strings"
	"time"
)

// Role represents the role a user acts under.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleRider  Role = "RIDER"
	RoleDriver Role = "DRIVER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleRider || r == RoleDriver
}

// AccountStatus represents whether a user may act at all.
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "ACTIVE"
	AccountStatusInactive  AccountStatus = "INACTIVE"
	AccountStatusBlocked   AccountStatus = "BLOCKED"
	AccountStatusSuspended AccountStatus = "SUSPENDED"
)

// User represents a rider (or any account) in the system.
type User struct {
	ID            string
	Name          string
	Email         string
	Phone         string
	Address       string
	Role          Role
	AccountStatus AccountStatus
	IsVerified    bool
	Rides         []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasPhone reports whether the user can be contacted by phone.
func (u *User) HasPhone() bool {
	return strings.TrimSpace(u.Phone) != ""
}

// Caller is an already authenticated identity invoking an operation.
type Caller struct {
	SubjectID string
	Role      Role
}
