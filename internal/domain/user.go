package domain

import "time"

// Role is the capability class carried on an authenticated principal.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleDriver   Role = "driver"
	RoleAdmin    Role = "admin"
)

// User represents an account: customer, driver or admin.
type User struct {
	ID              string
	Username        string
	Email           string
	PasswordHash    string
	IsDriver        bool
	Role            Role
	OutstandingFine float64
	SuspendedUntil  time.Time
	CreatedAt       time.Time
}

// IsSuspended reports whether the account is suspended at now.
func (u *User) IsSuspended(now time.Time) bool {
	return !u.SuspendedUntil.IsZero() && now.Before(u.SuspendedUntil)
}
