package domain

import "time"

// Driver is the driver profile attached to a user account. ID is the user's ID.
type Driver struct {
	ID               string
	Username         string
	VehicleType      VehicleType
	VehicleNumber    string
	UPIID            string
	IsOnline         bool
	CurrentLocation  *Location
	Rating           float64
	CompletedTrips   int
	OutstandingFine  float64
	ProfileCompleted bool
	RejectionReason  string
	CreatedAt        time.Time
}

// DefaultDriverRating is the rating a driver starts with.
const DefaultDriverRating = 5.0

// CanTakeRides reports whether the driver may be assigned new rides.
func (d *Driver) CanTakeRides() bool {
	return d.IsOnline && d.ProfileCompleted && d.OutstandingFine == 0
}
