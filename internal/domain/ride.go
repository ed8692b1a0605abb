package domain

import "time"

// RideStatus represents the current status of a ride.
type RideStatus string

const (
	RideStatusRequested RideStatus = "requested"
	RideStatusScheduled RideStatus = "scheduled"
	RideStatusAccepted  RideStatus = "accepted"
	RideStatusArrived   RideStatus = "arrived"
	RideStatusStarted   RideStatus = "started"
	RideStatusCompleted RideStatus = "completed"
	RideStatusCancelled RideStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s RideStatus) Valid() bool {
	switch s {
	case RideStatusRequested, RideStatusScheduled, RideStatusAccepted,
		RideStatusArrived, RideStatusStarted, RideStatusCompleted, RideStatusCancelled:
		return true
	}
	return false
}

// IsOpen reports whether the ride is still waiting for a driver.
func (s RideStatus) IsOpen() bool {
	return s == RideStatusRequested || s == RideStatusScheduled
}

// IsTerminal reports whether no further transition is possible.
func (s RideStatus) IsTerminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

// HasDriver reports whether a ride in this status must carry an assigned driver.
func (s RideStatus) HasDriver() bool {
	switch s {
	case RideStatusAccepted, RideStatusArrived, RideStatusStarted, RideStatusCompleted:
		return true
	}
	return false
}

// CanAdvanceTo reports whether next is a legal driver-progress transition from s.
// Cancellation is handled separately and is not covered here.
func (s RideStatus) CanAdvanceTo(next RideStatus) bool {
	switch s {
	case RideStatusAccepted:
		return next == RideStatusArrived || next == RideStatusStarted
	case RideStatusArrived:
		return next == RideStatusStarted
	case RideStatusStarted:
		return next == RideStatusCompleted
	}
	return false
}

// PaymentStatus represents whether the fare of a ride has been settled.
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
)

// Ride represents one customer-to-driver trip and its lifecycle.
type Ride struct {
	ID                 string
	CustomerID         string
	DriverID           string // empty until accepted
	Pickup             Place
	Dropoff            Place
	VehicleType        VehicleType
	Fare               float64
	DistanceKm         float64
	Status             RideStatus
	OTP                string // set between accept and verification
	AcceptedAt         time.Time
	StartTime          time.Time
	EndTime            time.Time
	ScheduledFor       time.Time
	PaymentStatus      PaymentStatus
	CancellationReason string
	CancelledAt        time.Time
	Rating             int
	Review             string
	ChatSessionID      string
	CreatedAt          time.Time
}

// IsParticipant reports whether userID is the ride's customer or assigned driver.
func (r *Ride) IsParticipant(userID string) bool {
	if userID == "" {
		return false
	}
	return r.CustomerID == userID || (r.DriverID != "" && r.DriverID == userID)
}

// IsAssignedDriver reports whether userID is the ride's assigned driver.
func (r *Ride) IsAssignedDriver(userID string) bool {
	return r.DriverID != "" && r.DriverID == userID
}
