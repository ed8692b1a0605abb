package repository

import (
	"context"
	"time"

	"cabride/internal/domain"
)

// RideRepository defines the persistence operations for rides.
type RideRepository interface {
	// Create persists a new ride.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// Accept assigns driverID to the ride in one conditional update that only
	// matches while the ride is open and has no driver. Returns ErrConditionFailed
	// when the predicate no longer holds.
	Accept(ctx context.Context, id, driverID, otp string, at time.Time) (*domain.Ride, error)

	// ConsumeOTP clears the ride's OTP if it equals otp and driverID is assigned.
	// Returns ErrConditionFailed when nothing matched.
	ConsumeOTP(ctx context.Context, id, driverID, otp string) error

	// Transition moves the ride from one status to another if it is still in from.
	// Moving to started also requires the OTP to be cleared.
	Transition(ctx context.Context, id string, from, to domain.RideStatus, at time.Time) (*domain.Ride, error)

	// Cancel sets the ride to cancelled if it is still in from.
	Cancel(ctx context.Context, id string, from domain.RideStatus, reason string, at time.Time) (*domain.Ride, error)

	// MarkPaid sets the payment status of a completed ride to paid.
	MarkPaid(ctx context.Context, id string) error

	// SetRating stores the customer's rating and review for a completed ride.
	SetRating(ctx context.Context, id string, rating int, review string) error

	// ListOpen returns unassigned requested rides created at or after since,
	// oldest first. An empty vehicleType matches every type.
	ListOpen(ctx context.Context, vehicleType domain.VehicleType, since time.Time) ([]*domain.Ride, error)

	// ListByCustomer returns the customer's rides, newest first. limit <= 0 means no limit.
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]*domain.Ride, error)

	// ListByDriver returns rides assigned to the driver, newest first.
	ListByDriver(ctx context.Context, driverID string) ([]*domain.Ride, error)

	// ListScheduledForDriver returns rides assigned to the driver whose
	// scheduled time is after the given instant, soonest first.
	ListScheduledForDriver(ctx context.Context, driverID string, after time.Time) ([]*domain.Ride, error)

	// ActiveForDriver returns the driver's accepted, arrived or started ride,
	// ignoring rides scheduled after now. Returns ErrNotFound when the driver has none.
	ActiveForDriver(ctx context.Context, driverID string, now time.Time) (*domain.Ride, error)

	// DriverRatingStats returns the mean rating and the count of rated rides for a driver.
	DriverRatingStats(ctx context.Context, driverID string) (float64, int, error)
}
