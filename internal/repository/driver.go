package repository

import (
	"context"

	"cabride/internal/domain"
)

// DriverRepository defines the persistence operations for driver profiles.
type DriverRepository interface {
	// Create adds a new driver profile.
	Create(ctx context.Context, driver *domain.Driver) error

	// GetByID retrieves a driver by user ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// GetAll retrieves all drivers.
	GetAll(ctx context.Context) ([]*domain.Driver, error)

	// ListAvailable retrieves online, verified drivers with a known location.
	ListAvailable(ctx context.Context) ([]*domain.Driver, error)

	// UpdateProfile stores vehicle details and resets verification.
	UpdateProfile(ctx context.Context, driver *domain.Driver) error

	// SetAvailability toggles online status and optionally the current location.
	SetAvailability(ctx context.Context, id string, online bool, loc *domain.Location) error

	// UpdateLocation stores the driver's current location.
	UpdateLocation(ctx context.Context, id string, loc domain.Location) error

	// AddFine adds amount to the driver's outstanding fine.
	AddFine(ctx context.Context, id string, amount float64) error

	// ClearFine deducts up to amount from the driver's fine and returns the amount deducted.
	ClearFine(ctx context.Context, id string, amount float64) (float64, error)

	// SetVerification sets the verification gate and the rejection reason.
	SetVerification(ctx context.Context, id string, verified bool, rejectionReason string) error

	// SetRating stores the driver's running average rating.
	SetRating(ctx context.Context, id string, rating float64) error

	// IncrementCompletedTrips bumps the completed trip counter.
	IncrementCompletedTrips(ctx context.Context, id string) error
}
