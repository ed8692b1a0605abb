package repository

import (
	"context"
	"time"

	"cabride/internal/domain"
)

// UserRepository defines the persistence operations for user accounts.
type UserRepository interface {
	// Create adds a new user. Returns ErrDuplicate when the email is taken.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetAll retrieves all users.
	GetAll(ctx context.Context) ([]*domain.User, error)

	// AddFine adds amount to the user's outstanding fine.
	AddFine(ctx context.Context, id string, amount float64) error

	// ClearFine deducts up to amount from the user's fine and returns the amount deducted.
	ClearFine(ctx context.Context, id string, amount float64) (float64, error)

	// SetSuspendedUntil sets or clears (zero time) the suspension window.
	SetSuspendedUntil(ctx context.Context, id string, until time.Time) error

	// SetDriverFlag sets whether the account may act as a driver.
	SetDriverFlag(ctx context.Context, id string, isDriver bool) error
}
