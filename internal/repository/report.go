package repository

import (
	"context"

	"cabride/internal/domain"
)

// ReportRepository defines the persistence operations for participant reports.
type ReportRepository interface {
	// Create persists a report. Returns ErrDuplicate if the reporter already
	// reported this ride.
	Create(ctx context.Context, report *domain.Report) error

	// Exists reports whether reporterID has already reported rideID.
	Exists(ctx context.Context, rideID, reporterID string) (bool, error)

	// GetByID retrieves a report by ID.
	GetByID(ctx context.Context, id string) (*domain.Report, error)

	// GetAll retrieves all reports, newest first.
	GetAll(ctx context.Context) ([]*domain.Report, error)

	// SetResolved sets the resolved flag.
	SetResolved(ctx context.Context, id string, resolved bool) error
}
