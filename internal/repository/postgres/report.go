package postgres

import (
	"context"
	"database/sql"
	"errors"

	"cabride/internal/domain"
	"cabride/internal/repository"
)

const reportColumns = `id, ride_id, reporter_id, reported_user_id, reporter_role, reason, is_resolved, created_at`

// ReportRepository is a PostgreSQL implementation of repository.ReportRepository.
type ReportRepository struct {
	q Querier
}

var _ repository.ReportRepository = (*ReportRepository)(nil)

// NewReportRepository creates a new PostgreSQL report repository.
func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{q: db}
}

// Create persists a report.
func (r *ReportRepository) Create(ctx context.Context, report *domain.Report) error {
	query := `
		INSERT INTO reports (id, ride_id, reporter_id, reported_user_id, reporter_role, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.q.ExecContext(ctx, query,
		report.ID, report.RideID, report.ReporterID, report.ReportedUserID,
		report.ReporterRole, report.Reason, report.CreatedAt)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	return err
}

// Exists reports whether reporterID already reported rideID.
func (r *ReportRepository) Exists(ctx context.Context, rideID, reporterID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM reports WHERE ride_id = $1 AND reporter_id = $2)`

	var exists bool
	err := r.q.QueryRowContext(ctx, query, rideID, reporterID).Scan(&exists)
	return exists, err
}

// GetByID retrieves a report by ID.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*domain.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`

	report, err := scanReport(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return report, nil
}

// GetAll retrieves all reports, newest first.
func (r *ReportRepository) GetAll(ctx context.Context) ([]*domain.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports ORDER BY created_at DESC`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*domain.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// SetResolved sets the resolved flag.
func (r *ReportRepository) SetResolved(ctx context.Context, id string, resolved bool) error {
	query := `UPDATE reports SET is_resolved = $2 WHERE id = $1`

	result, err := r.q.ExecContext(ctx, query, id, resolved)
	if err != nil {
		return err
	}
	return expectOneRow(result, repository.ErrNotFound)
}

func scanReport(row rowScanner) (*domain.Report, error) {
	var report domain.Report
	err := row.Scan(
		&report.ID,
		&report.RideID,
		&report.ReporterID,
		&report.ReportedUserID,
		&report.ReporterRole,
		&report.Reason,
		&report.IsResolved,
		&report.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &report, nil
}
