package postgres

import (
	"context"
	"database/sql"
	"errors"

	"cabride/internal/domain"
	"cabride/internal/repository"
)

const driverColumns = `d.id, u.username, d.vehicle_type, d.vehicle_number, d.upi_id, d.is_online,
	d.current_lat, d.current_lng, d.rating, d.completed_trips, d.outstanding_fine,
	d.profile_completed, COALESCE(d.rejection_reason, ''), d.created_at`

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

var _ repository.DriverRepository = (*DriverRepository)(nil)

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

// NewDriverRepositoryWithTx creates a driver repository using a transaction.
func NewDriverRepositoryWithTx(tx *sql.Tx) *DriverRepository {
	return &DriverRepository{q: tx}
}

// Create adds a new driver.
func (r *DriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	query := `
		INSERT INTO drivers (id, vehicle_type, vehicle_number, upi_id, rating, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	rating := driver.Rating
	if rating == 0 {
		rating = domain.DefaultDriverRating
	}

	_, err := r.q.ExecContext(ctx, query,
		driver.ID, driver.VehicleType, driver.VehicleNumber, driver.UPIID, rating, driver.CreatedAt)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	return err
}

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers d JOIN users u ON u.id = d.id WHERE d.id = $1`

	driver, err := scanDriver(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return driver, nil
}

// GetAll retrieves all drivers.
func (r *DriverRepository) GetAll(ctx context.Context) ([]*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers d JOIN users u ON u.id = d.id ORDER BY d.created_at`
	return r.many(ctx, query)
}

// ListAvailable retrieves online, verified drivers with a known location.
func (r *DriverRepository) ListAvailable(ctx context.Context) ([]*domain.Driver, error) {
	query := `
		SELECT ` + driverColumns + `
		FROM drivers d JOIN users u ON u.id = d.id
		WHERE d.is_online AND d.profile_completed AND d.current_lat IS NOT NULL
	`
	return r.many(ctx, query)
}

// UpdateProfile stores vehicle details. A new profile must be verified again.
func (r *DriverRepository) UpdateProfile(ctx context.Context, driver *domain.Driver) error {
	query := `
		UPDATE drivers
		SET vehicle_type = $2, vehicle_number = $3, upi_id = $4,
			profile_completed = FALSE, rejection_reason = NULL
		WHERE id = $1
	`

	result, err := r.q.ExecContext(ctx, query, driver.ID, driver.VehicleType, driver.VehicleNumber, driver.UPIID)
	if err != nil {
		return err
	}
	return expectOneRow(result, repository.ErrNotFound)
}

// SetAvailability toggles online status. A nil location keeps the stored one.
func (r *DriverRepository) SetAvailability(ctx context.Context, id string, online bool, loc *domain.Location) error {
	var lat, lng sql.NullFloat64
	if loc != nil {
		lat = sql.NullFloat64{Float64: loc.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: loc.Lng, Valid: true}
	}

	query := `
		UPDATE drivers
		SET is_online = $2,
			current_lat = COALESCE($3, current_lat),
			current_lng = COALESCE($4, current_lng)
		WHERE id = $1
	`

	result, err := r.q.ExecContext(ctx, query, id, online, lat, lng)
	if err != nil {
		return err
	}
	return expectOneRow(result, repository.ErrNotFound)
}

// UpdateLocation stores the driver's current location.
func (r *DriverRepository) UpdateLocation(ctx context.Context, id string, loc domain.Location) error {
	query := `UPDATE drivers SET current_lat = $2, current_lng = $3 WHERE id = $1`

	result, err := r.q.ExecContext(ctx, query, id, loc.Lat, loc.Lng)
	if err != nil {
		return err
	}
	return expectOneRow(result, repository.ErrNotFound)
}

// AddFine adds amount to the driver's outstanding fine.
func (r *DriverRepository) AddFine(ctx context.Context, id string, amount float64) error {
	query := `UPDATE drivers SET outstanding_fine = outstanding_fine + $2 WHERE id = $1`

	result, err := r.q.ExecContext(ctx, query, id, amount)
	if err != nil {
		return err
	}
	return expectOneRow(result, repository.ErrNotFound)
}

// ClearFine deducts up to amount from the outstanding fine and returns the
// amount deducted. Fines added after the charge was priced stay owed.
func (r *DriverRepository) ClearFine(ctx context.Context, id string, amount float64) (float64, error) {
	query := `
		WITH prev AS (SELECT outstanding_fine FROM drivers WHERE id = $1 FOR UPDATE)
		UPDATE drivers SET outstanding_fine = GREATEST(prev.outstanding_fine - $2, 0)
		FROM prev
		WHERE drivers.id = $1
		RETURNING LEAST(prev.outstanding_fine, $2)
	`

	var cleared float64
	if err := r.q.QueryRowContext(ctx, query, id, amount).Scan(&cleared); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		return 0, err
	}
	return cleared, nil
}

// SetVerification sets the verification gate and rejection reason.
func (r *DriverRepository) SetVerification(ctx context.Context, id string, verified bool, rejectionReason string) error {
	query := `UPDATE drivers SET profile_completed = $2, rejection_reason = $3 WHERE id = $1`

	result, err := r.q.ExecContext(ctx, query, id, verified, nullString(rejectionReason))
	if err != nil {
		return err
	}
	return expectOneRow(result, repository.ErrNotFound)
}

// SetRating stores the driver's average rating.
func (r *DriverRepository) SetRating(ctx context.Context, id string, rating float64) error {
	query := `UPDATE drivers SET rating = $2 WHERE id = $1`

	result, err := r.q.ExecContext(ctx, query, id, rating)
	if err != nil {
		return err
	}
	return expectOneRow(result, repository.ErrNotFound)
}

// IncrementCompletedTrips bumps the completed trip counter.
func (r *DriverRepository) IncrementCompletedTrips(ctx context.Context, id string) error {
	query := `UPDATE drivers SET completed_trips = completed_trips + 1 WHERE id = $1`

	result, err := r.q.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return expectOneRow(result, repository.ErrNotFound)
}

func (r *DriverRepository) many(ctx context.Context, query string, args ...any) ([]*domain.Driver, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []*domain.Driver
	for rows.Next() {
		driver, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, driver)
	}
	return drivers, rows.Err()
}

func scanDriver(row rowScanner) (*domain.Driver, error) {
	var driver domain.Driver
	var lat, lng sql.NullFloat64

	err := row.Scan(
		&driver.ID,
		&driver.Username,
		&driver.VehicleType,
		&driver.VehicleNumber,
		&driver.UPIID,
		&driver.IsOnline,
		&lat,
		&lng,
		&driver.Rating,
		&driver.CompletedTrips,
		&driver.OutstandingFine,
		&driver.ProfileCompleted,
		&driver.RejectionReason,
		&driver.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lat.Valid && lng.Valid {
		driver.CurrentLocation = &domain.Location{Lat: lat.Float64, Lng: lng.Float64}
	}
	return &driver, nil
}
