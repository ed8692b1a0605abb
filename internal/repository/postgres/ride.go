package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"cabride/internal/domain"
	"cabride/internal/repository"
)

const rideColumns = `id, customer_id, driver_id, pickup_address, pickup_lat, pickup_lng,
	dropoff_address, dropoff_lat, dropoff_lng, vehicle_type, fare, distance_km, status, otp,
	accepted_at, start_time, end_time, scheduled_for, payment_status, cancellation_reason,
	cancelled_at, rating, review, chat_session_id, created_at`

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q Querier
}

var _ repository.RideRepository = (*RideRepository)(nil)

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

// NewRideRepositoryWithTx creates a ride repository using a transaction.
func NewRideRepositoryWithTx(tx *sql.Tx) *RideRepository {
	return &RideRepository{q: tx}
}

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (id, customer_id, driver_id, pickup_address, pickup_lat, pickup_lng,
			dropoff_address, dropoff_lat, dropoff_lng, vehicle_type, fare, distance_km, status,
			scheduled_for, payment_status, chat_session_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	paymentStatus := ride.PaymentStatus
	if paymentStatus == "" {
		paymentStatus = domain.PaymentStatusUnpaid
	}

	_, err := r.q.ExecContext(ctx, query,
		ride.ID,
		ride.CustomerID,
		nullString(ride.DriverID),
		ride.Pickup.Address,
		ride.Pickup.Lat,
		ride.Pickup.Lng,
		ride.Dropoff.Address,
		ride.Dropoff.Lat,
		ride.Dropoff.Lng,
		ride.VehicleType,
		ride.Fare,
		ride.DistanceKm,
		ride.Status,
		nullTime(ride.ScheduledFor),
		paymentStatus,
		nullString(ride.ChatSessionID),
		ride.CreatedAt,
	)

	return err
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`
	return r.one(ctx, repository.ErrNotFound, query, id)
}

// Accept assigns a driver to an open, unassigned ride in a single statement.
func (r *RideRepository) Accept(ctx context.Context, id, driverID, otp string, at time.Time) (*domain.Ride, error) {
	query := `
		UPDATE rides
		SET driver_id = $2, status = 'accepted', accepted_at = $3, otp = $4
		WHERE id = $1 AND status IN ('requested', 'scheduled') AND driver_id IS NULL
		RETURNING ` + rideColumns

	return r.one(ctx, repository.ErrConditionFailed, query, id, driverID, at, otp)
}

// ConsumeOTP clears a matching OTP for the assigned driver.
func (r *RideRepository) ConsumeOTP(ctx context.Context, id, driverID, otp string) error {
	query := `
		UPDATE rides SET otp = NULL
		WHERE id = $1 AND driver_id = $2 AND otp = $3 AND status IN ('accepted', 'arrived')
	`

	result, err := r.q.ExecContext(ctx, query, id, driverID, otp)
	if err != nil {
		return err
	}
	return expectOneRow(result, repository.ErrConditionFailed)
}

// Transition moves a ride between statuses, stamping start/end times.
func (r *RideRepository) Transition(ctx context.Context, id string, from, to domain.RideStatus, at time.Time) (*domain.Ride, error) {
	query := `
		UPDATE rides
		SET status = $3,
			start_time = CASE WHEN $3 = 'started' THEN $4 ELSE start_time END,
			end_time = CASE WHEN $3 = 'completed' THEN $4 ELSE end_time END
		WHERE id = $1 AND status = $2 AND ($3 <> 'started' OR otp IS NULL)
		RETURNING ` + rideColumns

	return r.one(ctx, repository.ErrConditionFailed, query, id, from, to, at)
}

// Cancel sets a ride to cancelled if it is still in the expected status.
// The OTP is cleared with it.
func (r *RideRepository) Cancel(ctx context.Context, id string, from domain.RideStatus, reason string, at time.Time) (*domain.Ride, error) {
	query := `
		UPDATE rides
		SET status = 'cancelled', cancellation_reason = $3, cancelled_at = $4, otp = NULL
		WHERE id = $1 AND status = $2
		RETURNING ` + rideColumns

	return r.one(ctx, repository.ErrConditionFailed, query, id, from, nullString(reason), at)
}

// MarkPaid marks a completed ride as paid.
func (r *RideRepository) MarkPaid(ctx context.Context, id string) error {
	query := `UPDATE rides SET payment_status = 'paid' WHERE id = $1 AND status = 'completed'`

	result, err := r.q.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return expectOneRow(result, repository.ErrConditionFailed)
}

// SetRating stores the rating and review of a completed ride.
func (r *RideRepository) SetRating(ctx context.Context, id string, rating int, review string) error {
	query := `
		UPDATE rides
		SET rating = COALESCE($2, rating), review = COALESCE($3, review)
		WHERE id = $1 AND status = 'completed'
	`

	var ratingArg sql.NullInt64
	if rating > 0 {
		ratingArg = sql.NullInt64{Int64: int64(rating), Valid: true}
	}

	result, err := r.q.ExecContext(ctx, query, id, ratingArg, nullString(review))
	if err != nil {
		return err
	}
	return expectOneRow(result, repository.ErrConditionFailed)
}

// ListOpen returns unassigned requested rides created since the given time.
func (r *RideRepository) ListOpen(ctx context.Context, vehicleType domain.VehicleType, since time.Time) ([]*domain.Ride, error) {
	query := `
		SELECT ` + rideColumns + ` FROM rides
		WHERE status = 'requested' AND driver_id IS NULL AND created_at >= $1
			AND ($2 = '' OR vehicle_type = $2)
		ORDER BY created_at ASC
	`
	return r.many(ctx, query, since, vehicleType)
}

// ListByCustomer returns a customer's rides, newest first.
func (r *RideRepository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]*domain.Ride, error) {
	query := `
		SELECT ` + rideColumns + ` FROM rides
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT NULLIF($2::int, 0)
	`
	if limit < 0 {
		limit = 0
	}
	return r.many(ctx, query, customerID, limit)
}

// ListByDriver returns rides assigned to a driver, newest first.
func (r *RideRepository) ListByDriver(ctx context.Context, driverID string) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE driver_id = $1 ORDER BY created_at DESC`
	return r.many(ctx, query, driverID)
}

// ListScheduledForDriver returns a driver's upcoming scheduled rides.
func (r *RideRepository) ListScheduledForDriver(ctx context.Context, driverID string, after time.Time) ([]*domain.Ride, error) {
	query := `
		SELECT ` + rideColumns + ` FROM rides
		WHERE driver_id = $1 AND scheduled_for >= $2 AND status NOT IN ('completed', 'cancelled')
		ORDER BY scheduled_for ASC
	`
	return r.many(ctx, query, driverID, after)
}

// ActiveForDriver returns the driver's in-progress ride. Rides scheduled after
// now do not count.
func (r *RideRepository) ActiveForDriver(ctx context.Context, driverID string, now time.Time) (*domain.Ride, error) {
	query := `
		SELECT ` + rideColumns + ` FROM rides
		WHERE driver_id = $1 AND status IN ('accepted', 'arrived', 'started')
			AND (scheduled_for IS NULL OR scheduled_for <= $2)
		ORDER BY accepted_at DESC
		LIMIT 1
	`
	return r.one(ctx, repository.ErrNotFound, query, driverID, now)
}

// DriverRatingStats returns the average rating over the driver's rated rides.
func (r *RideRepository) DriverRatingStats(ctx context.Context, driverID string) (float64, int, error) {
	query := `SELECT COALESCE(AVG(rating), 0), COUNT(rating) FROM rides WHERE driver_id = $1 AND rating IS NOT NULL`

	var avg float64
	var count int
	if err := r.q.QueryRowContext(ctx, query, driverID).Scan(&avg, &count); err != nil {
		return 0, 0, err
	}
	return avg, count, nil
}

func (r *RideRepository) one(ctx context.Context, noRows error, query string, args ...any) (*domain.Ride, error) {
	ride, err := scanRide(r.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, noRows
		}
		return nil, err
	}
	return ride, nil
}

func (r *RideRepository) many(ctx context.Context, query string, args ...any) ([]*domain.Ride, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

func scanRide(row rowScanner) (*domain.Ride, error) {
	var ride domain.Ride
	var driverID, otp, cancellationReason, review, chatSessionID sql.NullString
	var acceptedAt, startTime, endTime, scheduledFor, cancelledAt sql.NullTime
	var rating sql.NullInt64

	err := row.Scan(
		&ride.ID,
		&ride.CustomerID,
		&driverID,
		&ride.Pickup.Address,
		&ride.Pickup.Lat,
		&ride.Pickup.Lng,
		&ride.Dropoff.Address,
		&ride.Dropoff.Lat,
		&ride.Dropoff.Lng,
		&ride.VehicleType,
		&ride.Fare,
		&ride.DistanceKm,
		&ride.Status,
		&otp,
		&acceptedAt,
		&startTime,
		&endTime,
		&scheduledFor,
		&ride.PaymentStatus,
		&cancellationReason,
		&cancelledAt,
		&rating,
		&review,
		&chatSessionID,
		&ride.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	ride.DriverID = driverID.String
	ride.OTP = otp.String
	ride.CancellationReason = cancellationReason.String
	ride.Review = review.String
	ride.ChatSessionID = chatSessionID.String
	ride.Rating = int(rating.Int64)
	if acceptedAt.Valid {
		ride.AcceptedAt = acceptedAt.Time
	}
	if startTime.Valid {
		ride.StartTime = startTime.Time
	}
	if endTime.Valid {
		ride.EndTime = endTime.Time
	}
	if scheduledFor.Valid {
		ride.ScheduledFor = scheduledFor.Time
	}
	if cancelledAt.Valid {
		ride.CancelledAt = cancelledAt.Time
	}

	return &ride, nil
}
