package postgres

import (
	"context"
	"database/sql"
	"errors"

	"cabride/internal/domain"
	"cabride/internal/repository"
)

const paymentColumns = `id, user_id, COALESCE(ride_id, ''), purpose, amount, status,
	COALESCE(provider_ref, ''), idempotency_key, created_at`

// PaymentRepository is a PostgreSQL implementation of repository.PaymentRepository.
type PaymentRepository struct {
	q Querier
}

var _ repository.PaymentRepository = (*PaymentRepository)(nil)

// NewPaymentRepository creates a new PostgreSQL payment repository.
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{q: db}
}

// NewPaymentRepositoryWithTx creates a payment repository using a transaction.
func NewPaymentRepositoryWithTx(tx *sql.Tx) *PaymentRepository {
	return &PaymentRepository{q: tx}
}

// Create persists a new payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (id, user_id, ride_id, purpose, amount, status, provider_ref, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.ExecContext(ctx, query,
		payment.ID,
		payment.UserID,
		nullString(payment.RideID),
		payment.Purpose,
		payment.Amount,
		payment.Status,
		nullString(payment.ProviderRef),
		payment.IdempotencyKey,
		payment.CreatedAt,
	)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	return err
}

// GetByID retrieves a payment by ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	payment, err := scanPayment(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return payment, nil
}

// GetByIdempotencyKey retrieves a payment by its idempotency key.
// Returns nil if no payment exists with the given key.
func (r *PaymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE idempotency_key = $1`

	payment, err := scanPayment(r.q.QueryRowContext(ctx, query, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return payment, nil
}

// UpdateStatus updates the status and provider reference of a payment.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, status domain.ChargeStatus, providerRef string) error {
	query := `UPDATE payments SET status = $2, provider_ref = COALESCE($3, provider_ref) WHERE id = $1`

	result, err := r.q.ExecContext(ctx, query, id, status, nullString(providerRef))
	if err != nil {
		return err
	}
	return expectOneRow(result, repository.ErrNotFound)
}

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var payment domain.Payment
	err := row.Scan(
		&payment.ID,
		&payment.UserID,
		&payment.RideID,
		&payment.Purpose,
		&payment.Amount,
		&payment.Status,
		&payment.ProviderRef,
		&payment.IdempotencyKey,
		&payment.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}
