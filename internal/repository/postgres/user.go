package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"cabride/internal/domain"
	"cabride/internal/repository"
)

const userColumns = `id, username, email, password_hash, is_driver, role, outstanding_fine, suspended_until, created_at`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	q Querier
}

var _ repository.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{q: db}
}

// NewUserRepositoryWithTx creates a user repository using a transaction.
func NewUserRepositoryWithTx(tx *sql.Tx) *UserRepository {
	return &UserRepository{q: tx}
}

// Create adds a new user.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, is_driver, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	role := user.Role
	if role == "" {
		role = domain.RoleCustomer
	}

	_, err := r.q.ExecContext(ctx, query,
		user.ID, user.Username, user.Email, user.PasswordHash, user.IsDriver, role, user.CreatedAt)
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	return err
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.one(ctx, query, id)
}

// GetByEmail retrieves a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.one(ctx, query, email)
}

// GetAll retrieves all users.
func (r *UserRepository) GetAll(ctx context.Context) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC`
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// AddFine adds amount to the user's outstanding fine.
func (r *UserRepository) AddFine(ctx context.Context, id string, amount float64) error {
	query := `UPDATE users SET outstanding_fine = outstanding_fine + $2 WHERE id = $1`

	result, err := r.q.ExecContext(ctx, query, id, amount)
	if err != nil {
		return err
	}
	return expectOneRow(result, repository.ErrNotFound)
}

// ClearFine deducts up to amount from the outstanding fine and returns the
// amount deducted. Fines added after the charge was priced stay owed.
func (r *UserRepository) ClearFine(ctx context.Context, id string, amount float64) (float64, error) {
	query := `
		WITH prev AS (SELECT outstanding_fine FROM users WHERE id = $1 FOR UPDATE)
		UPDATE users SET outstanding_fine = GREATEST(prev.outstanding_fine - $2, 0)
		FROM prev
		WHERE users.id = $1
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

// SetSuspendedUntil sets the suspension window. The zero time clears it.
func (r *UserRepository) SetSuspendedUntil(ctx context.Context, id string, until time.Time) error {
	query := `UPDATE users SET suspended_until = $2 WHERE id = $1`

	result, err := r.q.ExecContext(ctx, query, id, nullTime(until))
	if err != nil {
		return err
	}
	return expectOneRow(result, repository.ErrNotFound)
}

// SetDriverFlag sets whether the account may act as a driver.
func (r *UserRepository) SetDriverFlag(ctx context.Context, id string, isDriver bool) error {
	query := `UPDATE users SET is_driver = $2 WHERE id = $1`

	result, err := r.q.ExecContext(ctx, query, id, isDriver)
	if err != nil {
		return err
	}
	return expectOneRow(result, repository.ErrNotFound)
}

func (r *UserRepository) one(ctx context.Context, query string, args ...any) (*domain.User, error) {
	user, err := scanUser(r.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	var suspendedUntil sql.NullTime

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.IsDriver,
		&user.Role,
		&user.OutstandingFine,
		&suspendedUntil,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if suspendedUntil.Valid {
		user.SuspendedUntil = suspendedUntil.Time
	}
	return &user, nil
}
