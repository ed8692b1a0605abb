package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"cabride/internal/repository"
)

// Querier is an interface satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Ensure interfaces are satisfied.
var (
	_ Querier               = (*sql.DB)(nil)
	_ Querier               = (*sql.Tx)(nil)
	_ repository.Transactor = (*Transactor)(nil)
)

//go:embed schema.sql
var schemaSQL string

// Migrate creates the tables and indexes if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Transactor runs repository work inside a database transaction.
type Transactor struct {
	db *sql.DB
}

// NewTransactor creates a new Transactor.
func NewTransactor(db *sql.DB) *Transactor {
	return &Transactor{db: db}
}

// InTx runs fn with transaction-scoped repositories.
func (t *Transactor) InTx(ctx context.Context, fn func(tx repository.Tx) error) (err error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(txRepositories{tx: tx}); err != nil {
		return err
	}

	return tx.Commit()
}

type txRepositories struct {
	tx *sql.Tx
}

func (r txRepositories) Rides() repository.RideRepository       { return NewRideRepositoryWithTx(r.tx) }
func (r txRepositories) Drivers() repository.DriverRepository   { return NewDriverRepositoryWithTx(r.tx) }
func (r txRepositories) Users() repository.UserRepository       { return NewUserRepositoryWithTx(r.tx) }
func (r txRepositories) Chats() repository.ChatRepository       { return NewChatRepositoryWithTx(r.tx) }
func (r txRepositories) Payments() repository.PaymentRepository { return NewPaymentRepositoryWithTx(r.tx) }

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// expectOneRow maps a zero-row result to the given error.
func expectOneRow(result sql.Result, zero error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return zero
	}
	return nil
}
