package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cabride/internal/auth"
	"cabride/internal/domain"
	"cabride/internal/payment"
	"cabride/internal/repository"
)

// PaymentService settles outstanding cancellation fines through the payment provider.
type PaymentService struct {
	tx          repository.Transactor
	paymentRepo repository.PaymentRepository
	userRepo    repository.UserRepository
	driverRepo  repository.DriverRepository
	provider    payment.Provider
	currency    string
	notifier    *NotificationService
	logger      *slog.Logger
	now         func() time.Time
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	tx repository.Transactor,
	paymentRepo repository.PaymentRepository,
	userRepo repository.UserRepository,
	driverRepo repository.DriverRepository,
	provider payment.Provider,
	currency string,
	notifier *NotificationService,
	logger *slog.Logger,
) *PaymentService {
	return &PaymentService{
		tx:          tx,
		paymentRepo: paymentRepo,
		userRepo:    userRepo,
		driverRepo:  driverRepo,
		provider:    provider,
		currency:    currency,
		notifier:    notifier,
		logger:      logger,
		now:         time.Now,
	}
}

// PayFineRequest contains the parameters for paying a fine.
type PayFineRequest struct {
	Principal      auth.Principal
	IdempotencyKey string // optional; a repeated key returns the first payment
}

// PayFine charges the principal's outstanding fines and deducts the charged
// amount. A fine held on the driver profile is settled after the account's own.
// A fine added while the charge is in flight stays owed.
func (s *PaymentService) PayFine(ctx context.Context, req PayFineRequest) (*domain.Payment, error) {
	userID := req.Principal.UserID
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	if req.IdempotencyKey != "" {
		existing, err := s.paymentRepo.GetByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	amount, err := s.outstanding(ctx, req.Principal)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, ErrNoFine
	}

	key := req.IdempotencyKey
	if key == "" {
		key = "fine:" + uuid.New().String()
	}

	// Create payment in PENDING state.
	p := &domain.Payment{
		ID:             uuid.New().String(),
		UserID:         userID,
		Purpose:        domain.PaymentPurposeFine,
		Amount:         amount,
		Status:         domain.ChargeStatusPending,
		IdempotencyKey: key,
		CreatedAt:      s.now(),
	}
	if err := s.paymentRepo.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return s.paymentRepo.GetByIdempotencyKey(ctx, key)
		}
		return nil, err
	}

	result, err := s.provider.Charge(ctx, payment.ChargeRequest{
		Amount:         amount,
		Currency:       s.currency,
		Description:    "CabRide cancellation fine",
		IdempotencyKey: key,
	})
	if err != nil || !result.Success {
		if err != nil {
			s.logger.ErrorContext(ctx, "fine charge failed", "user_id", userID, "error", err)
		}
		if updErr := s.paymentRepo.UpdateStatus(ctx, p.ID, domain.ChargeStatusFailed, result.Reference); updErr != nil {
			return nil, updErr
		}
		return nil, ErrPaymentFailed
	}

	err = s.tx.InTx(ctx, func(tx repository.Tx) error {
		cleared, err := tx.Users().ClearFine(ctx, userID, amount)
		if err != nil {
			return err
		}
		if remaining := roundTo2(amount - cleared); req.Principal.IsDriver && remaining > 0 {
			driverCleared, err := tx.Drivers().ClearFine(ctx, userID, remaining)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			cleared += driverCleared
		}
		if roundTo2(cleared) != amount {
			s.logger.WarnContext(ctx, "fine changed during payment",
				"user_id", userID, "charged", amount, "cleared", cleared)
		}
		return tx.Payments().UpdateStatus(ctx, p.ID, domain.ChargeStatusSuccess, result.Reference)
	})
	if err != nil {
		return nil, err
	}

	p.Status = domain.ChargeStatusSuccess
	p.ProviderRef = result.Reference
	s.notifier.NotifyFinePaid(ctx, userID, amount)

	return p, nil
}

// Outstanding returns the principal's total unpaid fines.
func (s *PaymentService) Outstanding(ctx context.Context, p auth.Principal) (float64, error) {
	return s.outstanding(ctx, p)
}

// GetPayment retrieves a payment by ID.
func (s *PaymentService) GetPayment(ctx context.Context, userID, paymentID string) (*domain.Payment, error) {
	if paymentID == "" {
		return nil, ErrInvalidInput
	}

	p, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, ErrForbidden
	}
	return p, nil
}

func (s *PaymentService) outstanding(ctx context.Context, p auth.Principal) (float64, error) {
	user, err := s.userRepo.GetByID(ctx, p.UserID)
	if err != nil {
		return 0, err
	}
	total := user.OutstandingFine

	if p.IsDriver {
		driver, err := s.driverRepo.GetByID(ctx, p.UserID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return 0, err
		}
		if driver != nil {
			total += driver.OutstandingFine
		}
	}
	return roundTo2(total), nil
}
