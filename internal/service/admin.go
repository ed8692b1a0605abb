package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"cabride/internal/domain"
	"cabride/internal/redis"
	"cabride/internal/repository"
)

// AdminService carries the moderation operations available to the admin role.
type AdminService struct {
	tx         repository.Transactor
	userRepo   repository.UserRepository
	driverRepo repository.DriverRepository
	reportRepo repository.ReportRepository
	cacheStore redis.CacheStoreInterface
	logger     *slog.Logger
	now        func() time.Time
}

// NewAdminService creates a new AdminService.
func NewAdminService(
	tx repository.Transactor,
	userRepo repository.UserRepository,
	driverRepo repository.DriverRepository,
	reportRepo repository.ReportRepository,
	cacheStore redis.CacheStoreInterface,
	logger *slog.Logger,
) *AdminService {
	return &AdminService{
		tx:         tx,
		userRepo:   userRepo,
		driverRepo: driverRepo,
		reportRepo: reportRepo,
		cacheStore: cacheStore,
		logger:     logger,
		now:        time.Now,
	}
}

// SetClock overrides the time source.
func (s *AdminService) SetClock(now func() time.Time) {
	s.now = now
}

// ListUsers returns every account.
func (s *AdminService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.userRepo.GetAll(ctx)
}

// ListDrivers returns every driver profile.
func (s *AdminService) ListDrivers(ctx context.Context) ([]*domain.Driver, error) {
	return s.driverRepo.GetAll(ctx)
}

// SuspendUser suspends the account for days; zero or fewer days lifts the suspension.
func (s *AdminService) SuspendUser(ctx context.Context, userID string, days int) (time.Time, error) {
	if userID == "" {
		return time.Time{}, ErrInvalidUserID
	}

	var until time.Time
	if days > 0 {
		until = s.now().AddDate(0, 0, days)
	}
	if err := s.userRepo.SetSuspendedUntil(ctx, userID, until); err != nil {
		return time.Time{}, err
	}

	s.logger.InfoContext(ctx, "user suspension updated", "user_id", userID, "until", until)
	return until, nil
}

// VerifyDriver approves the driver profile so the driver can go online.
func (s *AdminService) VerifyDriver(ctx context.Context, driverID string) error {
	if driverID == "" {
		return ErrInvalidUserID
	}

	err := s.tx.InTx(ctx, func(tx repository.Tx) error {
		if err := tx.Drivers().SetVerification(ctx, driverID, true, ""); err != nil {
			return err
		}
		return tx.Users().SetDriverFlag(ctx, driverID, true)
	})
	if err != nil {
		return err
	}

	s.invalidate(ctx, driverID)
	s.logger.InfoContext(ctx, "driver verified", "driver_id", driverID)
	return nil
}

// RejectDriver marks the driver profile as rejected with a reason.
func (s *AdminService) RejectDriver(ctx context.Context, driverID, reason string) error {
	if driverID == "" {
		return ErrInvalidUserID
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrInvalidInput
	}

	if err := s.driverRepo.SetVerification(ctx, driverID, false, reason); err != nil {
		return err
	}

	s.invalidate(ctx, driverID)
	s.logger.InfoContext(ctx, "driver rejected", "driver_id", driverID)
	return nil
}

// ListReports returns every report, newest first.
func (s *AdminService) ListReports(ctx context.Context) ([]*domain.Report, error) {
	return s.reportRepo.GetAll(ctx)
}

// ToggleReportResolved flips the resolved flag of a report.
func (s *AdminService) ToggleReportResolved(ctx context.Context, reportID string) (*domain.Report, error) {
	if reportID == "" {
		return nil, ErrInvalidInput
	}

	report, err := s.reportRepo.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	report.IsResolved = !report.IsResolved
	if err := s.reportRepo.SetResolved(ctx, reportID, report.IsResolved); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *AdminService) invalidate(ctx context.Context, driverID string) {
	if s.cacheStore == nil {
		return
	}
	if err := s.cacheStore.InvalidateDriver(ctx, driverID); err != nil {
		s.logger.WarnContext(ctx, "driver cache invalidate", "driver_id", driverID, "error", err)
	}
}
