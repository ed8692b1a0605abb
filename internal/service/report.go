package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"cabride/internal/domain"
	"cabride/internal/repository"
)

// ReportService files participant reports.
type ReportService struct {
	reportRepo repository.ReportRepository
	rideRepo   repository.RideRepository
	now        func() time.Time
}

// NewReportService creates a new ReportService.
func NewReportService(reportRepo repository.ReportRepository, rideRepo repository.RideRepository) *ReportService {
	return &ReportService{
		reportRepo: reportRepo,
		rideRepo:   rideRepo,
		now:        time.Now,
	}
}

// ReportDriver files the customer's report against the ride's driver.
func (s *ReportService) ReportDriver(ctx context.Context, customerID, rideID, reason string) (*domain.Report, error) {
	return s.file(ctx, domain.RoleCustomer, customerID, rideID, reason)
}

// ReportCustomer files the driver's report against the ride's customer.
func (s *ReportService) ReportCustomer(ctx context.Context, driverID, rideID, reason string) (*domain.Report, error) {
	return s.file(ctx, domain.RoleDriver, driverID, rideID, reason)
}

func (s *ReportService) file(ctx context.Context, role domain.Role, reporterID, rideID, reason string) (*domain.Report, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrInvalidInput
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	var reported string
	switch role {
	case domain.RoleCustomer:
		if ride.CustomerID != reporterID {
			return nil, ErrForbidden
		}
		if ride.DriverID == "" {
			return nil, ErrNoDriverAssigned
		}
		reported = ride.DriverID
	default:
		if !ride.IsAssignedDriver(reporterID) {
			return nil, ErrForbidden
		}
		reported = ride.CustomerID
	}

	exists, err := s.reportRepo.Exists(ctx, rideID, reporterID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateReport
	}

	report := &domain.Report{
		ID:             uuid.New().String(),
		RideID:         rideID,
		ReporterID:     reporterID,
		ReportedUserID: reported,
		ReporterRole:   role,
		Reason:         reason,
		CreatedAt:      s.now(),
	}
	if err := s.reportRepo.Create(ctx, report); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateReport
		}
		return nil, err
	}

	return report, nil
}
