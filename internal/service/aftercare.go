package service

import (
	"context"
	"errors"

	"cabride/internal/domain"
	"cabride/internal/repository"
)

// MarkPaid records that the customer settled the fare of a completed ride and
// tells the driver.
func (s *RideService) MarkPaid(ctx context.Context, customerID, rideID string) (*domain.Ride, error) {
	ride, err := s.completedRideFor(ctx, customerID, rideID)
	if err != nil {
		return nil, err
	}

	if err := s.rideRepo.MarkPaid(ctx, rideID); err != nil {
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil, ErrRideNotCompleted
		}
		return nil, err
	}
	ride.PaymentStatus = domain.PaymentStatusPaid

	s.notifier.NotifyPaymentComplete(ctx, ride)
	return ride, nil
}

// RateInput contains a customer's rating and review of a completed ride.
// A zero rating leaves the stored rating unchanged.
type RateInput struct {
	CustomerID string
	RideID     string
	Rating     int
	Review     string
}

// Rate stores the customer's feedback and recomputes the driver's average rating.
func (s *RideService) Rate(ctx context.Context, in RateInput) (*domain.Ride, error) {
	if in.Rating < 0 || in.Rating > 5 {
		return nil, ErrInvalidRating
	}
	if in.Rating == 0 && in.Review == "" {
		return nil, ErrInvalidInput
	}

	ride, err := s.completedRideFor(ctx, in.CustomerID, in.RideID)
	if err != nil {
		return nil, err
	}

	if err := s.rideRepo.SetRating(ctx, ride.ID, in.Rating, in.Review); err != nil {
		return nil, err
	}
	if in.Rating > 0 {
		ride.Rating = in.Rating
	}
	if in.Review != "" {
		ride.Review = in.Review
	}

	if in.Rating > 0 && ride.DriverID != "" {
		avg, count, err := s.rideRepo.DriverRatingStats(ctx, ride.DriverID)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			if err := s.driverRepo.SetRating(ctx, ride.DriverID, roundTo2(avg)); err != nil {
				return nil, err
			}
		}
	}

	return ride, nil
}

func (s *RideService) completedRideFor(ctx context.Context, customerID, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.CustomerID != customerID {
		return nil, ErrForbidden
	}
	if ride.Status != domain.RideStatusCompleted {
		return nil, ErrRideNotCompleted
	}
	return ride, nil
}
