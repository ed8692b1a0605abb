package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"cabride/internal/domain"
	"cabride/internal/observability"
	"cabride/internal/repository"
)

const maxCancelAttempts = 3

// defaultCancelReason is stored when the cancelling party gives no reason.
func defaultCancelReason(by domain.Role) string {
	if by == domain.RoleDriver {
		return "Cancelled by driver"
	}
	return "Cancelled by user"
}

// CancellationFine returns the penalty owed by the cancelling party. Only a
// cancellation after the grace period following acceptance is fined: the
// customer while the ride is accepted, the driver while accepted or arrived.
func (p Policy) CancellationFine(ride *domain.Ride, by domain.Role, now time.Time) float64 {
	var elapsed time.Duration
	if !ride.AcceptedAt.IsZero() {
		elapsed = now.Sub(ride.AcceptedAt)
	}
	if elapsed <= p.CancelGracePeriod {
		return 0
	}

	switch by {
	case domain.RoleCustomer:
		if ride.Status == domain.RideStatusAccepted {
			return p.CustomerCancelFine
		}
	case domain.RoleDriver:
		if ride.Status == domain.RideStatusAccepted || ride.Status == domain.RideStatusArrived {
			return p.DriverCancelFine
		}
	}
	return 0
}

// CancelRide moves the ride to cancelled on behalf of its customer or assigned
// driver. Any fine is applied in the same transaction as the status change.
func (s *RideService) CancelRide(ctx context.Context, callerID, rideID, reason string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	for attempt := 0; ; attempt++ {
		ride, err := s.rideRepo.GetByID(ctx, rideID)
		if err != nil {
			return nil, err
		}

		var by domain.Role
		switch {
		case ride.CustomerID == callerID:
			by = domain.RoleCustomer
		case ride.IsAssignedDriver(callerID):
			by = domain.RoleDriver
		default:
			return nil, ErrForbidden
		}
		if ride.Status.IsTerminal() {
			return nil, ErrAlreadyTerminal
		}

		why := strings.TrimSpace(reason)
		if why == "" {
			why = defaultCancelReason(by)
		}

		now := s.now()
		fine := s.policy.CancellationFine(ride, by, now)

		cancelled, err := s.cancelOnce(ctx, ride, by, why, fine, now)
		if errors.Is(err, repository.ErrConditionFailed) && attempt+1 < maxCancelAttempts {
			// Status moved underneath us; re-evaluate against the new state.
			continue
		}
		if errors.Is(err, repository.ErrConditionFailed) {
			return nil, ErrInvalidState
		}
		if err != nil {
			return nil, err
		}

		if fine > 0 {
			observability.FinesApplied.WithLabelValues(string(by)).Inc()
			s.logger.InfoContext(ctx, "cancellation fine applied",
				"ride_id", rideID, "party", by, "amount", fine)
		}
		s.notifier.NotifyRideCancelled(ctx, cancelled, by, ride.Status.IsOpen(), fine)

		return cancelled, nil
	}
}

func (s *RideService) cancelOnce(ctx context.Context, ride *domain.Ride, by domain.Role, reason string, fine float64, now time.Time) (*domain.Ride, error) {
	var cancelled *domain.Ride
	err := s.tx.InTx(ctx, func(tx repository.Tx) error {
		var err error
		cancelled, err = tx.Rides().Cancel(ctx, ride.ID, ride.Status, reason, now)
		if err != nil {
			return err
		}
		if fine == 0 {
			return nil
		}
		if by == domain.RoleDriver {
			return tx.Drivers().AddFine(ctx, ride.DriverID, fine)
		}
		return tx.Users().AddFine(ctx, ride.CustomerID, fine)
	})
	return cancelled, err
}
