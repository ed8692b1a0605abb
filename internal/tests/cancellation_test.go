package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"cabride/internal/domain"
	"cabride/internal/events"
	"cabride/internal/realtime"
	"cabride/internal/service"
)

func TestCancellationFine(t *testing.T) {
	policy := service.DefaultPolicy()
	acceptedAt := epoch

	testCases := []struct {
		name    string
		status  domain.RideStatus
		by      domain.Role
		elapsed time.Duration
		want    float64
	}{
		{"customer inside grace", domain.RideStatusAccepted, domain.RoleCustomer, 2 * time.Minute, 0},
		{"customer at grace boundary", domain.RideStatusAccepted, domain.RoleCustomer, 3 * time.Minute, 0},
		{"customer after grace", domain.RideStatusAccepted, domain.RoleCustomer, 4 * time.Minute, policy.CustomerCancelFine},
		{"customer after driver arrived", domain.RideStatusArrived, domain.RoleCustomer, 10 * time.Minute, 0},
		{"customer on open ride", domain.RideStatusRequested, domain.RoleCustomer, 10 * time.Minute, 0},
		{"driver inside grace", domain.RideStatusAccepted, domain.RoleDriver, time.Minute, 0},
		{"driver after grace", domain.RideStatusAccepted, domain.RoleDriver, 4 * time.Minute, policy.DriverCancelFine},
		{"driver after arriving", domain.RideStatusArrived, domain.RoleDriver, 5 * time.Minute, policy.DriverCancelFine},
		{"driver mid trip", domain.RideStatusStarted, domain.RoleDriver, 30 * time.Minute, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ride := &domain.Ride{Status: tc.status}
			if tc.status != domain.RideStatusRequested {
				ride.AcceptedAt = acceptedAt
			}
			got := policy.CancellationFine(ride, tc.by, acceptedAt.Add(tc.elapsed))
			if got != tc.want {
				t.Errorf("expected fine %v, got %v", tc.want, got)
			}
		})
	}
}

func TestCancelRide_CustomerFinedAfterGrace(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("c1")
	h.addDriver("d1", domain.VehicleSedan)
	ride := h.acceptedRide(t, "c1", "d1")

	h.clock.Advance(4 * time.Minute)
	cancelled, err := h.rideService.CancelRide(context.Background(), "c1", ride.ID, "changed plans")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if cancelled.Status != domain.RideStatusCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}
	if cancelled.DriverID != "d1" {
		t.Errorf("expected driver to stay recorded, got %q", cancelled.DriverID)
	}
	if cancelled.OTP != "" {
		t.Error("expected otp to be cleared")
	}
	if fine := h.users.GetUser("c1").OutstandingFine; fine != h.policy.CustomerCancelFine {
		t.Errorf("expected customer fine %v, got %v", h.policy.CustomerCancelFine, fine)
	}
	if fine := h.drivers.GetDriver("d1").OutstandingFine; fine != 0 {
		t.Errorf("expected no driver fine, got %v", fine)
	}

	notices := h.bus.Find(realtime.DriverGroup("d1"), realtime.EventRideCancelled)
	if len(notices) != 1 {
		t.Fatalf("expected 1 rideCancelled to the driver, got %d", len(notices))
	}
	if ev := notices[0].(realtime.RideCancelled); ev.CancelledBy != domain.RoleCustomer || ev.Reason != "changed plans" {
		t.Errorf("unexpected rideCancelled payload: %+v", ev)
	}

	names := h.emitter.Names()
	if names[len(names)-1] != events.RideCancelled {
		t.Errorf("expected a cancelled lifecycle event last, got %v", names)
	}
}

func TestCancelRide_CustomerNotFinedInsideGrace(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("c1")
	h.addDriver("d1", domain.VehicleSedan)
	ride := h.acceptedRide(t, "c1", "d1")

	h.clock.Advance(2 * time.Minute)
	if _, err := h.rideService.CancelRide(context.Background(), "c1", ride.ID, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if fine := h.users.GetUser("c1").OutstandingFine; fine != 0 {
		t.Errorf("expected no fine, got %v", fine)
	}
	if n := atomicLoad(&h.users.AddFineCallCount); n != 0 {
		t.Errorf("expected AddFine not to be called, got %d calls", n)
	}
}

func TestCancelRide_DriverFinedAfterArriving(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addCustomer("c1")
	h.addDriver("d1", domain.VehicleSedan)
	ride := h.acceptedRide(t, "c1", "d1")

	if _, err := h.rideService.AdvanceStatus(ctx, "d1", ride.ID, domain.RideStatusArrived); err != nil {
		t.Fatalf("arrive: %v", err)
	}
	h.clock.Advance(5 * time.Minute)

	if _, err := h.rideService.CancelRide(ctx, "d1", ride.ID, "no show"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if fine := h.drivers.GetDriver("d1").OutstandingFine; fine != h.policy.DriverCancelFine {
		t.Errorf("expected driver fine %v, got %v", h.policy.DriverCancelFine, fine)
	}
	if fine := h.users.GetUser("c1").OutstandingFine; fine != 0 {
		t.Errorf("expected no customer fine, got %v", fine)
	}
	if n := h.bus.Count(realtime.UserGroup("c1"), realtime.EventRideCancelled); n != 1 {
		t.Errorf("expected 1 rideCancelled to the customer, got %d", n)
	}

	// The fine now blocks the driver from taking work.
	h.addCustomer("c2")
	next := h.requestRide(t, "c2")
	if _, err := h.rideService.AcceptRide(ctx, "d1", next.ID); !errors.Is(err, service.ErrFineOutstanding) {
		t.Errorf("expected ErrFineOutstanding, got %v", err)
	}
}

func TestCancelRide_OpenRideWithdrawsOffer(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("c1")
	ride := h.requestRide(t, "c1")

	if _, err := h.rideService.CancelRide(context.Background(), "c1", ride.ID, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	updates := h.bus.Find(realtime.VehicleGroup(domain.VehicleSedan), realtime.EventRideStatusUpdate)
	if len(updates) != 1 {
		t.Fatalf("expected 1 status update to Sedan drivers, got %d", len(updates))
	}
	if ev := updates[0].(realtime.RideStatusUpdate); ev.Status != domain.RideStatusCancelled {
		t.Errorf("expected cancelled status, got %s", ev.Status)
	}
}

func TestCancelRide_Terminal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addCustomer("c1")
	h.addDriver("d1", domain.VehicleSedan)

	ride := h.completedRide(t, "c1", "d1")
	if _, err := h.rideService.CancelRide(ctx, "c1", ride.ID, ""); !errors.Is(err, service.ErrAlreadyTerminal) {
		t.Errorf("expected ErrAlreadyTerminal for a completed ride, got %v", err)
	}

	open := h.requestRide(t, "c1")
	if _, err := h.rideService.CancelRide(ctx, "c1", open.ID, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := h.rideService.CancelRide(ctx, "c1", open.ID, ""); !errors.Is(err, service.ErrAlreadyTerminal) {
		t.Errorf("expected ErrAlreadyTerminal on second cancel, got %v", err)
	}
	if _, err := h.rideService.AcceptRide(ctx, "d1", open.ID); !errors.Is(err, service.ErrRideUnavailable) {
		t.Errorf("expected ErrRideUnavailable accepting a cancelled ride, got %v", err)
	}
}

func TestCancelRide_RejectsStranger(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("c1")
	h.addCustomer("c2")
	ride := h.requestRide(t, "c1")

	_, err := h.rideService.CancelRide(context.Background(), "c2", ride.ID, "")
	if !errors.Is(err, service.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestCancelRide_FineFailureIsNotPublished(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("c1")
	h.addDriver("d1", domain.VehicleSedan)
	ride := h.acceptedRide(t, "c1", "d1")
	h.users.AddFineError = ErrInjected

	h.clock.Advance(10 * time.Minute)
	_, err := h.rideService.CancelRide(context.Background(), "c1", ride.ID, "")
	if !errors.Is(err, ErrInjected) {
		t.Errorf("expected injected error, got %v", err)
	}
	if n := h.bus.Count(realtime.DriverGroup("d1"), realtime.EventRideCancelled); n != 0 {
		t.Errorf("expected no cancellation to be published, got %d", n)
	}

	stored := h.rides.GetRide(ride.ID)
	if stored.Status != domain.RideStatusAccepted {
		t.Errorf("status = %s, want accepted after rollback", stored.Status)
	}
	if stored.OTP != testOTP {
		t.Errorf("otp = %q, want it kept after rollback", stored.OTP)
	}
	if atomicLoad(&h.tx.RollbackCount) != 1 {
		t.Errorf("rollbacks = %d, want 1", atomicLoad(&h.tx.RollbackCount))
	}

	// The ride can still be cancelled once the fine can be written.
	h.users.AddFineError = nil
	if _, err := h.rideService.CancelRide(context.Background(), "c1", ride.ID, ""); err != nil {
		t.Fatalf("cancel after rollback: %v", err)
	}
	if fine := h.users.GetUser("c1").OutstandingFine; fine != h.policy.CustomerCancelFine {
		t.Errorf("fine = %v, want %v", fine, h.policy.CustomerCancelFine)
	}
}

func TestCancelRide_DefaultsReasonByParty(t *testing.T) {
	tests := []struct {
		name         string
		caller       string
		counterparty string
		want         string
	}{
		{"customer", "c1", realtime.DriverGroup("d1"), "Cancelled by user"},
		{"driver", "d1", realtime.UserGroup("c1"), "Cancelled by driver"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.addCustomer("c1")
			h.addDriver("d1", domain.VehicleSedan)
			ride := h.acceptedRide(t, "c1", "d1")

			cancelled, err := h.rideService.CancelRide(context.Background(), tt.caller, ride.ID, "  ")
			if err != nil {
				t.Fatalf("cancel: %v", err)
			}
			if cancelled.CancellationReason != tt.want {
				t.Errorf("returned reason = %q, want %q", cancelled.CancellationReason, tt.want)
			}
			if got := h.rides.GetRide(ride.ID).CancellationReason; got != tt.want {
				t.Errorf("stored reason = %q, want %q", got, tt.want)
			}
			notices := h.bus.Find(tt.counterparty, realtime.EventRideCancelled)
			if len(notices) != 1 {
				t.Fatalf("expected 1 rideCancelled to %s, got %d", tt.counterparty, len(notices))
			}
			if ev := notices[0].(realtime.RideCancelled); ev.Reason != tt.want {
				t.Errorf("event reason = %q, want %q", ev.Reason, tt.want)
			}
		})
	}
}
