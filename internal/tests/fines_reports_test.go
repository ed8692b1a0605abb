package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"cabride/internal/auth"
	"cabride/internal/domain"
	"cabride/internal/logging"
	"cabride/internal/payment"
	"cabride/internal/service"
)

func TestPayFine_ClearsFineAndUnblocksRequests(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addCustomer("c1")
	h.addDriver("d1", domain.VehicleSedan)
	ride := h.acceptedRide(t, "c1", "d1")

	h.clock.Advance(5 * time.Minute)
	if _, err := h.rideService.CancelRide(ctx, "c1", ride.ID, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	principal := auth.Principal{UserID: "c1", Role: domain.RoleCustomer}
	owed, err := h.paymentService.Outstanding(ctx, principal)
	if err != nil {
		t.Fatalf("outstanding: %v", err)
	}
	if owed != h.policy.CustomerCancelFine {
		t.Fatalf("expected %v owed, got %v", h.policy.CustomerCancelFine, owed)
	}

	p, err := h.paymentService.PayFine(ctx, service.PayFineRequest{Principal: principal, IdempotencyKey: "key-1"})
	if err != nil {
		t.Fatalf("pay fine: %v", err)
	}
	if p.Status != domain.ChargeStatusSuccess || p.Amount != owed || p.ProviderRef == "" {
		t.Errorf("unexpected payment: %+v", p)
	}
	if fine := h.users.GetUser("c1").OutstandingFine; fine != 0 {
		t.Errorf("expected fine cleared, got %v", fine)
	}

	again, err := h.paymentService.PayFine(ctx, service.PayFineRequest{Principal: principal, IdempotencyKey: "key-1"})
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if again.ID != p.ID {
		t.Errorf("expected replay to return payment %s, got %s", p.ID, again.ID)
	}

	if _, err := h.paymentService.PayFine(ctx, service.PayFineRequest{Principal: principal}); !errors.Is(err, service.ErrNoFine) {
		t.Errorf("expected ErrNoFine, got %v", err)
	}

	h.requestRide(t, "c1")
}

func TestPayFine_DriverProfileFine(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.addDriver("d1", domain.VehicleSedan)
	d.OutstandingFine = 30

	principal := auth.Principal{UserID: "d1", IsDriver: true, Role: domain.RoleDriver}
	p, err := h.paymentService.PayFine(ctx, service.PayFineRequest{Principal: principal})
	if err != nil {
		t.Fatalf("pay fine: %v", err)
	}
	if p.Amount != 30 {
		t.Errorf("expected amount 30, got %v", p.Amount)
	}
	if fine := h.drivers.GetDriver("d1").OutstandingFine; fine != 0 {
		t.Errorf("expected driver fine cleared, got %v", fine)
	}

	if _, err := h.paymentService.GetPayment(ctx, "c9", p.ID); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("expected ErrForbidden for another user, got %v", err)
	}
}

func TestReports_OnePerReporterPerRide(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addCustomer("c1")
	h.addDriver("d1", domain.VehicleSedan)

	open := h.requestRide(t, "c1")
	if _, err := h.reportService.ReportDriver(ctx, "c1", open.ID, "rude"); !errors.Is(err, service.ErrNoDriverAssigned) {
		t.Errorf("expected ErrNoDriverAssigned, got %v", err)
	}

	ride := h.acceptedRide(t, "c1", "d1")
	report, err := h.reportService.ReportDriver(ctx, "c1", ride.ID, "rude")
	if err != nil {
		t.Fatalf("report driver: %v", err)
	}
	if report.ReportedUserID != "d1" || report.ReporterRole != domain.RoleCustomer {
		t.Errorf("unexpected report: %+v", report)
	}
	if _, err := h.reportService.ReportDriver(ctx, "c1", ride.ID, "still rude"); !errors.Is(err, service.ErrDuplicateReport) {
		t.Errorf("expected ErrDuplicateReport, got %v", err)
	}

	if _, err := h.reportService.ReportCustomer(ctx, "d1", ride.ID, "late"); err != nil {
		t.Errorf("expected the driver to file their own report, got %v", err)
	}
	if _, err := h.reportService.ReportCustomer(ctx, "c1", ride.ID, "late"); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}

	admin := service.NewAdminService(h.tx, h.users, h.drivers, h.reports, NewMockCacheStore(), logging.Discard())
	toggled, err := admin.ToggleReportResolved(ctx, report.ID)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !toggled.IsResolved {
		t.Error("expected report to be resolved")
	}
}

// finingProvider confirms every charge and runs during before confirming.
type finingProvider struct {
	during func(ctx context.Context)
}

func (p finingProvider) Charge(ctx context.Context, req payment.ChargeRequest) (payment.ChargeResult, error) {
	p.during(ctx)
	return payment.ChargeResult{Success: true, Reference: "ch_test"}, nil
}

func TestPayFine_FineAddedDuringChargeStaysOwed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addCustomer("c1")
	if err := h.users.AddFine(ctx, "c1", 50); err != nil {
		t.Fatalf("add fine: %v", err)
	}

	provider := finingProvider{during: func(ctx context.Context) {
		if err := h.users.AddFine(ctx, "c1", 50); err != nil {
			t.Errorf("add fine during charge: %v", err)
		}
	}}
	svc := service.NewPaymentService(h.tx, h.payments, h.users, h.drivers, provider, "inr",
		service.NewNotificationService(h.bus, h.emitter, logging.Discard()), logging.Discard())

	p, err := svc.PayFine(ctx, service.PayFineRequest{Principal: auth.Principal{UserID: "c1", Role: domain.RoleCustomer}})
	if err != nil {
		t.Fatalf("pay fine: %v", err)
	}
	if p.Amount != 50 {
		t.Errorf("charged %v, want 50", p.Amount)
	}
	if fine := h.users.GetUser("c1").OutstandingFine; fine != 50 {
		t.Errorf("outstanding fine = %v, want 50 still owed", fine)
	}
}

func TestPayFine_DriverFineSettledAfterAccountFine(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	d := h.addDriver("d1", domain.VehicleSedan)
	d.OutstandingFine = 30
	if err := h.users.AddFine(ctx, "d1", 10); err != nil {
		t.Fatalf("add fine: %v", err)
	}

	provider := finingProvider{during: func(ctx context.Context) {
		if err := h.drivers.AddFine(ctx, "d1", 30); err != nil {
			t.Errorf("add fine during charge: %v", err)
		}
	}}
	svc := service.NewPaymentService(h.tx, h.payments, h.users, h.drivers, provider, "inr",
		service.NewNotificationService(h.bus, h.emitter, logging.Discard()), logging.Discard())

	p, err := svc.PayFine(ctx, service.PayFineRequest{Principal: auth.Principal{UserID: "d1", IsDriver: true, Role: domain.RoleDriver}})
	if err != nil {
		t.Fatalf("pay fine: %v", err)
	}
	if p.Amount != 40 {
		t.Errorf("charged %v, want 40", p.Amount)
	}
	if fine := h.users.GetUser("d1").OutstandingFine; fine != 0 {
		t.Errorf("account fine = %v, want 0", fine)
	}
	if fine := h.drivers.GetDriver("d1").OutstandingFine; fine != 30 {
		t.Errorf("driver fine = %v, want 30 still owed", fine)
	}
}
