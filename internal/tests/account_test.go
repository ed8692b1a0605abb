package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"cabride/internal/auth"
	"cabride/internal/domain"
	"cabride/internal/logging"
	"cabride/internal/service"
)

func newAccountService(h *harness) (*service.AccountService, *auth.TokenIssuer) {
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	svc := service.NewAccountService(h.tx, h.users, issuer, []string{"Root"})
	svc.SetClock(h.clock.Now)
	return svc, issuer
}

func TestRegister_CustomerAndAdminRoles(t *testing.T) {
	h := newHarness(t)
	svc, issuer := newAccountService(h)
	ctx := context.Background()

	customer, err := svc.Register(ctx, service.RegisterRequest{Username: "asha", Email: "Asha@Example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("register customer: %v", err)
	}
	if customer.User.Role != domain.RoleCustomer || customer.User.Email != "asha@example.com" {
		t.Errorf("unexpected customer: %+v", customer.User)
	}

	admin, err := svc.Register(ctx, service.RegisterRequest{Username: "root", Email: "root@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("register admin: %v", err)
	}
	p, err := issuer.Verify(admin.Token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if !p.IsAdmin() {
		t.Errorf("expected admin role claim, got %s", p.Role)
	}

	_, err = svc.Register(ctx, service.RegisterRequest{Username: "other", Email: "asha@example.com", Password: "secret1"})
	if !errors.Is(err, service.ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRegister_ValidatesInput(t *testing.T) {
	h := newHarness(t)
	svc, _ := newAccountService(h)

	testCases := []struct {
		name string
		req  service.RegisterRequest
	}{
		{"missing username", service.RegisterRequest{Email: "a@example.com", Password: "secret1"}},
		{"bad email", service.RegisterRequest{Username: "a", Email: "not-an-email", Password: "secret1"}},
		{"short password", service.RegisterRequest{Username: "a", Email: "a@example.com", Password: "123"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tc.req)
			if !errors.Is(err, service.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestRegisterDriver_CreatesUnverifiedProfile(t *testing.T) {
	h := newHarness(t)
	svc, issuer := newAccountService(h)
	ctx := context.Background()

	res, err := svc.RegisterDriver(ctx, service.RegisterRequest{Username: "ravi", Email: "ravi@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("register driver: %v", err)
	}
	driver := h.drivers.GetDriver(res.User.ID)
	if driver == nil {
		t.Fatal("expected a driver profile")
	}
	if driver.ProfileCompleted || driver.Rating != domain.DefaultDriverRating {
		t.Errorf("unexpected new driver profile: %+v", driver)
	}
	p, err := issuer.Verify(res.Token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if !p.IsDriver || p.Role != domain.RoleDriver {
		t.Errorf("expected driver claims, got %+v", p)
	}

	_, err = svc.RegisterDriver(ctx, service.RegisterRequest{Username: "root", Email: "r2@example.com", Password: "secret1"})
	if !errors.Is(err, service.ErrReservedUsername) {
		t.Errorf("expected ErrReservedUsername, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	svc, _ := newAccountService(h)
	ctx := context.Background()

	res, err := svc.Register(ctx, service.RegisterRequest{Username: "asha", Email: "asha@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Login(ctx, "asha@example.com", "wrong-pass"); !errors.Is(err, service.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "secret1"); !errors.Is(err, service.ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
	if _, err := svc.Login(ctx, " ASHA@example.com", "secret1"); err != nil {
		t.Errorf("expected login to succeed, got %v", err)
	}

	admin := service.NewAdminService(h.tx, h.users, h.drivers, h.reports, NewMockCacheStore(), logging.Discard())
	admin.SetClock(h.clock.Now)
	if _, err := admin.SuspendUser(ctx, res.User.ID, 2); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if _, err := svc.Login(ctx, "asha@example.com", "secret1"); !errors.Is(err, service.ErrSuspended) {
		t.Errorf("expected ErrSuspended, got %v", err)
	}
	if _, err := svc.CheckActive(ctx, res.User.ID); !errors.Is(err, service.ErrSuspended) {
		t.Errorf("expected ErrSuspended from CheckActive, got %v", err)
	}

	h.clock.Advance(49 * time.Hour)
	if _, err := svc.Login(ctx, "asha@example.com", "secret1"); err != nil {
		t.Errorf("expected login after suspension ends, got %v", err)
	}
}

func TestAdmin_VerifyAndRejectDriver(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cache := NewMockCacheStore()
	admin := service.NewAdminService(h.tx, h.users, h.drivers, h.reports, cache, logging.Discard())

	d := h.addDriver("d1", domain.VehicleSedan)
	d.ProfileCompleted = false

	if err := admin.RejectDriver(ctx, "d1", " "); !errors.Is(err, service.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput without a reason, got %v", err)
	}
	if err := admin.RejectDriver(ctx, "d1", "blurry documents"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got := h.drivers.GetDriver("d1"); got.ProfileCompleted || got.RejectionReason != "blurry documents" {
		t.Errorf("unexpected rejected driver: %+v", got)
	}

	if err := admin.VerifyDriver(ctx, "d1"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got := h.drivers.GetDriver("d1"); !got.ProfileCompleted || got.RejectionReason != "" {
		t.Errorf("unexpected verified driver: %+v", got)
	}
	if !h.users.GetUser("d1").IsDriver {
		t.Error("expected the account to be flagged as a driver")
	}
	if n := atomicLoad(&cache.InvalidateCallCount); n != 2 {
		t.Errorf("expected 2 cache invalidations, got %d", n)
	}
}
