package tests

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"cabride/internal/domain"
	"cabride/internal/logging"
	"cabride/internal/payment"
	"cabride/internal/service"
)

const testOTP = "4321"

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// harness wires every service against the in-memory mocks.
type harness struct {
	clock    *Clock
	rides    *MockRideRepository
	drivers  *MockDriverRepository
	users    *MockUserRepository
	chats    *MockChatRepository
	payments *MockPaymentRepository
	reports  *MockReportRepository
	tx       *MockTransactor
	locks    *MockLockStore
	bus      *RecordingBus
	emitter  *RecordingEmitter
	policy   service.Policy

	rideService    *service.RideService
	chatService    *service.ChatService
	reportService  *service.ReportService
	paymentService *service.PaymentService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		clock:    NewClock(epoch),
		rides:    NewMockRideRepository(),
		drivers:  NewMockDriverRepository(),
		users:    NewMockUserRepository(),
		payments: NewMockPaymentRepository(),
		reports:  NewMockReportRepository(),
		locks:    NewMockLockStore(),
		bus:      NewRecordingBus(),
		emitter:  &RecordingEmitter{},
		policy:   service.DefaultPolicy(),
	}
	h.chats = NewMockChatRepository(h.users)
	h.tx = &MockTransactor{
		Rides:    h.rides,
		Drivers:  h.drivers,
		Users:    h.users,
		Chats:    h.chats,
		Payments: h.payments,
	}

	logger := logging.Discard()
	notifier := service.NewNotificationService(h.bus, h.emitter, logger)

	h.rideService = service.NewRideService(service.RideServiceDeps{
		Transactor:   h.tx,
		RideRepo:     h.rides,
		UserRepo:     h.users,
		DriverRepo:   h.drivers,
		LockStore:    h.locks,
		Estimator:    FixedEstimator{Km: 10},
		Notification: notifier,
		Policy:       h.policy,
		Logger:       logger,
	})
	h.rideService.SetClock(h.clock.Now)
	h.rideService.SetOTPGenerator(func() (string, error) { return testOTP, nil })

	h.chatService = service.NewChatService(h.chats, h.rides, h.users, notifier)
	h.chatService.SetClock(h.clock.Now)

	h.reportService = service.NewReportService(h.reports, h.rides)
	h.paymentService = service.NewPaymentService(h.tx, h.payments, h.users, h.drivers,
		payment.NewSimulated(), "inr", notifier, logger)

	return h
}

func (h *harness) addCustomer(id string) *domain.User {
	u := &domain.User{
		ID:        id,
		Username:  "customer " + id,
		Email:     id + "@example.com",
		Role:      domain.RoleCustomer,
		CreatedAt: epoch,
	}
	h.users.AddUser(u)
	return u
}

// addDriver registers an online, verified driver account.
func (h *harness) addDriver(id string, vt domain.VehicleType) *domain.Driver {
	h.users.AddUser(&domain.User{
		ID:        id,
		Username:  "driver " + id,
		Email:     id + "@example.com",
		IsDriver:  true,
		Role:      domain.RoleDriver,
		CreatedAt: epoch,
	})
	d := &domain.Driver{
		ID:               id,
		Username:         "driver " + id,
		VehicleType:      vt,
		VehicleNumber:    "KA01" + id,
		IsOnline:         true,
		CurrentLocation:  &domain.Location{Lat: 12.97, Lng: 77.59},
		Rating:           domain.DefaultDriverRating,
		ProfileCompleted: true,
		CreatedAt:        epoch,
	}
	h.drivers.AddDriver(d)
	return d
}

func (h *harness) requestRide(t *testing.T, customerID string) *domain.Ride {
	t.Helper()
	ride, err := h.rideService.RequestRide(context.Background(), service.RequestRideInput{
		CustomerID:  customerID,
		Pickup:      domain.Place{Address: "MG Road", Location: domain.Location{Lat: 12.97, Lng: 77.59}},
		Dropoff:     domain.Place{Address: "Airport", Location: domain.Location{Lat: 13.19, Lng: 77.70}},
		VehicleType: domain.VehicleSedan,
	})
	if err != nil {
		t.Fatalf("request ride: %v", err)
	}
	return ride
}

func (h *harness) acceptedRide(t *testing.T, customerID, driverID string) *domain.Ride {
	t.Helper()
	ride := h.requestRide(t, customerID)
	accepted, err := h.rideService.AcceptRide(context.Background(), driverID, ride.ID)
	if err != nil {
		t.Fatalf("accept ride: %v", err)
	}
	return accepted
}

// startedRide returns a ride past the OTP gate and in progress.
func (h *harness) startedRide(t *testing.T, customerID, driverID string) *domain.Ride {
	t.Helper()
	ctx := context.Background()
	ride := h.acceptedRide(t, customerID, driverID)
	if err := h.rideService.VerifyOtp(ctx, driverID, ride.ID, testOTP); err != nil {
		t.Fatalf("verify otp: %v", err)
	}
	started, err := h.rideService.AdvanceStatus(ctx, driverID, ride.ID, domain.RideStatusStarted)
	if err != nil {
		t.Fatalf("start ride: %v", err)
	}
	return started
}

func (h *harness) completedRide(t *testing.T, customerID, driverID string) *domain.Ride {
	t.Helper()
	ride := h.startedRide(t, customerID, driverID)
	completed, err := h.rideService.AdvanceStatus(context.Background(), driverID, ride.ID, domain.RideStatusCompleted)
	if err != nil {
		t.Fatalf("complete ride: %v", err)
	}
	return completed
}

func atomicLoad(p *int32) int32 {
	return atomic.LoadInt32(p)
}
