package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"cabride/internal/auth"
	"cabride/internal/domain"
	"cabride/internal/events"
	"cabride/internal/realtime"
	"cabride/internal/service"
)

func TestRequestRide_ValidatesInput(t *testing.T) {
	valid := domain.Place{Address: "A", Location: domain.Location{Lat: 12.9, Lng: 77.5}}

	testCases := []struct {
		name    string
		input   service.RequestRideInput
		wantErr error
	}{
		{
			name:    "missing customer",
			input:   service.RequestRideInput{Pickup: valid, Dropoff: valid, VehicleType: domain.VehicleSedan},
			wantErr: service.ErrInvalidUserID,
		},
		{
			name: "pickup out of range",
			input: service.RequestRideInput{
				CustomerID:  "c1",
				Pickup:      domain.Place{Location: domain.Location{Lat: 91, Lng: 0}},
				Dropoff:     valid,
				VehicleType: domain.VehicleSedan,
			},
			wantErr: service.ErrInvalidLocation,
		},
		{
			name:    "unknown vehicle",
			input:   service.RequestRideInput{CustomerID: "c1", Pickup: valid, Dropoff: valid, VehicleType: "Rickshaw"},
			wantErr: service.ErrInvalidVehicleType,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.addCustomer("c1")
			_, err := h.rideService.RequestRide(context.Background(), tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestRequestRide_PricesAndOffersRide(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("c1")
	ride := h.requestRide(t, "c1")

	if ride.Status != domain.RideStatusRequested {
		t.Errorf("expected requested, got %s", ride.Status)
	}
	if ride.DistanceKm != 10 {
		t.Errorf("expected distance 10, got %v", ride.DistanceKm)
	}
	if want := 10 * h.policy.FarePerKm[domain.VehicleSedan]; ride.Fare != want {
		t.Errorf("expected fare %v, got %v", want, ride.Fare)
	}
	if ride.PaymentStatus != domain.PaymentStatusUnpaid {
		t.Errorf("expected unpaid, got %s", ride.PaymentStatus)
	}
	if ride.ChatSessionID == "" || h.chats.SessionCount() != 1 {
		t.Error("expected a chat session to be created with the ride")
	}
	if n := h.bus.Count(realtime.VehicleGroup(domain.VehicleSedan), realtime.EventNewRideRequest); n != 1 {
		t.Errorf("expected 1 newRideRequest to Sedan drivers, got %d", n)
	}
	if n := h.bus.Count(realtime.VehicleGroup(domain.VehicleSUV), realtime.EventNewRideRequest); n != 0 {
		t.Errorf("expected no offer to SUV drivers, got %d", n)
	}
	if names := h.emitter.Names(); len(names) != 1 || names[0] != events.RideRequested {
		t.Errorf("expected a requested lifecycle event, got %v", names)
	}
}

func TestRequestRide_PastScheduleIsImmediate(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("c1")

	ride, err := h.rideService.RequestRide(context.Background(), service.RequestRideInput{
		CustomerID:   "c1",
		Pickup:       domain.Place{Address: "A", Location: domain.Location{Lat: 12.9, Lng: 77.5}},
		Dropoff:      domain.Place{Address: "B", Location: domain.Location{Lat: 13.0, Lng: 77.6}},
		VehicleType:  domain.VehicleBike,
		ScheduledFor: epoch.Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("request ride: %v", err)
	}
	if ride.Status != domain.RideStatusRequested || !ride.ScheduledFor.IsZero() {
		t.Errorf("expected an immediate ride, got status %s scheduled %v", ride.Status, ride.ScheduledFor)
	}
}

func TestRequestRide_RejectsOutstandingFine(t *testing.T) {
	h := newHarness(t)
	u := h.addCustomer("c1")
	u.OutstandingFine = 50

	_, err := h.rideService.RequestRide(context.Background(), service.RequestRideInput{
		CustomerID:  "c1",
		Pickup:      domain.Place{Address: "A", Location: domain.Location{Lat: 12.9, Lng: 77.5}},
		Dropoff:     domain.Place{Address: "B", Location: domain.Location{Lat: 13.0, Lng: 77.6}},
		VehicleType: domain.VehicleSedan,
	})
	if !errors.Is(err, service.ErrFineOutstanding) {
		t.Errorf("expected ErrFineOutstanding, got %v", err)
	}
}

func TestVerifyOtp_OneTimeUse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addCustomer("c1")
	h.addDriver("d1", domain.VehicleSedan)
	ride := h.acceptedRide(t, "c1", "d1")

	if err := h.rideService.VerifyOtp(ctx, "d1", ride.ID, "0000"); !errors.Is(err, service.ErrInvalidOtp) {
		t.Errorf("expected ErrInvalidOtp for a wrong code, got %v", err)
	}
	if err := h.rideService.VerifyOtp(ctx, "d1", ride.ID, testOTP); err != nil {
		t.Fatalf("verify otp: %v", err)
	}
	if h.rides.GetRide(ride.ID).OTP != "" {
		t.Error("expected otp to be cleared after verification")
	}
	if err := h.rideService.VerifyOtp(ctx, "d1", ride.ID, testOTP); !errors.Is(err, service.ErrInvalidOtp) {
		t.Errorf("expected ErrInvalidOtp on reuse, got %v", err)
	}
}

func TestVerifyOtp_OnlyAssignedDriver(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("c1")
	h.addDriver("d1", domain.VehicleSedan)
	h.addDriver("d2", domain.VehicleSedan)
	ride := h.acceptedRide(t, "c1", "d1")

	err := h.rideService.VerifyOtp(context.Background(), "d2", ride.ID, testOTP)
	if !errors.Is(err, service.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if h.rides.GetRide(ride.ID).OTP != testOTP {
		t.Error("expected otp to remain outstanding")
	}
}

func TestAdvanceStatus_StartRequiresVerifiedOtp(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("c1")
	h.addDriver("d1", domain.VehicleSedan)
	ride := h.acceptedRide(t, "c1", "d1")

	_, err := h.rideService.AdvanceStatus(context.Background(), "d1", ride.ID, domain.RideStatusStarted)
	if !errors.Is(err, service.ErrOtpNotVerified) {
		t.Errorf("expected ErrOtpNotVerified, got %v", err)
	}
	if h.rides.GetRide(ride.ID).Status != domain.RideStatusAccepted {
		t.Error("expected ride to remain accepted")
	}
}

func TestAdvanceStatus_FullLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addCustomer("c1")
	h.addDriver("d1", domain.VehicleSedan)
	ride := h.acceptedRide(t, "c1", "d1")

	arrived, err := h.rideService.AdvanceStatus(ctx, "d1", ride.ID, domain.RideStatusArrived)
	if err != nil {
		t.Fatalf("arrive: %v", err)
	}
	if arrived.Status != domain.RideStatusArrived {
		t.Errorf("expected arrived, got %s", arrived.Status)
	}

	if err := h.rideService.VerifyOtp(ctx, "d1", ride.ID, testOTP); err != nil {
		t.Fatalf("verify otp: %v", err)
	}

	h.clock.Advance(time.Minute)
	started, err := h.rideService.AdvanceStatus(ctx, "d1", ride.ID, domain.RideStatusStarted)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !started.StartTime.Equal(h.clock.Now()) {
		t.Errorf("expected start time %v, got %v", h.clock.Now(), started.StartTime)
	}

	h.clock.Advance(20 * time.Minute)
	completed, err := h.rideService.AdvanceStatus(ctx, "d1", ride.ID, domain.RideStatusCompleted)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != domain.RideStatusCompleted || completed.EndTime.IsZero() {
		t.Errorf("unexpected completed ride: %+v", completed)
	}
	if trips := h.drivers.GetDriver("d1").CompletedTrips; trips != 1 {
		t.Errorf("expected 1 completed trip, got %d", trips)
	}

	updates := h.bus.Find(realtime.UserGroup("c1"), realtime.EventRideStatusUpdate)
	var statuses []domain.RideStatus
	for _, e := range updates {
		statuses = append(statuses, e.(realtime.RideStatusUpdate).Status)
	}
	want := []domain.RideStatus{
		domain.RideStatusAccepted, domain.RideStatusArrived, domain.RideStatusStarted, domain.RideStatusCompleted,
	}
	if len(statuses) != len(want) {
		t.Fatalf("expected status updates %v, got %v", want, statuses)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("update %d: expected %s, got %s", i, want[i], statuses[i])
		}
	}
}

func TestAdvanceStatus_IsMonotonic(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addCustomer("c1")
	h.addDriver("d1", domain.VehicleSedan)
	ride := h.startedRide(t, "c1", "d1")

	if _, err := h.rideService.AdvanceStatus(ctx, "d1", ride.ID, domain.RideStatusArrived); !errors.Is(err, service.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState moving backwards, got %v", err)
	}
	if _, err := h.rideService.AdvanceStatus(ctx, "d1", ride.ID, domain.RideStatusCompleted); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := h.rideService.AdvanceStatus(ctx, "d1", ride.ID, domain.RideStatusCompleted); !errors.Is(err, service.ErrAlreadyTerminal) {
		t.Errorf("expected ErrAlreadyTerminal, got %v", err)
	}
	if _, err := h.rideService.AdvanceStatus(ctx, "d1", ride.ID, domain.RideStatusCancelled); !errors.Is(err, service.ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus for cancelled target, got %v", err)
	}
}

func TestAdvanceStatus_RejectsStranger(t *testing.T) {
	h := newHarness(t)
	h.addCustomer("c1")
	h.addDriver("d1", domain.VehicleSedan)
	h.addDriver("d2", domain.VehicleSedan)
	ride := h.acceptedRide(t, "c1", "d1")

	_, err := h.rideService.AdvanceStatus(context.Background(), "d2", ride.ID, domain.RideStatusArrived)
	if !errors.Is(err, service.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestGetRide_Visibility(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addCustomer("c1")
	h.addCustomer("c2")
	h.addDriver("d1", domain.VehicleSedan)
	h.addDriver("d2", domain.VehicleSedan)
	ride := h.requestRide(t, "c1")

	if _, err := h.rideService.GetRide(ctx, auth.Principal{UserID: "d2", IsDriver: true, Role: domain.RoleDriver}, ride.ID); err != nil {
		t.Errorf("expected any driver to see an open ride, got %v", err)
	}
	if _, err := h.rideService.GetRide(ctx, auth.Principal{UserID: "c2", Role: domain.RoleCustomer}, ride.ID); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("expected ErrForbidden for another customer, got %v", err)
	}

	if _, err := h.rideService.AcceptRide(ctx, "d1", ride.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := h.rideService.GetRide(ctx, auth.Principal{UserID: "d2", IsDriver: true, Role: domain.RoleDriver}, ride.ID); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("expected ErrForbidden for a non-assigned driver, got %v", err)
	}
	if _, err := h.rideService.GetRide(ctx, auth.Principal{UserID: "admin", Role: domain.RoleAdmin}, ride.ID); err != nil {
		t.Errorf("expected admin to see the ride, got %v", err)
	}
}

func TestMarkPaidAndRate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addCustomer("c1")
	h.addDriver("d1", domain.VehicleSedan)

	open := h.acceptedRide(t, "c1", "d1")
	if _, err := h.rideService.MarkPaid(ctx, "c1", open.ID); !errors.Is(err, service.ErrRideNotCompleted) {
		t.Errorf("expected ErrRideNotCompleted, got %v", err)
	}
	if _, err := h.rideService.CancelRide(ctx, "c1", open.ID, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	ride := h.completedRide(t, "c1", "d1")
	if _, err := h.rideService.MarkPaid(ctx, "d1", ride.ID); !errors.Is(err, service.ErrForbidden) {
		t.Errorf("expected ErrForbidden for the driver, got %v", err)
	}
	paid, err := h.rideService.MarkPaid(ctx, "c1", ride.ID)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if paid.PaymentStatus != domain.PaymentStatusPaid {
		t.Errorf("expected paid, got %s", paid.PaymentStatus)
	}
	if n := h.bus.Count(realtime.DriverGroup("d1"), realtime.EventPaymentComplete); n != 1 {
		t.Errorf("expected 1 paymentComplete to the driver, got %d", n)
	}

	if _, err := h.rideService.Rate(ctx, service.RateInput{CustomerID: "c1", RideID: ride.ID, Rating: 6}); !errors.Is(err, service.ErrInvalidRating) {
		t.Errorf("expected ErrInvalidRating, got %v", err)
	}
	if _, err := h.rideService.Rate(ctx, service.RateInput{CustomerID: "c1", RideID: ride.ID}); !errors.Is(err, service.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty feedback, got %v", err)
	}
	rated, err := h.rideService.Rate(ctx, service.RateInput{CustomerID: "c1", RideID: ride.ID, Rating: 4, Review: "smooth"})
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if rated.Rating != 4 || rated.Review != "smooth" {
		t.Errorf("unexpected rating: %d %q", rated.Rating, rated.Review)
	}
	if got := h.drivers.GetDriver("d1").Rating; got != 4 {
		t.Errorf("expected driver rating 4, got %v", got)
	}
}

func TestRate_ReviewOnlyLeavesDriverRating(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addCustomer("c1")
	h.addDriver("d1", domain.VehicleSedan)
	ride := h.completedRide(t, "c1", "d1")

	rated, err := h.rideService.Rate(ctx, service.RateInput{CustomerID: "c1", RideID: ride.ID, Review: "clean car"})
	if err != nil {
		t.Fatalf("review only: %v", err)
	}
	if rated.Rating != 0 || rated.Review != "clean car" {
		t.Errorf("unexpected feedback: %d %q", rated.Rating, rated.Review)
	}
	if got := h.drivers.GetDriver("d1").Rating; got != domain.DefaultDriverRating {
		t.Errorf("driver rating = %v, want unchanged %v", got, domain.DefaultDriverRating)
	}

	_, err = h.rideService.Rate(ctx, service.RateInput{CustomerID: "c1", RideID: ride.ID, Rating: -1})
	if !errors.Is(err, service.ErrInvalidRating) {
		t.Fatalf("expected ErrInvalidRating, got %v", err)
	}
	if want := "rating must be between 0 and 5"; err.Error() != want {
		t.Errorf("message = %q, want %q", err.Error(), want)
	}
}
