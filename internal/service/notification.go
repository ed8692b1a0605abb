package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cabride/internal/domain"
	"cabride/internal/events"
	"cabride/internal/realtime"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationRideAccepted    NotificationType = "RIDE_ACCEPTED"
	NotificationOtpVerified     NotificationType = "OTP_VERIFIED"
	NotificationDriverArrived   NotificationType = "DRIVER_ARRIVED"
	NotificationTripStarted     NotificationType = "TRIP_STARTED"
	NotificationTripEnded       NotificationType = "TRIP_ENDED"
	NotificationRideCancelled   NotificationType = "RIDE_CANCELLED"
	NotificationFineApplied     NotificationType = "FINE_APPLIED"
	NotificationPaymentReceived NotificationType = "PAYMENT_RECEIVED"
)

// Notification is a human-readable notice for one group.
type Notification struct {
	ID        string
	Type      NotificationType
	Group     string
	Message   string
	CreatedAt time.Time
}

// NotificationService publishes committed ride changes to the fanout bus and
// forwards them to the lifecycle sink. It never blocks on delivery.
type NotificationService struct {
	bus     Bus
	emitter EventEmitter
	logger  *slog.Logger
	now     func() time.Time
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(bus Bus, emitter EventEmitter, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		bus:     bus,
		emitter: emitter,
		logger:  logger,
		now:     time.Now,
	}
}

// NotifyRideRequested offers a new ride to drivers of its vehicle type.
func (s *NotificationService) NotifyRideRequested(ctx context.Context, ride *domain.Ride) {
	summary := realtime.SummarizeRide(ride)
	group := realtime.VehicleGroup(ride.VehicleType)

	if ride.Status == domain.RideStatusScheduled {
		s.bus.Publish(group, realtime.NewScheduledRide{RideSummary: summary})
	} else {
		s.bus.Publish(group, realtime.NewRideRequest{RideSummary: summary})
	}

	s.emit(events.RideRequested, ride, nil)
	s.logger.InfoContext(ctx, "ride requested",
		"ride_id", ride.ID,
		"customer_id", ride.CustomerID,
		"vehicle_type", ride.VehicleType,
		"status", ride.Status,
	)
}

// NotifyRideAccepted hands the OTP to the customer and withdraws the offer from other drivers.
func (s *NotificationService) NotifyRideAccepted(ctx context.Context, ride *domain.Ride, driver *domain.Driver) {
	s.bus.Publish(realtime.UserGroup(ride.CustomerID), realtime.RideAccepted{
		RideID:     ride.ID,
		DriverName: driver.Username,
		DriverDetails: realtime.DriverSummary{
			ID:            driver.ID,
			VehicleType:   driver.VehicleType,
			VehicleNumber: driver.VehicleNumber,
			Rating:        driver.Rating,
		},
		OTP: ride.OTP,
	})
	s.publishStatus(ride)
	s.bus.Publish(realtime.DriversGroup, realtime.RideTaken{RideID: ride.ID})
	s.closeRideRoom(ctx, ride)

	s.send(ctx, Notification{
		Type:    NotificationRideAccepted,
		Group:   realtime.UserGroup(ride.CustomerID),
		Message: fmt.Sprintf("%s accepted your ride", driver.Username),
	})
	s.emit(events.RideAccepted, ride, nil)
	s.logger.InfoContext(ctx, "ride accepted", "ride_id", ride.ID, "driver_id", ride.DriverID)
}

// NotifyOtpVerified tells the customer the trip may start.
func (s *NotificationService) NotifyOtpVerified(ctx context.Context, ride *domain.Ride) {
	s.send(ctx, Notification{
		Type:    NotificationOtpVerified,
		Group:   realtime.UserGroup(ride.CustomerID),
		Message: "Your driver verified the ride code",
	})
}

// NotifyStatusChanged reports a committed status change to both parties.
func (s *NotificationService) NotifyStatusChanged(ctx context.Context, ride *domain.Ride) {
	s.publishStatus(ride)

	var n Notification
	switch ride.Status {
	case domain.RideStatusArrived:
		n = Notification{Type: NotificationDriverArrived, Message: "Your driver has arrived"}
	case domain.RideStatusStarted:
		n = Notification{Type: NotificationTripStarted, Message: "Your trip has started"}
	case domain.RideStatusCompleted:
		n = Notification{Type: NotificationTripEnded, Message: fmt.Sprintf("Trip completed. Fare: %.2f", ride.Fare)}
	}
	if n.Type != "" {
		n.Group = realtime.UserGroup(ride.CustomerID)
		s.send(ctx, n)
	}

	s.emit(events.RideStatus, ride, nil)
	s.logger.InfoContext(ctx, "ride status changed", "ride_id", ride.ID, "status", ride.Status)
}

// NotifyRideCancelled tells the counterparty and refreshes everyone's view of the ride.
// wasOpen withdraws the offer from drivers who have not accepted it.
func (s *NotificationService) NotifyRideCancelled(ctx context.Context, ride *domain.Ride, by domain.Role, wasOpen bool, fine float64) {
	var counterparty string
	var message string
	if by == domain.RoleDriver {
		counterparty = realtime.UserGroup(ride.CustomerID)
		message = "The driver has cancelled the ride"
	} else if ride.DriverID != "" {
		counterparty = realtime.DriverGroup(ride.DriverID)
		message = "The customer has cancelled the ride"
	}

	if counterparty != "" {
		s.bus.Publish(counterparty, realtime.RideCancelled{
			RideID:      ride.ID,
			CancelledBy: by,
			Reason:      ride.CancellationReason,
		})
		s.send(ctx, Notification{Type: NotificationRideCancelled, Group: counterparty, Message: message})
	}

	s.publishStatus(ride)
	s.closeRideRoom(ctx, ride)
	if wasOpen {
		s.bus.Publish(realtime.VehicleGroup(ride.VehicleType), realtime.RideStatusUpdate{RideID: ride.ID, Status: ride.Status})
	}

	if fine > 0 {
		group := realtime.UserGroup(ride.CustomerID)
		if by == domain.RoleDriver {
			group = realtime.DriverGroup(ride.DriverID)
		}
		s.send(ctx, Notification{
			Type:    NotificationFineApplied,
			Group:   group,
			Message: fmt.Sprintf("A cancellation fine of %.2f was added to your account", fine),
		})
	}

	s.emit(events.RideCancelled, ride, func(e *events.LifecycleEvent) {
		e.Fine = fine
		e.Reason = ride.CancellationReason
	})
	s.logger.InfoContext(ctx, "ride cancelled",
		"ride_id", ride.ID,
		"cancelled_by", by,
		"fine", fine,
	)
}

// NotifyPaymentComplete tells the driver the fare was paid.
func (s *NotificationService) NotifyPaymentComplete(ctx context.Context, ride *domain.Ride) {
	if ride.DriverID != "" {
		s.bus.Publish(realtime.DriverGroup(ride.DriverID), realtime.PaymentComplete{RideID: ride.ID})
		s.send(ctx, Notification{
			Type:    NotificationPaymentReceived,
			Group:   realtime.DriverGroup(ride.DriverID),
			Message: fmt.Sprintf("Payment of %.2f received", ride.Fare),
		})
	}
	s.emit(events.RidePaid, ride, nil)
}

// NotifyFinePaid records a cleared fine on the lifecycle stream.
func (s *NotificationService) NotifyFinePaid(ctx context.Context, userID string, amount float64) {
	s.emitter.Emit(events.LifecycleEvent{
		Name:       events.FinePaid,
		CustomerID: userID,
		Fine:       amount,
		OccurredAt: s.now(),
	})
	s.logger.InfoContext(ctx, "fine paid", "user_id", userID, "amount", amount)
}

// NotifyDriverStatus tells drivers that a driver went online or offline.
func (s *NotificationService) NotifyDriverStatus(ctx context.Context, driverID string, online bool) {
	s.bus.Publish(realtime.DriversGroup, realtime.DriverStatusUpdate{DriverID: driverID, IsOnline: online})
	s.logger.InfoContext(ctx, "driver status changed", "driver_id", driverID, "online", online)
}

// NotifyChatMessage publishes the authoritative copy of an appended message.
func (s *NotificationService) NotifyChatMessage(ctx context.Context, msg *domain.ChatMessage, tempID string) {
	s.bus.Publish(realtime.RideGroup(msg.RideID), realtime.ChatMessage{
		ID:        msg.ID,
		RideID:    msg.RideID,
		Sender:    realtime.ChatSender{ID: msg.SenderID, Username: msg.SenderName},
		Text:      msg.Text,
		Timestamp: msg.Timestamp,
		TempID:    tempID,
	})
}

// closeRideRoom leaves only the ride's participants in its room. Drivers who
// joined while the ride was open lose access once it is assigned or cancelled.
func (s *NotificationService) closeRideRoom(ctx context.Context, ride *domain.Ride) {
	if n := s.bus.Restrict(realtime.RideGroup(ride.ID), ride.CustomerID, ride.DriverID); n > 0 {
		s.logger.DebugContext(ctx, "ride room restricted", "ride_id", ride.ID, "removed", n)
	}
}

func (s *NotificationService) publishStatus(ride *domain.Ride) {
	update := realtime.RideStatusUpdate{RideID: ride.ID, Status: ride.Status}
	s.bus.Publish(realtime.UserGroup(ride.CustomerID), update)
	if ride.DriverID != "" {
		s.bus.Publish(realtime.DriverGroup(ride.DriverID), update)
	}
}

func (s *NotificationService) emit(name string, ride *domain.Ride, mutate func(*events.LifecycleEvent)) {
	e := events.LifecycleEvent{
		Name:       name,
		RideID:     ride.ID,
		CustomerID: ride.CustomerID,
		DriverID:   ride.DriverID,
		Status:     ride.Status,
		OccurredAt: s.now(),
	}
	if mutate != nil {
		mutate(&e)
	}
	s.emitter.Emit(e)
}

// send delivers a notification to its group.
func (s *NotificationService) send(ctx context.Context, n Notification) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}

	s.bus.Publish(n.Group, realtime.NewNotification{ID: n.ID, Message: n.Message, Timestamp: n.CreatedAt})
	s.logger.DebugContext(ctx, "notification sent", "type", n.Type, "group", n.Group)
}
