package realtime

import (
	"encoding/json"
	"time"

	"cabride/internal/domain"
)

// EventType names an outbound event variant on the wire.
type EventType string

const (
	EventNewRideRequest       EventType = "newRideRequest"
	EventNewScheduledRide     EventType = "newScheduledRide"
	EventRideTaken            EventType = "rideTaken"
	EventRideAccepted         EventType = "rideAccepted"
	EventRideStatusUpdate     EventType = "rideStatusUpdate"
	EventRideCancelled        EventType = "rideCancelled"
	EventDriverLocationUpdate EventType = "driverLocationUpdate"
	EventDriverStatusUpdate   EventType = "driverStatusUpdate"
	EventChatMessage          EventType = "chatMessage"
	EventNewNotification      EventType = "newNotification"
	EventInitialRides         EventType = "initialRides"
	EventPaymentComplete      EventType = "paymentComplete"
	EventError                EventType = "error"
)

// Event is one outbound variant. Each variant carries a fixed field set.
type Event interface {
	EventType() EventType
}

// Envelope is the wire framing of every message in both directions.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode frames e as {"type": ..., "payload": ...}.
func Encode(e Event) ([]byte, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: e.EventType(), Payload: payload})
}

// RideSummary is the ride view pushed to drivers.
type RideSummary struct {
	ID           string             `json:"_id"`
	CustomerID   string             `json:"customer"`
	Pickup       domain.Place       `json:"pickup"`
	Dropoff      domain.Place       `json:"dropoff"`
	VehicleType  domain.VehicleType `json:"vehicleType"`
	Fare         float64            `json:"fare"`
	DistanceKm   float64            `json:"distance"`
	Status       domain.RideStatus  `json:"status"`
	ScheduledFor *time.Time         `json:"scheduledFor,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
}

// SummarizeRide builds the driver-facing view of a ride.
func SummarizeRide(r *domain.Ride) RideSummary {
	s := RideSummary{
		ID:          r.ID,
		CustomerID:  r.CustomerID,
		Pickup:      r.Pickup,
		Dropoff:     r.Dropoff,
		VehicleType: r.VehicleType,
		Fare:        r.Fare,
		DistanceKm:  r.DistanceKm,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
	}
	if !r.ScheduledFor.IsZero() {
		at := r.ScheduledFor
		s.ScheduledFor = &at
	}
	return s
}

// NewRideRequest is sent to a vehicle-type group when a ride is requested.
type NewRideRequest struct {
	RideSummary
}

func (NewRideRequest) EventType() EventType { return EventNewRideRequest }

// NewScheduledRide is sent to a vehicle-type group when a ride is scheduled.
type NewScheduledRide struct {
	RideSummary
}

func (NewScheduledRide) EventType() EventType { return EventNewScheduledRide }

// RideTaken tells drivers a pending ride is gone.
type RideTaken struct {
	RideID string `json:"rideId"`
}

func (RideTaken) EventType() EventType { return EventRideTaken }

// DriverSummary describes the assigned driver to the customer.
type DriverSummary struct {
	ID            string             `json:"_id"`
	VehicleType   domain.VehicleType `json:"vehicleType"`
	VehicleNumber string             `json:"vehicleNumber"`
	Rating        float64            `json:"rating"`
}

// RideAccepted is sent to the customer with the OTP to hand to the driver.
type RideAccepted struct {
	RideID        string        `json:"rideId"`
	DriverName    string        `json:"driverName"`
	DriverDetails DriverSummary `json:"driverDetails"`
	OTP           string        `json:"otp"`
}

func (RideAccepted) EventType() EventType { return EventRideAccepted }

// RideStatusUpdate reports a committed status change.
type RideStatusUpdate struct {
	RideID string            `json:"rideId"`
	Status domain.RideStatus `json:"status"`
}

func (RideStatusUpdate) EventType() EventType { return EventRideStatusUpdate }

// RideCancelled is sent to the counterparty of a cancellation.
type RideCancelled struct {
	RideID      string      `json:"rideId"`
	CancelledBy domain.Role `json:"cancelledBy"`
	Reason      string      `json:"reason,omitempty"`
}

func (RideCancelled) EventType() EventType { return EventRideCancelled }

// DriverLocationUpdate carries a driver's latest position.
type DriverLocationUpdate struct {
	DriverID string          `json:"driverId"`
	Location domain.Location `json:"location"`
}

func (DriverLocationUpdate) EventType() EventType { return EventDriverLocationUpdate }

// DriverStatusUpdate reports a driver going online or offline.
type DriverStatusUpdate struct {
	DriverID string `json:"driverId"`
	IsOnline bool   `json:"isOnline"`
}

func (DriverStatusUpdate) EventType() EventType { return EventDriverStatusUpdate }

// ChatSender identifies the author of a chat message.
type ChatSender struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
}

// ChatMessage is the authoritative copy of an appended message.
// TempID echoes the sender's correlation id unchanged.
type ChatMessage struct {
	ID        string     `json:"_id"`
	RideID    string     `json:"ride"`
	Sender    ChatSender `json:"sender"`
	Text      string     `json:"text"`
	Timestamp time.Time  `json:"timestamp"`
	TempID    string     `json:"tempId,omitempty"`
}

func (ChatMessage) EventType() EventType { return EventChatMessage }

// NewNotification is a human-readable notice for one party.
type NewNotification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (NewNotification) EventType() EventType { return EventNewNotification }

// InitialRides answers a driver's requestInitialRides pull.
type InitialRides struct {
	Rides []RideSummary `json:"rides"`
}

func (InitialRides) EventType() EventType { return EventInitialRides }

// PaymentComplete tells the driver the customer marked the fare paid.
type PaymentComplete struct {
	RideID string `json:"rideId"`
}

func (PaymentComplete) EventType() EventType { return EventPaymentComplete }

// Error reports a rejected inbound message to its sender.
type Error struct {
	Message string `json:"message"`
	Request string `json:"request,omitempty"`
}

func (Error) EventType() EventType { return EventError }
