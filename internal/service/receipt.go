package service

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"cabride/internal/auth"
	"cabride/internal/domain"
	"cabride/internal/repository"
)

// Payee is the account a fare is paid into when the driver has no UPI id.
type Payee struct {
	UPIID string
	Name  string
}

// Receipt is the fare summary of a completed ride plus the UPI link that pays it.
type Receipt struct {
	RideID        string
	CustomerID    string
	DriverID      string
	Pickup        string
	Dropoff       string
	VehicleType   domain.VehicleType
	DistanceKm    float64
	Fare          float64
	Duration      time.Duration
	PaymentStatus domain.PaymentStatus
	PayeeUPIID    string
	PayeeName     string
	PaymentLink   string
	StartedAt     time.Time
	EndedAt       time.Time
}

// ReceiptService builds payment requests for completed rides.
type ReceiptService struct {
	rideRepo   repository.RideRepository
	driverRepo repository.DriverRepository
	platform   Payee
}

// NewReceiptService creates a new ReceiptService.
func NewReceiptService(rideRepo repository.RideRepository, driverRepo repository.DriverRepository, platform Payee) *ReceiptService {
	return &ReceiptService{
		rideRepo:   rideRepo,
		driverRepo: driverRepo,
		platform:   platform,
	}
}

// PaymentRequest returns the receipt of a completed ride to one of its participants.
func (s *ReceiptService) PaymentRequest(ctx context.Context, p auth.Principal, rideID string) (*Receipt, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !ride.IsParticipant(p.UserID) {
		return nil, ErrForbidden
	}
	if ride.Status != domain.RideStatusCompleted {
		return nil, ErrRideNotCompleted
	}

	payee := s.platform
	if ride.DriverID != "" {
		driver, err := s.driverRepo.GetByID(ctx, ride.DriverID)
		if err != nil && err != repository.ErrNotFound {
			return nil, err
		}
		if driver != nil && driver.UPIID != "" {
			payee = Payee{UPIID: driver.UPIID, Name: driver.Username}
		}
	}

	receipt := &Receipt{
		RideID:        ride.ID,
		CustomerID:    ride.CustomerID,
		DriverID:      ride.DriverID,
		Pickup:        ride.Pickup.Address,
		Dropoff:       ride.Dropoff.Address,
		VehicleType:   ride.VehicleType,
		DistanceKm:    ride.DistanceKm,
		Fare:          ride.Fare,
		PaymentStatus: ride.PaymentStatus,
		PayeeUPIID:    payee.UPIID,
		PayeeName:     payee.Name,
		PaymentLink:   UPILink(payee, ride.Fare, ride.ID),
		StartedAt:     ride.StartTime,
		EndedAt:       ride.EndTime,
	}
	if !ride.StartTime.IsZero() && ride.EndTime.After(ride.StartTime) {
		receipt.Duration = ride.EndTime.Sub(ride.StartTime)
	}

	return receipt, nil
}

// UPILink builds the upi://pay deep link for amount, tagged with the ride id.
func UPILink(payee Payee, amount float64, rideID string) string {
	return fmt.Sprintf("upi://pay?pa=%s&pn=%s&am=%s&cu=INR&tr=%s&tn=%s",
		payee.UPIID,
		url.QueryEscape(payee.Name),
		formatFloat(amount),
		rideID,
		url.QueryEscape("Payment for CabRide"),
	)
}

// FormatReceipt formats the receipt as plain text.
func (s *ReceiptService) FormatReceipt(receipt *Receipt) string {
	return `
=====================================
        CABRIDE RECEIPT
=====================================
Ride ID: ` + receipt.RideID + `
Date: ` + receipt.EndedAt.Format("Jan 02, 2006 3:04 PM") + `

TRIP DETAILS
-------------------------------------
Pickup:   ` + receipt.Pickup + `
Dropoff:  ` + receipt.Dropoff + `
Vehicle:  ` + string(receipt.VehicleType) + `
Duration: ` + formatDuration(receipt.Duration) + `
Distance: ` + formatFloat(receipt.DistanceKm) + ` km

FARE
-------------------------------------
TOTAL:    INR ` + formatFloat(receipt.Fare) + `
Status:   ` + string(receipt.PaymentStatus) + `
Pay to:   ` + receipt.PayeeUPIID + `

=====================================
     Thank you for riding with us!
=====================================
`
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

func formatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	return fmt.Sprintf("%d min", minutes)
}
