package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"cabride/internal/domain"
	"cabride/internal/service"
)

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rideService    *service.RideService
	receiptService *service.ReceiptService
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rideService *service.RideService, receiptService *service.ReceiptService) *RideHandler {
	return &RideHandler{
		rideService:    rideService,
		receiptService: receiptService,
	}
}

// CreateRideRequest is the HTTP request body for requesting a ride.
// Any client-computed fare is ignored; the server prices the ride.
type CreateRideRequest struct {
	Pickup       PlaceDTO   `json:"pickup"`
	Dropoff      PlaceDTO   `json:"dropoff"`
	VehicleType  string     `json:"vehicle_type"`
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
}

// VerifyOtpRequest is the HTTP request body for OTP verification.
type VerifyOtpRequest struct {
	OTP string `json:"otp"`
}

// UpdateStatusRequest is the HTTP request body for advancing a ride.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// CancelRideRequest is the HTTP request body for cancelling a ride.
type CancelRideRequest struct {
	Reason string `json:"reason,omitempty"`
}

// RateRideRequest is the HTTP request body for rating a ride.
type RateRideRequest struct {
	Rating int    `json:"rating"`
	Review string `json:"review,omitempty"`
}

// PaymentRequestResponse is the UPI payment request for a completed ride.
type PaymentRequestResponse struct {
	RideID        string  `json:"ride_id"`
	Amount        string  `json:"amount"`
	PayeeUPIID    string  `json:"payee_upi_id"`
	PayeeName     string  `json:"payee_name"`
	QRData        string  `json:"qr_data"`
	PaymentStatus string  `json:"payment_status"`
	DistanceKm    float64 `json:"distance_km"`
	Receipt       string  `json:"receipt"`
}

// CreateRide handles POST /v1/rides
func (h *RideHandler) CreateRide(c *gin.Context) {
	var req CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	in := service.RequestRideInput{
		CustomerID:  principal(c).UserID,
		Pickup:      req.Pickup.toDomain(),
		Dropoff:     req.Dropoff.toDomain(),
		VehicleType: domain.VehicleType(req.VehicleType),
	}
	if req.ScheduledFor != nil {
		in.ScheduledFor = *req.ScheduledFor
	}

	ride, err := h.rideService.RequestRide(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toRideResponse(ride, in.CustomerID))
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	p := principal(c)
	ride, err := h.rideService.GetRide(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride, p.UserID))
}

// History handles GET /v1/rides/history
func (h *RideHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	p := principal(c)

	rides, err := h.rideService.History(c.Request.Context(), p.UserID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponses(rides, p.UserID))
}

// FrequentLocations handles GET /v1/rides/frequent-locations
func (h *RideHandler) FrequentLocations(c *gin.Context) {
	locations, err := h.rideService.FrequentLocations(c.Request.Context(), principal(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, locations)
}

// AcceptRide handles POST /v1/rides/:id/accept
func (h *RideHandler) AcceptRide(c *gin.Context) {
	p := principal(c)
	ride, err := h.rideService.AcceptRide(c.Request.Context(), p.UserID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride, p.UserID))
}

// VerifyOtp handles POST /v1/rides/:id/verify-otp
func (h *RideHandler) VerifyOtp(c *gin.Context) {
	var req VerifyOtpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	if err := h.rideService.VerifyOtp(c.Request.Context(), principal(c).UserID, c.Param("id"), req.OTP); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"verified": true})
}

// UpdateStatus handles POST /v1/rides/:id/status
func (h *RideHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	p := principal(c)
	ride, err := h.rideService.AdvanceStatus(c.Request.Context(), p.UserID, c.Param("id"), domain.RideStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride, p.UserID))
}

// CancelRide handles POST /v1/rides/:id/cancel
func (h *RideHandler) CancelRide(c *gin.Context) {
	var req CancelRideRequest
	// Body is optional.
	_ = c.ShouldBindJSON(&req)

	p := principal(c)
	ride, err := h.rideService.CancelRide(c.Request.Context(), p.UserID, c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride, p.UserID))
}

// MarkPaid handles POST /v1/rides/:id/pay
func (h *RideHandler) MarkPaid(c *gin.Context) {
	p := principal(c)
	ride, err := h.rideService.MarkPaid(c.Request.Context(), p.UserID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride, p.UserID))
}

// Rate handles POST /v1/rides/:id/rate
func (h *RideHandler) Rate(c *gin.Context) {
	var req RateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	p := principal(c)
	ride, err := h.rideService.Rate(c.Request.Context(), service.RateInput{
		CustomerID: p.UserID,
		RideID:     c.Param("id"),
		Rating:     req.Rating,
		Review:     req.Review,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride, p.UserID))
}

// PaymentRequest handles GET /v1/rides/:id/payment-request
func (h *RideHandler) PaymentRequest(c *gin.Context) {
	receipt, err := h.receiptService.PaymentRequest(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, PaymentRequestResponse{
		RideID:        receipt.RideID,
		Amount:        strconv.FormatFloat(receipt.Fare, 'f', 2, 64),
		PayeeUPIID:    receipt.PayeeUPIID,
		PayeeName:     receipt.PayeeName,
		QRData:        receipt.PaymentLink,
		PaymentStatus: string(receipt.PaymentStatus),
		DistanceKm:    receipt.DistanceKm,
		Receipt:       h.receiptService.FormatReceipt(receipt),
	})
}
