package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cabride/internal/auth"
	"cabride/internal/domain"
	"cabride/internal/middleware"
	"cabride/internal/repository"
	"cabride/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response with the appropriate HTTP status code.
// Unexpected errors are logged and reported with a generic message.
func respondError(c *gin.Context, err error) {
	code := mapErrorToHTTPStatus(err)
	if code == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(code, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// badRequest rejects a malformed request body.
func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
}

// principal returns the authenticated principal set by the auth middleware.
func principal(c *gin.Context) auth.Principal {
	p, _ := middleware.PrincipalFrom(c)
	return p
}

// mapErrorToHTTPStatus maps service/repository errors to HTTP status codes.
func mapErrorToHTTPStatus(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound

	// Validation errors - Bad Request
	case errors.Is(err, service.ErrInvalidRideID),
		errors.Is(err, service.ErrInvalidUserID),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrInvalidVehicleType),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidRating),
		errors.Is(err, service.ErrInvalidOtp),
		errors.Is(err, service.ErrNoFine):
		return http.StatusBadRequest

	// Authentication errors
	case errors.Is(err, service.ErrUnauthorized),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized

	// Conflict errors
	case errors.Is(err, service.ErrRideUnavailable),
		errors.Is(err, service.ErrInvalidState),
		errors.Is(err, service.ErrAlreadyTerminal),
		errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrReservedUsername),
		errors.Is(err, service.ErrDriverBusy),
		errors.Is(err, service.ErrNoDriverAssigned),
		errors.Is(err, service.ErrRideNotCompleted),
		errors.Is(err, service.ErrDuplicateReport):
		return http.StatusConflict

	// Forbidden/Business rule errors
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrOtpNotVerified),
		errors.Is(err, service.ErrFineOutstanding),
		errors.Is(err, service.ErrSuspended),
		errors.Is(err, service.ErrNotDriver),
		errors.Is(err, service.ErrProfileIncomplete),
		errors.Is(err, service.ErrDriverOffline):
		return http.StatusForbidden

	case errors.Is(err, service.ErrPaymentFailed):
		return http.StatusPaymentRequired

	// Default to internal server error
	default:
		return http.StatusInternalServerError
	}
}

// LocationDTO is a coordinate on the wire.
type LocationDTO struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PlaceDTO is an address with coordinates on the wire.
type PlaceDTO struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

func (p PlaceDTO) toDomain() domain.Place {
	return domain.Place{Address: p.Address, Location: domain.Location{Lat: p.Lat, Lng: p.Lng}}
}

func placeDTO(p domain.Place) PlaceDTO {
	return PlaceDTO{Address: p.Address, Lat: p.Lat, Lng: p.Lng}
}

// RideResponse is the HTTP representation of a ride.
type RideResponse struct {
	ID                 string   `json:"id"`
	CustomerID         string   `json:"customer_id"`
	DriverID           string   `json:"driver_id,omitempty"`
	Pickup             PlaceDTO `json:"pickup"`
	Dropoff            PlaceDTO `json:"dropoff"`
	VehicleType        string   `json:"vehicle_type"`
	Fare               float64  `json:"fare"`
	DistanceKm         float64  `json:"distance_km"`
	Status             string   `json:"status"`
	OTP                string   `json:"otp,omitempty"`
	PaymentStatus      string   `json:"payment_status"`
	CancellationReason string   `json:"cancellation_reason,omitempty"`
	Rating             int      `json:"rating,omitempty"`
	Review             string   `json:"review,omitempty"`
	ChatSessionID      string   `json:"chat_session_id,omitempty"`
	AcceptedAt         string   `json:"accepted_at,omitempty"`
	StartTime          string   `json:"start_time,omitempty"`
	EndTime            string   `json:"end_time,omitempty"`
	ScheduledFor       string   `json:"scheduled_for,omitempty"`
	CancelledAt        string   `json:"cancelled_at,omitempty"`
	CreatedAt          string   `json:"created_at"`
}

// toRideResponse renders a ride for viewer. The OTP is shown to the customer only.
func toRideResponse(r *domain.Ride, viewerID string) RideResponse {
	resp := RideResponse{
		ID:                 r.ID,
		CustomerID:         r.CustomerID,
		DriverID:           r.DriverID,
		Pickup:             placeDTO(r.Pickup),
		Dropoff:            placeDTO(r.Dropoff),
		VehicleType:        string(r.VehicleType),
		Fare:               r.Fare,
		DistanceKm:         r.DistanceKm,
		Status:             string(r.Status),
		PaymentStatus:      string(r.PaymentStatus),
		CancellationReason: r.CancellationReason,
		Rating:             r.Rating,
		Review:             r.Review,
		ChatSessionID:      r.ChatSessionID,
		AcceptedAt:         formatTime(r.AcceptedAt),
		StartTime:          formatTime(r.StartTime),
		EndTime:            formatTime(r.EndTime),
		ScheduledFor:       formatTime(r.ScheduledFor),
		CancelledAt:        formatTime(r.CancelledAt),
		CreatedAt:          formatTime(r.CreatedAt),
	}
	if viewerID == r.CustomerID {
		resp.OTP = r.OTP
	}
	return resp
}

func toRideResponses(rides []*domain.Ride, viewerID string) []RideResponse {
	out := make([]RideResponse, 0, len(rides))
	for _, r := range rides {
		out = append(out, toRideResponse(r, viewerID))
	}
	return out
}
