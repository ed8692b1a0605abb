package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cabride/internal/domain"
	"cabride/internal/service"
)

// DriverHandler handles HTTP requests for drivers.
type DriverHandler struct {
	driverService *service.DriverService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(driverService *service.DriverService) *DriverHandler {
	return &DriverHandler{driverService: driverService}
}

// UpdateProfileRequest is the HTTP request body for the vehicle profile.
type UpdateProfileRequest struct {
	VehicleType   string `json:"vehicle_type"`
	VehicleNumber string `json:"vehicle_number"`
	UPIID         string `json:"upi_id,omitempty"`
}

// SetStatusRequest is the HTTP request body for going online or offline.
type SetStatusRequest struct {
	IsOnline bool         `json:"is_online"`
	Location *LocationDTO `json:"location,omitempty"`
}

// DriverResponse is the HTTP response for driver data.
type DriverResponse struct {
	ID               string       `json:"id"`
	Username         string       `json:"username"`
	VehicleType      string       `json:"vehicle_type,omitempty"`
	VehicleNumber    string       `json:"vehicle_number,omitempty"`
	UPIID            string       `json:"upi_id,omitempty"`
	IsOnline         bool         `json:"is_online"`
	CurrentLocation  *LocationDTO `json:"current_location,omitempty"`
	Rating           float64      `json:"rating"`
	CompletedTrips   int          `json:"completed_trips"`
	OutstandingFine  float64      `json:"outstanding_fine"`
	ProfileCompleted bool         `json:"profile_completed"`
	RejectionReason  string       `json:"rejection_reason,omitempty"`
}

// NearbyDriverResponse is one available driver near a point.
type NearbyDriverResponse struct {
	ID          string      `json:"id"`
	Username    string      `json:"username"`
	VehicleType string      `json:"vehicle_type"`
	Location    LocationDTO `json:"location"`
	Rating      float64     `json:"rating"`
	DistanceKm  float64     `json:"distance_km"`
}

func toDriverResponse(d *domain.Driver) DriverResponse {
	resp := DriverResponse{
		ID:               d.ID,
		Username:         d.Username,
		VehicleType:      string(d.VehicleType),
		VehicleNumber:    d.VehicleNumber,
		UPIID:            d.UPIID,
		IsOnline:         d.IsOnline,
		Rating:           d.Rating,
		CompletedTrips:   d.CompletedTrips,
		OutstandingFine:  d.OutstandingFine,
		ProfileCompleted: d.ProfileCompleted,
		RejectionReason:  d.RejectionReason,
	}
	if d.CurrentLocation != nil {
		resp.CurrentLocation = &LocationDTO{Lat: d.CurrentLocation.Lat, Lng: d.CurrentLocation.Lng}
	}
	return resp
}

// Me handles GET /v1/drivers/me
func (h *DriverHandler) Me(c *gin.Context) {
	driver, err := h.driverService.Get(c.Request.Context(), principal(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toDriverResponse(driver))
}

// Profile handles GET /v1/drivers/profile/:id
func (h *DriverHandler) Profile(c *gin.Context) {
	profile, err := h.driverService.PublicProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, profile)
}

// UpdateProfile handles PUT /v1/drivers/profile
func (h *DriverHandler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	driver, err := h.driverService.UpdateProfile(c.Request.Context(), service.UpdateProfileRequest{
		DriverID:      principal(c).UserID,
		VehicleType:   domain.VehicleType(req.VehicleType),
		VehicleNumber: req.VehicleNumber,
		UPIID:         req.UPIID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toDriverResponse(driver))
}

// SetStatus handles POST /v1/drivers/status
func (h *DriverHandler) SetStatus(c *gin.Context) {
	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	var loc *domain.Location
	if req.Location != nil {
		loc = &domain.Location{Lat: req.Location.Lat, Lng: req.Location.Lng}
	}

	driver, err := h.driverService.SetAvailability(c.Request.Context(), principal(c).UserID, req.IsOnline, loc)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toDriverResponse(driver))
}

// UpdateLocation handles POST /v1/drivers/location
func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	var req LocationDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	err := h.driverService.UpdateLocation(c.Request.Context(), principal(c).UserID, domain.Location{Lat: req.Lat, Lng: req.Lng})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"message": "location updated"})
}

// Nearby handles GET /v1/drivers/nearby?lat=..&lng=..
func (h *DriverHandler) Nearby(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		respondError(c, service.ErrInvalidLocation)
		return
	}

	nearby, err := h.driverService.NearbyDrivers(c.Request.Context(), domain.Location{Lat: lat, Lng: lng})
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]NearbyDriverResponse, 0, len(nearby))
	for _, n := range nearby {
		out = append(out, NearbyDriverResponse{
			ID:          n.Driver.ID,
			Username:    n.Driver.Username,
			VehicleType: string(n.Driver.VehicleType),
			Location:    LocationDTO{Lat: n.Driver.CurrentLocation.Lat, Lng: n.Driver.CurrentLocation.Lng},
			Rating:      n.Driver.Rating,
			DistanceKm:  n.DistanceKm,
		})
	}
	respondJSON(c, http.StatusOK, out)
}

// Trips handles GET /v1/drivers/trips
func (h *DriverHandler) Trips(c *gin.Context) {
	p := principal(c)
	rides, err := h.driverService.Trips(c.Request.Context(), p.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponses(rides, p.UserID))
}

// ScheduledRides handles GET /v1/drivers/scheduled-rides
func (h *DriverHandler) ScheduledRides(c *gin.Context) {
	p := principal(c)
	rides, err := h.driverService.ScheduledRides(c.Request.Context(), p.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponses(rides, p.UserID))
}

// InitialRides handles GET /v1/drivers/initial-rides
func (h *DriverHandler) InitialRides(c *gin.Context) {
	p := principal(c)
	vehicleType := domain.VehicleType(c.Query("vehicle_type"))
	if vehicleType == "" {
		driver, err := h.driverService.Get(c.Request.Context(), p.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		vehicleType = driver.VehicleType
	}

	rides, err := h.driverService.InitialRides(c.Request.Context(), vehicleType)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponses(rides, p.UserID))
}
