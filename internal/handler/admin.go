package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cabride/internal/service"
)

// AdminHandler handles HTTP requests for moderation.
type AdminHandler struct {
	adminService *service.AdminService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(adminService *service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// SuspendRequest is the HTTP request body for suspending a user.
type SuspendRequest struct {
	Days int `json:"days"`
}

// RejectRequest is the HTTP request body for rejecting a driver.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// Users handles GET /v1/admin/users
func (h *AdminHandler) Users(c *gin.Context) {
	users, err := h.adminService.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	respondJSON(c, http.StatusOK, out)
}

// Drivers handles GET /v1/admin/drivers
func (h *AdminHandler) Drivers(c *gin.Context) {
	drivers, err := h.adminService.ListDrivers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]DriverResponse, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, toDriverResponse(d))
	}
	respondJSON(c, http.StatusOK, out)
}

// Suspend handles POST /v1/admin/users/:id/suspend
func (h *AdminHandler) Suspend(c *gin.Context) {
	var req SuspendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	until, err := h.adminService.SuspendUser(c.Request.Context(), c.Param("id"), req.Days)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"suspended_until": formatTime(until)})
}

// VerifyDriver handles POST /v1/admin/drivers/:id/verify
func (h *AdminHandler) VerifyDriver(c *gin.Context) {
	if err := h.adminService.VerifyDriver(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"message": "driver verified"})
}

// RejectDriver handles POST /v1/admin/drivers/:id/reject
func (h *AdminHandler) RejectDriver(c *gin.Context) {
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	if err := h.adminService.RejectDriver(c.Request.Context(), c.Param("id"), req.Reason); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"message": "driver rejected"})
}

// Reports handles GET /v1/admin/reports
func (h *AdminHandler) Reports(c *gin.Context) {
	reports, err := h.adminService.ListReports(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]ReportResponse, 0, len(reports))
	for _, r := range reports {
		out = append(out, toReportResponse(r))
	}
	respondJSON(c, http.StatusOK, out)
}

// ToggleReport handles POST /v1/admin/reports/:id/toggle
func (h *AdminHandler) ToggleReport(c *gin.Context) {
	report, err := h.adminService.ToggleReportResolved(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toReportResponse(report))
}
