package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cabride/internal/domain"
	"cabride/internal/service"
)

// ReportHandler handles HTTP requests for participant reports.
type ReportHandler struct {
	reportService *service.ReportService
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reportService *service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// ReportRequest is the HTTP request body for filing a report.
type ReportRequest struct {
	Reason string `json:"reason"`
}

// ReportResponse is the HTTP response for report data.
type ReportResponse struct {
	ID             string `json:"id"`
	RideID         string `json:"ride_id"`
	ReporterID     string `json:"reporter_id"`
	ReportedUserID string `json:"reported_user_id"`
	ReporterRole   string `json:"reporter_role"`
	Reason         string `json:"reason"`
	IsResolved     bool   `json:"is_resolved"`
	CreatedAt      string `json:"created_at"`
}

func toReportResponse(r *domain.Report) ReportResponse {
	return ReportResponse{
		ID:             r.ID,
		RideID:         r.RideID,
		ReporterID:     r.ReporterID,
		ReportedUserID: r.ReportedUserID,
		ReporterRole:   string(r.ReporterRole),
		Reason:         r.Reason,
		IsResolved:     r.IsResolved,
		CreatedAt:      formatTime(r.CreatedAt),
	}
}

// ReportDriver handles POST /v1/rides/:id/report
func (h *ReportHandler) ReportDriver(c *gin.Context) {
	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	report, err := h.reportService.ReportDriver(c.Request.Context(), principal(c).UserID, c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toReportResponse(report))
}

// ReportCustomer handles POST /v1/rides/:id/report-customer
func (h *ReportHandler) ReportCustomer(c *gin.Context) {
	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	report, err := h.reportService.ReportCustomer(c.Request.Context(), principal(c).UserID, c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toReportResponse(report))
}
