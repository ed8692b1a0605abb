package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cabride/internal/domain"
	"cabride/internal/middleware"
	"cabride/internal/service"
)

// PaymentHandler handles HTTP requests for fine payments.
type PaymentHandler struct {
	paymentService *service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// PaymentResponse is the HTTP response for payment operations.
type PaymentResponse struct {
	ID             string  `json:"id"`
	Purpose        string  `json:"purpose"`
	Amount         float64 `json:"amount"`
	Status         string  `json:"status"`
	ProviderRef    string  `json:"provider_ref,omitempty"`
	IdempotencyKey string  `json:"idempotency_key"`
}

func toPaymentResponse(p *domain.Payment) PaymentResponse {
	return PaymentResponse{
		ID:             p.ID,
		Purpose:        string(p.Purpose),
		Amount:         p.Amount,
		Status:         string(p.Status),
		ProviderRef:    p.ProviderRef,
		IdempotencyKey: p.IdempotencyKey,
	}
}

// OutstandingFine handles GET /v1/payments/fine
func (h *PaymentHandler) OutstandingFine(c *gin.Context) {
	amount, err := h.paymentService.Outstanding(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"outstanding_fine": amount})
}

// PayFine handles POST /v1/payments/fine
func (h *PaymentHandler) PayFine(c *gin.Context) {
	payment, err := h.paymentService.PayFine(c.Request.Context(), service.PayFineRequest{
		Principal:      principal(c),
		IdempotencyKey: c.GetHeader(middleware.IdempotencyHeader),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toPaymentResponse(payment))
}

// GetPayment handles GET /v1/payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	payment, err := h.paymentService.GetPayment(c.Request.Context(), principal(c).UserID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toPaymentResponse(payment))
}
