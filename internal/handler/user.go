package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cabride/internal/domain"
	"cabride/internal/service"
)

// UserHandler handles HTTP requests for accounts.
type UserHandler struct {
	accountService *service.AccountService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(accountService *service.AccountService) *UserHandler {
	return &UserHandler{accountService: accountService}
}

// RegisterRequest is the HTTP request body for registration.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the HTTP request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the HTTP response for user data.
type UserResponse struct {
	ID              string  `json:"id"`
	Username        string  `json:"username"`
	Email           string  `json:"email"`
	IsDriver        bool    `json:"is_driver"`
	Role            string  `json:"role"`
	OutstandingFine float64 `json:"outstanding_fine"`
	SuspendedUntil  string  `json:"suspended_until,omitempty"`
}

// AuthResponse is returned by register, login and reauthenticate.
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

func toUserResponse(u *domain.User) UserResponse {
	return UserResponse{
		ID:              u.ID,
		Username:        u.Username,
		Email:           u.Email,
		IsDriver:        u.IsDriver,
		Role:            string(u.Role),
		OutstandingFine: u.OutstandingFine,
		SuspendedUntil:  formatTime(u.SuspendedUntil),
	}
}

func toAuthResponse(r *service.AuthResult) AuthResponse {
	return AuthResponse{Token: r.Token, User: toUserResponse(r.User)}
}

// Register handles POST /v1/auth/register
func (h *UserHandler) Register(c *gin.Context) {
	h.register(c, h.accountService.Register)
}

// RegisterDriver handles POST /v1/auth/register-driver
func (h *UserHandler) RegisterDriver(c *gin.Context) {
	h.register(c, h.accountService.RegisterDriver)
}

func (h *UserHandler) register(c *gin.Context, create func(ctx context.Context, req service.RegisterRequest) (*service.AuthResult, error)) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	result, err := create(c.Request.Context(), service.RegisterRequest{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toAuthResponse(result))
}

// Login handles POST /v1/auth/login
func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	result, err := h.accountService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toAuthResponse(result))
}

// Reauthenticate handles POST /v1/auth/reauthenticate
func (h *UserHandler) Reauthenticate(c *gin.Context) {
	result, err := h.accountService.Reauthenticate(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toAuthResponse(result))
}

// Profile handles GET /v1/users/profile/:id
func (h *UserHandler) Profile(c *gin.Context) {
	id := c.Param("id")
	p := principal(c)
	if id != p.UserID && !p.IsAdmin() {
		respondError(c, service.ErrForbidden)
		return
	}

	user, err := h.accountService.Profile(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toUserResponse(user))
}

// formatTime renders t as RFC3339, or empty for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
