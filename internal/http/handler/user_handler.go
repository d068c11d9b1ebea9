package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/retailcore/user-management/internal/domain"
	"github.com/retailcore/user-management/internal/service"
)

// UserHandler exposes user registration, login, and profile endpoints.
type UserHandler struct {
	Users  *service.UserService
	Logger *zap.Logger
}

func NewUserHandler(users *service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{Users: users, Logger: logger}
}

// CreateUser handles POST /user.
func (h *UserHandler) CreateUser(c *gin.Context) {
	var cmd service.CreateUserCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": err.Error()})
		return
	}

	user, err := h.Users.CreateUser(c.Request.Context(), cmd)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// GetUserDetails handles GET /user/:userId, where the path parameter is the
// email address the session token was issued for. The auth middleware has
// already matched the token subject against it.
func (h *UserHandler) GetUserDetails(c *gin.Context) {
	user, err := h.Users.GetUserDetails(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Login handles POST /login. Unknown email and wrong password produce the
// same response.
func (h *UserHandler) Login(c *gin.Context) {
	var cmd service.LoginCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": err.Error()})
		return
	}

	resp, err := h.Users.Login(c.Request.Context(), cmd)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidPassword) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials", "error_description": "Invalid email or password."})
			return
		}
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// OrderCompletedRequest is the payload delivered by the order system when an
// order finishes.
type OrderCompletedRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	OrderNumber string `json:"order_number" binding:"required"`
}

// OrderCompleted handles POST /orders/completed, the internal hook the order
// system calls in place of the queue-delivered event.
func (h *UserHandler) OrderCompleted(c *gin.Context) {
	var req OrderCompletedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": err.Error()})
		return
	}

	if err := h.Users.OrderCompleted(c.Request.Context(), req.UserID, req.OrderNumber); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{})
}

// Health handles GET /health.
func (h *UserHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *UserHandler) respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "error_description": "Resource not found."})
	case errors.Is(err, domain.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Invalid access token."})
	case domain.IsInvalidInput(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": err.Error()})
	default:
		h.Logger.Error("user request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Internal server error."})
	}
}
