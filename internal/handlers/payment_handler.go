package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"smartwish-backend/internal/models"
	"smartwish-backend/internal/services"
	"smartwish-backend/internal/utils"
)

type PaymentHandler struct {
	sessions *services.SessionService
}

func NewPaymentHandler(sessions *services.SessionService) *PaymentHandler {
	return &PaymentHandler{
		sessions: sessions,
	}
}

// CreateSession opens (or returns the existing) checkout session for an
// order, including the Stripe client secret the kiosk needs to collect
// payment.
func (h *PaymentHandler) CreateSession(c *gin.Context) {
	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	session, err := h.sessions.CreateSession(c.Request.Context(), req.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Order not found", err.Error()))
		case errors.Is(err, services.ErrOrderNotPayable):
			c.JSON(http.StatusConflict, utils.ErrorResponse("Order cannot be paid", err.Error()))
		case errors.Is(err, services.ErrSessionLocked):
			c.JSON(http.StatusConflict, utils.ErrorResponse("Session creation already in progress", err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to create payment session", err.Error()))
		}
		return
	}

	c.JSON(http.StatusCreated, utils.SuccessResponse("Payment session created", session))
}

func (h *PaymentHandler) GetSession(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Session ID is required", ""))
		return
	}

	session, err := h.sessions.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Payment session not found", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to retrieve payment session", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Payment session retrieved", session))
}

func (h *PaymentHandler) GetSessionByOrder(c *gin.Context) {
	orderID := c.Param("id")
	if orderID == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Order ID is required", ""))
		return
	}

	session, err := h.sessions.GetSessionByOrder(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("No payment session for this order", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to retrieve payment session", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Payment session retrieved", session))
}

func (h *PaymentHandler) ListOrderTransactions(c *gin.Context) {
	orderID := c.Param("id")
	if orderID == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Order ID is required", ""))
		return
	}

	transactions, err := h.sessions.ListOrderTransactions(c.Request.Context(), orderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to list transactions", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Transactions retrieved", transactions))
}
