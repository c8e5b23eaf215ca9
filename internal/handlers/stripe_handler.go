package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"smartwish-backend/internal/logger"
	"smartwish-backend/internal/models"
	"smartwish-backend/internal/services"
	"smartwish-backend/internal/utils"
)

type StripeHandler struct {
	stripe   *services.StripeService
	sessions *services.SessionService
	orders   *services.OrderService
	log      *logger.Logger
}

func NewStripeHandler(stripe *services.StripeService, sessions *services.SessionService, orders *services.OrderService, log *logger.Logger) *StripeHandler {
	return &StripeHandler{
		stripe:   stripe,
		sessions: sessions,
		orders:   orders,
		log:      log,
	}
}

// ValidateCard validates credit card details without creating a charge
func (h *StripeHandler) ValidateCard(c *gin.Context) {
	var req models.StripeCardValidationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	result, err := h.stripe.ValidateCard(req.Card)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Card validation failed", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Card validation result", result))
}

// RefundPayment refunds a payment intent, fully or partially.
func (h *StripeHandler) RefundPayment(c *gin.Context) {
	var req models.StripeRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	result, err := h.stripe.RefundPayment(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Refund processing failed", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Refund processed", result))
}

// GetPaymentDetails retrieves the normalized view of a payment intent.
func (h *StripeHandler) GetPaymentDetails(c *gin.Context) {
	paymentIntentID := c.Param("id")
	if paymentIntentID == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Payment intent ID is required", ""))
		return
	}

	result, err := h.stripe.GetPaymentDetails(c.Request.Context(), paymentIntentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to retrieve payment details", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Payment details retrieved", result))
}

// HandleWebhook verifies and applies Stripe webhook events. Payment outcomes
// are recorded as transactions and drive the order lifecycle; side effect
// failures are logged but never bounce the webhook, since Stripe would only
// redeliver the same event.
func (h *StripeHandler) HandleWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Failed to read request body", err.Error()))
		return
	}

	result, err := h.stripe.VerifyWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, services.ErrWebhookVerification) {
			c.JSON(http.StatusBadRequest, utils.ErrorResponse("Webhook signature verification failed", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to process webhook", err.Error()))
		return
	}

	switch result.EventType {
	case "payment_intent.succeeded":
		h.applyPaymentOutcome(c, result, models.TxnSucceeded, models.OrderPaid)
	case "payment_intent.payment_failed":
		h.applyPaymentOutcome(c, result, models.TxnFailed, models.OrderFailed)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *StripeHandler) applyPaymentOutcome(c *gin.Context, result *models.StripeWebhookResult, txnStatus models.TransactionStatus, orderStatus models.OrderStatus) {
	ctx := c.Request.Context()

	if result.OrderID == "" {
		h.log.Warn("STRIPE", fmt.Sprintf("Webhook %s for intent %s carries no order metadata, skipping", result.EventType, result.PaymentIntentID))
		return
	}

	txn := &models.Transaction{
		OrderID:          result.OrderID,
		PaymentSessionID: result.SessionID,
		Amount:           result.Amount,
		Currency:         result.Currency,
		StripeIntentID:   result.PaymentIntentID,
		StripeChargeID:   result.ChargeID,
		Status:           txnStatus,
		FailureCode:      result.FailureCode,
		FailureMessage:   result.FailureMessage,
	}
	if err := h.sessions.RecordTransaction(ctx, txn); err != nil {
		h.log.Error("STRIPE", fmt.Sprintf("Failed to record transaction for order %s: %v", result.OrderID, err))
	}

	if _, err := h.orders.UpdateOrderStatus(ctx, result.OrderID, orderStatus); err != nil {
		h.log.Warn("STRIPE", fmt.Sprintf("Webhook could not move order %s to %s: %v", result.OrderID, orderStatus, err))
	}
}
