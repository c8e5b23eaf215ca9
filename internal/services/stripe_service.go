package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"smartwish-backend/internal/config"
	"smartwish-backend/internal/logger"
	"smartwish-backend/internal/models"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

var (
	ErrStripeAPIError         = errors.New("stripe API error")
	ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")
	ErrWebhookVerification    = errors.New("webhook signature verification failed")
)

// StripeService handles integration with the Stripe payment gateway
type StripeService struct {
	client        *client.API
	webhookSecret string
	log           *logger.Logger
}

// parseStringToInt64 safely converts a string to int64, returns 0 if conversion fails
func parseStringToInt64(s string) int64 {
	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return val
}

func NewStripeService(cfg config.StripeConfig, log *logger.Logger) (*StripeService, error) {
	if cfg.SecretKey == "" {
		log.Error("STRIPE", "Stripe secret key is not configured")
		return nil, ErrStripeClientInitFailed
	}

	sc := client.New(cfg.SecretKey, nil)
	if sc == nil {
		log.Error("STRIPE", "Failed to initialize Stripe client")
		return nil, ErrStripeClientInitFailed
	}

	log.Info("STRIPE", "Stripe client initialized successfully")
	return &StripeService{
		client:        sc,
		webhookSecret: cfg.WebhookSecret,
		log:           log,
	}, nil
}

// CreateIntent opens a payment intent for a session. The kiosk confirms the
// intent client side with the returned secret; metadata ties the intent back
// to the order and session for webhook processing.
func (s *StripeService) CreateIntent(ctx context.Context, session *models.PaymentSession, order *models.Order) (string, string, error) {
	amountInCents := int64(math.Round(session.Amount * 100))

	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(amountInCents),
		Currency:    stripe.String(strings.ToLower(session.Currency)),
		Description: stripe.String(fmt.Sprintf("SmartWish order %s", order.OrderID)),
		Metadata: map[string]string{
			"order_id":   order.OrderID,
			"session_id": session.ID,
		},
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}

	s.log.LogPayment("STRIPE", session.ID, fmt.Sprintf("Creating payment intent for order %s (%d cents)", order.OrderID, amountInCents))
	pi, err := s.client.PaymentIntents.New(params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to create payment intent: %v", err))
		return "", "", fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}

	s.log.LogPayment("STRIPE", session.ID, fmt.Sprintf("Payment intent created: %s", pi.ID))
	return pi.ID, pi.ClientSecret, nil
}

// ValidateCard validates the provided card details using Stripe
func (s *StripeService) ValidateCard(card *models.StripeCardDetails) (*models.StripeCardValidationResponse, error) {
	// Create a payment method to validate the card
	params := &stripe.PaymentMethodParams{
		Type: stripe.String("card"),
		Card: &stripe.PaymentMethodCardParams{
			Number:   stripe.String(card.Number),
			ExpMonth: stripe.Int64(parseStringToInt64(card.ExpMonth)),
			ExpYear:  stripe.Int64(parseStringToInt64(card.ExpYear)),
			CVC:      stripe.String(card.CVC),
		},
	}
	if card.Name != "" {
		params.BillingDetails = &stripe.PaymentMethodBillingDetailsParams{
			Name: stripe.String(card.Name),
		}
		if card.Address != nil {
			params.BillingDetails.Address = &stripe.AddressParams{
				Line1:      stripe.String(card.Address.Line1),
				Line2:      stripe.String(card.Address.Line2),
				City:       stripe.String(card.Address.City),
				State:      stripe.String(card.Address.State),
				PostalCode: stripe.String(card.Address.PostalCode),
				Country:    stripe.String(card.Address.Country),
			}
		}
	}

	pm, err := s.client.PaymentMethods.New(params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Card validation failed: %v", err))

		return &models.StripeCardValidationResponse{
			Valid:   false,
			Message: err.Error(),
		}, nil
	}

	response := &models.StripeCardValidationResponse{
		Valid:    true,
		Message:  "Card is valid",
		CardType: string(pm.Card.Brand),
		Last4:    pm.Card.Last4,
	}

	s.log.LogPayment("VALIDATE", "card", fmt.Sprintf("Card validation successful: %s ending in %s", response.CardType, response.Last4))

	// Clean up the payment method since we don't need it anymore
	_, err = s.client.PaymentMethods.Detach(pm.ID, &stripe.PaymentMethodDetachParams{})
	if err != nil {
		s.log.Warn("STRIPE", fmt.Sprintf("Failed to detach payment method: %v", err))
	}

	return response, nil
}

// RefundPayment refunds a payment intent, optionally partially
func (s *StripeService) RefundPayment(ctx context.Context, req *models.StripeRefundRequest) (*models.StripeRefundResponse, error) {
	s.log.LogPayment("REFUND", req.PaymentIntentID, "Processing Stripe refund")

	reason := string(stripe.RefundReasonRequestedByCustomer)
	switch req.Reason {
	case string(stripe.RefundReasonDuplicate), string(stripe.RefundReasonFraudulent), string(stripe.RefundReasonRequestedByCustomer):
		reason = req.Reason
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.PaymentIntentID),
		Reason:        stripe.String(reason),
	}

	if req.Amount != nil {
		amountInCents := int64(math.Round(*req.Amount * 100))
		params.Amount = stripe.Int64(amountInCents)
		s.log.LogPayment("REFUND", req.PaymentIntentID, fmt.Sprintf("Refunding partial amount: %.2f", *req.Amount))
	} else {
		s.log.LogPayment("REFUND", req.PaymentIntentID, "Refunding full amount")
	}

	refundObj, err := s.client.Refunds.New(params)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Refund failed: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}

	s.log.LogPayment("REFUND", req.PaymentIntentID, fmt.Sprintf("Refund successful, refund ID: %s", refundObj.ID))

	return &models.StripeRefundResponse{
		RefundID:        refundObj.ID,
		PaymentIntentID: req.PaymentIntentID,
		Amount:          float64(refundObj.Amount) / 100.0,
		Status:          string(refundObj.Status),
	}, nil
}

// GetPaymentDetails retrieves the normalized view of a payment intent
func (s *StripeService) GetPaymentDetails(ctx context.Context, paymentIntentID string) (*models.StripePaymentDetails, error) {
	s.log.LogPayment("GET", paymentIntentID, "Retrieving payment details from Stripe")

	pi, err := s.client.PaymentIntents.Get(paymentIntentID, nil)
	if err != nil {
		s.log.Error("STRIPE", fmt.Sprintf("Failed to retrieve payment intent: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}

	var status models.SessionStatus
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		status = models.SessionCompleted
	case stripe.PaymentIntentStatusProcessing,
		stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresConfirmation:
		status = models.SessionProcessing
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		status = models.SessionPending
	default:
		status = models.SessionFailed
	}

	details := &models.StripePaymentDetails{
		PaymentIntentID: pi.ID,
		OrderID:         pi.Metadata["order_id"],
		SessionID:       pi.Metadata["session_id"],
		Status:          status,
		Amount:          float64(pi.Amount) / 100.0,
		Currency:        strings.ToUpper(string(pi.Currency)),
		Created:         pi.Created,
	}

	if pi.LatestCharge != nil && pi.LatestCharge.ID != "" {
		charge, err := s.client.Charges.Get(pi.LatestCharge.ID, nil)
		if err == nil && charge.ReceiptURL != "" {
			details.ReceiptURL = charge.ReceiptURL
		}
	}

	return details, nil
}

// VerifyWebhook checks the event signature and normalizes the payment intent
// events this service reacts to. Other event types come back with only the
// EventType set so callers can acknowledge and skip them.
func (s *StripeService) VerifyWebhook(payload []byte, signature string) (*models.StripeWebhookResult, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		s.log.LogSecurity("WEBHOOK_REJECTED", fmt.Sprintf("Stripe webhook signature check failed: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrWebhookVerification, err)
	}

	result := &models.StripeWebhookResult{EventType: string(event.Type)}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("failed to decode payment intent from webhook: %w", err)
		}

		result.PaymentIntentID = pi.ID
		result.OrderID = pi.Metadata["order_id"]
		result.SessionID = pi.Metadata["session_id"]
		result.Amount = float64(pi.Amount) / 100.0
		result.Currency = strings.ToUpper(string(pi.Currency))

		if pi.LatestCharge != nil {
			result.ChargeID = pi.LatestCharge.ID
		}
		if pi.LastPaymentError != nil {
			result.FailureCode = string(pi.LastPaymentError.Code)
			result.FailureMessage = pi.LastPaymentError.Msg
		}

		s.log.LogPayment("WEBHOOK", pi.ID, fmt.Sprintf("Verified %s for order %s", event.Type, result.OrderID))
	default:
		s.log.Debug("STRIPE", fmt.Sprintf("Ignoring webhook event type %s", event.Type))
	}

	return result, nil
}
