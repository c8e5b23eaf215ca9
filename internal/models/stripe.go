package models

// StripeCardDetails represents credit card information collected by the kiosk
// payment form. Only used by the validation endpoint and test flows; real
// charges go through tokenized payment methods.
type StripeCardDetails struct {
	Number   string         `json:"number" binding:"required"`
	ExpMonth string         `json:"exp_month" binding:"required"`
	ExpYear  string         `json:"exp_year" binding:"required"`
	CVC      string         `json:"cvc" binding:"required"`
	Name     string         `json:"name"`
	Address  *StripeAddress `json:"address,omitempty"`
}

// StripeAddress represents billing address information
type StripeAddress struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// StripeCardValidationRequest represents a request to validate a credit card
type StripeCardValidationRequest struct {
	Card *StripeCardDetails `json:"card" binding:"required"`
}

// StripeCardValidationResponse represents the response from a card validation request
type StripeCardValidationResponse struct {
	Valid    bool   `json:"valid"`
	Message  string `json:"message,omitempty"`
	CardType string `json:"card_type,omitempty"`
	Last4    string `json:"last4,omitempty"`
}

// StripeRefundRequest represents a refund against a payment intent
type StripeRefundRequest struct {
	PaymentIntentID string   `json:"payment_intent_id" binding:"required"`
	Amount          *float64 `json:"amount,omitempty"`
	Reason          string   `json:"reason,omitempty"`
}

// StripeRefundResponse carries the Stripe refund identifiers back to the caller
type StripeRefundResponse struct {
	RefundID        string  `json:"refund_id"`
	PaymentIntentID string  `json:"payment_intent_id"`
	Amount          float64 `json:"amount"`
	Status          string  `json:"status"`
}

// StripePaymentDetails is the normalized view of a payment intent
type StripePaymentDetails struct {
	PaymentIntentID string        `json:"payment_intent_id"`
	OrderID         string        `json:"order_id"`
	SessionID       string        `json:"session_id"`
	Status          SessionStatus `json:"status"`
	Amount          float64       `json:"amount"`
	Currency        string        `json:"currency"`
	ReceiptURL      string        `json:"receipt_url,omitempty"`
	Created         int64         `json:"created"`
}

// StripeWebhookResult is the normalized outcome of a verified webhook event.
// The handler records a transaction and advances the order from it.
type StripeWebhookResult struct {
	EventType       string  `json:"event_type"`
	PaymentIntentID string  `json:"payment_intent_id"`
	ChargeID        string  `json:"charge_id,omitempty"`
	OrderID         string  `json:"order_id"`
	SessionID       string  `json:"session_id"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	FailureCode     string  `json:"failure_code,omitempty"`
	FailureMessage  string  `json:"failure_message,omitempty"`
}
