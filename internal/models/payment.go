package models

import (
	"time"
)

type SessionStatus string

const (
	SessionPending    SessionStatus = "pending"
	SessionProcessing SessionStatus = "processing"
	SessionCompleted  SessionStatus = "completed"
	SessionFailed     SessionStatus = "failed"
	SessionExpired    SessionStatus = "expired"
)

// PaymentSession tracks one checkout attempt for an order. The ID carries the
// human readable "PAY-" prefix so support staff can read it back over the phone.
type PaymentSession struct {
	ID                 string        `json:"id"`
	OrderID            string        `json:"order_id"`
	Amount             float64       `json:"amount"`
	Currency           string        `json:"currency"`
	StripeIntentID     string        `json:"stripe_intent_id,omitempty"`
	StripeClientSecret string        `json:"stripe_client_secret,omitempty"`
	Status             SessionStatus `json:"status"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
	ExpiresAt          time.Time     `json:"expires_at"`
}

// Expired reports whether the session has passed its expiry without reaching a
// terminal status.
func (s *PaymentSession) Expired(now time.Time) bool {
	if s.Status == SessionCompleted || s.Status == SessionFailed || s.Status == SessionExpired {
		return false
	}
	return now.After(s.ExpiresAt)
}

type TransactionStatus string

const (
	TxnSucceeded TransactionStatus = "succeeded"
	TxnFailed    TransactionStatus = "failed"
	TxnRefunded  TransactionStatus = "refunded"
)

// Transaction is the immutable record of a Stripe outcome, written when a
// webhook or refund lands.
type Transaction struct {
	ID               string            `json:"id"`
	OrderID          string            `json:"order_id"`
	PaymentSessionID string            `json:"payment_session_id"`
	Amount           float64           `json:"amount"`
	Currency         string            `json:"currency"`
	StripeIntentID   string            `json:"stripe_intent_id"`
	StripeChargeID   string            `json:"stripe_charge_id,omitempty"`
	Status           TransactionStatus `json:"status"`
	FailureCode      string            `json:"failure_code,omitempty"`
	FailureMessage   string            `json:"failure_message,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

type CreateSessionRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

type RefundRequest struct {
	OrderID string `json:"order_id" binding:"required"`
	Amount  string `json:"amount,omitempty"`
	Reason  string `json:"reason"`
}

type PaymentEvent struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Session   *PaymentSession `json:"session,omitempty"`
	OrderID   string          `json:"order_id"`
	Timestamp time.Time       `json:"timestamp"`
}
