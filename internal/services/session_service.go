package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smartwish-backend/internal/config"
	"smartwish-backend/internal/kafka"
	"smartwish-backend/internal/logger"
	"smartwish-backend/internal/models"
	"smartwish-backend/internal/storage"
	"smartwish-backend/internal/utils"
)

var (
	ErrSessionNotFound = errors.New("payment session not found")
	ErrSessionLocked   = errors.New("payment session creation already in progress")
	ErrOrderNotPayable = errors.New("order is not awaiting payment")
)

// SessionLock serializes session creation per order.
type SessionLock interface {
	AcquireSessionLock(orderID, sessionID string) (bool, error)
	ReleaseSessionLock(orderID, sessionID string) error
}

// IntentCreator opens a payment intent with the processor for a new session.
type IntentCreator interface {
	CreateIntent(ctx context.Context, session *models.PaymentSession, order *models.Order) (intentID, clientSecret string, err error)
}

type SessionService struct {
	store    storage.Store
	lock     SessionLock
	intents  IntentCreator
	producer *kafka.Producer
	log      *logger.Logger
	ttl      time.Duration
}

func NewSessionService(store storage.Store, lock SessionLock, intents IntentCreator, producer *kafka.Producer, log *logger.Logger, cfg config.StripeConfig) *SessionService {
	return &SessionService{
		store:    store,
		lock:     lock,
		intents:  intents,
		producer: producer,
		log:      log,
		ttl:      cfg.SessionTTL,
	}
}

// CreateSession opens a payment session for an order. Creation is idempotent:
// an order with a live session gets that session back instead of a new one.
func (s *SessionService) CreateSession(ctx context.Context, orderID string) (*models.PaymentSession, error) {
	order, err := s.store.GetOrder(orderID)
	if err != nil {
		return nil, ErrOrderNotFound
	}

	if order.Status != models.OrderPending && order.Status != models.OrderPaymentProcessing {
		s.log.LogPayment("REJECTED", orderID, fmt.Sprintf("Order in status %s cannot open a payment session", order.Status))
		return nil, ErrOrderNotPayable
	}

	s.expireStaleSessions()

	now := time.Now()
	if existing, err := s.store.GetSessionByOrderID(orderID); err == nil && existing != nil {
		if !existing.Expired(now) && (existing.Status == models.SessionPending || existing.Status == models.SessionProcessing) {
			s.log.LogPayment("REUSED", existing.ID, fmt.Sprintf("Returning live session for order %s", orderID))
			return existing, nil
		}
	}

	sessionID := utils.GeneratePaymentSessionID()

	acquired, err := s.lock.AcquireSessionLock(orderID, sessionID)
	if err != nil {
		// Redis being down must not stop kiosk sales; the existing-session
		// check above still bounds duplicates.
		s.log.Warn("PAYMENT", fmt.Sprintf("Session lock unavailable for order %s, continuing without it: %v", orderID, err))
	} else if !acquired {
		s.log.LogPayment("LOCKED", orderID, "Another session creation holds the lock for this order")
		return nil, ErrSessionLocked
	} else {
		defer func() {
			if err := s.lock.ReleaseSessionLock(orderID, sessionID); err != nil {
				s.log.Warn("PAYMENT", fmt.Sprintf("Failed to release session lock for order %s: %v", orderID, err))
			}
		}()
	}

	session := &models.PaymentSession{
		ID:        sessionID,
		OrderID:   order.OrderID,
		Amount:    order.Amount,
		Currency:  order.Currency,
		Status:    models.SessionPending,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	intentID, clientSecret, err := s.intents.CreateIntent(ctx, session, order)
	if err != nil {
		s.log.Error("PAYMENT", fmt.Sprintf("Failed to create payment intent for order %s: %v", orderID, err))
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}
	session.StripeIntentID = intentID
	session.StripeClientSecret = clientSecret

	if err := s.store.SaveSession(session); err != nil {
		s.log.Error("PAYMENT", fmt.Sprintf("Failed to save session %s: %v", sessionID, err))
		return nil, fmt.Errorf("failed to save payment session: %w", err)
	}

	s.log.LogPayment("CREATE", session.ID, fmt.Sprintf("Opened payment session for order %s, %.2f %s, expires %s",
		orderID, session.Amount, session.Currency, session.ExpiresAt.Format(time.RFC3339)))

	s.publishPaymentEvent("payment.session_created", session)
	return session, nil
}

func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*models.PaymentSession, error) {
	session, err := s.store.GetSession(sessionID)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	return s.lazyExpire(session), nil
}

func (s *SessionService) GetSessionByOrder(ctx context.Context, orderID string) (*models.PaymentSession, error) {
	session, err := s.store.GetSessionByOrderID(orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return s.lazyExpire(session), nil
}

// lazyExpire marks an overdue session expired at read time. The row is fixed
// up in storage best effort; the caller still gets the expired view on a
// write failure.
func (s *SessionService) lazyExpire(session *models.PaymentSession) *models.PaymentSession {
	if !session.Expired(time.Now()) {
		return session
	}

	session.Status = models.SessionExpired
	session.UpdatedAt = time.Now()
	if err := s.store.UpdateSession(session); err != nil {
		s.log.Warn("PAYMENT", fmt.Sprintf("Failed to persist expiry of session %s: %v", session.ID, err))
	} else {
		s.log.LogPayment("EXPIRED", session.ID, "Session expired on read")
	}
	return session
}

func (s *SessionService) expireStaleSessions() {
	n, err := s.store.ExpireSessionsBefore(time.Now())
	if err != nil {
		s.log.Warn("PAYMENT", fmt.Sprintf("Stale session sweep failed: %v", err))
		return
	}
	if n > 0 {
		s.log.LogPayment("SWEEP", "sessions", fmt.Sprintf("Expired %d overdue sessions", n))
	}
}

// RecordTransaction writes one processor attempt. IDs and timestamps are
// filled in when the caller leaves them empty.
func (s *SessionService) RecordTransaction(ctx context.Context, txn *models.Transaction) error {
	if txn.ID == "" {
		txn.ID = utils.GenerateTransactionID()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}

	if err := s.store.SaveTransaction(txn); err != nil {
		s.log.Error("PAYMENT", fmt.Sprintf("Failed to record transaction %s: %v", txn.ID, err))
		return fmt.Errorf("failed to record transaction: %w", err)
	}

	s.log.LogPayment("TRANSACTION", txn.ID, fmt.Sprintf("Recorded %s transaction for order %s (%.2f %s)",
		txn.Status, txn.OrderID, txn.Amount, txn.Currency))
	return nil
}

func (s *SessionService) ListOrderTransactions(ctx context.Context, orderID string) ([]*models.Transaction, error) {
	return s.store.ListTransactionsByOrder(orderID)
}

func (s *SessionService) publishPaymentEvent(eventType string, session *models.PaymentSession) {
	event := &models.PaymentEvent{
		Type:      eventType,
		SessionID: session.ID,
		Session:   session,
		OrderID:   session.OrderID,
		Timestamp: time.Now(),
	}

	if err := s.producer.PublishPaymentEvent(event); err != nil {
		s.log.Error("KAFKA", fmt.Sprintf("Failed to publish %s event for session %s: %v", eventType, session.ID, err))
	}
}
