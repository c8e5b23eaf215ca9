package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartwish-backend/internal/config"
	"smartwish-backend/internal/models"
	"smartwish-backend/internal/storage"
)

func newSessionService(t *testing.T, store storage.Store, lock SessionLock, intents IntentCreator) *SessionService {
	t.Helper()
	log := newTestLogger(t)
	return NewSessionService(store, lock, intents, newTestProducer(t, log), log, config.StripeConfig{
		SessionTTL: 30 * time.Minute,
	})
}

func TestCreateSessionHappyPath(t *testing.T) {
	store := storage.NewInMemoryStore()
	lock := &fakeLock{acquired: true}
	intents := &fakeIntents{}
	svc := newSessionService(t, store, lock, intents)

	order := testOrder(models.OrderPending)
	require.NoError(t, store.SaveOrder(order))

	session, err := svc.CreateSession(context.Background(), order.OrderID)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(session.ID, "PAY-"), "session ID %q", session.ID)
	assert.Equal(t, order.OrderID, session.OrderID)
	assert.InDelta(t, order.Amount, session.Amount, 1e-9)
	assert.Equal(t, order.Currency, session.Currency)
	assert.Equal(t, models.SessionPending, session.Status)
	assert.Equal(t, "pi_test_"+session.ID, session.StripeIntentID)
	assert.NotEmpty(t, session.StripeClientSecret)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), session.ExpiresAt, 5*time.Second)
	assert.Equal(t, 1, lock.releases)

	stored, err := store.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.StripeIntentID, stored.StripeIntentID)
}

func TestCreateSessionIsIdempotent(t *testing.T) {
	store := storage.NewInMemoryStore()
	intents := &fakeIntents{}
	svc := newSessionService(t, store, &fakeLock{acquired: true}, intents)

	order := testOrder(models.OrderPending)
	require.NoError(t, store.SaveOrder(order))

	first, err := svc.CreateSession(context.Background(), order.OrderID)
	require.NoError(t, err)

	second, err := svc.CreateSession(context.Background(), order.OrderID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "a live session must be reused")
	assert.Equal(t, 1, intents.calls, "reuse must not open a second intent")
}

func TestCreateSessionOrderNotPayable(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newSessionService(t, store, &fakeLock{acquired: true}, &fakeIntents{})

	for _, status := range []models.OrderStatus{models.OrderPaid, models.OrderCancelled, models.OrderCompleted} {
		order := testOrder(status)
		require.NoError(t, store.SaveOrder(order))

		_, err := svc.CreateSession(context.Background(), order.OrderID)
		assert.ErrorIs(t, err, ErrOrderNotPayable, "status %s", status)
	}
}

func TestCreateSessionOrderNotFound(t *testing.T) {
	svc := newSessionService(t, storage.NewInMemoryStore(), &fakeLock{acquired: true}, &fakeIntents{})

	_, err := svc.CreateSession(context.Background(), "ORD-MISSING")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCreateSessionLocked(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newSessionService(t, store, &fakeLock{acquired: false}, &fakeIntents{})

	order := testOrder(models.OrderPending)
	require.NoError(t, store.SaveOrder(order))

	_, err := svc.CreateSession(context.Background(), order.OrderID)
	assert.ErrorIs(t, err, ErrSessionLocked)
}

func TestCreateSessionProceedsWhenLockUnavailable(t *testing.T) {
	store := storage.NewInMemoryStore()
	lock := &fakeLock{err: fmt.Errorf("redis down")}
	svc := newSessionService(t, store, lock, &fakeIntents{})

	order := testOrder(models.OrderPending)
	require.NoError(t, store.SaveOrder(order))

	session, err := svc.CreateSession(context.Background(), order.OrderID)
	require.NoError(t, err, "a lock outage must not block checkout")
	assert.NotNil(t, session)
	assert.Zero(t, lock.releases, "a lock that was never held must not be released")
}

func TestCreateSessionReplacesExpired(t *testing.T) {
	store := storage.NewInMemoryStore()
	intents := &fakeIntents{}
	svc := newSessionService(t, store, &fakeLock{acquired: true}, intents)

	order := testOrder(models.OrderPending)
	require.NoError(t, store.SaveOrder(order))

	stale := &models.PaymentSession{
		ID:        "PAY-STALE34567",
		OrderID:   order.OrderID,
		Status:    models.SessionPending,
		CreatedAt: time.Now().Add(-time.Hour),
		UpdatedAt: time.Now().Add(-time.Hour),
		ExpiresAt: time.Now().Add(-30 * time.Minute),
	}
	require.NoError(t, store.SaveSession(stale))

	session, err := svc.CreateSession(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.NotEqual(t, stale.ID, session.ID)

	swept, err := store.GetSession(stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionExpired, swept.Status, "the stale session should be swept on create")
}

func TestCreateSessionIntentFailure(t *testing.T) {
	store := storage.NewInMemoryStore()
	intents := &fakeIntents{err: fmt.Errorf("stripe unreachable")}
	svc := newSessionService(t, store, &fakeLock{acquired: true}, intents)

	order := testOrder(models.OrderPending)
	require.NoError(t, store.SaveOrder(order))

	_, err := svc.CreateSession(context.Background(), order.OrderID)
	require.Error(t, err)

	session, err := store.GetSessionByOrderID(order.OrderID)
	require.NoError(t, err)
	assert.Nil(t, session, "a session without an intent must not be persisted")
}

func TestGetSessionLazyExpiry(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newSessionService(t, store, &fakeLock{acquired: true}, &fakeIntents{})

	session := &models.PaymentSession{
		ID:        "PAY-LAZY234567",
		OrderID:   "ORD-LAZY234567",
		Status:    models.SessionPending,
		CreatedAt: time.Now().Add(-time.Hour),
		UpdatedAt: time.Now().Add(-time.Hour),
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, store.SaveSession(session))

	got, err := svc.GetSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionExpired, got.Status)

	stored, err := store.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionExpired, stored.Status, "expiry should be written back")
}

func TestGetSessionNotFound(t *testing.T) {
	svc := newSessionService(t, storage.NewInMemoryStore(), &fakeLock{acquired: true}, &fakeIntents{})

	_, err := svc.GetSession(context.Background(), "PAY-MISSING")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.GetSessionByOrder(context.Background(), "ORD-MISSING")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRecordTransactionFillsDefaults(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newSessionService(t, store, &fakeLock{acquired: true}, &fakeIntents{})

	txn := &models.Transaction{
		OrderID:          "ORD-TXN1234567",
		PaymentSessionID: "PAY-TXN1234567",
		Amount:           9.99,
		Currency:         "USD",
		StripeIntentID:   "pi_txn",
		Status:           models.TxnSucceeded,
	}
	require.NoError(t, svc.RecordTransaction(context.Background(), txn))

	assert.True(t, strings.HasPrefix(txn.ID, "txn_"), "transaction ID %q", txn.ID)
	assert.False(t, txn.CreatedAt.IsZero())

	listed, err := svc.ListOrderTransactions(context.Background(), txn.OrderID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, txn.ID, listed[0].ID)
}
