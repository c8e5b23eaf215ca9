package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartwish-backend/internal/config"
	"smartwish-backend/internal/models"
	"smartwish-backend/internal/storage"
)

func newOrderService(t *testing.T, store storage.Store) *OrderService {
	t.Helper()
	log := newTestLogger(t)
	return NewOrderService(store, newTestProducer(t, log), nil, log, config.OrdersConfig{
		GuestAccessWindow: time.Hour,
	})
}

func TestCreateOrderComputesAmount(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newOrderService(t, store)

	order, err := svc.CreateOrder(context.Background(), &models.CreateOrderRequest{
		CustomerEmail: "shopper@example.com",
		CustomerName:  "Pat",
		Items: []models.OrderItem{
			{Type: models.ItemGreetingCard, TemplateID: "tpl-1", Title: "Birthday Card", Quantity: 2, UnitPrice: 4.5},
			{Type: models.ItemGiftCard, Brand: "amazon", Title: "Amazon Gift Card", UnitPrice: 25},
		},
	}, "kiosk-1")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(order.OrderID, "ORD-"), "order ID %q", order.OrderID)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, "USD", order.Currency)
	assert.Equal(t, "kiosk-1", order.KioskID)
	assert.InDelta(t, 34.0, order.Amount, 1e-9)
	assert.Equal(t, 1, order.Items[1].Quantity, "missing quantity should default to 1")

	stored, err := store.GetOrder(order.OrderID)
	require.NoError(t, err)
	assert.InDelta(t, order.Amount, stored.Amount, 1e-9)
}

func TestCreateOrderNormalizesCurrency(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newOrderService(t, store)

	order, err := svc.CreateOrder(context.Background(), &models.CreateOrderRequest{
		CustomerEmail: "shopper@example.com",
		Currency:      "gbp",
		Items: []models.OrderItem{
			{Type: models.ItemGreetingCard, Title: "Card", Quantity: 1, UnitPrice: 3},
		},
	}, "kiosk-1")
	require.NoError(t, err)
	assert.Equal(t, "GBP", order.Currency)
}

func TestGetOrderNotFound(t *testing.T) {
	svc := newOrderService(t, storage.NewInMemoryStore())

	_, err := svc.GetOrder(context.Background(), "ORD-MISSING")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestUpdateOrderStatusHappyPath(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newOrderService(t, store)

	order := testOrder(models.OrderPending)
	require.NoError(t, store.SaveOrder(order))

	for _, next := range []models.OrderStatus{
		models.OrderPaymentProcessing,
		models.OrderPaid,
		models.OrderCompleted,
	} {
		updated, err := svc.UpdateOrderStatus(context.Background(), order.OrderID, next)
		require.NoError(t, err, "transition to %s", next)
		assert.Equal(t, next, updated.Status)
	}
}

func TestUpdateOrderStatusDirectCapture(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newOrderService(t, store)

	order := testOrder(models.OrderPending)
	require.NoError(t, store.SaveOrder(order))

	updated, err := svc.UpdateOrderStatus(context.Background(), order.OrderID, models.OrderPaid)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, updated.Status)
}

func TestUpdateOrderStatusRetryAfterFailure(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newOrderService(t, store)

	order := testOrder(models.OrderFailed)
	require.NoError(t, store.SaveOrder(order))

	updated, err := svc.UpdateOrderStatus(context.Background(), order.OrderID, models.OrderPending)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, updated.Status)
}

func TestUpdateOrderStatusRejectsIllegalMove(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newOrderService(t, store)

	order := testOrder(models.OrderPending)
	require.NoError(t, store.SaveOrder(order))

	_, err := svc.UpdateOrderStatus(context.Background(), order.OrderID, models.OrderCompleted)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	assert.EqualError(t, err, "cannot transition order from pending to completed, allowed: payment_processing, paid, cancelled")

	stored, err := store.GetOrder(order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, stored.Status, "rejected move must not change the order")
}

func TestUpdateOrderStatusTerminalOrder(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newOrderService(t, store)

	order := testOrder(models.OrderCompleted)
	require.NoError(t, store.SaveOrder(order))

	_, err := svc.UpdateOrderStatus(context.Background(), order.OrderID, models.OrderCancelled)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	assert.Contains(t, err.Error(), "none (terminal status)")
}

func TestUpdateOrderStatusUnknownStatus(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newOrderService(t, store)

	order := testOrder(models.OrderPending)
	require.NoError(t, store.SaveOrder(order))

	_, err := svc.UpdateOrderStatus(context.Background(), order.OrderID, models.OrderStatus("shipped"))
	assert.ErrorIs(t, err, ErrInvalidOrderStatus)
}

func TestUpdateOrderStatusNotFound(t *testing.T) {
	svc := newOrderService(t, storage.NewInMemoryStore())

	_, err := svc.UpdateOrderStatus(context.Background(), "ORD-MISSING", models.OrderPaid)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderPaidSyncsPaymentSession(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newOrderService(t, store)

	order := testOrder(models.OrderPaymentProcessing)
	require.NoError(t, store.SaveOrder(order))

	now := time.Now()
	session := &models.PaymentSession{
		ID:        "PAY-SYNC234567",
		OrderID:   order.OrderID,
		Amount:    order.Amount,
		Currency:  order.Currency,
		Status:    models.SessionProcessing,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(30 * time.Minute),
	}
	require.NoError(t, store.SaveSession(session))

	_, err := svc.UpdateOrderStatus(context.Background(), order.OrderID, models.OrderPaid)
	require.NoError(t, err)

	synced, err := store.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, synced.Status)
}

func TestOrderCancelledSyncsSessionFailed(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newOrderService(t, store)

	order := testOrder(models.OrderPending)
	require.NoError(t, store.SaveOrder(order))

	now := time.Now()
	session := &models.PaymentSession{
		ID:        "PAY-FAIL234567",
		OrderID:   order.OrderID,
		Status:    models.SessionPending,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(30 * time.Minute),
	}
	require.NoError(t, store.SaveSession(session))

	_, err := svc.UpdateOrderStatus(context.Background(), order.OrderID, models.OrderCancelled)
	require.NoError(t, err)

	synced, err := store.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionFailed, synced.Status)
}

func TestSyncLeavesTerminalSessionAlone(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newOrderService(t, store)

	order := testOrder(models.OrderPaid)
	require.NoError(t, store.SaveOrder(order))

	now := time.Now()
	session := &models.PaymentSession{
		ID:        "PAY-DONE234567",
		OrderID:   order.OrderID,
		Status:    models.SessionCompleted,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(30 * time.Minute),
	}
	require.NoError(t, store.SaveSession(session))

	_, err := svc.UpdateOrderStatus(context.Background(), order.OrderID, models.OrderCancelled)
	require.NoError(t, err)

	synced, err := store.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, synced.Status, "a settled session must not be rewritten")
}

func TestSessionSyncFailureDoesNotBlockOrder(t *testing.T) {
	base := storage.NewInMemoryStore()
	store := &failingSessionUpdateStore{InMemoryStore: base}
	svc := newOrderService(t, store)

	order := testOrder(models.OrderPaymentProcessing)
	require.NoError(t, store.SaveOrder(order))

	now := time.Now()
	session := &models.PaymentSession{
		ID:        "PAY-STUCK34567",
		OrderID:   order.OrderID,
		Status:    models.SessionProcessing,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(30 * time.Minute),
	}
	require.NoError(t, base.SaveSession(session))

	updated, err := svc.UpdateOrderStatus(context.Background(), order.OrderID, models.OrderPaid)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaid, updated.Status)

	stored, err := base.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionProcessing, stored.Status)
}

type fakePurchaseTracker struct {
	templates []string
}

func (f *fakePurchaseTracker) TrackTemplateUse(ctx context.Context, id string) {
	f.templates = append(f.templates, id)
}

func TestOrderPaidBumpsTemplatePopularity(t *testing.T) {
	store := storage.NewInMemoryStore()
	log := newTestLogger(t)
	tracker := &fakePurchaseTracker{}
	svc := NewOrderService(store, newTestProducer(t, log), tracker, log, config.OrdersConfig{
		GuestAccessWindow: time.Hour,
	})

	order := testOrder(models.OrderPending)
	order.Items = []models.OrderItem{
		{Type: models.ItemGreetingCard, TemplateID: "tpl-1", Title: "Birthday", Quantity: 1, UnitPrice: 5},
		{Type: models.ItemGiftCard, Brand: "amazon", Title: "Amazon Gift Card", Quantity: 1, UnitPrice: 25},
		{Type: models.ItemGreetingCard, TemplateID: "tpl-2", Title: "Holiday", Quantity: 2, UnitPrice: 4},
	}
	require.NoError(t, store.SaveOrder(order))

	_, err := svc.UpdateOrderStatus(context.Background(), order.OrderID, models.OrderPaid)
	require.NoError(t, err)
	assert.Equal(t, []string{"tpl-1", "tpl-2"}, tracker.templates)

	// Completing the order later must not double count the sale
	_, err = svc.UpdateOrderStatus(context.Background(), order.OrderID, models.OrderCompleted)
	require.NoError(t, err)
	assert.Equal(t, []string{"tpl-1", "tpl-2"}, tracker.templates)
}

func TestGetGuestOrderWithinWindow(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newOrderService(t, store)

	order := testOrder(models.OrderCompleted)
	require.NoError(t, store.SaveOrder(order))

	got, err := svc.GetGuestOrder(context.Background(), order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderID, got.OrderID)
}

func TestGetGuestOrderExpired(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newOrderService(t, store)

	order := testOrder(models.OrderCompleted)
	order.CreatedAt = time.Now().Add(-2 * time.Hour)
	require.NoError(t, store.SaveOrder(order))

	_, err := svc.GetGuestOrder(context.Background(), order.OrderID)
	assert.ErrorIs(t, err, ErrGuestAccessExpired)
}

func TestListOrdersFiltersByStatus(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newOrderService(t, store)

	require.NoError(t, store.SaveOrder(testOrder(models.OrderPending)))
	require.NoError(t, store.SaveOrder(testOrder(models.OrderPending)))
	require.NoError(t, store.SaveOrder(testOrder(models.OrderPaid)))

	paid, err := svc.ListOrders(context.Background(), "paid", 10, 0)
	require.NoError(t, err)
	assert.Len(t, paid, 1)

	all, err := svc.ListOrders(context.Background(), "", 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestListOrdersRejectsUnknownStatus(t *testing.T) {
	svc := newOrderService(t, storage.NewInMemoryStore())

	_, err := svc.ListOrders(context.Background(), "shipped", 10, 0)
	assert.ErrorIs(t, err, ErrInvalidOrderStatus)
}
