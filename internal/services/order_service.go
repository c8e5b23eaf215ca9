package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"smartwish-backend/internal/config"
	"smartwish-backend/internal/kafka"
	"smartwish-backend/internal/logger"
	"smartwish-backend/internal/models"
	"smartwish-backend/internal/storage"
	"smartwish-backend/internal/utils"
)

var (
	ErrOrderNotFound           = errors.New("order not found")
	ErrInvalidOrderStatus      = errors.New("unknown order status")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrGuestAccessExpired      = errors.New("guest order access expired")
)

// StatusTransitionError reports a rejected lifecycle move, naming the current
// status, the requested status and every transition the current status allows.
// It matches ErrInvalidStatusTransition under errors.Is.
type StatusTransitionError struct {
	From    models.OrderStatus
	To      models.OrderStatus
	Allowed []models.OrderStatus
}

func (e *StatusTransitionError) Error() string {
	allowed := "none (terminal status)"
	if len(e.Allowed) > 0 {
		parts := make([]string, len(e.Allowed))
		for i, s := range e.Allowed {
			parts[i] = string(s)
		}
		allowed = strings.Join(parts, ", ")
	}
	return fmt.Sprintf("cannot transition order from %s to %s, allowed: %s", e.From, e.To, allowed)
}

func (e *StatusTransitionError) Is(target error) bool {
	return target == ErrInvalidStatusTransition
}

// PurchaseTracker receives the card templates sold on paid orders so the
// catalog can keep popularity counters. A nil tracker disables the bumps.
type PurchaseTracker interface {
	TrackTemplateUse(ctx context.Context, id string)
}

type OrderService struct {
	store       storage.Store
	producer    *kafka.Producer
	catalog     PurchaseTracker
	log         *logger.Logger
	guestWindow time.Duration
}

func NewOrderService(store storage.Store, producer *kafka.Producer, catalog PurchaseTracker, log *logger.Logger, cfg config.OrdersConfig) *OrderService {
	return &OrderService{
		store:       store,
		producer:    producer,
		catalog:     catalog,
		log:         log,
		guestWindow: cfg.GuestAccessWindow,
	}
}

func (s *OrderService) CreateOrder(ctx context.Context, req *models.CreateOrderRequest, kioskID string) (*models.Order, error) {
	now := time.Now()

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = "USD"
	}

	var amount float64
	items := make([]models.OrderItem, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			item.Quantity = 1
		}
		items[i] = item
		amount += float64(item.Quantity) * item.UnitPrice
	}

	order := &models.Order{
		OrderID:       utils.GenerateOrderID(),
		KioskID:       kioskID,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
		Items:         items,
		Amount:        amount,
		Currency:      currency,
		Status:        models.OrderPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.SaveOrder(order); err != nil {
		s.log.Error("ORDER", fmt.Sprintf("Failed to save order %s: %v", order.OrderID, err))
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	s.log.LogOrder("CREATE", order.OrderID, fmt.Sprintf("Created order for %s with %d items, total %.2f %s",
		order.CustomerEmail, len(order.Items), order.Amount, order.Currency))

	s.publishOrderEvent("order.created", order)
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.store.GetOrder(orderID)
	if err != nil {
		s.log.LogOrder("NOT_FOUND", orderID, "Order not found in storage")
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// GetGuestOrder serves the unauthenticated order lookup used by kiosk
// receipts. Orders older than the guest window are withheld even though the
// row still exists.
func (s *OrderService) GetGuestOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.store.GetOrder(orderID)
	if err != nil {
		return nil, ErrOrderNotFound
	}

	if time.Since(order.CreatedAt) > s.guestWindow {
		s.log.LogSecurity("GUEST_ACCESS_EXPIRED", fmt.Sprintf("Guest lookup of order %s rejected, order age exceeds %s", orderID, s.guestWindow))
		return nil, ErrGuestAccessExpired
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, status string, limit, offset int) ([]*models.Order, error) {
	if status != "" && !models.OrderStatus(status).IsValid() {
		return nil, ErrInvalidOrderStatus
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListOrders(models.OrderStatus(status), limit, offset)
}

// UpdateOrderStatus moves an order through its lifecycle. The move is checked
// against the transition table before anything is written; the payment session
// sync afterwards is best effort.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID string, next models.OrderStatus) (*models.Order, error) {
	if !next.IsValid() {
		return nil, ErrInvalidOrderStatus
	}

	order, err := s.store.GetOrder(orderID)
	if err != nil {
		s.log.LogOrder("NOT_FOUND", orderID, "Order not found for status update")
		return nil, ErrOrderNotFound
	}

	if !order.Status.CanTransitionTo(next) {
		transitionErr := &StatusTransitionError{
			From:    order.Status,
			To:      next,
			Allowed: order.Status.AllowedTransitions(),
		}
		s.log.LogOrder("REJECTED", orderID, transitionErr.Error())
		return nil, transitionErr
	}

	previous := order.Status
	order.Status = next
	order.UpdatedAt = time.Now()

	if err := s.store.UpdateOrder(order); err != nil {
		s.log.Error("ORDER", fmt.Sprintf("Failed to update order %s: %v", orderID, err))
		return nil, fmt.Errorf("failed to update order: %w", err)
	}

	s.log.LogOrder("TRANSITION", orderID, fmt.Sprintf("Order moved from %s to %s", previous, next))

	s.syncPaymentSession(order)
	if next == models.OrderPaid {
		s.trackPurchases(ctx, order)
	}
	s.publishOrderEvent("order.status_changed", order)

	return order, nil
}

// trackPurchases bumps popularity for every card template on a paid order.
func (s *OrderService) trackPurchases(ctx context.Context, order *models.Order) {
	if s.catalog == nil {
		return
	}
	for _, item := range order.Items {
		if item.Type == models.ItemGreetingCard && item.TemplateID != "" {
			s.catalog.TrackTemplateUse(ctx, item.TemplateID)
		}
	}
}

// syncPaymentSession mirrors the order outcome onto its payment session.
// The two writes are intentionally independent: a failure here is logged and
// the order update stands.
func (s *OrderService) syncPaymentSession(order *models.Order) {
	var sessionStatus models.SessionStatus
	switch order.Status {
	case models.OrderPaid, models.OrderCompleted:
		sessionStatus = models.SessionCompleted
	case models.OrderFailed, models.OrderCancelled:
		sessionStatus = models.SessionFailed
	default:
		return
	}

	session, err := s.store.GetSessionByOrderID(order.OrderID)
	if err != nil {
		s.log.Warn("ORDER", fmt.Sprintf("Could not load payment session for order %s during sync: %v", order.OrderID, err))
		return
	}
	if session == nil {
		return
	}
	if session.Status == models.SessionCompleted || session.Status == models.SessionFailed || session.Status == models.SessionExpired {
		return
	}

	session.Status = sessionStatus
	session.UpdatedAt = time.Now()
	if err := s.store.UpdateSession(session); err != nil {
		s.log.Warn("ORDER", fmt.Sprintf("Failed to sync payment session %s to %s for order %s: %v",
			session.ID, sessionStatus, order.OrderID, err))
		return
	}

	s.log.LogPayment("SYNC", session.ID, fmt.Sprintf("Payment session marked %s following order %s", sessionStatus, order.Status))
}

func (s *OrderService) publishOrderEvent(eventType string, order *models.Order) {
	event := &models.OrderEvent{
		Type:      eventType,
		OrderID:   order.OrderID,
		Order:     order,
		Timestamp: time.Now(),
	}

	if err := s.producer.PublishOrderEvent(event); err != nil {
		s.log.Error("KAFKA", fmt.Sprintf("Failed to publish %s event for order %s: %v", eventType, order.OrderID, err))
		s.log.LogProcess("FALLBACK", fmt.Sprintf("Order %s processed successfully despite Kafka publish failure", order.OrderID))
	}
}
