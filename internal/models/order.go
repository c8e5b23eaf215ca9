package models

import (
	"time"

	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	OrderPending           OrderStatus = "pending"
	OrderPaymentProcessing OrderStatus = "payment_processing"
	OrderPaid              OrderStatus = "paid"
	OrderCompleted         OrderStatus = "completed"
	OrderFailed            OrderStatus = "failed"
	OrderCancelled         OrderStatus = "cancelled"
)

// orderTransitions is the single source of truth for order lifecycle moves.
// completed and cancelled are terminal; failed may return to pending for retry.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:           {OrderPaymentProcessing, OrderPaid, OrderCancelled},
	OrderPaymentProcessing: {OrderPaid, OrderFailed, OrderCancelled},
	OrderPaid:              {OrderCompleted, OrderCancelled},
	OrderCompleted:         {},
	OrderFailed:            {OrderPending},
	OrderCancelled:         {},
}

// IsValid reports whether s is one of the known order statuses.
func (s OrderStatus) IsValid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// CanTransitionTo reports whether the move from s to next is allowed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the statuses reachable from s. Terminal statuses
// return an empty slice.
func (s OrderStatus) AllowedTransitions() []OrderStatus {
	allowed := orderTransitions[s]
	out := make([]OrderStatus, len(allowed))
	copy(out, allowed)
	return out
}

type OrderItemType string

const (
	ItemGreetingCard OrderItemType = "greeting_card"
	ItemGiftCard     OrderItemType = "gift_card"
	ItemSticker      OrderItemType = "sticker"
)

type OrderItem struct {
	Type       OrderItemType `json:"type"`
	TemplateID string        `json:"template_id,omitempty"`
	DesignID   string        `json:"design_id,omitempty"`
	Brand      string        `json:"brand,omitempty"`
	Title      string        `json:"title"`
	Quantity   int           `json:"quantity"`
	UnitPrice  float64       `json:"unit_price"`
}

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	OrderID       string      `json:"order_id" bun:"order_id,pk"`
	KioskID       string      `json:"kiosk_id" bun:"kiosk_id"`
	CustomerEmail string      `json:"customer_email" bun:"customer_email"`
	CustomerName  string      `json:"customer_name" bun:"customer_name"`
	Items         []OrderItem `json:"items" bun:"items,type:json"`
	Amount        float64     `json:"amount" bun:"amount"`
	Currency      string      `json:"currency" bun:"currency"`
	Status        OrderStatus `json:"status" bun:"status"`
	CreatedAt     time.Time   `json:"created_at" bun:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at" bun:"updated_at"`
}

type CreateOrderRequest struct {
	CustomerEmail string      `json:"customer_email" binding:"required,email"`
	CustomerName  string      `json:"customer_name"`
	Items         []OrderItem `json:"items" binding:"required,min=1"`
	Currency      string      `json:"currency"`
}

type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required"`
}

type OrderEvent struct {
	Type      string    `json:"type"`
	OrderID   string    `json:"order_id"`
	Order     *Order    `json:"order"`
	Timestamp time.Time `json:"timestamp"`
}
