package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartwish-backend/internal/models"
	"smartwish-backend/internal/storage"
	"smartwish-backend/internal/tillo"
)

func giftOrder(status models.OrderStatus) *models.Order {
	order := testOrder(status)
	order.Items = []models.OrderItem{
		{Type: models.ItemGreetingCard, TemplateID: "tpl-1", Title: "Birthday Card", Quantity: 1, UnitPrice: 5.99},
		{Type: models.ItemGiftCard, Brand: "Amazon-US", Title: "Amazon Gift Card", Quantity: 2, UnitPrice: 25},
		{Type: models.ItemGiftCard, Brand: "nike", Title: "Nike Gift Card", Quantity: 1, UnitPrice: 50},
	}
	order.Amount = 105.99
	return order
}

func TestIssueForOrder(t *testing.T) {
	store := storage.NewInMemoryStore()
	api := &fakeTillo{}
	svc := NewGiftCardService(store, api, newTestLogger(t))

	order := giftOrder(models.OrderPaid)
	require.NoError(t, store.SaveOrder(order))

	issued, err := svc.IssueForOrder(context.Background(), order.OrderID)
	require.NoError(t, err)
	require.Len(t, issued, 3, "one card per gift card unit")

	require.Len(t, api.issued, 3)
	for i, req := range api.issued {
		assert.Equal(t, fmt.Sprintf("%s-%d", order.OrderID, i+1), req.ClientRequestID)
		assert.Equal(t, "USD", req.Currency)
	}
	assert.Equal(t, "amazon", api.issued[0].Brand, "regional suffixes are stripped")
	assert.Equal(t, "amazon", api.issued[1].Brand)
	assert.Equal(t, "nike", api.issued[2].Brand)
	assert.InDelta(t, 25, api.issued[0].Amount, 1e-9)
	assert.InDelta(t, 50, api.issued[2].Amount, 1e-9)

	assert.Equal(t, "ref-1", issued[0].Reference)
	assert.NotEmpty(t, issued[0].URL)
}

func TestIssueForOrderRequiresPayment(t *testing.T) {
	store := storage.NewInMemoryStore()
	api := &fakeTillo{}
	svc := NewGiftCardService(store, api, newTestLogger(t))

	order := giftOrder(models.OrderPending)
	require.NoError(t, store.SaveOrder(order))

	_, err := svc.IssueForOrder(context.Background(), order.OrderID)
	assert.ErrorIs(t, err, ErrOrderNotPaid)
	assert.Empty(t, api.issued, "nothing may be issued before payment clears")
}

func TestIssueForOrderNoGiftItems(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := NewGiftCardService(store, &fakeTillo{}, newTestLogger(t))

	order := testOrder(models.OrderPaid)
	require.NoError(t, store.SaveOrder(order))

	_, err := svc.IssueForOrder(context.Background(), order.OrderID)
	assert.ErrorIs(t, err, ErrNoGiftCardItems)
}

func TestIssueForOrderPartialFailure(t *testing.T) {
	store := storage.NewInMemoryStore()
	api := &fakeTillo{failOn: 2}
	svc := NewGiftCardService(store, api, newTestLogger(t))

	order := giftOrder(models.OrderPaid)
	require.NoError(t, store.SaveOrder(order))

	issued, err := svc.IssueForOrder(context.Background(), order.OrderID)
	require.Error(t, err)
	require.Len(t, issued, 1, "cards issued before the failure are returned")
	assert.Equal(t, "ref-1", issued[0].Reference)
}

func TestIssueForOrderNotFound(t *testing.T) {
	svc := NewGiftCardService(storage.NewInMemoryStore(), &fakeTillo{}, newTestLogger(t))

	_, err := svc.IssueForOrder(context.Background(), "ORD-MISSING")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCheckBrand(t *testing.T) {
	api := &fakeTillo{brands: []tillo.Brand{
		{Slug: "amazon-us", Name: "Amazon"},
		{Slug: "starbucks", Name: "Starbucks"},
	}}
	svc := NewGiftCardService(storage.NewInMemoryStore(), api, newTestLogger(t))

	brand, err := svc.CheckBrand(context.Background(), "Amazon")
	require.NoError(t, err)
	assert.Equal(t, "Amazon", brand.Name)

	_, err = svc.CheckBrand(context.Background(), "walmart")
	assert.ErrorIs(t, err, tillo.ErrBrandNotFound)
}

func TestCancelCardNormalizesBrand(t *testing.T) {
	api := &fakeTillo{}
	svc := NewGiftCardService(storage.NewInMemoryStore(), api, newTestLogger(t))

	err := svc.CancelCard(context.Background(), &models.CancelGiftCardRequest{
		ClientRequestID: "ORD-CANCEL-1",
		Brand:           "Amazon-US",
		Reference:       "ref-9",
	})
	require.NoError(t, err)

	require.Len(t, api.cancelled, 1)
	assert.Equal(t, "amazon", api.cancelled[0].Brand)
	assert.Equal(t, "ref-9", api.cancelled[0].OriginalReference)
}
