package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartwish-backend/internal/config"
	"smartwish-backend/internal/kafka"
	"smartwish-backend/internal/logger"
	"smartwish-backend/internal/models"
	"smartwish-backend/internal/services"
	"smartwish-backend/internal/storage"
	"smartwish-backend/internal/utils"
)

func newOrderRouter(t *testing.T, store storage.Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("LOG_DIR", t.TempDir())
	log := logger.NewLogger()

	producer, err := kafka.NewProducer(nil, true, log)
	require.NoError(t, err)

	orders := services.NewOrderService(store, producer, nil, log, config.OrdersConfig{
		GuestAccessWindow: time.Hour,
	})
	handler := NewOrderHandler(orders)

	router := gin.New()

	// Stands in for the kiosk API key middleware
	kiosk := router.Group("", func(c *gin.Context) {
		c.Set("kiosk_id", "kiosk-test")
	})
	kiosk.POST("/orders", handler.CreateOrder)
	kiosk.GET("/orders/:id", handler.GetOrder)
	kiosk.PATCH("/orders/:id/status", handler.UpdateOrderStatus)

	router.GET("/guest/orders/:id", handler.GetGuestOrder)
	router.GET("/admin/orders", handler.ListOrders)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) utils.APIResponse {
	t.Helper()
	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "body: %s", w.Body.String())
	return resp
}

func TestCreateOrderEndpoint(t *testing.T) {
	store := storage.NewInMemoryStore()
	router := newOrderRouter(t, store)

	w := doJSON(t, router, http.MethodPost, "/orders", map[string]interface{}{
		"customer_email": "shopper@example.com",
		"customer_name":  "Pat",
		"items": []map[string]interface{}{
			{"type": "greeting_card", "template_id": "tpl-1", "title": "Birthday Card", "quantity": 2, "unit_price": 4.5},
			{"type": "gift_card", "brand": "amazon", "title": "Amazon Gift Card", "quantity": 1, "unit_price": 25},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	resp := decodeEnvelope(t, w)
	assert.True(t, resp.Success)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var order models.Order
	require.NoError(t, json.Unmarshal(data, &order))

	assert.Contains(t, order.OrderID, "ORD-")
	assert.Equal(t, "kiosk-test", order.KioskID)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.InDelta(t, 34.0, order.Amount, 1e-9)
}

func TestCreateOrderEndpointValidation(t *testing.T) {
	router := newOrderRouter(t, storage.NewInMemoryStore())

	// Missing items
	w := doJSON(t, router, http.MethodPost, "/orders", map[string]interface{}{
		"customer_email": "shopper@example.com",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeEnvelope(t, w)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)

	// Malformed email
	w = doJSON(t, router, http.MethodPost, "/orders", map[string]interface{}{
		"customer_email": "not-an-email",
		"items": []map[string]interface{}{
			{"type": "greeting_card", "title": "Card", "quantity": 1, "unit_price": 3},
		},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetOrderEndpointNotFound(t *testing.T) {
	router := newOrderRouter(t, storage.NewInMemoryStore())

	w := doJSON(t, router, http.MethodGet, "/orders/ORD-MISSING", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	resp := decodeEnvelope(t, w)
	assert.False(t, resp.Success)
}

func TestUpdateOrderStatusEndpoint(t *testing.T) {
	store := storage.NewInMemoryStore()
	router := newOrderRouter(t, store)

	order := &models.Order{
		OrderID:       "ORD-HANDLER123",
		KioskID:       "kiosk-test",
		CustomerEmail: "shopper@example.com",
		Status:        models.OrderPending,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	require.NoError(t, store.SaveOrder(order))

	w := doJSON(t, router, http.MethodPatch, "/orders/"+order.OrderID+"/status", map[string]string{
		"status": "payment_processing",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stored, err := store.GetOrder(order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPaymentProcessing, stored.Status)
}

func TestUpdateOrderStatusEndpointConflict(t *testing.T) {
	store := storage.NewInMemoryStore()
	router := newOrderRouter(t, store)

	order := &models.Order{
		OrderID:       "ORD-CONFLICT12",
		KioskID:       "kiosk-test",
		CustomerEmail: "shopper@example.com",
		Status:        models.OrderPending,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	require.NoError(t, store.SaveOrder(order))

	w := doJSON(t, router, http.MethodPatch, "/orders/"+order.OrderID+"/status", map[string]string{
		"status": "completed",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	resp := decodeEnvelope(t, w)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "cannot transition order from pending to completed")
	assert.Contains(t, resp.Error, "payment_processing, paid, cancelled")
}

func TestUpdateOrderStatusEndpointUnknownStatus(t *testing.T) {
	store := storage.NewInMemoryStore()
	router := newOrderRouter(t, store)

	order := &models.Order{
		OrderID:       "ORD-BADSTATE12",
		KioskID:       "kiosk-test",
		CustomerEmail: "shopper@example.com",
		Status:        models.OrderPending,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	require.NoError(t, store.SaveOrder(order))

	w := doJSON(t, router, http.MethodPatch, "/orders/"+order.OrderID+"/status", map[string]string{
		"status": "shipped",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGuestOrderEndpoint(t *testing.T) {
	store := storage.NewInMemoryStore()
	router := newOrderRouter(t, store)

	fresh := &models.Order{
		OrderID:       "ORD-GUESTOK123",
		CustomerEmail: "shopper@example.com",
		Status:        models.OrderCompleted,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	require.NoError(t, store.SaveOrder(fresh))

	w := doJSON(t, router, http.MethodGet, "/guest/orders/"+fresh.OrderID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	aged := &models.Order{
		OrderID:       "ORD-GUESTOLD12",
		CustomerEmail: "shopper@example.com",
		Status:        models.OrderCompleted,
		CreatedAt:     time.Now().Add(-2 * time.Hour),
		UpdatedAt:     time.Now().Add(-2 * time.Hour),
	}
	require.NoError(t, store.SaveOrder(aged))

	w = doJSON(t, router, http.MethodGet, "/guest/orders/"+aged.OrderID, nil)
	assert.Equal(t, http.StatusGone, w.Code, "aged orders disappear from the guest view")
}

func TestListOrdersEndpointRejectsBadFilter(t *testing.T) {
	router := newOrderRouter(t, storage.NewInMemoryStore())

	w := doJSON(t, router, http.MethodGet, "/admin/orders?status=shipped", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
