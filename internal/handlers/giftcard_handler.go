package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"smartwish-backend/internal/models"
	"smartwish-backend/internal/services"
	"smartwish-backend/internal/tillo"
	"smartwish-backend/internal/utils"
)

type GiftCardHandler struct {
	giftcards *services.GiftCardService
}

func NewGiftCardHandler(giftcards *services.GiftCardService) *GiftCardHandler {
	return &GiftCardHandler{
		giftcards: giftcards,
	}
}

func (h *GiftCardHandler) ListBrands(c *gin.Context) {
	brands, err := h.giftcards.ListBrands(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, utils.ErrorResponse("Failed to fetch brand catalog", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Brands retrieved", brands))
}

func (h *GiftCardHandler) CheckBrand(c *gin.Context) {
	slug := c.Param("slug")
	if slug == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Brand slug is required", ""))
		return
	}

	brand, err := h.giftcards.CheckBrand(c.Request.Context(), slug)
	if err != nil {
		if errors.Is(err, tillo.ErrBrandNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Brand not available", err.Error()))
			return
		}
		c.JSON(http.StatusBadGateway, utils.ErrorResponse("Failed to check brand", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Brand available", brand))
}

// IssueForOrder delivers the gift cards for a paid order. A partial failure
// still returns the cards that were issued, with HTTP 502 signalling the
// kiosk to surface a support prompt.
func (h *GiftCardHandler) IssueForOrder(c *gin.Context) {
	orderID := c.Param("id")
	if orderID == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Order ID is required", ""))
		return
	}

	cards, err := h.giftcards.IssueForOrder(c.Request.Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Order not found", err.Error()))
		case errors.Is(err, services.ErrOrderNotPaid):
			c.JSON(http.StatusConflict, utils.ErrorResponse("Order is not paid", err.Error()))
		case errors.Is(err, services.ErrNoGiftCardItems):
			c.JSON(http.StatusBadRequest, utils.ErrorResponse("Order has no gift card items", err.Error()))
		default:
			c.JSON(http.StatusBadGateway, utils.APIResponse{
				Success:   false,
				Message:   "Gift card issuance incomplete",
				Data:      cards,
				Error:     err.Error(),
				Timestamp: time.Now().UTC(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Gift cards issued", cards))
}

func (h *GiftCardHandler) CancelCard(c *gin.Context) {
	var req models.CancelGiftCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	if err := h.giftcards.CancelCard(c.Request.Context(), &req); err != nil {
		c.JSON(http.StatusBadGateway, utils.ErrorResponse("Failed to cancel gift card", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Gift card cancelled", nil))
}
