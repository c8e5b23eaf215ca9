package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"smartwish-backend/internal/models"
	"smartwish-backend/internal/services"
	"smartwish-backend/internal/utils"
)

type StickerHandler struct {
	stickers *services.StickerService
}

func NewStickerHandler(stickers *services.StickerService) *StickerHandler {
	return &StickerHandler{
		stickers: stickers,
	}
}

func (h *StickerHandler) ListStickers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	stickers, err := h.stickers.ListStickers(c.Request.Context(), c.Query("category"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to list stickers", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Stickers retrieved", stickers))
}

func (h *StickerHandler) SearchStickers(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Query parameter 'q' is required", ""))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	stickers, err := h.stickers.SearchStickers(c.Request.Context(), query, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Search failed", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Search results", stickers))
}

func (h *StickerHandler) GetSticker(c *gin.Context) {
	sticker, err := h.stickers.GetSticker(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrStickerNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Sticker not found", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to retrieve sticker", err.Error()))
		return
	}

	h.stickers.TrackStickerUse(c.Request.Context(), sticker.ID)
	c.JSON(http.StatusOK, utils.SuccessResponse("Sticker retrieved", sticker))
}

func (h *StickerHandler) CreateSticker(c *gin.Context) {
	var sticker models.Sticker
	if err := c.ShouldBindJSON(&sticker); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}
	if sticker.Name == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Sticker name is required", ""))
		return
	}

	created, err := h.stickers.CreateSticker(c.Request.Context(), &sticker)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to create sticker", err.Error()))
		return
	}

	c.JSON(http.StatusCreated, utils.SuccessResponse("Sticker created", created))
}

func (h *StickerHandler) RefreshEmbeddings(c *gin.Context) {
	count, err := h.stickers.RefreshEmbeddings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to refresh embeddings", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Embeddings refreshed", gin.H{"embedded": count}))
}
