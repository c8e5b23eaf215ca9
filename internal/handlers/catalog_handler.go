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

type CatalogHandler struct {
	catalog *services.CatalogService
}

func NewCatalogHandler(catalog *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
	}
}

func (h *CatalogHandler) ListTemplates(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	templates, err := h.catalog.ListTemplates(c.Request.Context(), c.Query("category"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to list templates", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Templates retrieved", templates))
}

// SearchTemplates answers the kiosk search bar. Semantic when an embedding
// engine is configured, keyword otherwise.
func (h *CatalogHandler) SearchTemplates(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Query parameter 'q' is required", ""))
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	templates, err := h.catalog.SearchTemplates(c.Request.Context(), query, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Search failed", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Search results", templates))
}

// GetTemplate accepts either a template ID or its slug.
func (h *CatalogHandler) GetTemplate(c *gin.Context) {
	key := c.Param("id")
	if key == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Template ID is required", ""))
		return
	}

	template, err := h.catalog.GetTemplate(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, services.ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Template not found", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to retrieve template", err.Error()))
		return
	}

	h.catalog.TrackTemplateUse(c.Request.Context(), template.ID)
	c.JSON(http.StatusOK, utils.SuccessResponse("Template retrieved", template))
}

func (h *CatalogHandler) CreateTemplate(c *gin.Context) {
	var tpl models.Template
	if err := c.ShouldBindJSON(&tpl); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}
	if tpl.Title == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Template title is required", ""))
		return
	}

	created, err := h.catalog.CreateTemplate(c.Request.Context(), &tpl)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to create template", err.Error()))
		return
	}

	c.JSON(http.StatusCreated, utils.SuccessResponse("Template created", created))
}

func (h *CatalogHandler) UpdateTemplate(c *gin.Context) {
	var tpl models.Template
	if err := c.ShouldBindJSON(&tpl); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}
	tpl.ID = c.Param("id")

	updated, err := h.catalog.UpdateTemplate(c.Request.Context(), &tpl)
	if err != nil {
		if errors.Is(err, services.ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Template not found", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to update template", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Template updated", updated))
}

// RefreshEmbeddings regenerates missing template vectors. Admin endpoint,
// used after bulk imports.
func (h *CatalogHandler) RefreshEmbeddings(c *gin.Context) {
	count, err := h.catalog.RefreshEmbeddings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to refresh embeddings", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Embeddings refreshed", gin.H{"embedded": count}))
}

func (h *CatalogHandler) ListCategories(c *gin.Context) {
	categories, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to list categories", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Categories retrieved", categories))
}

func (h *CatalogHandler) CreateCategory(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	category, err := h.catalog.CreateCategory(c.Request.Context(), req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to create category", err.Error()))
		return
	}

	c.JSON(http.StatusCreated, utils.SuccessResponse("Category created", category))
}

// --- Published designs ---

func (h *CatalogHandler) SaveDesign(c *gin.Context) {
	var design models.PublishedDesign
	if err := c.ShouldBindJSON(&design); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	saved, err := h.catalog.SaveDesign(c.Request.Context(), &design)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to save design", err.Error()))
		return
	}

	c.JSON(http.StatusCreated, utils.SuccessResponse("Design saved", saved))
}

func (h *CatalogHandler) GetDesign(c *gin.Context) {
	design, err := h.catalog.GetDesign(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrDesignNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Design not found", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to retrieve design", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Design retrieved", design))
}

func (h *CatalogHandler) ListDesigns(c *gin.Context) {
	if userID := c.Query("user_id"); userID != "" {
		designs, err := h.catalog.ListUserDesigns(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to list designs", err.Error()))
			return
		}
		c.JSON(http.StatusOK, utils.SuccessResponse("Designs retrieved", designs))
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	designs, err := h.catalog.ListPublishedDesigns(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to list designs", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Designs retrieved", designs))
}

func (h *CatalogHandler) PublishDesign(c *gin.Context) {
	design, err := h.catalog.PublishDesign(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrDesignNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Design not found", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to publish design", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Design published", design))
}

func (h *CatalogHandler) DeleteDesign(c *gin.Context) {
	if err := h.catalog.DeleteDesign(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, services.ErrDesignNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Design not found", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to delete design", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Design deleted", nil))
}
