package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"smartwish-backend/internal/models"
	"smartwish-backend/internal/services"
	"smartwish-backend/internal/utils"
)

type KioskHandler struct {
	kiosks *services.KioskService
}

func NewKioskHandler(kiosks *services.KioskService) *KioskHandler {
	return &KioskHandler{
		kiosks: kiosks,
	}
}

// Provision registers a new kiosk. The response is the only place the
// plaintext API key ever appears.
func (h *KioskHandler) Provision(c *gin.Context) {
	var req models.ProvisionKioskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	resp, err := h.kiosks.Provision(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to provision kiosk", err.Error()))
		return
	}

	c.JSON(http.StatusCreated, utils.SuccessResponse("Kiosk provisioned", resp))
}

func (h *KioskHandler) ListKiosks(c *gin.Context) {
	statuses, err := h.kiosks.ListKiosks(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to list kiosks", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Kiosks retrieved", statuses))
}

func (h *KioskHandler) GetKiosk(c *gin.Context) {
	kioskID := c.Param("id")
	if kioskID == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Kiosk ID is required", ""))
		return
	}

	status, err := h.kiosks.GetKioskStatus(c.Request.Context(), kioskID)
	if err != nil {
		if errors.Is(err, services.ErrKioskNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Kiosk not found", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to retrieve kiosk", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Kiosk retrieved", status))
}

// Heartbeat records that the calling kiosk is alive. The kiosk identity
// comes from the authenticated request context.
func (h *KioskHandler) Heartbeat(c *gin.Context) {
	kioskID := c.GetString("kiosk_id")
	if kioskID == "" {
		c.JSON(http.StatusUnauthorized, utils.ErrorResponse("Kiosk authentication required", ""))
		return
	}

	if err := h.kiosks.Heartbeat(c.Request.Context(), kioskID); err != nil {
		if errors.Is(err, services.ErrKioskNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Kiosk not found", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to record heartbeat", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Heartbeat recorded", nil))
}

func (h *KioskHandler) UpdateConfig(c *gin.Context) {
	kioskID := c.Param("id")
	if kioskID == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Kiosk ID is required", ""))
		return
	}

	var cfg json.RawMessage
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid config payload", err.Error()))
		return
	}

	kiosk, err := h.kiosks.UpdateConfig(c.Request.Context(), kioskID, cfg)
	if err != nil {
		if errors.Is(err, services.ErrKioskNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Kiosk not found", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to update kiosk config", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Kiosk config updated", kiosk))
}

func (h *KioskHandler) StartSession(c *gin.Context) {
	kioskID := c.GetString("kiosk_id")
	if kioskID == "" {
		c.JSON(http.StatusUnauthorized, utils.ErrorResponse("Kiosk authentication required", ""))
		return
	}

	session, err := h.kiosks.StartSession(c.Request.Context(), kioskID)
	if err != nil {
		if errors.Is(err, services.ErrKioskNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Kiosk not found", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to start session", err.Error()))
		return
	}

	c.JSON(http.StatusCreated, utils.SuccessResponse("Session started", session))
}

func (h *KioskHandler) EndSession(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Session ID is required", ""))
		return
	}

	var req models.EndSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	session, err := h.kiosks.EndSession(c.Request.Context(), sessionID, &req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrKioskSessionNotFound):
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Session not found", err.Error()))
		case errors.Is(err, services.ErrInvalidSessionOutcome):
			c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid session outcome", err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to end session", err.Error()))
		}
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Session ended", session))
}
