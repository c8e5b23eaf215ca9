package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"smartwish-backend/internal/models"
	"smartwish-backend/internal/services"
	"smartwish-backend/internal/utils"
)

type SurveillanceHandler struct {
	surveillance *services.SurveillanceService
}

func NewSurveillanceHandler(surveillance *services.SurveillanceService) *SurveillanceHandler {
	return &SurveillanceHandler{
		surveillance: surveillance,
	}
}

// IngestBatch accepts a camera agent's detection report. Rows with malformed
// timestamps are skipped, not fatal; the response says how many of each.
func (h *SurveillanceHandler) IngestBatch(c *gin.Context) {
	kioskID := c.GetString("kiosk_id")
	if kioskID == "" {
		c.JSON(http.StatusUnauthorized, utils.ErrorResponse("Kiosk authentication required", ""))
		return
	}

	var req models.DetectionBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	stored, skipped, err := h.surveillance.IngestBatch(c.Request.Context(), kioskID, &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Failed to ingest detections", err.Error()))
		return
	}

	c.JSON(http.StatusCreated, utils.SuccessResponse("Detections ingested", gin.H{
		"stored":  stored,
		"skipped": skipped,
	}))
}

func (h *SurveillanceHandler) ListDetections(c *gin.Context) {
	kioskID := c.Param("id")
	if kioskID == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Kiosk ID is required", ""))
		return
	}

	from, to, err := parseTimeRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid time range", err.Error()))
		return
	}

	detections, err := h.surveillance.ListDetections(c.Request.Context(), kioskID, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to list detections", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Detections retrieved", detections))
}

func (h *SurveillanceHandler) DailyStats(c *gin.Context) {
	kioskID := c.Param("id")
	if kioskID == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Kiosk ID is required", ""))
		return
	}

	from, to, err := parseTimeRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid time range", err.Error()))
		return
	}

	stats, err := h.surveillance.DailyStats(c.Request.Context(), kioskID, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to list daily stats", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Daily stats retrieved", stats))
}

// parseTimeRange reads optional RFC 3339 from/to query parameters. Zero
// values let the service apply its default window.
func parseTimeRange(c *gin.Context) (time.Time, time.Time, error) {
	var from, to time.Time

	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return from, to, err
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return from, to, err
		}
		to = parsed
	}
	return from, to, nil
}
