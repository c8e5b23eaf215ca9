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

type PrintHandler struct {
	printing *services.PrintService
}

func NewPrintHandler(printing *services.PrintService) *PrintHandler {
	return &PrintHandler{
		printing: printing,
	}
}

// CreateJob queues and dispatches a print job for the calling kiosk. The
// response always carries the job; its status says whether dispatch worked.
func (h *PrintHandler) CreateJob(c *gin.Context) {
	kioskID := c.GetString("kiosk_id")
	if kioskID == "" {
		c.JSON(http.StatusUnauthorized, utils.ErrorResponse("Kiosk authentication required", ""))
		return
	}

	var req models.CreatePrintJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Invalid request payload", err.Error()))
		return
	}

	job, err := h.printing.CreateJob(c.Request.Context(), kioskID, &req)
	if err != nil {
		if errors.Is(err, services.ErrKioskNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Kiosk not found", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to create print job", err.Error()))
		return
	}

	c.JSON(http.StatusCreated, utils.SuccessResponse("Print job created", job))
}

// TestPrint sends the alignment page to a kiosk. Manager endpoint.
func (h *PrintHandler) TestPrint(c *gin.Context) {
	kioskID := c.Param("id")
	if kioskID == "" {
		c.JSON(http.StatusBadRequest, utils.ErrorResponse("Kiosk ID is required", ""))
		return
	}

	job, err := h.printing.TestPrint(c.Request.Context(), kioskID)
	if err != nil {
		if errors.Is(err, services.ErrKioskNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Kiosk not found", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to send test print", err.Error()))
		return
	}

	c.JSON(http.StatusCreated, utils.SuccessResponse("Test print dispatched", job))
}

func (h *PrintHandler) GetJob(c *gin.Context) {
	job, err := h.printing.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrPrintJobNotFound) {
			c.JSON(http.StatusNotFound, utils.ErrorResponse("Print job not found", err.Error()))
			return
		}
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to retrieve print job", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Print job retrieved", job))
}

func (h *PrintHandler) ListJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	jobs, err := h.printing.ListJobs(c.Request.Context(), c.Query("kiosk_id"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, utils.ErrorResponse("Failed to list print jobs", err.Error()))
		return
	}

	c.JSON(http.StatusOK, utils.SuccessResponse("Print jobs retrieved", jobs))
}
