package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"smartwish-backend/internal/config"
	"smartwish-backend/internal/logger"
	"smartwish-backend/internal/models"
	"smartwish-backend/internal/storage"
	"smartwish-backend/internal/utils"
)

var ErrPrintJobNotFound = errors.New("print job not found")

// PrintDispatcher pushes a rendered document to a kiosk's printer.
type PrintDispatcher interface {
	Dispatch(ctx context.Context, kiosk *models.Kiosk, job *models.PrintJob, documentURL string) error
}

type PrintService struct {
	store      storage.Store
	dispatcher PrintDispatcher
	log        *logger.Logger
	assets     config.AssetsConfig
}

func NewPrintService(store storage.Store, dispatcher PrintDispatcher, log *logger.Logger, assets config.AssetsConfig) *PrintService {
	return &PrintService{
		store:      store,
		dispatcher: dispatcher,
		log:        log,
		assets:     assets,
	}
}

// CreateJob queues a print job and dispatches it immediately. The returned
// job carries the dispatch outcome in its status: sent when the document
// reached the printer or agent, failed with the error recorded otherwise.
func (s *PrintService) CreateJob(ctx context.Context, kioskID string, req *models.CreatePrintJobRequest) (*models.PrintJob, error) {
	kiosk, err := s.store.GetKiosk(kioskID)
	if err != nil {
		return nil, ErrKioskNotFound
	}

	copies := req.Copies
	if copies <= 0 {
		copies = 1
	}

	now := time.Now()
	job := &models.PrintJob{
		ID:        utils.GenerateUUID(),
		KioskID:   kiosk.ID,
		OrderID:   req.OrderID,
		DesignID:  req.DesignID,
		Copies:    copies,
		Status:    models.PrintQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.SavePrintJob(job); err != nil {
		return nil, fmt.Errorf("failed to save print job: %w", err)
	}
	s.log.LogPrint("QUEUED", job.ID, fmt.Sprintf("Kiosk %s, %d copies", kiosk.ID, copies))

	if err := s.dispatcher.Dispatch(ctx, kiosk, job, req.DocumentURL); err != nil {
		job.Status = models.PrintFailed
		job.Error = err.Error()
		s.log.Error("PRINT", fmt.Sprintf("Dispatch failed for job %s: %v", job.ID, err))
	} else {
		job.Status = models.PrintSent
	}
	job.UpdatedAt = time.Now()

	if err := s.store.UpdatePrintJob(job); err != nil {
		s.log.Warn("PRINT", fmt.Sprintf("Failed to record dispatch outcome for job %s: %v", job.ID, err))
	}
	return job, nil
}

// TestPrint sends the bundled alignment page to a kiosk's printer. Used by
// field techs during installs.
func (s *PrintService) TestPrint(ctx context.Context, kioskID string) (*models.PrintJob, error) {
	documentURL := strings.TrimRight(s.assets.PublicBaseURL, "/") + "/print/test-page.pdf"
	return s.CreateJob(ctx, kioskID, &models.CreatePrintJobRequest{
		DesignID:    "test-page",
		Copies:      1,
		DocumentURL: documentURL,
	})
}

func (s *PrintService) GetJob(ctx context.Context, id string) (*models.PrintJob, error) {
	job, err := s.store.GetPrintJob(id)
	if err != nil {
		return nil, ErrPrintJobNotFound
	}
	return job, nil
}

func (s *PrintService) ListJobs(ctx context.Context, kioskID string, limit, offset int) ([]*models.PrintJob, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListPrintJobs(kioskID, limit, offset)
}

// HandleStatusEvent runs after the consumer applies an agent's status report.
// The store update already happened; this is the place for follow-up side
// effects and audit logging.
func (s *PrintService) HandleStatusEvent(event *models.PrintStatusEvent) error {
	switch event.Status {
	case models.PrintPrinted:
		s.log.LogPrint("PRINTED", event.JobID, fmt.Sprintf("Kiosk %s confirmed print", event.KioskID))
	case models.PrintFailed:
		s.log.LogPrint("FAILED", event.JobID, fmt.Sprintf("Kiosk %s reported: %s", event.KioskID, event.Error))
	}
	return nil
}
