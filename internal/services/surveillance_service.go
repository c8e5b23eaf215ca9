package services

import (
	"context"
	"fmt"
	"time"

	"smartwish-backend/internal/config"
	"smartwish-backend/internal/logger"
	"smartwish-backend/internal/models"
	"smartwish-backend/internal/storage"
)

type SurveillanceService struct {
	store          storage.Store
	log            *logger.Logger
	dwellThreshold float64
}

func NewSurveillanceService(store storage.Store, log *logger.Logger, cfg config.SurveillanceConfig) *SurveillanceService {
	return &SurveillanceService{
		store:          store,
		log:            log,
		dwellThreshold: cfg.DwellThreshold,
	}
}

// IngestBatch stores a camera agent's detection report and refreshes the
// daily rollups it touches. Rows with unparseable timestamps are skipped so
// one bad entry cannot sink a whole batch. Returns stored and skipped counts.
func (s *SurveillanceService) IngestBatch(ctx context.Context, kioskID string, req *models.DetectionBatchRequest) (int, int, error) {
	detections := make([]*models.Detection, 0, len(req.Detections))
	skipped := 0

	for _, payload := range req.Detections {
		detectedAt, err := time.Parse(time.RFC3339, payload.DetectedAt)
		if err != nil {
			s.log.Warn("SURVEILLANCE", fmt.Sprintf("Skipping detection with bad timestamp %q from kiosk %s: %v", payload.DetectedAt, kioskID, err))
			skipped++
			continue
		}

		detections = append(detections, &models.Detection{
			KioskID:       kioskID,
			PersonTrackID: payload.PersonTrackID,
			DetectedAt:    detectedAt,
			DwellSeconds:  payload.DwellSeconds,
			WasCounted:    payload.WasCounted || payload.DwellSeconds >= s.dwellThreshold,
			ImagePath:     payload.ImagePath,
		})
	}

	if len(detections) == 0 {
		return 0, skipped, fmt.Errorf("no valid detections in batch")
	}

	if err := s.store.SaveDetections(detections); err != nil {
		s.log.Error("SURVEILLANCE", fmt.Sprintf("Failed to store detection batch from kiosk %s: %v", kioskID, err))
		return 0, skipped, fmt.Errorf("failed to store detections: %w", err)
	}

	s.log.LogKiosk("DETECTIONS", kioskID, fmt.Sprintf("Stored %d detections (%d skipped)", len(detections), skipped))

	// Refresh the rollup for every day this batch touched. The raw rows are
	// already stored; a rollup failure is logged and recomputed on the next
	// batch for that day.
	for _, day := range touchedDays(detections) {
		if err := s.recomputeDailyStat(kioskID, day); err != nil {
			s.log.Warn("SURVEILLANCE", fmt.Sprintf("Failed to refresh rollup for kiosk %s on %s: %v", kioskID, day.Format("2006-01-02"), err))
		}
	}

	return len(detections), skipped, nil
}

func touchedDays(detections []*models.Detection) []time.Time {
	seen := make(map[time.Time]bool)
	var days []time.Time
	for _, d := range detections {
		day := d.DetectedAt.UTC().Truncate(24 * time.Hour)
		if !seen[day] {
			seen[day] = true
			days = append(days, day)
		}
	}
	return days
}

// recomputeDailyStat rebuilds one (kiosk, day) rollup from the raw events.
// Peak hour is the busiest hour of the day; ties keep the earliest hour.
func (s *SurveillanceService) recomputeDailyStat(kioskID string, day time.Time) error {
	from := day
	to := day.Add(24 * time.Hour)

	detections, err := s.store.ListDetections(kioskID, from, to)
	if err != nil {
		return err
	}

	var counted int
	var perHour [24]int
	for _, d := range detections {
		if d.WasCounted {
			counted++
		}
		perHour[d.DetectedAt.UTC().Hour()]++
	}

	peakHour := 0
	for hour := 1; hour < 24; hour++ {
		if perHour[hour] > perHour[peakHour] {
			peakHour = hour
		}
	}

	return s.store.UpsertDailyStat(&models.DailyStat{
		KioskID:    kioskID,
		Date:       day,
		Detections: len(detections),
		Counted:    counted,
		PeakHour:   peakHour,
		UpdatedAt:  time.Now(),
	})
}

// ListDetections returns raw events for a kiosk, defaulting to the last 24
// hours when no window is given.
func (s *SurveillanceService) ListDetections(ctx context.Context, kioskID string, from, to time.Time) ([]*models.Detection, error) {
	if to.IsZero() {
		to = time.Now()
	}
	if from.IsZero() {
		from = to.Add(-24 * time.Hour)
	}
	return s.store.ListDetections(kioskID, from, to)
}

// DailyStats returns rollups for a kiosk, defaulting to the last 30 days.
func (s *SurveillanceService) DailyStats(ctx context.Context, kioskID string, from, to time.Time) ([]*models.DailyStat, error) {
	if to.IsZero() {
		to = time.Now().UTC().Truncate(24 * time.Hour)
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	return s.store.ListDailyStats(kioskID, from, to)
}
