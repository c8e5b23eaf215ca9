package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartwish-backend/internal/config"
	"smartwish-backend/internal/models"
	"smartwish-backend/internal/storage"
)

func newSurveillanceService(t *testing.T, store storage.Store) *SurveillanceService {
	t.Helper()
	return NewSurveillanceService(store, newTestLogger(t), config.SurveillanceConfig{
		DwellThreshold: 8.0,
	})
}

// yesterdayUTC anchors test detections on a full past day so the rollup
// window math does not straddle midnight during the run.
func yesterdayUTC() time.Time {
	return time.Now().UTC().AddDate(0, 0, -1).Truncate(24 * time.Hour)
}

func TestIngestBatchStoresAndRollsUp(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newSurveillanceService(t, store)

	day := yesterdayUTC()
	at := func(hour, minute int) string {
		return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute).Format(time.RFC3339)
	}

	stored, skipped, err := svc.IngestBatch(context.Background(), "kiosk-1", &models.DetectionBatchRequest{
		Detections: []models.DetectionPayload{
			{PersonTrackID: "p1", DetectedAt: at(10, 0), DwellSeconds: 12.5},
			{PersonTrackID: "p2", DetectedAt: at(10, 30), DwellSeconds: 3.0},
			{PersonTrackID: "p3", DetectedAt: at(14, 0), DwellSeconds: 2.0, WasCounted: true},
			{PersonTrackID: "p4", DetectedAt: "not-a-timestamp", DwellSeconds: 9.0},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, stored)
	assert.Equal(t, 1, skipped)

	detections, err := store.ListDetections("kiosk-1", day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, detections, 3)

	counted := map[string]bool{}
	for _, d := range detections {
		counted[d.PersonTrackID] = d.WasCounted
	}
	assert.True(t, counted["p1"], "dwell above threshold counts")
	assert.False(t, counted["p2"], "short dwell without the agent flag does not count")
	assert.True(t, counted["p3"], "the agent flag counts regardless of dwell")

	stats, err := store.ListDailyStats("kiosk-1", day, day)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 3, stats[0].Detections)
	assert.Equal(t, 2, stats[0].Counted)
	assert.Equal(t, 10, stats[0].PeakHour)
}

func TestIngestBatchPeakHourTieKeepsEarliest(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newSurveillanceService(t, store)

	day := yesterdayUTC()
	at := func(hour, minute int) string {
		return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute).Format(time.RFC3339)
	}

	_, _, err := svc.IngestBatch(context.Background(), "kiosk-2", &models.DetectionBatchRequest{
		Detections: []models.DetectionPayload{
			{PersonTrackID: "a", DetectedAt: at(9, 0), DwellSeconds: 10},
			{PersonTrackID: "b", DetectedAt: at(9, 45), DwellSeconds: 10},
			{PersonTrackID: "c", DetectedAt: at(15, 0), DwellSeconds: 10},
			{PersonTrackID: "d", DetectedAt: at(15, 30), DwellSeconds: 10},
		},
	})
	require.NoError(t, err)

	stats, err := store.ListDailyStats("kiosk-2", day, day)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 9, stats[0].PeakHour, "ties resolve to the earliest hour")
}

func TestIngestBatchRefreshesExistingRollup(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newSurveillanceService(t, store)

	day := yesterdayUTC()
	at := func(hour int) string {
		return day.Add(time.Duration(hour) * time.Hour).Format(time.RFC3339)
	}

	_, _, err := svc.IngestBatch(context.Background(), "kiosk-3", &models.DetectionBatchRequest{
		Detections: []models.DetectionPayload{
			{PersonTrackID: "a", DetectedAt: at(8), DwellSeconds: 10},
		},
	})
	require.NoError(t, err)

	_, _, err = svc.IngestBatch(context.Background(), "kiosk-3", &models.DetectionBatchRequest{
		Detections: []models.DetectionPayload{
			{PersonTrackID: "b", DetectedAt: at(11), DwellSeconds: 1},
			{PersonTrackID: "c", DetectedAt: at(11), DwellSeconds: 1},
		},
	})
	require.NoError(t, err)

	stats, err := store.ListDailyStats("kiosk-3", day, day)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 3, stats[0].Detections, "the rollup covers both batches")
	assert.Equal(t, 1, stats[0].Counted)
	assert.Equal(t, 11, stats[0].PeakHour)
}

func TestIngestBatchAllInvalid(t *testing.T) {
	svc := newSurveillanceService(t, storage.NewInMemoryStore())

	stored, skipped, err := svc.IngestBatch(context.Background(), "kiosk-1", &models.DetectionBatchRequest{
		Detections: []models.DetectionPayload{
			{PersonTrackID: "p1", DetectedAt: "yesterday at noon"},
		},
	})
	require.Error(t, err)
	assert.EqualError(t, err, "no valid detections in batch")
	assert.Zero(t, stored)
	assert.Equal(t, 1, skipped)
}

func TestListDetectionsDefaultWindow(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newSurveillanceService(t, store)

	require.NoError(t, store.SaveDetections([]*models.Detection{
		{KioskID: "kiosk-1", PersonTrackID: "recent", DetectedAt: time.Now().Add(-time.Hour)},
		{KioskID: "kiosk-1", PersonTrackID: "old", DetectedAt: time.Now().Add(-30 * time.Hour)},
	}))

	detections, err := svc.ListDetections(context.Background(), "kiosk-1", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, detections, 1)
	assert.Equal(t, "recent", detections[0].PersonTrackID)
}

func TestDailyStatsDefaultWindow(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newSurveillanceService(t, store)

	today := time.Now().UTC().Truncate(24 * time.Hour)
	require.NoError(t, store.UpsertDailyStat(&models.DailyStat{
		KioskID: "kiosk-1", Date: today.AddDate(0, 0, -5), Detections: 12, Counted: 4,
	}))
	require.NoError(t, store.UpsertDailyStat(&models.DailyStat{
		KioskID: "kiosk-1", Date: today.AddDate(0, 0, -45), Detections: 80, Counted: 20,
	}))

	stats, err := svc.DailyStats(context.Background(), "kiosk-1", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 12, stats[0].Detections)
}
