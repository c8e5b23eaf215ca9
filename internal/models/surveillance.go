package models

import (
	"time"
)

// Detection is one person sighting reported by a kiosk camera agent.
// WasCounted is normally decided on the agent from its dwell threshold; the
// server additionally counts detections whose dwell clears its own threshold,
// which covers older agents that never set the flag.
type Detection struct {
	ID            int64     `json:"id"`
	KioskID       string    `json:"kiosk_id"`
	PersonTrackID string    `json:"person_track_id"`
	DetectedAt    time.Time `json:"detected_at"`
	DwellSeconds  float64   `json:"dwell_seconds"`
	WasCounted    bool      `json:"was_counted"`
	ImagePath     string    `json:"image_path,omitempty"`
}

// DetectionBatchRequest matches the agent's batch report payload.
type DetectionBatchRequest struct {
	Detections []DetectionPayload `json:"detections" binding:"required,min=1"`
}

type DetectionPayload struct {
	PersonTrackID string  `json:"personTrackId" binding:"required"`
	DetectedAt    string  `json:"detectedAt" binding:"required"`
	DwellSeconds  float64 `json:"dwellSeconds"`
	WasCounted    bool    `json:"wasCounted"`
	ImagePath     string  `json:"imagePath"`
}

// DailyStat is the per-kiosk per-day rollup recomputed on ingest.
type DailyStat struct {
	KioskID    string    `json:"kiosk_id"`
	Date       time.Time `json:"date"`
	Detections int       `json:"detections"`
	Counted    int       `json:"counted"`
	PeakHour   int       `json:"peak_hour"`
	UpdatedAt  time.Time `json:"updated_at"`
}
