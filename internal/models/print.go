package models

import (
	"time"
)

type PrintJobStatus string

const (
	PrintQueued  PrintJobStatus = "queued"
	PrintSent    PrintJobStatus = "sent"
	PrintPrinted PrintJobStatus = "printed"
	PrintFailed  PrintJobStatus = "failed"
)

// PrintJob tracks one card sent to a kiosk's print agent.
type PrintJob struct {
	ID        string         `json:"id"`
	KioskID   string         `json:"kiosk_id"`
	OrderID   string         `json:"order_id,omitempty"`
	DesignID  string         `json:"design_id,omitempty"`
	Copies    int            `json:"copies"`
	Status    PrintJobStatus `json:"status"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type CreatePrintJobRequest struct {
	OrderID  string `json:"order_id"`
	DesignID string `json:"design_id"`
	Copies   int    `json:"copies"`
	// DocumentURL points at the rendered PDF in public storage.
	DocumentURL string `json:"document_url" binding:"required"`
}

// PrintStatusEvent is published by field agents when a job finishes or fails.
type PrintStatusEvent struct {
	JobID     string         `json:"job_id"`
	KioskID   string         `json:"kiosk_id"`
	Status    PrintJobStatus `json:"status"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
