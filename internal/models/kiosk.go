package models

import (
	"encoding/json"
	"time"
)

type SessionOutcome string

const (
	OutcomeInProgress SessionOutcome = "in_progress"
	OutcomeCompleted  SessionOutcome = "completed"
	OutcomeAbandoned  SessionOutcome = "abandoned"
)

// Kiosk is a registered retail unit. API keys are stored as bcrypt hashes;
// the plaintext key is shown exactly once at provisioning time.
type Kiosk struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Location    string          `json:"location"`
	StoreID     string          `json:"store_id"`
	APIKeyHash  string          `json:"-"`
	Config      json.RawMessage `json:"config,omitempty"`
	HeartbeatAt *time.Time      `json:"heartbeat_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// KioskSession is one customer interaction on a kiosk, from attract screen to
// checkout or walk-away.
type KioskSession struct {
	ID        string         `json:"id"`
	KioskID   string         `json:"kiosk_id"`
	Outcome   SessionOutcome `json:"outcome"`
	OrderID   string         `json:"order_id,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   *time.Time     `json:"ended_at,omitempty"`
}

// KioskStatus is the dashboard view of a kiosk. Online and ActiveSession are
// derived at read time, never stored.
type KioskStatus struct {
	Kiosk         *Kiosk        `json:"kiosk"`
	Online        bool          `json:"online"`
	ActiveSession *KioskSession `json:"active_session,omitempty"`
}

type ProvisionKioskRequest struct {
	Name     string          `json:"name" binding:"required"`
	Location string          `json:"location"`
	StoreID  string          `json:"store_id"`
	Config   json.RawMessage `json:"config,omitempty"`
}

// ProvisionKioskResponse carries the one-time plaintext API key.
type ProvisionKioskResponse struct {
	Kiosk  *Kiosk `json:"kiosk"`
	APIKey string `json:"api_key"`
}

type EndSessionRequest struct {
	Outcome SessionOutcome `json:"outcome" binding:"required"`
	OrderID string         `json:"order_id,omitempty"`
}

// KioskPrinterConfig is the printing section of a kiosk's config blob.
type KioskPrinterConfig struct {
	PrinterHost string `json:"printer_host"`
	PrinterName string `json:"printer_name"`
	AgentPort   int    `json:"agent_port,omitempty"`
}
