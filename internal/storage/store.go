package storage

import (
	"time"

	"smartwish-backend/internal/models"
)

// Store is the persistence boundary for the commerce side of the platform.
// Catalog content (templates, stickers, designs) lives behind the bun
// repositories in internal/catalog instead.
//
// Lookups by primary key return an error when the row is missing. The two
// "may legitimately be absent" lookups (GetSessionByOrderID,
// GetActiveKioskSession) return (nil, nil) instead, so best-effort callers
// do not have to untangle not-found from real failures.
type Store interface {
	// Order operations
	SaveOrder(order *models.Order) error
	GetOrder(orderID string) (*models.Order, error)
	UpdateOrder(order *models.Order) error
	ListOrders(status models.OrderStatus, limit, offset int) ([]*models.Order, error)

	// Payment session operations
	SaveSession(session *models.PaymentSession) error
	GetSession(id string) (*models.PaymentSession, error)
	GetSessionByOrderID(orderID string) (*models.PaymentSession, error)
	UpdateSession(session *models.PaymentSession) error
	ExpireSessionsBefore(cutoff time.Time) (int64, error)

	// Transaction operations
	SaveTransaction(txn *models.Transaction) error
	GetTransaction(id string) (*models.Transaction, error)
	ListTransactionsByOrder(orderID string) ([]*models.Transaction, error)

	// Kiosk operations
	SaveKiosk(kiosk *models.Kiosk) error
	GetKiosk(id string) (*models.Kiosk, error)
	UpdateKiosk(kiosk *models.Kiosk) error
	ListKiosks() ([]*models.Kiosk, error)
	UpdateKioskHeartbeat(id string, at time.Time) error
	ClearStaleHeartbeats(cutoff time.Time) (int64, error)

	// Kiosk session operations
	SaveKioskSession(session *models.KioskSession) error
	GetKioskSession(id string) (*models.KioskSession, error)
	GetActiveKioskSession(kioskID string, since time.Time) (*models.KioskSession, error)
	UpdateKioskSession(session *models.KioskSession) error
	AbandonKioskSessionsBefore(cutoff time.Time) (int64, error)

	// Surveillance operations
	SaveDetections(detections []*models.Detection) error
	ListDetections(kioskID string, from, to time.Time) ([]*models.Detection, error)
	UpsertDailyStat(stat *models.DailyStat) error
	ListDailyStats(kioskID string, from, to time.Time) ([]*models.DailyStat, error)

	// Print job operations
	SavePrintJob(job *models.PrintJob) error
	GetPrintJob(id string) (*models.PrintJob, error)
	UpdatePrintJob(job *models.PrintJob) error
	ListPrintJobs(kioskID string, limit, offset int) ([]*models.PrintJob, error)

	// Manager accounts
	SaveManager(manager *models.Manager) error
	GetManagerByEmail(email string) (*models.Manager, error)
}
