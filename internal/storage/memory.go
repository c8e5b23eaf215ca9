package storage

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"smartwish-backend/internal/models"
)

// InMemoryStore backs unit tests and local development without MySQL.
type InMemoryStore struct {
	mu sync.RWMutex

	orders        map[string]*models.Order
	sessions      map[string]*models.PaymentSession
	transactions  map[string]*models.Transaction
	kiosks        map[string]*models.Kiosk
	kioskSessions map[string]*models.KioskSession
	detections    []*models.Detection
	dailyStats    map[string]*models.DailyStat
	printJobs     map[string]*models.PrintJob
	managers      map[string]*models.Manager

	nextDetectionID int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		orders:        make(map[string]*models.Order),
		sessions:      make(map[string]*models.PaymentSession),
		transactions:  make(map[string]*models.Transaction),
		kiosks:        make(map[string]*models.Kiosk),
		kioskSessions: make(map[string]*models.KioskSession),
		dailyStats:    make(map[string]*models.DailyStat),
		printJobs:     make(map[string]*models.PrintJob),
		managers:      make(map[string]*models.Manager),
	}
}

func (s *InMemoryStore) Close() error {
	return nil
}

func (s *InMemoryStore) HealthCheck() error {
	return nil
}

// --- Orders ---

func (s *InMemoryStore) SaveOrder(order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.OrderID]; exists {
		return fmt.Errorf("order already exists")
	}
	copied := *order
	s.orders[order.OrderID] = &copied
	return nil
}

func (s *InMemoryStore) GetOrder(orderID string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order not found")
	}
	copied := *order
	return &copied, nil
}

func (s *InMemoryStore) UpdateOrder(order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders[order.OrderID]; !ok {
		return fmt.Errorf("order not found")
	}
	copied := *order
	s.orders[order.OrderID] = &copied
	return nil
}

func (s *InMemoryStore) ListOrders(status models.OrderStatus, limit, offset int) ([]*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var orders []*models.Order
	for _, order := range s.orders {
		if status != "" && order.Status != status {
			continue
		}
		copied := *order
		orders = append(orders, &copied)
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return paginate(orders, limit, offset), nil
}

// --- Payment sessions ---

func (s *InMemoryStore) SaveSession(session *models.PaymentSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *InMemoryStore) GetSession(id string) (*models.PaymentSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("payment session not found")
	}
	copied := *session
	return &copied, nil
}

func (s *InMemoryStore) GetSessionByOrderID(orderID string) (*models.PaymentSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.PaymentSession
	for _, session := range s.sessions {
		if session.OrderID != orderID {
			continue
		}
		if latest == nil || session.CreatedAt.After(latest.CreatedAt) {
			latest = session
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (s *InMemoryStore) UpdateSession(session *models.PaymentSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; !ok {
		return fmt.Errorf("payment session not found")
	}
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *InMemoryStore) ExpireSessionsBefore(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, session := range s.sessions {
		if session.Status != models.SessionPending && session.Status != models.SessionProcessing {
			continue
		}
		if session.ExpiresAt.Before(cutoff) {
			session.Status = models.SessionExpired
			session.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

// --- Transactions ---

func (s *InMemoryStore) SaveTransaction(txn *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *txn
	s.transactions[txn.ID] = &copied
	return nil
}

func (s *InMemoryStore) GetTransaction(id string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txn, ok := s.transactions[id]
	if !ok {
		return nil, fmt.Errorf("transaction not found")
	}
	copied := *txn
	return &copied, nil
}

func (s *InMemoryStore) ListTransactionsByOrder(orderID string) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var txns []*models.Transaction
	for _, txn := range s.transactions {
		if txn.OrderID != orderID {
			continue
		}
		copied := *txn
		txns = append(txns, &copied)
	}
	sort.Slice(txns, func(i, j int) bool {
		return txns[i].CreatedAt.After(txns[j].CreatedAt)
	})
	return txns, nil
}

// --- Kiosks ---

func (s *InMemoryStore) SaveKiosk(kiosk *models.Kiosk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.kiosks[kiosk.ID]; exists {
		return fmt.Errorf("kiosk already exists")
	}
	copied := *kiosk
	s.kiosks[kiosk.ID] = &copied
	return nil
}

func (s *InMemoryStore) GetKiosk(id string) (*models.Kiosk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	kiosk, ok := s.kiosks[id]
	if !ok {
		return nil, fmt.Errorf("kiosk not found")
	}
	copied := *kiosk
	return &copied, nil
}

func (s *InMemoryStore) UpdateKiosk(kiosk *models.Kiosk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.kiosks[kiosk.ID]
	if !ok {
		return fmt.Errorf("kiosk not found")
	}
	copied := *kiosk
	copied.HeartbeatAt = existing.HeartbeatAt
	s.kiosks[kiosk.ID] = &copied
	return nil
}

func (s *InMemoryStore) ListKiosks() ([]*models.Kiosk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var kiosks []*models.Kiosk
	for _, kiosk := range s.kiosks {
		copied := *kiosk
		kiosks = append(kiosks, &copied)
	}
	sort.Slice(kiosks, func(i, j int) bool {
		return kiosks[i].CreatedAt.Before(kiosks[j].CreatedAt)
	})
	return kiosks, nil
}

func (s *InMemoryStore) UpdateKioskHeartbeat(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kiosk, ok := s.kiosks[id]
	if !ok {
		return fmt.Errorf("kiosk not found")
	}
	t := at
	kiosk.HeartbeatAt = &t
	return nil
}

func (s *InMemoryStore) ClearStaleHeartbeats(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, kiosk := range s.kiosks {
		if kiosk.HeartbeatAt != nil && kiosk.HeartbeatAt.Before(cutoff) {
			kiosk.HeartbeatAt = nil
			n++
		}
	}
	return n, nil
}

// --- Kiosk sessions ---

func (s *InMemoryStore) SaveKioskSession(session *models.KioskSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *session
	s.kioskSessions[session.ID] = &copied
	return nil
}

func (s *InMemoryStore) GetKioskSession(id string) (*models.KioskSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.kioskSessions[id]
	if !ok {
		return nil, fmt.Errorf("kiosk session not found")
	}
	copied := *session
	return &copied, nil
}

func (s *InMemoryStore) GetActiveKioskSession(kioskID string, since time.Time) (*models.KioskSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.KioskSession
	for _, session := range s.kioskSessions {
		if session.KioskID != kioskID || session.Outcome != models.OutcomeInProgress {
			continue
		}
		if session.EndedAt != nil || session.StartedAt.Before(since) {
			continue
		}
		if latest == nil || session.StartedAt.After(latest.StartedAt) {
			latest = session
		}
	}
	if latest == nil {
		return nil, nil
	}
	copied := *latest
	return &copied, nil
}

func (s *InMemoryStore) UpdateKioskSession(session *models.KioskSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.kioskSessions[session.ID]; !ok {
		return fmt.Errorf("kiosk session not found")
	}
	copied := *session
	s.kioskSessions[session.ID] = &copied
	return nil
}

func (s *InMemoryStore) AbandonKioskSessionsBefore(cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var n int64
	for _, session := range s.kioskSessions {
		if session.Outcome != models.OutcomeInProgress || session.EndedAt != nil {
			continue
		}
		if session.StartedAt.Before(cutoff) {
			session.Outcome = models.OutcomeAbandoned
			ended := now
			session.EndedAt = &ended
			n++
		}
	}
	return n, nil
}

// --- Surveillance ---

func (s *InMemoryStore) SaveDetections(detections []*models.Detection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range detections {
		s.nextDetectionID++
		copied := *d
		copied.ID = s.nextDetectionID
		s.detections = append(s.detections, &copied)
	}
	return nil
}

func (s *InMemoryStore) ListDetections(kioskID string, from, to time.Time) ([]*models.Detection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Detection
	for _, d := range s.detections {
		if d.KioskID != kioskID {
			continue
		}
		if d.DetectedAt.Before(from) || !d.DetectedAt.Before(to) {
			continue
		}
		copied := *d
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DetectedAt.Before(out[j].DetectedAt)
	})
	return out, nil
}

func dailyStatKey(kioskID string, date time.Time) string {
	return kioskID + "|" + date.Format("2006-01-02")
}

func (s *InMemoryStore) UpsertDailyStat(stat *models.DailyStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *stat
	s.dailyStats[dailyStatKey(stat.KioskID, stat.Date)] = &copied
	return nil
}

func (s *InMemoryStore) ListDailyStats(kioskID string, from, to time.Time) ([]*models.DailyStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats []*models.DailyStat
	for _, stat := range s.dailyStats {
		if stat.KioskID != kioskID {
			continue
		}
		if stat.Date.Before(from) || stat.Date.After(to) {
			continue
		}
		copied := *stat
		stats = append(stats, &copied)
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].Date.Before(stats[j].Date)
	})
	return stats, nil
}

// --- Print jobs ---

func (s *InMemoryStore) SavePrintJob(job *models.PrintJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *job
	s.printJobs[job.ID] = &copied
	return nil
}

func (s *InMemoryStore) GetPrintJob(id string) (*models.PrintJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.printJobs[id]
	if !ok {
		return nil, fmt.Errorf("print job not found")
	}
	copied := *job
	return &copied, nil
}

func (s *InMemoryStore) UpdatePrintJob(job *models.PrintJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.printJobs[job.ID]; !ok {
		return fmt.Errorf("print job not found")
	}
	copied := *job
	s.printJobs[job.ID] = &copied
	return nil
}

func (s *InMemoryStore) ListPrintJobs(kioskID string, limit, offset int) ([]*models.PrintJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var jobs []*models.PrintJob
	for _, job := range s.printJobs {
		if kioskID != "" && job.KioskID != kioskID {
			continue
		}
		copied := *job
		jobs = append(jobs, &copied)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return paginate(jobs, limit, offset), nil
}

// --- Managers ---

func (s *InMemoryStore) SaveManager(manager *models.Manager) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.managers[manager.Email]; exists {
		return fmt.Errorf("manager already exists")
	}
	copied := *manager
	s.managers[manager.Email] = &copied
	return nil
}

func (s *InMemoryStore) GetManagerByEmail(email string) (*models.Manager, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	manager, ok := s.managers[email]
	if !ok {
		return nil, fmt.Errorf("manager not found")
	}
	copied := *manager
	return &copied, nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
