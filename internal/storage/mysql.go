package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"smartwish-backend/internal/config"
	"smartwish-backend/internal/logger"
	"smartwish-backend/internal/models"
)

type MySQLStore struct {
	db  *sql.DB
	log *logger.Logger
}

func NewMySQLStore(cfg config.DatabaseConfig, log *logger.Logger) (*MySQLStore, error) {
	log.LogDatabase("CONNECT", "mysql", fmt.Sprintf("Connecting to MySQL at %s:%s", cfg.Host, cfg.Port))

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Error("DATABASE", "Failed to open MySQL connection: "+err.Error())
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	// Test connection
	if err := db.Ping(); err != nil {
		log.Error("DATABASE", "Failed to ping MySQL: "+err.Error())
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &MySQLStore{
		db:  db,
		log: log,
	}

	if err := store.initTables(); err != nil {
		log.Error("DATABASE", "Failed to initialize tables: "+err.Error())
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	log.LogDatabase("SUCCESS", "mysql", "MySQL connection established and tables initialized")
	return store, nil
}

// DB exposes the underlying handle so the bun catalog repositories can share
// the same connection pool.
func (s *MySQLStore) DB() *sql.DB {
	return s.db
}

func (s *MySQLStore) initTables() error {
	s.log.LogDatabase("MIGRATE", "mysql", "Creating tables if not exist")

	tables := map[string]string{
		"orders": `
        CREATE TABLE IF NOT EXISTS orders (
            order_id VARCHAR(32) PRIMARY KEY,
            kiosk_id VARCHAR(36) NOT NULL DEFAULT '',
            customer_email VARCHAR(255) NOT NULL,
            customer_name VARCHAR(255) NOT NULL DEFAULT '',
            items JSON NOT NULL,
            amount DECIMAL(10,2) NOT NULL,
            currency VARCHAR(3) NOT NULL DEFAULT 'USD',
            status VARCHAR(32) NOT NULL,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            INDEX idx_orders_status (status),
            INDEX idx_orders_kiosk (kiosk_id),
            INDEX idx_orders_email (customer_email)
        ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		"payment_sessions": `
        CREATE TABLE IF NOT EXISTS payment_sessions (
            id VARCHAR(16) PRIMARY KEY,
            order_id VARCHAR(32) NOT NULL,
            amount DECIMAL(10,2) NOT NULL,
            currency VARCHAR(3) NOT NULL DEFAULT 'USD',
            stripe_intent_id VARCHAR(255) NOT NULL DEFAULT '',
            stripe_client_secret VARCHAR(255) NOT NULL DEFAULT '',
            status VARCHAR(16) NOT NULL,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            expires_at DATETIME NOT NULL,
            INDEX idx_sessions_order (order_id),
            INDEX idx_sessions_status_expiry (status, expires_at)
        ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		"transactions": `
        CREATE TABLE IF NOT EXISTS transactions (
            id VARCHAR(64) PRIMARY KEY,
            order_id VARCHAR(32) NOT NULL,
            payment_session_id VARCHAR(16) NOT NULL DEFAULT '',
            amount DECIMAL(10,2) NOT NULL,
            currency VARCHAR(3) NOT NULL DEFAULT 'USD',
            stripe_intent_id VARCHAR(255) NOT NULL DEFAULT '',
            stripe_charge_id VARCHAR(255) NOT NULL DEFAULT '',
            status VARCHAR(16) NOT NULL,
            failure_code VARCHAR(64) NOT NULL DEFAULT '',
            failure_message TEXT,
            created_at DATETIME NOT NULL,
            INDEX idx_transactions_order (order_id)
        ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		"kiosks": `
        CREATE TABLE IF NOT EXISTS kiosks (
            id VARCHAR(36) PRIMARY KEY,
            name VARCHAR(255) NOT NULL,
            location VARCHAR(255) NOT NULL DEFAULT '',
            store_id VARCHAR(64) NOT NULL DEFAULT '',
            api_key_hash VARCHAR(100) NOT NULL,
            config JSON NULL,
            heartbeat_at DATETIME NULL,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		"kiosk_sessions": `
        CREATE TABLE IF NOT EXISTS kiosk_sessions (
            id VARCHAR(36) PRIMARY KEY,
            kiosk_id VARCHAR(36) NOT NULL,
            outcome VARCHAR(16) NOT NULL,
            order_id VARCHAR(32) NOT NULL DEFAULT '',
            started_at DATETIME NOT NULL,
            ended_at DATETIME NULL,
            INDEX idx_kiosk_sessions_state (kiosk_id, outcome, started_at)
        ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		"surveillance_events": `
        CREATE TABLE IF NOT EXISTS surveillance_events (
            id BIGINT AUTO_INCREMENT PRIMARY KEY,
            kiosk_id VARCHAR(36) NOT NULL,
            person_track_id VARCHAR(64) NOT NULL,
            detected_at DATETIME NOT NULL,
            dwell_seconds DOUBLE NOT NULL DEFAULT 0,
            was_counted BOOLEAN NOT NULL DEFAULT FALSE,
            image_path VARCHAR(512) NOT NULL DEFAULT '',
            INDEX idx_surveillance_kiosk_time (kiosk_id, detected_at)
        ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		"surveillance_daily_stats": `
        CREATE TABLE IF NOT EXISTS surveillance_daily_stats (
            kiosk_id VARCHAR(36) NOT NULL,
            stat_date DATE NOT NULL,
            detections INT NOT NULL DEFAULT 0,
            counted INT NOT NULL DEFAULT 0,
            peak_hour INT NOT NULL DEFAULT 0,
            updated_at DATETIME NOT NULL,
            PRIMARY KEY (kiosk_id, stat_date)
        ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		"print_jobs": `
        CREATE TABLE IF NOT EXISTS print_jobs (
            id VARCHAR(36) PRIMARY KEY,
            kiosk_id VARCHAR(36) NOT NULL,
            order_id VARCHAR(32) NOT NULL DEFAULT '',
            design_id VARCHAR(36) NOT NULL DEFAULT '',
            copies INT NOT NULL DEFAULT 1,
            status VARCHAR(16) NOT NULL,
            error TEXT,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            INDEX idx_print_jobs_kiosk (kiosk_id, created_at)
        ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,

		"managers": `
        CREATE TABLE IF NOT EXISTS managers (
            id VARCHAR(36) PRIMARY KEY,
            email VARCHAR(255) NOT NULL UNIQUE,
            password_hash VARCHAR(100) NOT NULL,
            role VARCHAR(16) NOT NULL DEFAULT 'manager',
            created_at DATETIME NOT NULL
        ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,
	}

	for name, query := range tables {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to create %s table: %w", name, err)
		}
	}

	s.log.LogDatabase("SUCCESS", "mysql", "All tables ready")
	return nil
}

func (s *MySQLStore) Close() error {
	s.log.LogDatabase("CLOSE", "mysql", "Closing MySQL connection")
	return s.db.Close()
}

func (s *MySQLStore) HealthCheck() error {
	return s.db.Ping()
}

// --- Orders ---

func (s *MySQLStore) SaveOrder(order *models.Order) error {
	s.log.LogDatabase("INSERT", "orders", fmt.Sprintf("Saving order %s", order.OrderID))

	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to encode order items: %w", err)
	}

	query := `
    INSERT INTO orders (order_id, kiosk_id, customer_email, customer_name, items, amount, currency, status, created_at, updated_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err = s.db.Exec(query,
		order.OrderID, order.KioskID, order.CustomerEmail, order.CustomerName,
		string(items), order.Amount, order.Currency, order.Status,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save order %s: %s", order.OrderID, err.Error()))
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

func (s *MySQLStore) scanOrder(row *sql.Row) (*models.Order, error) {
	order := &models.Order{}
	var items string
	err := row.Scan(
		&order.OrderID, &order.KioskID, &order.CustomerEmail, &order.CustomerName,
		&items, &order.Amount, &order.Currency, &order.Status,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(items), &order.Items); err != nil {
		return nil, fmt.Errorf("failed to decode order items: %w", err)
	}
	return order, nil
}

const orderColumns = `order_id, kiosk_id, customer_email, customer_name, items, amount, currency, status, created_at, updated_at`

func (s *MySQLStore) GetOrder(orderID string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = ?`

	order, err := s.scanOrder(s.db.QueryRow(query, orderID))
	if err != nil {
		if err == sql.ErrNoRows {
			s.log.LogDatabase("NOT_FOUND", "orders", fmt.Sprintf("Order %s not found", orderID))
			return nil, fmt.Errorf("order not found")
		}
		s.log.Error("DATABASE", fmt.Sprintf("Failed to get order %s: %s", orderID, err.Error()))
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

func (s *MySQLStore) UpdateOrder(order *models.Order) error {
	s.log.LogDatabase("UPDATE", "orders", fmt.Sprintf("Updating order %s to status %s", order.OrderID, order.Status))

	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to encode order items: %w", err)
	}

	query := `
    UPDATE orders SET kiosk_id = ?, customer_email = ?, customer_name = ?, items = ?, amount = ?, currency = ?, status = ?, updated_at = ?
    WHERE order_id = ?
    `
	res, err := s.db.Exec(query,
		order.KioskID, order.CustomerEmail, order.CustomerName, string(items),
		order.Amount, order.Currency, order.Status, order.UpdatedAt, order.OrderID,
	)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to update order %s: %s", order.OrderID, err.Error()))
		return fmt.Errorf("failed to update order: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("order not found")
	}
	return nil
}

func (s *MySQLStore) ListOrders(status models.OrderStatus, limit, offset int) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to list orders: %s", err.Error()))
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order := &models.Order{}
		var items string
		if err := rows.Scan(
			&order.OrderID, &order.KioskID, &order.CustomerEmail, &order.CustomerName,
			&items, &order.Amount, &order.Currency, &order.Status,
			&order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		if err := json.Unmarshal([]byte(items), &order.Items); err != nil {
			return nil, fmt.Errorf("failed to decode order items: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// --- Payment sessions ---

const sessionColumns = `id, order_id, amount, currency, stripe_intent_id, stripe_client_secret, status, created_at, updated_at, expires_at`

func (s *MySQLStore) SaveSession(session *models.PaymentSession) error {
	s.log.LogDatabase("INSERT", "payment_sessions", fmt.Sprintf("Saving session %s for order %s", session.ID, session.OrderID))

	query := `
    INSERT INTO payment_sessions (` + sessionColumns + `)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.Exec(query,
		session.ID, session.OrderID, session.Amount, session.Currency,
		session.StripeIntentID, session.StripeClientSecret, session.Status,
		session.CreatedAt, session.UpdatedAt, session.ExpiresAt,
	)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save session %s: %s", session.ID, err.Error()))
		return fmt.Errorf("failed to save payment session: %w", err)
	}
	return nil
}

func scanSession(scan func(dest ...interface{}) error) (*models.PaymentSession, error) {
	session := &models.PaymentSession{}
	err := scan(
		&session.ID, &session.OrderID, &session.Amount, &session.Currency,
		&session.StripeIntentID, &session.StripeClientSecret, &session.Status,
		&session.CreatedAt, &session.UpdatedAt, &session.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *MySQLStore) GetSession(id string) (*models.PaymentSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM payment_sessions WHERE id = ?`

	session, err := scanSession(s.db.QueryRow(query, id).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			s.log.LogDatabase("NOT_FOUND", "payment_sessions", fmt.Sprintf("Session %s not found", id))
			return nil, fmt.Errorf("payment session not found")
		}
		return nil, fmt.Errorf("failed to get payment session: %w", err)
	}
	return session, nil
}

// GetSessionByOrderID returns the most recent session for an order, or
// (nil, nil) when the order has none yet.
func (s *MySQLStore) GetSessionByOrderID(orderID string) (*models.PaymentSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM payment_sessions WHERE order_id = ? ORDER BY created_at DESC LIMIT 1`

	session, err := scanSession(s.db.QueryRow(query, orderID).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment session by order: %w", err)
	}
	return session, nil
}

func (s *MySQLStore) UpdateSession(session *models.PaymentSession) error {
	s.log.LogDatabase("UPDATE", "payment_sessions", fmt.Sprintf("Updating session %s to status %s", session.ID, session.Status))

	query := `
    UPDATE payment_sessions SET stripe_intent_id = ?, stripe_client_secret = ?, status = ?, updated_at = ?, expires_at = ?
    WHERE id = ?
    `
	_, err := s.db.Exec(query,
		session.StripeIntentID, session.StripeClientSecret, session.Status,
		session.UpdatedAt, session.ExpiresAt, session.ID,
	)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to update session %s: %s", session.ID, err.Error()))
		return fmt.Errorf("failed to update payment session: %w", err)
	}
	return nil
}

func (s *MySQLStore) ExpireSessionsBefore(cutoff time.Time) (int64, error) {
	query := `
    UPDATE payment_sessions SET status = ?, updated_at = CURRENT_TIMESTAMP
    WHERE status IN (?, ?) AND expires_at < ?
    `
	res, err := s.db.Exec(query, models.SessionExpired, models.SessionPending, models.SessionProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire payment sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.log.LogDatabase("UPDATE", "payment_sessions", fmt.Sprintf("Expired %d stale sessions", n))
	}
	return n, nil
}

// --- Transactions ---

func (s *MySQLStore) SaveTransaction(txn *models.Transaction) error {
	s.log.LogDatabase("INSERT", "transactions", fmt.Sprintf("Recording transaction %s for order %s", txn.ID, txn.OrderID))

	query := `
    INSERT INTO transactions (id, order_id, payment_session_id, amount, currency, stripe_intent_id, stripe_charge_id, status, failure_code, failure_message, created_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.Exec(query,
		txn.ID, txn.OrderID, txn.PaymentSessionID, txn.Amount, txn.Currency,
		txn.StripeIntentID, txn.StripeChargeID, txn.Status,
		txn.FailureCode, txn.FailureMessage, txn.CreatedAt,
	)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save transaction %s: %s", txn.ID, err.Error()))
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

const txnColumns = `id, order_id, payment_session_id, amount, currency, stripe_intent_id, stripe_charge_id, status, failure_code, failure_message, created_at`

func (s *MySQLStore) GetTransaction(id string) (*models.Transaction, error) {
	query := `SELECT ` + txnColumns + ` FROM transactions WHERE id = ?`

	txn := &models.Transaction{}
	var failureMessage sql.NullString
	err := s.db.QueryRow(query, id).Scan(
		&txn.ID, &txn.OrderID, &txn.PaymentSessionID, &txn.Amount, &txn.Currency,
		&txn.StripeIntentID, &txn.StripeChargeID, &txn.Status,
		&txn.FailureCode, &failureMessage, &txn.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("transaction not found")
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	txn.FailureMessage = failureMessage.String
	return txn, nil
}

func (s *MySQLStore) ListTransactionsByOrder(orderID string) ([]*models.Transaction, error) {
	query := `SELECT ` + txnColumns + ` FROM transactions WHERE order_id = ? ORDER BY created_at DESC`

	rows, err := s.db.Query(query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []*models.Transaction
	for rows.Next() {
		txn := &models.Transaction{}
		var failureMessage sql.NullString
		if err := rows.Scan(
			&txn.ID, &txn.OrderID, &txn.PaymentSessionID, &txn.Amount, &txn.Currency,
			&txn.StripeIntentID, &txn.StripeChargeID, &txn.Status,
			&txn.FailureCode, &failureMessage, &txn.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txn.FailureMessage = failureMessage.String
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

// --- Kiosks ---

func (s *MySQLStore) SaveKiosk(kiosk *models.Kiosk) error {
	s.log.LogDatabase("INSERT", "kiosks", fmt.Sprintf("Registering kiosk %s (%s)", kiosk.ID, kiosk.Name))

	query := `
    INSERT INTO kiosks (id, name, location, store_id, api_key_hash, config, heartbeat_at, created_at, updated_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.Exec(query,
		kiosk.ID, kiosk.Name, kiosk.Location, kiosk.StoreID, kiosk.APIKeyHash,
		nullableJSON(kiosk.Config), nullableTime(kiosk.HeartbeatAt),
		kiosk.CreatedAt, kiosk.UpdatedAt,
	)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save kiosk %s: %s", kiosk.ID, err.Error()))
		return fmt.Errorf("failed to save kiosk: %w", err)
	}
	return nil
}

const kioskColumns = `id, name, location, store_id, api_key_hash, config, heartbeat_at, created_at, updated_at`

func scanKiosk(scan func(dest ...interface{}) error) (*models.Kiosk, error) {
	kiosk := &models.Kiosk{}
	var cfg sql.NullString
	var heartbeat sql.NullTime
	err := scan(
		&kiosk.ID, &kiosk.Name, &kiosk.Location, &kiosk.StoreID, &kiosk.APIKeyHash,
		&cfg, &heartbeat, &kiosk.CreatedAt, &kiosk.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if cfg.Valid && cfg.String != "" {
		kiosk.Config = json.RawMessage(cfg.String)
	}
	if heartbeat.Valid {
		t := heartbeat.Time
		kiosk.HeartbeatAt = &t
	}
	return kiosk, nil
}

func (s *MySQLStore) GetKiosk(id string) (*models.Kiosk, error) {
	query := `SELECT ` + kioskColumns + ` FROM kiosks WHERE id = ?`

	kiosk, err := scanKiosk(s.db.QueryRow(query, id).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			s.log.LogDatabase("NOT_FOUND", "kiosks", fmt.Sprintf("Kiosk %s not found", id))
			return nil, fmt.Errorf("kiosk not found")
		}
		return nil, fmt.Errorf("failed to get kiosk: %w", err)
	}
	return kiosk, nil
}

func (s *MySQLStore) UpdateKiosk(kiosk *models.Kiosk) error {
	s.log.LogDatabase("UPDATE", "kiosks", fmt.Sprintf("Updating kiosk %s", kiosk.ID))

	query := `
    UPDATE kiosks SET name = ?, location = ?, store_id = ?, api_key_hash = ?, config = ?, updated_at = ?
    WHERE id = ?
    `
	_, err := s.db.Exec(query,
		kiosk.Name, kiosk.Location, kiosk.StoreID, kiosk.APIKeyHash,
		nullableJSON(kiosk.Config), kiosk.UpdatedAt, kiosk.ID,
	)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to update kiosk %s: %s", kiosk.ID, err.Error()))
		return fmt.Errorf("failed to update kiosk: %w", err)
	}
	return nil
}

func (s *MySQLStore) ListKiosks() ([]*models.Kiosk, error) {
	query := `SELECT ` + kioskColumns + ` FROM kiosks ORDER BY created_at ASC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list kiosks: %w", err)
	}
	defer rows.Close()

	var kiosks []*models.Kiosk
	for rows.Next() {
		kiosk, err := scanKiosk(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan kiosk: %w", err)
		}
		kiosks = append(kiosks, kiosk)
	}
	return kiosks, rows.Err()
}

func (s *MySQLStore) UpdateKioskHeartbeat(id string, at time.Time) error {
	res, err := s.db.Exec(`UPDATE kiosks SET heartbeat_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("failed to update heartbeat: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("kiosk not found")
	}
	return nil
}

func (s *MySQLStore) ClearStaleHeartbeats(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`UPDATE kiosks SET heartbeat_at = NULL WHERE heartbeat_at IS NOT NULL AND heartbeat_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clear stale heartbeats: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.log.LogDatabase("UPDATE", "kiosks", fmt.Sprintf("Cleared %d stale heartbeats", n))
	}
	return n, nil
}

// --- Kiosk sessions ---

func (s *MySQLStore) SaveKioskSession(session *models.KioskSession) error {
	s.log.LogDatabase("INSERT", "kiosk_sessions", fmt.Sprintf("Starting session %s on kiosk %s", session.ID, session.KioskID))

	query := `
    INSERT INTO kiosk_sessions (id, kiosk_id, outcome, order_id, started_at, ended_at)
    VALUES (?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.Exec(query,
		session.ID, session.KioskID, session.Outcome, session.OrderID,
		session.StartedAt, nullableTime(session.EndedAt),
	)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save kiosk session %s: %s", session.ID, err.Error()))
		return fmt.Errorf("failed to save kiosk session: %w", err)
	}
	return nil
}

const kioskSessionColumns = `id, kiosk_id, outcome, order_id, started_at, ended_at`

func scanKioskSession(scan func(dest ...interface{}) error) (*models.KioskSession, error) {
	session := &models.KioskSession{}
	var ended sql.NullTime
	err := scan(
		&session.ID, &session.KioskID, &session.Outcome, &session.OrderID,
		&session.StartedAt, &ended,
	)
	if err != nil {
		return nil, err
	}
	if ended.Valid {
		t := ended.Time
		session.EndedAt = &t
	}
	return session, nil
}

func (s *MySQLStore) GetKioskSession(id string) (*models.KioskSession, error) {
	query := `SELECT ` + kioskSessionColumns + ` FROM kiosk_sessions WHERE id = ?`

	session, err := scanKioskSession(s.db.QueryRow(query, id).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("kiosk session not found")
		}
		return nil, fmt.Errorf("failed to get kiosk session: %w", err)
	}
	return session, nil
}

// GetActiveKioskSession returns the in-progress session started after since,
// or (nil, nil) when the kiosk is idle.
func (s *MySQLStore) GetActiveKioskSession(kioskID string, since time.Time) (*models.KioskSession, error) {
	query := `
    SELECT ` + kioskSessionColumns + ` FROM kiosk_sessions
    WHERE kiosk_id = ? AND outcome = ? AND ended_at IS NULL AND started_at >= ?
    ORDER BY started_at DESC LIMIT 1
    `
	session, err := scanKioskSession(s.db.QueryRow(query, kioskID, models.OutcomeInProgress, since).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active kiosk session: %w", err)
	}
	return session, nil
}

func (s *MySQLStore) UpdateKioskSession(session *models.KioskSession) error {
	query := `
    UPDATE kiosk_sessions SET outcome = ?, order_id = ?, ended_at = ?
    WHERE id = ?
    `
	_, err := s.db.Exec(query, session.Outcome, session.OrderID, nullableTime(session.EndedAt), session.ID)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to update kiosk session %s: %s", session.ID, err.Error()))
		return fmt.Errorf("failed to update kiosk session: %w", err)
	}
	return nil
}

func (s *MySQLStore) AbandonKioskSessionsBefore(cutoff time.Time) (int64, error) {
	query := `
    UPDATE kiosk_sessions SET outcome = ?, ended_at = CURRENT_TIMESTAMP
    WHERE outcome = ? AND ended_at IS NULL AND started_at < ?
    `
	res, err := s.db.Exec(query, models.OutcomeAbandoned, models.OutcomeInProgress, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to abandon stale kiosk sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.log.LogDatabase("UPDATE", "kiosk_sessions", fmt.Sprintf("Auto-abandoned %d stale sessions", n))
	}
	return n, nil
}

// --- Surveillance ---

func (s *MySQLStore) SaveDetections(detections []*models.Detection) error {
	if len(detections) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
    INSERT INTO surveillance_events (kiosk_id, person_track_id, detected_at, dwell_seconds, was_counted, image_path)
    VALUES (?, ?, ?, ?, ?, ?)
    `)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare detection insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range detections {
		if _, err := stmt.Exec(d.KioskID, d.PersonTrackID, d.DetectedAt, d.DwellSeconds, d.WasCounted, d.ImagePath); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert detection: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit detections: %w", err)
	}

	s.log.LogDatabase("INSERT", "surveillance_events", fmt.Sprintf("Stored %d detections for kiosk %s", len(detections), detections[0].KioskID))
	return nil
}

func (s *MySQLStore) ListDetections(kioskID string, from, to time.Time) ([]*models.Detection, error) {
	query := `
    SELECT id, kiosk_id, person_track_id, detected_at, dwell_seconds, was_counted, image_path
    FROM surveillance_events
    WHERE kiosk_id = ? AND detected_at >= ? AND detected_at < ?
    ORDER BY detected_at ASC
    `
	rows, err := s.db.Query(query, kioskID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list detections: %w", err)
	}
	defer rows.Close()

	var detections []*models.Detection
	for rows.Next() {
		d := &models.Detection{}
		if err := rows.Scan(&d.ID, &d.KioskID, &d.PersonTrackID, &d.DetectedAt, &d.DwellSeconds, &d.WasCounted, &d.ImagePath); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		detections = append(detections, d)
	}
	return detections, rows.Err()
}

func (s *MySQLStore) UpsertDailyStat(stat *models.DailyStat) error {
	query := `
    INSERT INTO surveillance_daily_stats (kiosk_id, stat_date, detections, counted, peak_hour, updated_at)
    VALUES (?, ?, ?, ?, ?, ?)
    ON DUPLICATE KEY UPDATE
        detections = VALUES(detections),
        counted = VALUES(counted),
        peak_hour = VALUES(peak_hour),
        updated_at = VALUES(updated_at)
    `
	_, err := s.db.Exec(query,
		stat.KioskID, stat.Date.Format("2006-01-02"), stat.Detections, stat.Counted, stat.PeakHour, stat.UpdatedAt,
	)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to upsert daily stat for kiosk %s: %s", stat.KioskID, err.Error()))
		return fmt.Errorf("failed to upsert daily stat: %w", err)
	}
	return nil
}

func (s *MySQLStore) ListDailyStats(kioskID string, from, to time.Time) ([]*models.DailyStat, error) {
	query := `
    SELECT kiosk_id, stat_date, detections, counted, peak_hour, updated_at
    FROM surveillance_daily_stats
    WHERE kiosk_id = ? AND stat_date >= ? AND stat_date <= ?
    ORDER BY stat_date ASC
    `
	rows, err := s.db.Query(query, kioskID, from.Format("2006-01-02"), to.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to list daily stats: %w", err)
	}
	defer rows.Close()

	var stats []*models.DailyStat
	for rows.Next() {
		stat := &models.DailyStat{}
		if err := rows.Scan(&stat.KioskID, &stat.Date, &stat.Detections, &stat.Counted, &stat.PeakHour, &stat.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan daily stat: %w", err)
		}
		stats = append(stats, stat)
	}
	return stats, rows.Err()
}

// --- Print jobs ---

func (s *MySQLStore) SavePrintJob(job *models.PrintJob) error {
	s.log.LogDatabase("INSERT", "print_jobs", fmt.Sprintf("Queueing print job %s for kiosk %s", job.ID, job.KioskID))

	query := `
    INSERT INTO print_jobs (id, kiosk_id, order_id, design_id, copies, status, error, created_at, updated_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	_, err := s.db.Exec(query,
		job.ID, job.KioskID, job.OrderID, job.DesignID, job.Copies, job.Status, job.Error,
		job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save print job %s: %s", job.ID, err.Error()))
		return fmt.Errorf("failed to save print job: %w", err)
	}
	return nil
}

const printJobColumns = `id, kiosk_id, order_id, design_id, copies, status, error, created_at, updated_at`

func scanPrintJob(scan func(dest ...interface{}) error) (*models.PrintJob, error) {
	job := &models.PrintJob{}
	var jobErr sql.NullString
	err := scan(
		&job.ID, &job.KioskID, &job.OrderID, &job.DesignID, &job.Copies,
		&job.Status, &jobErr, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Error = jobErr.String
	return job, nil
}

func (s *MySQLStore) GetPrintJob(id string) (*models.PrintJob, error) {
	query := `SELECT ` + printJobColumns + ` FROM print_jobs WHERE id = ?`

	job, err := scanPrintJob(s.db.QueryRow(query, id).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("print job not found")
		}
		return nil, fmt.Errorf("failed to get print job: %w", err)
	}
	return job, nil
}

func (s *MySQLStore) UpdatePrintJob(job *models.PrintJob) error {
	s.log.LogDatabase("UPDATE", "print_jobs", fmt.Sprintf("Print job %s -> %s", job.ID, job.Status))

	query := `UPDATE print_jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?`
	_, err := s.db.Exec(query, job.Status, job.Error, job.UpdatedAt, job.ID)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to update print job %s: %s", job.ID, err.Error()))
		return fmt.Errorf("failed to update print job: %w", err)
	}
	return nil
}

func (s *MySQLStore) ListPrintJobs(kioskID string, limit, offset int) ([]*models.PrintJob, error) {
	query := `SELECT ` + printJobColumns + ` FROM print_jobs`
	args := []interface{}{}
	if kioskID != "" {
		query += ` WHERE kiosk_id = ?`
		args = append(args, kioskID)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list print jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.PrintJob
	for rows.Next() {
		job, err := scanPrintJob(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan print job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// --- Managers ---

func (s *MySQLStore) SaveManager(manager *models.Manager) error {
	s.log.LogDatabase("INSERT", "managers", fmt.Sprintf("Creating manager account %s", manager.Email))

	query := `INSERT INTO managers (id, email, password_hash, role, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := s.db.Exec(query, manager.ID, manager.Email, manager.PasswordHash, manager.Role, manager.CreatedAt)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save manager %s: %s", manager.Email, err.Error()))
		return fmt.Errorf("failed to save manager: %w", err)
	}
	return nil
}

func (s *MySQLStore) GetManagerByEmail(email string) (*models.Manager, error) {
	query := `SELECT id, email, password_hash, role, created_at FROM managers WHERE email = ?`

	manager := &models.Manager{}
	err := s.db.QueryRow(query, email).Scan(
		&manager.ID, &manager.Email, &manager.PasswordHash, &manager.Role, &manager.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("manager not found")
		}
		return nil, fmt.Errorf("failed to get manager: %w", err)
	}
	return manager, nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
