package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"smartwish-backend/internal/config"
	"smartwish-backend/internal/logger"
	"smartwish-backend/internal/models"
	"smartwish-backend/internal/storage"
	"smartwish-backend/internal/utils"
)

var (
	ErrKioskNotFound         = errors.New("kiosk not found")
	ErrInvalidKioskKey       = errors.New("invalid kiosk credentials")
	ErrKioskSessionNotFound  = errors.New("kiosk session not found")
	ErrInvalidSessionOutcome = errors.New("invalid session outcome")
)

type KioskService struct {
	store storage.Store
	log   *logger.Logger
	cfg   config.KioskConfig
	cost  int
}

func NewKioskService(store storage.Store, log *logger.Logger, cfg config.KioskConfig, bcryptCost int) *KioskService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &KioskService{
		store: store,
		log:   log,
		cfg:   cfg,
		cost:  bcryptCost,
	}
}

// Provision registers a kiosk and mints its API key. The plaintext key exists
// only in the response; storage keeps the bcrypt hash.
func (s *KioskService) Provision(ctx context.Context, req *models.ProvisionKioskRequest) (*models.ProvisionKioskResponse, error) {
	apiKey, err := utils.GenerateAPIKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate API key: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash API key: %w", err)
	}

	now := time.Now()
	kiosk := &models.Kiosk{
		ID:         utils.GenerateUUID(),
		Name:       req.Name,
		Location:   req.Location,
		StoreID:    req.StoreID,
		APIKeyHash: string(hash),
		Config:     req.Config,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.store.SaveKiosk(kiosk); err != nil {
		s.log.Error("KIOSK", fmt.Sprintf("Failed to provision kiosk %s: %v", req.Name, err))
		return nil, fmt.Errorf("failed to provision kiosk: %w", err)
	}

	s.log.LogKiosk("PROVISION", kiosk.ID, fmt.Sprintf("Provisioned kiosk %q at %s", kiosk.Name, kiosk.Location))
	return &models.ProvisionKioskResponse{
		Kiosk:  kiosk,
		APIKey: apiKey,
	}, nil
}

// Authenticate checks a kiosk's API key. Unknown kiosks and bad keys both
// come back as ErrInvalidKioskKey so callers cannot probe for IDs.
func (s *KioskService) Authenticate(kioskID, apiKey string) (*models.Kiosk, error) {
	kiosk, err := s.store.GetKiosk(kioskID)
	if err != nil {
		s.log.LogSecurity("KIOSK_AUTH_FAILED", fmt.Sprintf("Auth attempt for unknown kiosk %s", kioskID))
		return nil, ErrInvalidKioskKey
	}

	if err := bcrypt.CompareHashAndPassword([]byte(kiosk.APIKeyHash), []byte(apiKey)); err != nil {
		s.log.LogSecurity("KIOSK_AUTH_FAILED", fmt.Sprintf("Bad API key for kiosk %s", kioskID))
		return nil, ErrInvalidKioskKey
	}
	return kiosk, nil
}

func (s *KioskService) Heartbeat(ctx context.Context, kioskID string) error {
	if err := s.store.UpdateKioskHeartbeat(kioskID, time.Now()); err != nil {
		return ErrKioskNotFound
	}
	s.log.LogKiosk("HEARTBEAT", kioskID, "Heartbeat recorded")
	return nil
}

// ListKiosks returns every kiosk with its derived dashboard state. Stale
// heartbeats and overlong sessions are cleaned up opportunistically first;
// both sweeps are idempotent, so concurrent readers only race over who does
// the write.
func (s *KioskService) ListKiosks(ctx context.Context) ([]*models.KioskStatus, error) {
	now := time.Now()
	s.cleanup(now)

	kiosks, err := s.store.ListKiosks()
	if err != nil {
		return nil, fmt.Errorf("failed to list kiosks: %w", err)
	}

	statuses := make([]*models.KioskStatus, 0, len(kiosks))
	for _, kiosk := range kiosks {
		statuses = append(statuses, s.deriveStatus(kiosk, now))
	}
	return statuses, nil
}

func (s *KioskService) GetKioskStatus(ctx context.Context, kioskID string) (*models.KioskStatus, error) {
	now := time.Now()
	s.cleanup(now)

	kiosk, err := s.store.GetKiosk(kioskID)
	if err != nil {
		return nil, ErrKioskNotFound
	}
	return s.deriveStatus(kiosk, now), nil
}

func (s *KioskService) deriveStatus(kiosk *models.Kiosk, now time.Time) *models.KioskStatus {
	online := kiosk.HeartbeatAt != nil && now.Sub(*kiosk.HeartbeatAt) <= s.cfg.OnlineWindow

	active, err := s.store.GetActiveKioskSession(kiosk.ID, now.Add(-s.cfg.SessionMaxAge))
	if err != nil {
		s.log.Warn("KIOSK", fmt.Sprintf("Could not load active session for kiosk %s: %v", kiosk.ID, err))
		active = nil
	}

	return &models.KioskStatus{
		Kiosk:         kiosk,
		Online:        online,
		ActiveSession: active,
	}
}

// cleanup runs the read-time maintenance sweeps. Failures are logged and the
// read proceeds on whatever state is there.
func (s *KioskService) cleanup(now time.Time) {
	if n, err := s.store.ClearStaleHeartbeats(now.Add(-s.cfg.HeartbeatStale)); err != nil {
		s.log.Warn("KIOSK", fmt.Sprintf("Stale heartbeat sweep failed: %v", err))
	} else if n > 0 {
		s.log.LogKiosk("SWEEP", "heartbeats", fmt.Sprintf("Cleared %d heartbeats older than %s", n, s.cfg.HeartbeatStale))
	}

	if n, err := s.store.AbandonKioskSessionsBefore(now.Add(-s.cfg.SessionMaxAge)); err != nil {
		s.log.Warn("KIOSK", fmt.Sprintf("Stale session sweep failed: %v", err))
	} else if n > 0 {
		s.log.LogKiosk("SWEEP", "sessions", fmt.Sprintf("Abandoned %d sessions older than %s", n, s.cfg.SessionMaxAge))
	}
}

func (s *KioskService) UpdateConfig(ctx context.Context, kioskID string, cfg json.RawMessage) (*models.Kiosk, error) {
	kiosk, err := s.store.GetKiosk(kioskID)
	if err != nil {
		return nil, ErrKioskNotFound
	}

	kiosk.Config = cfg
	kiosk.UpdatedAt = time.Now()
	if err := s.store.UpdateKiosk(kiosk); err != nil {
		return nil, fmt.Errorf("failed to update kiosk config: %w", err)
	}

	s.log.LogKiosk("CONFIG", kioskID, "Kiosk configuration updated")
	return kiosk, nil
}

// StartSession opens a customer session. A still-open previous session on the
// same kiosk means that customer walked away, so it is closed as abandoned
// before the new one starts.
func (s *KioskService) StartSession(ctx context.Context, kioskID string) (*models.KioskSession, error) {
	if _, err := s.store.GetKiosk(kioskID); err != nil {
		return nil, ErrKioskNotFound
	}

	now := time.Now()
	if active, err := s.store.GetActiveKioskSession(kioskID, now.Add(-s.cfg.SessionMaxAge)); err == nil && active != nil {
		active.Outcome = models.OutcomeAbandoned
		ended := now
		active.EndedAt = &ended
		if err := s.store.UpdateKioskSession(active); err != nil {
			s.log.Warn("KIOSK", fmt.Sprintf("Failed to close lingering session %s on kiosk %s: %v", active.ID, kioskID, err))
		} else {
			s.log.LogKiosk("SESSION_ABANDONED", kioskID, fmt.Sprintf("Closed lingering session %s before starting a new one", active.ID))
		}
	}

	session := &models.KioskSession{
		ID:        utils.GenerateUUID(),
		KioskID:   kioskID,
		Outcome:   models.OutcomeInProgress,
		StartedAt: now,
	}
	if err := s.store.SaveKioskSession(session); err != nil {
		return nil, fmt.Errorf("failed to start kiosk session: %w", err)
	}

	s.log.LogKiosk("SESSION_START", kioskID, fmt.Sprintf("Started session %s", session.ID))
	return session, nil
}

// EndSession closes a session with its outcome. Ending an already closed
// session returns it unchanged; kiosks retry on flaky links.
func (s *KioskService) EndSession(ctx context.Context, sessionID string, req *models.EndSessionRequest) (*models.KioskSession, error) {
	if req.Outcome != models.OutcomeCompleted && req.Outcome != models.OutcomeAbandoned {
		return nil, ErrInvalidSessionOutcome
	}

	session, err := s.store.GetKioskSession(sessionID)
	if err != nil {
		return nil, ErrKioskSessionNotFound
	}

	if session.Outcome != models.OutcomeInProgress {
		return session, nil
	}

	now := time.Now()
	session.Outcome = req.Outcome
	session.EndedAt = &now
	if req.OrderID != "" {
		session.OrderID = req.OrderID
	}

	if err := s.store.UpdateKioskSession(session); err != nil {
		return nil, fmt.Errorf("failed to end kiosk session: %w", err)
	}

	s.log.LogKiosk("SESSION_END", session.KioskID, fmt.Sprintf("Session %s ended as %s", session.ID, session.Outcome))
	return session, nil
}
