package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"smartwish-backend/internal/config"
	"smartwish-backend/internal/logger"
	"smartwish-backend/internal/models"
	"smartwish-backend/internal/storage"
	"smartwish-backend/internal/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// TokenClaims is the decoded identity carried by a dashboard JWT.
type TokenClaims struct {
	UserID string
	Email  string
	Role   string
}

type AuthService struct {
	store  storage.Store
	log    *logger.Logger
	secret []byte
	ttl    time.Duration
	cost   int
}

func NewAuthService(store storage.Store, log *logger.Logger, cfg config.AuthConfig) *AuthService {
	cost := cfg.BcryptCost
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &AuthService{
		store:  store,
		log:    log,
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.TokenTTL,
		cost:   cost,
	}
}

// Login checks dashboard credentials and mints an HS256 token. Unknown
// emails and wrong passwords return the same error.
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	manager, err := s.store.GetManagerByEmail(req.Email)
	if err != nil {
		s.log.LogSecurity("LOGIN_FAILED", fmt.Sprintf("Unknown email %s", req.Email))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(manager.PasswordHash), []byte(req.Password)); err != nil {
		s.log.LogSecurity("LOGIN_FAILED", fmt.Sprintf("Bad password for %s", req.Email))
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	expiresAt := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   manager.ID,
		"email": manager.Email,
		"role":  manager.Role,
		"iat":   now.Unix(),
		"exp":   expiresAt.Unix(),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	s.log.Info("AUTH", fmt.Sprintf("Manager %s logged in", manager.Email))
	return &models.LoginResponse{
		Token:     signed,
		ExpiresAt: expiresAt,
		Role:      manager.Role,
	}, nil
}

// ValidateToken parses and verifies a bearer token, returning its identity
// claims. Expiry is enforced by the parser.
func (s *AuthService) ValidateToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	out := &TokenClaims{}
	if sub, ok := claims["sub"].(string); ok {
		out.UserID = sub
	}
	if email, ok := claims["email"].(string); ok {
		out.Email = email
	}
	if role, ok := claims["role"].(string); ok {
		out.Role = role
	}
	if out.UserID == "" {
		return nil, ErrInvalidToken
	}
	return out, nil
}

// CreateManager registers a dashboard user with a hashed password.
func (s *AuthService) CreateManager(ctx context.Context, email, password, role string) (*models.Manager, error) {
	if role != models.RoleAdmin && role != models.RoleManager {
		role = models.RoleManager
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	manager := &models.Manager{
		ID:           utils.GenerateUUID(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now(),
	}
	if err := s.store.SaveManager(manager); err != nil {
		return nil, fmt.Errorf("failed to save manager: %w", err)
	}

	s.log.Info("AUTH", fmt.Sprintf("Created %s account for %s", role, email))
	return manager, nil
}

// EnsureDefaultManager seeds the admin account from config on first boot.
// Called during startup; failures are logged, not fatal.
func (s *AuthService) EnsureDefaultManager(ctx context.Context, email, password string) {
	if email == "" || password == "" {
		return
	}
	if _, err := s.store.GetManagerByEmail(email); err == nil {
		return
	}
	if _, err := s.CreateManager(ctx, email, password, models.RoleAdmin); err != nil {
		s.log.Warn("AUTH", fmt.Sprintf("Failed to seed admin account: %v", err))
	}
}
