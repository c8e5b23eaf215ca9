package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"smartwish-backend/internal/config"
	"smartwish-backend/internal/models"
	"smartwish-backend/internal/storage"
)

func newAuthService(t *testing.T, store storage.Store) *AuthService {
	t.Helper()
	return NewAuthService(store, newTestLogger(t), config.AuthConfig{
		JWTSecret:  "test-secret",
		TokenTTL:   time.Hour,
		BcryptCost: bcrypt.MinCost,
	})
}

func TestLoginAndValidateToken(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newAuthService(t, store)

	manager, err := svc.CreateManager(context.Background(), "ops@smartwish.example", "hunter2hunter2", models.RoleAdmin)
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), &models.LoginRequest{
		Email:    "ops@smartwish.example",
		Password: "hunter2hunter2",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, models.RoleAdmin, resp.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), resp.ExpiresAt, 5*time.Second)

	claims, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, manager.ID, claims.UserID)
	assert.Equal(t, "ops@smartwish.example", claims.Email)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newAuthService(t, store)

	_, err := svc.CreateManager(context.Background(), "ops@smartwish.example", "hunter2hunter2", models.RoleManager)
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), &models.LoginRequest{
		Email:    "ops@smartwish.example",
		Password: "wrong-password",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), &models.LoginRequest{
		Email:    "nobody@smartwish.example",
		Password: "hunter2hunter2",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials, "unknown emails and bad passwords must be indistinguishable")
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := newAuthService(t, storage.NewInMemoryStore())

	_, err := svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ValidateToken("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	store := storage.NewInMemoryStore()
	issuer := newAuthService(t, store)

	_, err := issuer.CreateManager(context.Background(), "ops@smartwish.example", "hunter2hunter2", models.RoleManager)
	require.NoError(t, err)
	resp, err := issuer.Login(context.Background(), &models.LoginRequest{
		Email:    "ops@smartwish.example",
		Password: "hunter2hunter2",
	})
	require.NoError(t, err)

	verifier := NewAuthService(store, newTestLogger(t), config.AuthConfig{
		JWTSecret:  "a-different-secret",
		TokenTTL:   time.Hour,
		BcryptCost: bcrypt.MinCost,
	})
	_, err = verifier.ValidateToken(resp.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := NewAuthService(store, newTestLogger(t), config.AuthConfig{
		JWTSecret:  "test-secret",
		TokenTTL:   -time.Minute,
		BcryptCost: bcrypt.MinCost,
	})

	_, err := svc.CreateManager(context.Background(), "ops@smartwish.example", "hunter2hunter2", models.RoleManager)
	require.NoError(t, err)
	resp, err := svc.Login(context.Background(), &models.LoginRequest{
		Email:    "ops@smartwish.example",
		Password: "hunter2hunter2",
	})
	require.NoError(t, err)

	_, err = svc.ValidateToken(resp.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCreateManagerDefaultsRole(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newAuthService(t, store)

	manager, err := svc.CreateManager(context.Background(), "new@smartwish.example", "longenoughpass", "superuser")
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, manager.Role, "unknown roles fall back to manager")
	assert.NotEqual(t, "longenoughpass", manager.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(manager.PasswordHash), []byte("longenoughpass")))

	_, err = svc.CreateManager(context.Background(), "new@smartwish.example", "anotherpass123", models.RoleManager)
	assert.Error(t, err, "duplicate emails are rejected")
}

func TestEnsureDefaultManager(t *testing.T) {
	store := storage.NewInMemoryStore()
	svc := newAuthService(t, store)

	svc.EnsureDefaultManager(context.Background(), "admin@smartwish.example", "bootstrap-pass")

	manager, err := store.GetManagerByEmail("admin@smartwish.example")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, manager.Role)

	// Seeding again is a no-op
	svc.EnsureDefaultManager(context.Background(), "admin@smartwish.example", "bootstrap-pass")

	resp, err := svc.Login(context.Background(), &models.LoginRequest{
		Email:    "admin@smartwish.example",
		Password: "bootstrap-pass",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
}
