package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"smartwish-backend/internal/logger"
	"smartwish-backend/internal/models"
	"smartwish-backend/internal/services"
	"smartwish-backend/internal/utils"
)

// TokenValidator verifies dashboard bearer tokens.
type TokenValidator interface {
	ValidateToken(token string) (*services.TokenClaims, error)
}

// KioskAuthenticator verifies kiosk API key credentials.
type KioskAuthenticator interface {
	Authenticate(kioskID, apiKey string) (*models.Kiosk, error)
}

// JWTAuth gates manager endpoints on a valid Authorization bearer token.
// The decoded identity lands in the request context as user_id and role.
func JWTAuth(auth TokenValidator, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse("Authorization required", ""))
			return
		}

		claims, err := auth.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			log.LogSecurity("TOKEN_REJECTED", fmt.Sprintf("Invalid token from %s", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse("Invalid or expired token", ""))
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_email", claims.Email)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// RequireRole restricts an endpoint to one role. Must run after JWTAuth.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("role") != role {
			c.AbortWithStatusJSON(http.StatusForbidden, utils.ErrorResponse("Insufficient permissions", ""))
			return
		}
		c.Next()
	}
}

// KioskAuth gates kiosk endpoints on the X-Kiosk-ID / X-Kiosk-API-Key
// header pair. The verified kiosk ID lands in the context as kiosk_id.
func KioskAuth(auth KioskAuthenticator, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		kioskID := c.GetHeader("X-Kiosk-ID")
		apiKey := c.GetHeader("X-Kiosk-API-Key")
		if kioskID == "" || apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse("Kiosk credentials required", ""))
			return
		}

		kiosk, err := auth.Authenticate(kioskID, apiKey)
		if err != nil {
			log.LogSecurity("KIOSK_REJECTED", fmt.Sprintf("Bad credentials for kiosk %s from %s", kioskID, c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse("Invalid kiosk credentials", ""))
			return
		}

		c.Set("kiosk_id", kiosk.ID)
		c.Next()
	}
}
