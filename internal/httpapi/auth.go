package httpapi

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// AuthConfig holds authentication configuration for the assistant API.
type AuthConfig struct {
	Mode      string // "jwt" or "none"
	JWTSecret string
}

// NewAuthMiddleware returns a Fiber middleware that validates the
// Authorization header and resolves the tenant (organization and user)
// every handler scopes its queries to.
//
// In "none" mode, meant for local development only, the tenant comes
// from X-Org-ID / X-User-ID headers instead of a signed token.
func NewAuthMiddleware(cfg AuthConfig, logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/healthz" {
			return c.Next()
		}

		if cfg.Mode == "none" {
			c.Locals("org_id", c.Get("X-Org-ID"))
			c.Locals("user_id", c.Get("X-User-ID"))
			return c.Next()
		}

		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return problemResponse(c, fiber.StatusUnauthorized,
				"missing_auth", "Unauthorized",
				"Authorization header is required")
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return problemResponse(c, fiber.StatusUnauthorized,
				"invalid_auth_scheme", "Unauthorized",
				"Authorization header must use Bearer scheme")
		}
		raw := strings.TrimPrefix(authHeader, "Bearer ")

		token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			logger.Warn().
				Str("path", c.Path()).
				Str("method", c.Method()).
				Err(err).
				Msg("unauthorized request: invalid token")
			return problemResponse(c, fiber.StatusUnauthorized,
				"invalid_token", "Unauthorized",
				"Bearer token is invalid or expired")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return problemResponse(c, fiber.StatusUnauthorized,
				"invalid_claims", "Unauthorized",
				"Token claims are malformed")
		}
		orgID, _ := claims["org"].(string)
		userID, _ := claims["sub"].(string)
		if orgID == "" || userID == "" {
			return problemResponse(c, fiber.StatusUnauthorized,
				"missing_tenant_claims", "Unauthorized",
				"Token must carry org and sub claims")
		}

		c.Locals("org_id", orgID)
		c.Locals("user_id", userID)
		return c.Next()
	}
}

// tenant extracts the tenant resolved by the auth middleware.
func tenant(c *fiber.Ctx) (orgID, userID string) {
	orgID, _ = c.Locals("org_id").(string)
	userID, _ = c.Locals("user_id").(string)
	return orgID, userID
}
