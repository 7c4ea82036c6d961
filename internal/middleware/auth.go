package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/stratplan/companion/internal/auth"
	"github.com/stratplan/companion/pkg/response"
)

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	verifier  auth.TokenVerifier
	jwtSecret string // fallback for legacy tokens
}

// NewAuthMiddleware creates a new auth middleware with Clerk JWKS verification
func NewAuthMiddleware(verifier auth.TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
	}
}

// NewAuthMiddlewareWithFallback creates auth middleware with both JWKS and legacy HMAC support
func NewAuthMiddlewareWithFallback(verifier auth.TokenVerifier, jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		verifier:  verifier,
		jwtSecret: jwtSecret,
	}
}

// NewLegacyAuthMiddleware creates auth middleware using only HMAC signing (for testing/dev)
func NewLegacyAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		jwtSecret: jwtSecret,
	}
}

// Authenticate validates JWT token from Authorization header
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c)
		if !ok {
			if c.Get("Authorization") == "" {
				return response.Unauthorized(c, "Missing authorization header")
			}
			return response.Unauthorized(c, "Invalid authorization header format")
		}

		// Try Clerk JWKS verification first
		if m.verifier != nil {
			claims, err := m.verifier.Validate(tokenString)
			if err == nil {
				setIdentity(c, claims.UserID, claims.Email, claims.Name, claims.RoleName())
				c.Locals("token", tokenString)
				c.Locals("claims", claims)
				return c.Next()
			}
			// If JWKS verification fails and no fallback, return error
			if m.jwtSecret == "" {
				return response.Unauthorized(c, "Invalid or expired token")
			}
		}

		// Fallback to legacy HMAC verification
		if m.jwtSecret != "" {
			claims, err := auth.ValidateLegacyToken(tokenString, m.jwtSecret)
			if err != nil {
				return response.Unauthorized(c, "Invalid or expired token")
			}

			setIdentity(c, claims.UserID, claims.Email, "", strings.ToLower(claims.Role))
			c.Locals("token", tokenString)
			c.Locals("claims", claims)
			return c.Next()
		}

		return response.Unauthorized(c, "Authentication not configured")
	}
}

// RequireRole rejects requests whose authenticated role differs.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if GetUserID(c) == "" {
			return response.Unauthorized(c, "Authentication required")
		}
		if GetUserRole(c) != role {
			return response.Forbidden(c, "Insufficient permissions")
		}
		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	parts := strings.SplitN(c.Get("Authorization"), " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func setIdentity(c *fiber.Ctx, userID, email, name, role string) {
	c.Locals("userId", userID)
	c.Locals("email", email)
	c.Locals("name", name)
	c.Locals("role", role)
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) string {
	if userID, ok := c.Locals("userId").(string); ok {
		return userID
	}
	return ""
}

// GetUserEmail extracts user email from context
func GetUserEmail(c *fiber.Ctx) string {
	if email, ok := c.Locals("email").(string); ok {
		return email
	}
	return ""
}

// GetUserRole extracts the lowercased role from context
func GetUserRole(c *fiber.Ctx) string {
	if role, ok := c.Locals("role").(string); ok {
		return role
	}
	return ""
}

// GetToken returns the caller's bearer token, used to act on the user's
// behalf upstream.
func GetToken(c *fiber.Ctx) string {
	if token, ok := c.Locals("token").(string); ok {
		return token
	}
	return ""
}

// QueryToken promotes a ?token= query parameter to the Authorization header.
// Browsers cannot set headers on a websocket handshake.
func QueryToken(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get("Authorization") == "" {
			if token := c.Query(param); token != "" {
				c.Request().Header.Set("Authorization", "Bearer "+token)
			}
		}
		return c.Next()
	}
}
