package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/stratplan/companion/pkg/response"
)

// GatewayAuthMiddleware reads user identity from X-User-* headers
// set by Traefik ForwardAuth and populates Fiber context locals.
// The Authorization header, when forwarded, is kept for upstream calls.
func GatewayAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get("X-User-Id")
		if userID == "" {
			return response.Unauthorized(c, "Missing user identity headers")
		}

		setIdentity(c, userID, c.Get("X-User-Email"), c.Get("X-User-Name"),
			strings.ToLower(c.Get("X-User-Role")))
		if token, ok := bearerToken(c); ok {
			c.Locals("token", token)
		}

		return c.Next()
	}
}
