package http

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"github.com/gofiber/fiber/v2"

	"woosync/internal/config"
)

// basicAuthMiddleware guards the admin API with the configured HTTP
// Basic credentials and attaches the authenticated user name to the
// context as "actor" for auditing.
func basicAuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !cfg.Auth.Enabled {
			c.Locals("actor", "anonymous")
			return c.Next()
		}

		user, pass, ok := parseBasicAuth(c.Get("Authorization"))
		if !ok {
			c.Set("WWW-Authenticate", `Basic realm="woosync admin"`)
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Success: false,
				Code:    "UNAUTHENTICATED",
				Error:   "Missing or malformed Basic credentials",
			})
		}

		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(cfg.Auth.User)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(cfg.Auth.Password)) == 1
		if !userOK || !passOK {
			c.Set("WWW-Authenticate", `Basic realm="woosync admin"`)
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Success: false,
				Code:    "UNAUTHENTICATED",
				Error:   "Invalid credentials",
			})
		}

		c.Locals("actor", user)
		return c.Next()
	}
}

func parseBasicAuth(header string) (user, pass string, ok bool) {
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return "", "", false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header[len(prefix):]))
	if err != nil {
		return "", "", false
	}
	user, pass, found := strings.Cut(string(raw), ":")
	if !found {
		return "", "", false
	}
	return user, pass, true
}

// actorName returns the authenticated user recorded by the auth middleware.
func actorName(c *fiber.Ctx) string {
	if val := c.Locals("actor"); val != nil {
		if s, ok := val.(string); ok && s != "" {
			return s
		}
	}
	return "unknown"
}
