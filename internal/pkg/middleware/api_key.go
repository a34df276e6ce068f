package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/ManuelReschke/EventFox/internal/pkg/usercontext"
)

// AdminAPIKeyMiddleware lets operator tooling (cron, scripts) call the admin
// API with a static key instead of a browser session. keyHash is the bcrypt
// hash of the key. A request carrying a wrong key is rejected; a request
// carrying none falls through to the session principal.
func AdminAPIKeyMiddleware(keyHash string) fiber.Handler {
	hash := []byte(strings.TrimSpace(keyHash))

	return func(c *fiber.Ctx) error {
		apiKey := extractAPIKeyFromHeader(c)
		if apiKey == "" || len(hash) == 0 {
			return c.Next()
		}

		if err := bcrypt.CompareHashAndPassword(hash, []byte(apiKey)); err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid API key"})
		}

		usercontext.SetUserContext(c, usercontext.UserContext{
			Username:   "api-key",
			IsLoggedIn: true,
			IsAdmin:    true,
		})
		return c.Next()
	}
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
