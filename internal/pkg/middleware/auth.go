package middleware

import (
	"github.com/gofiber/fiber/v2"

	icuser "github.com/ManuelReschke/EventFox/internal/pkg/usercontext"
)

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error":   "unauthorized",
		"message": "login required",
	})
}

// RequireAPISessionAuth ensures a logged-in session for API routes and returns JSON 401 instead of redirect.
func RequireAPISessionAuth(c *fiber.Ctx) error {
	if !icuser.IsLoggedIn(c) {
		return unauthorized(c)
	}
	return c.Next()
}

// RequireAdminAPI ensures a logged-in admin; 401 without a principal, 403 for non-admins.
func RequireAdminAPI(c *fiber.Ctx) error {
	if !icuser.IsLoggedIn(c) {
		return unauthorized(c)
	}
	if !icuser.IsAdmin(c) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": "admin role required",
		})
	}
	return c.Next()
}
