package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/csrf"

	"github.com/ManuelReschke/EventFox/app/controllers"
	"github.com/ManuelReschke/EventFox/internal/pkg/env"
	"github.com/ManuelReschke/EventFox/internal/pkg/middleware"
)

// registerCSRFProtectedRoutes mounts the browser facing checkout. The token
// is read from GET /payments/csrf and sent back in the X-CSRF-Token header.
func (h HttpRouter) registerCSRFProtectedRoutes(app *fiber.App) {
	csrfConf := csrf.Config{
		KeyLookup:      "header:X-CSRF-Token",
		ContextKey:     "csrf",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		Expiration:     1 * time.Hour,
		CookieSecure:   !env.IsDev(),
	}

	group := app.Group("/payments", cors.New(), middleware.RequireAPISessionAuth, csrf.New(csrfConf))
	group.Get("/csrf", func(c *fiber.Ctx) error {
		token, _ := c.Locals("csrf").(string)
		return c.JSON(fiber.Map{"csrfToken": token})
	})
	group.Post("/checkout", controllers.HandleCheckout)
}
