package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/ManuelReschke/EventFox/app/controllers"
	"github.com/ManuelReschke/EventFox/internal/pkg/env"
)

// registerWebhookRoutes mounts the gateway callbacks. They carry no session
// and no CSRF token; the callback hash authenticates them.
func (h HttpRouter) registerWebhookRoutes(app *fiber.App) {
	rate := limiter.New(limiter.Config{
		Max:        env.GetEnvInt("PAYMENT_WEBHOOK_RATE_LIMIT", 300),
		Expiration: time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).SendString("Too many requests")
		},
	})

	app.Post("/payment-webhook", rate, controllers.HandlePaymentWebhook)
	app.Post("/payment-webhook-test", rate, controllers.HandlePaymentWebhookTest)
}
