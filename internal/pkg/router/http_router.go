package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/EventFox/internal/pkg/env"
	"github.com/ManuelReschke/EventFox/internal/pkg/middleware"
	"github.com/ManuelReschke/EventFox/internal/pkg/session"
)

// HttpRouter expects controllers.InitializePaymentController to have run.
type HttpRouter struct {
	adminKeyHash string
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	if session.GetSessionStore() == nil {
		session.NewSessionStore()
	}

	// Resolve the principal once; a valid admin API key overrides it
	app.Use(middleware.UserContextMiddleware)
	app.Use(middleware.AdminAPIKeyMiddleware(h.adminKeyHash))

	h.registerWebhookRoutes(app)
	h.registerAdminRoutes(app)
	h.registerCSRFProtectedRoutes(app)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{adminKeyHash: env.GetEnv("ADMIN_API_KEY_HASH", "")}
}
