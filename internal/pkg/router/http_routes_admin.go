package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ManuelReschke/EventFox/app/controllers"
	"github.com/ManuelReschke/EventFox/internal/pkg/middleware"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	adminGroup := app.Group("/admin/payments", middleware.RequireAdminAPI)
	adminGroup.Post("/sync", controllers.HandleAdminPaymentSync)
	adminGroup.Post("/transactions", controllers.HandleAdminPaymentTransactions)
	adminGroup.Get("/stats", controllers.HandleAdminPaymentStats)
}
