package controllers

import "github.com/gofiber/fiber/v2"

// Adapter functions used by the router

func HandlePaymentWebhook(c *fiber.Ctx) error {
	return GetPaymentController().HandleWebhook(c)
}

func HandlePaymentWebhookTest(c *fiber.Ctx) error {
	return GetPaymentController().HandleWebhookTest(c)
}

func HandleAdminPaymentSync(c *fiber.Ctx) error {
	return GetPaymentController().HandleSync(c)
}

func HandleAdminPaymentTransactions(c *fiber.Ctx) error {
	return GetPaymentController().HandleTransactions(c)
}

func HandleAdminPaymentStats(c *fiber.Ctx) error {
	return GetPaymentController().HandleStats(c)
}

func HandleCheckout(c *fiber.Ctx) error {
	return GetPaymentController().HandleCheckout(c)
}
