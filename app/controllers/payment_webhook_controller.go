package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/EventFox/internal/pkg/payment"
)

// HandleWebhook receives gateway callbacks on the primary endpoint. The
// endpoint runs in the environment selected by the testing-mode flag.
func (pc *PaymentController) HandleWebhook(c *fiber.Ctx) error {
	return pc.handleCallback(c, pc.deps.Credentials.EndpointEnv())
}

// HandleWebhookTest receives sandbox callbacks. It never touches live state.
func (pc *PaymentController) HandleWebhookTest(c *fiber.Ctx) error {
	return pc.handleCallback(c, payment.EnvTest)
}

func (pc *PaymentController) handleCallback(c *fiber.Ctx, env payment.Environment) error {
	cb := payment.CallbackFromForm(func(key string) string { return c.FormValue(key) })

	result, err := pc.deps.Processor.Process(c.UserContext(), env, cb)
	if err != nil {
		if msg, ok := payment.KnownMessage(err); ok {
			return c.Status(fiber.StatusBadRequest).SendString(msg)
		}
		log.Errorf("[Webhook] %s callback %q failed: %v", env, cb.TransactionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_error",
			"message": "An internal error occurred while processing the payment",
		})
	}

	return c.Status(fiber.StatusOK).JSON(result)
}
