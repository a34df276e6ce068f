package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/EventFox/internal/pkg/fulfillment"
	"github.com/ManuelReschke/EventFox/internal/pkg/payment"
	"github.com/ManuelReschke/EventFox/internal/pkg/usercontext"
)

type checkoutRequest struct {
	ProductType   string `json:"productType" validate:"required,oneof=ticket video storage"`
	SourceID      uint64 `json:"sourceId" validate:"required,gt=0"`
	CustomerName  string `json:"customerName" validate:"required,min=2,max=150"`
	CustomerPhone string `json:"customerPhone" validate:"omitempty,max=40"`
	Language      string `json:"language" validate:"omitempty,len=2"`
}

// HandleCheckout prices the product on the server, signs the intent and
// returns the gateway URL the browser is sent to.
func (pc *PaymentController) HandleCheckout(c *fiber.Ctx) error {
	email := usercontext.GetEmail(c)
	if email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "account has no email address"})
	}

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := pc.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	pt, _ := payment.ParseProductType(req.ProductType)
	quote, err := pc.deps.Catalog.Quote(c.UserContext(), pt, req.SourceID)
	switch {
	case errors.Is(err, fulfillment.ErrProductNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
	case errors.Is(err, payment.ErrNoTicketsAvailable):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": payment.ErrNoTicketsAvailable.Message})
	case err != nil:
		log.Errorf("[Checkout] Quote %s %d failed: %v", pt, req.SourceID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "checkout failed"})
	}

	lang := req.Language
	if lang == "" {
		lang = pc.deps.Credentials.Language
	}
	intent := payment.PaymentIntent{
		OrderID:            payment.NewOrderID(pt, req.SourceID, pc.now()),
		UserEmail:          email,
		CustomerName:       req.CustomerName,
		CustomerPhone:      req.CustomerPhone,
		Amount:             quote.Amount,
		Currency:           pc.deps.Currency,
		ProductDescription: quote.Description,
		Mode:               pt,
		SourceRef:          req.SourceID,
		Language:           lang,
	}

	url, err := pc.deps.Gateway.BuildPaymentURL(intent, pc.deps.Credentials.Active())
	if err != nil {
		log.Errorf("[Checkout] Building payment url for %s failed: %v", intent.OrderID, err)
		if errors.Is(err, payment.ErrInvalidAmount) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": payment.ErrInvalidAmount.Message})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "checkout failed"})
	}

	log.Infof("[Checkout] User %d started %s for %s", usercontext.GetUserID(c), intent.OrderID, quote.Amount.StringFixed(2))
	return c.JSON(fiber.Map{
		"success": true,
		"url":     url,
		"orderId": intent.OrderID,
	})
}
