package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/EventFox/internal/pkg/payment"
	"github.com/ManuelReschke/EventFox/internal/pkg/reconcile"
)

const dateLayout = "2006-01-02"

type dateRangeRequest struct {
	StartDate    string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate      string `json:"endDate" validate:"required,datetime=2006-01-02"`
	UseAlternate bool   `json:"useAlternate"`
}

// parseDateRange binds and validates the JSON date range of an admin request.
func (pc *PaymentController) parseDateRange(c *fiber.Ctx) (dateRangeRequest, time.Time, time.Time, error) {
	var req dateRangeRequest
	if err := c.BodyParser(&req); err != nil {
		return req, time.Time{}, time.Time{}, payment.ErrInvalidDateRange.Wrap(err)
	}
	if err := pc.validate.Struct(req); err != nil {
		return req, time.Time{}, time.Time{}, payment.ErrInvalidDateRange.Wrap(err)
	}
	start, _ := time.Parse(dateLayout, req.StartDate)
	end, _ := time.Parse(dateLayout, req.EndDate)
	if end.Before(start) {
		return req, time.Time{}, time.Time{}, payment.ErrInvalidDateRange
	}
	return req, start, end, nil
}

// HandleSync replays every ledger transaction of the window that has no
// settled local payment; pending payments are replayed too. The message is
// "All payments are already up to date." only when nothing is missing. When
// gaps exist but every replay fails it reads "0/N records synced." so the
// failure stays visible next to the failed count.
func (pc *PaymentController) HandleSync(c *fiber.Ctx) error {
	req, start, end, err := pc.parseDateRange(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": payment.ErrInvalidDateRange.Message})
	}

	summary, err := pc.deps.Reconciler.Run(c.UserContext(), reconcile.Request{
		Start:        start,
		End:          end,
		UseAlternate: req.UseAlternate,
	})
	if err != nil {
		if errors.Is(err, payment.ErrInvalidDateRange) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": payment.ErrInvalidDateRange.Message})
		}
		log.Errorf("[Reconcile] Sync %s..%s failed: %v", req.StartDate, req.EndDate, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": summary.Message,
		"synced":  summary.Synced,
		"missing": summary.Missing,
		"failed":  summary.Failed,
	})
}

// HandleTransactions returns the raw gateway ledger of the window.
func (pc *PaymentController) HandleTransactions(c *fiber.Ctx) error {
	req, start, end, err := pc.parseDateRange(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": payment.ErrInvalidDateRange.Message})
	}

	creds := pc.deps.Credentials
	txs, err := pc.deps.Ledger.ListTransactions(c.UserContext(), creds.MerchantID, start, end, creds.Select(req.UseAlternate))
	if err != nil {
		log.Errorf("[Gateway] Listing transactions %s..%s failed: %v", req.StartDate, req.EndDate, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"success":      true,
		"transactions": txs,
	})
}

// HandleStats shows the payment counters of both environments and the
// notification queue.
func (pc *PaymentController) HandleStats(c *fiber.Ctx) error {
	ctx := c.UserContext()
	out := fiber.Map{"success": true}

	if pc.deps.Counters != nil {
		counters := fiber.Map{}
		for _, env := range []payment.Environment{payment.EnvLive, payment.EnvTest} {
			snap, err := pc.deps.Counters.Snapshot(ctx, string(env))
			if err != nil {
				log.Errorf("[Webhook] Reading %s counters failed: %v", env, err)
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to read payment counters"})
			}
			counters[string(env)] = snap
		}
		out["counters"] = counters
	}

	if pc.deps.Jobs != nil {
		stats, err := pc.deps.Jobs.GetJobStats(ctx)
		if err != nil {
			log.Errorf("[JobQueue] Reading job stats failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to read queue statistics"})
		}
		pending, _ := pc.deps.Jobs.GetQueueSize(ctx)
		processing, _ := pc.deps.Jobs.GetProcessingSize(ctx)
		out["jobs"] = fiber.Map{
			"stats":      stats,
			"pending":    pending,
			"processing": processing,
		}
	}

	return c.JSON(out)
}
