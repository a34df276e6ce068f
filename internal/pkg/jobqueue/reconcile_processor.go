package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/EventFox/internal/pkg/reconcile"
)

const reconcileDateLayout = "2006-01-02"

// Reconciler runs one reconciliation window. *reconcile.Job implements it.
type Reconciler interface {
	Run(ctx context.Context, req reconcile.Request) (*reconcile.Summary, error)
}

// ReconcileHandler runs a queued reconciliation window.
func ReconcileHandler(r Reconciler) Handler {
	return func(ctx context.Context, job *Job) error {
		p, err := PaymentReconcileJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("invalid reconcile payload: %w", err)
		}
		start, err := time.Parse(reconcileDateLayout, p.StartDate)
		if err != nil {
			return fmt.Errorf("invalid start date %q: %w", p.StartDate, err)
		}
		end, err := time.Parse(reconcileDateLayout, p.EndDate)
		if err != nil {
			return fmt.Errorf("invalid end date %q: %w", p.EndDate, err)
		}

		summary, err := r.Run(ctx, reconcile.Request{Start: start, End: end, UseAlternate: p.UseAlternate})
		if err != nil {
			return err
		}
		log.Infof("[JobQueue] Reconcile %s..%s: %s", p.StartDate, p.EndDate, summary.Message)
		return nil
	}
}

// reconcileWindow is the lookback window ending today.
func reconcileWindow(now time.Time, lookbackDays int) PaymentReconcileJobPayload {
	if lookbackDays <= 0 {
		lookbackDays = 1
	}
	end := now.UTC()
	start := end.AddDate(0, 0, -lookbackDays)
	return PaymentReconcileJobPayload{
		StartDate: start.Format(reconcileDateLayout),
		EndDate:   end.Format(reconcileDateLayout),
	}
}
