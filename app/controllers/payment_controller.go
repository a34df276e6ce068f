package controllers

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ManuelReschke/EventFox/internal/pkg/fulfillment"
	"github.com/ManuelReschke/EventFox/internal/pkg/gateway"
	"github.com/ManuelReschke/EventFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/EventFox/internal/pkg/payment"
	"github.com/ManuelReschke/EventFox/internal/pkg/reconcile"
	"github.com/ManuelReschke/EventFox/internal/pkg/webhook"
)

// ============================================================================
// PAYMENT CONTROLLER - webhook, reconciliation and checkout endpoints
// ============================================================================

type WebhookProcessor interface {
	Process(ctx context.Context, env payment.Environment, cb payment.Callback) (*webhook.Result, error)
}

type Reconciler interface {
	Run(ctx context.Context, req reconcile.Request) (*reconcile.Summary, error)
}

type TransactionLister interface {
	ListTransactions(ctx context.Context, merchantID string, start, end time.Time, set payment.CredentialSet) ([]gateway.Transaction, error)
}

type PaymentURLBuilder interface {
	BuildPaymentURL(intent payment.PaymentIntent, set payment.CredentialSet) (string, error)
}

type Quoter interface {
	Quote(ctx context.Context, pt payment.ProductType, sourceID uint64) (*fulfillment.Quote, error)
}

type CounterSnapshotter interface {
	Snapshot(ctx context.Context, env string) (map[string]int64, error)
}

// QueueStats is the read side of the job queue shown on the stats endpoint.
type QueueStats interface {
	GetJobStats(ctx context.Context) (map[jobqueue.JobStatus]int64, error)
	GetQueueSize(ctx context.Context) (int64, error)
	GetProcessingSize(ctx context.Context) (int64, error)
}

// PaymentDeps wires the payment controller. Counters and Jobs are optional.
type PaymentDeps struct {
	Processor   WebhookProcessor
	Reconciler  Reconciler
	Ledger      TransactionLister
	Gateway     PaymentURLBuilder
	Catalog     Quoter
	Counters    CounterSnapshotter
	Jobs        QueueStats
	Credentials payment.Credentials
	Currency    string
}

// PaymentController handles the payment HTTP surface
type PaymentController struct {
	deps     PaymentDeps
	validate *validator.Validate
	now      func() time.Time
}

func NewPaymentController(deps PaymentDeps) *PaymentController {
	if deps.Currency == "" {
		deps.Currency = "EUR"
	}
	return &PaymentController{
		deps:     deps,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Global payment controller instance
var paymentController *PaymentController

// InitializePaymentController sets the global payment controller
func InitializePaymentController(deps PaymentDeps) {
	paymentController = NewPaymentController(deps)
}

// GetPaymentController returns the global payment controller instance
func GetPaymentController() *PaymentController {
	if paymentController == nil {
		panic("payment controller not initialized")
	}
	return paymentController
}
