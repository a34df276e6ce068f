package webhook

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/EventFox/app/models"
	"github.com/ManuelReschke/EventFox/internal/pkg/coalesce"
	"github.com/ManuelReschke/EventFox/internal/pkg/fulfillment"
	"github.com/ManuelReschke/EventFox/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/EventFox/internal/pkg/payment"
)

// PaymentStore persists the payment rows of the pipeline.
type PaymentStore interface {
	CreatePendingPayment(ctx context.Context, p *models.Payment) (bool, *models.Payment, error)
	TransitionPayment(ctx context.Context, env, transactionID, to, reason string) (bool, error)
}

// Fulfiller creates the artifact of a paid order.
type Fulfiller interface {
	Fulfill(ctx context.Context, o fulfillment.Order) (*fulfillment.Artifact, error)
}

// Notifier is told about every newly fulfilled payment. Errors are logged
// and never fail the delivery.
type Notifier interface {
	PaymentFulfilled(ctx context.Context, n Notification) error
}

// Counters records pipeline events. *counter.Payments implements it.
type Counters interface {
	Incr(ctx context.Context, env, event string) error
}

// Notification describes a fulfilled payment.
type Notification struct {
	Environment   payment.Environment `json:"environment"`
	TransactionID string              `json:"transaction_id"`
	OrderID       string              `json:"order_id"`
	ProductType   payment.ProductType `json:"product_type"`
	CustomerEmail string              `json:"customer_email"`
	CustomerName  string              `json:"customer_name"`
	Amount        string              `json:"amount"`
	Currency      string              `json:"currency"`
}

// Result is the body returned to the gateway for a processed delivery.
type Result struct {
	Success bool                  `json:"success"`
	Status  string                `json:"status"`
	Data    *fulfillment.Artifact `json:"data,omitempty"`
}

// Outcome is what concurrent deliveries of one transaction share. Classified
// errors travel as code and message so they survive the Redis round trip.
type Outcome struct {
	Result     *Result `json:"result,omitempty"`
	ErrCode    string  `json:"err_code,omitempty"`
	ErrMessage string  `json:"err_message,omitempty"`
}

// Err rebuilds the classified error of the outcome, if any.
func (o Outcome) Err() error {
	if o.ErrCode == "" {
		return nil
	}
	return payment.ErrorFromCode(o.ErrCode, o.ErrMessage)
}

// Processor turns gateway callbacks into fulfilled orders exactly once.
type Processor struct {
	store     PaymentStore
	fulfiller Fulfiller
	creds     payment.Credentials
	hashes    payment.HashVerifier
	cache     coalesce.Cache[Outcome]
	notifier  Notifier
	counters  Counters
}

func NewProcessor(store PaymentStore, fulfiller Fulfiller, creds payment.Credentials, cache coalesce.Cache[Outcome]) *Processor {
	if cache == nil {
		cache = coalesce.NewMemory[Outcome](coalesce.DefaultTTL)
	}
	return &Processor{
		store:     store,
		fulfiller: fulfiller,
		creds:     creds,
		hashes:    payment.NewHashVerifier(),
		cache:     cache,
	}
}

func (p *Processor) WithNotifier(n Notifier) *Processor {
	p.notifier = n
	return p
}

func (p *Processor) WithCounters(c Counters) *Processor {
	p.counters = c
	return p
}

// Process handles one callback delivery for env. Deliveries of the same
// transaction that overlap, or arrive within the coalescing window, share a
// single execution and its outcome.
func (p *Processor) Process(ctx context.Context, env payment.Environment, cb payment.Callback) (*Result, error) {
	p.count(ctx, env, counter.Received)
	if cb.TransactionID == "" {
		return nil, payment.ErrMissingTransactionID
	}

	key := string(env) + ":" + cb.TransactionID
	out, shared, err := p.cache.Do(ctx, key, func(ctx context.Context) (Outcome, error) {
		res, err := p.handle(ctx, env, cb)
		if err == nil {
			return Outcome{Result: res}, nil
		}
		var pe *payment.Error
		if errors.As(err, &pe) && pe.Kind != payment.KindInternal && pe.Kind != payment.KindUpstream {
			return Outcome{ErrCode: pe.Code, ErrMessage: pe.Message}, nil
		}
		return Outcome{}, err
	})
	if shared {
		log.Infof("[Webhook] Delivery of %s joined an in-flight or recent execution", key)
	}
	if err != nil {
		return nil, err
	}
	if err := out.Err(); err != nil {
		return nil, err
	}
	return out.Result, nil
}

func (p *Processor) handle(ctx context.Context, env payment.Environment, cb payment.Callback) (*Result, error) {
	txID := cb.TransactionID
	p.transition(env, txID, StateReceived)

	fields, err := cb.Fields()
	if err != nil {
		p.transition(env, txID, StateRejected)
		return nil, err
	}

	p.transition(env, txID, StateVerifying)
	ring := p.creds.KeyRingFor(env)
	if len(ring.Keys()) == 0 {
		p.transition(env, txID, StateRejected)
		return nil, payment.ErrMissingMerchantConfig
	}
	set, ok := p.hashes.VerifyCallback(ring, fields, cb.Hash)
	if !ok {
		log.Warnf("[Webhook] Hash verification failed for %s (env=%s order=%s amount=%s currency=%s status=%s)",
			txID, env, cb.OrderID, cb.Amount, cb.Currency, cb.Status)
		p.count(ctx, env, counter.Rejected)
		p.transition(env, txID, StateRejected)
		return nil, payment.ErrHashVerificationFailed
	}
	log.Infof("[Webhook] %s verified with %s key", txID, set.Label)
	p.transition(env, txID, StateVerified)

	ref, err := payment.ResolveOrderRef(cb.OrderID, cb.ProductType, cb.SourceRef)
	if err != nil {
		p.transition(env, txID, StateRejected)
		return nil, err
	}

	created, existing, err := p.store.CreatePendingPayment(ctx, &models.Payment{
		Environment:   string(env),
		TransactionID: txID,
		OrderID:       cb.OrderID,
		ProductType:   string(ref.Type),
		Amount:        fields.Amount,
		Currency:      cb.Currency,
		PaymentMethod: cb.PaymentMethod,
		Channel:       cb.Channel,
		CustomerEmail: cb.CustomerEmail,
	})
	if err != nil {
		return nil, err
	}
	if !created && existing.IsFailed() {
		p.transition(env, txID, StateRejected)
		return nil, payment.ErrDuplicateTransaction
	}

	if !existing.IsCompleted() && !cb.Succeeded() {
		if _, err := p.store.TransitionPayment(ctx, string(env), txID, models.PaymentStatusFailed, "gateway status "+cb.Status); err != nil {
			return nil, err
		}
		p.count(ctx, env, counter.Failed)
		p.transition(env, txID, StateFulfillmentFailed)
		return nil, payment.ErrPaymentFailed
	}

	p.transition(env, txID, StateFulfilling)
	art, err := p.fulfiller.Fulfill(ctx, fulfillment.Order{
		Environment:   env,
		Ref:           ref,
		OrderID:       cb.OrderID,
		TransactionID: txID,
		CustomerEmail: cb.CustomerEmail,
	})
	if err != nil {
		p.fail(ctx, env, txID, err)
		return nil, err
	}
	p.transition(env, txID, StateFulfilled)

	if !art.Existing {
		p.count(ctx, env, counter.Fulfilled)
		p.notify(ctx, Notification{
			Environment:   env,
			TransactionID: txID,
			OrderID:       cb.OrderID,
			ProductType:   ref.Type,
			CustomerEmail: cb.CustomerEmail,
			CustomerName:  cb.CustomerName,
			Amount:        payment.FormatAmount(fields.Amount),
			Currency:      cb.Currency,
		})
	}
	return &Result{Success: true, Status: models.PaymentStatusCompleted, Data: art}, nil
}

// fail records a fulfillment failure. Unclassified errors leave the payment
// pending so that a redelivery or the reconciliation job can retry it.
func (p *Processor) fail(ctx context.Context, env payment.Environment, txID string, cause error) {
	p.transition(env, txID, StateFulfillmentFailed)
	p.count(ctx, env, counter.Failed)
	if payment.KindOf(cause) == payment.KindInternal || errors.Is(cause, payment.ErrDuplicateTransaction) {
		log.Errorf("[Webhook] Fulfillment of %s failed, payment left as is: %v", txID, cause)
		return
	}
	if _, err := p.store.TransitionPayment(ctx, string(env), txID, models.PaymentStatusFailed, cause.Error()); err != nil {
		log.Errorf("[Webhook] Could not mark payment %s as failed: %v", txID, err)
	}
}

func (p *Processor) notify(ctx context.Context, n Notification) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.PaymentFulfilled(ctx, n); err != nil {
		log.Errorf("[Webhook] Could not queue notification for %s: %v", n.TransactionID, err)
	}
}

func (p *Processor) count(ctx context.Context, env payment.Environment, event string) {
	if p.counters == nil {
		return
	}
	if err := p.counters.Incr(ctx, string(env), event); err != nil {
		log.Warnf("[Webhook] Counter %s not recorded: %v", event, err)
	}
}

func (p *Processor) transition(env payment.Environment, txID string, s State) {
	if s.Terminal() {
		log.Infof("[Webhook] %s/%s settled as %s", env, txID, s)
		return
	}
	log.Debugf("[Webhook] %s/%s -> %s", env, txID, s)
}
