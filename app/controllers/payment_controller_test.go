package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/EventFox/app/models"
	"github.com/ManuelReschke/EventFox/internal/pkg/coalesce"
	"github.com/ManuelReschke/EventFox/internal/pkg/fulfillment"
	"github.com/ManuelReschke/EventFox/internal/pkg/fulfillment/fulfillmenttest"
	"github.com/ManuelReschke/EventFox/internal/pkg/gateway"
	"github.com/ManuelReschke/EventFox/internal/pkg/jobqueue"
	"github.com/ManuelReschke/EventFox/internal/pkg/payment"
	"github.com/ManuelReschke/EventFox/internal/pkg/reconcile"
	"github.com/ManuelReschke/EventFox/internal/pkg/usercontext"
	"github.com/ManuelReschke/EventFox/internal/pkg/webhook"
)

var controllerCreds = payment.Credentials{
	MerchantID: "M-1",
	Language:   "en",
	Live: payment.CredentialSet{
		Label: "live", Env: payment.EnvLive, AppID: "live-app", Secret: "live-secret",
		PaymentURL: "https://gateway.example/pay",
	},
	Test: payment.CredentialSet{
		Label: "test", Env: payment.EnvTest, AppID: "test-app", Secret: "test-secret",
		PaymentURL: "https://sandbox.gateway.example/pay",
	},
	AltTest: payment.CredentialSet{
		Label: "test-alternate", Env: payment.EnvTest, AppID: "alt-app", Secret: "alt-secret",
		PaymentURL: "https://sandbox.gateway.example/pay",
	},
}

type fakeLedger struct {
	txs []gateway.Transaction
	err error
}

func (l *fakeLedger) ListTransactions(ctx context.Context, merchantID string, start, end time.Time, set payment.CredentialSet) ([]gateway.Transaction, error) {
	return l.txs, l.err
}

// flakyFulfiller fails the next failures calls with an infrastructure error
// before handing orders to the engine.
type flakyFulfiller struct {
	engine   *fulfillment.Engine
	failures atomic.Int32
}

func (f *flakyFulfiller) Fulfill(ctx context.Context, o fulfillment.Order) (*fulfillment.Artifact, error) {
	if f.failures.Add(-1) >= 0 {
		return nil, errors.New("deadlock found when trying to get lock")
	}
	return f.engine.Fulfill(ctx, o)
}

type fixture struct {
	repo      *fulfillmenttest.Repository
	ledger    *fakeLedger
	fulfiller *flakyFulfiller
	pc        *PaymentController
	app       *fiber.App
}

// newFixture wires the real processor, engine and reconcile job over the
// in-memory repository. Replays go over HTTP to a second instance of the app.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := fulfillmenttest.NewRepository()
	repo.AddEvent(models.Event{ID: 1, Title: "Open Air", Price: decimal.RequireFromString("49.99"), AvailableTickets: 10})
	repo.AddEvent(models.Event{ID: 2, Title: "Sold Out", Price: decimal.RequireFromString("10.00")})
	repo.AddUser(models.User{ID: 5, Name: "Jane Doe", Email: "jane@example.com"})

	engine := fulfillment.NewEngine(repo, "https://events.example")
	fulfiller := &flakyFulfiller{engine: engine}
	processor := webhook.NewProcessor(repo, fulfiller, controllerCreds, coalesce.NewMemory[webhook.Outcome](coalesce.DefaultTTL))

	f := &fixture{repo: repo, ledger: &fakeLedger{}, fulfiller: fulfiller}

	gatewayFacing := fiber.New()
	srv := httptest.NewServer(adaptor.FiberApp(gatewayFacing))
	t.Cleanup(srv.Close)

	job := reconcile.NewJob(f.ledger, repo, reconcile.NewHTTPReplayer(srv.URL, srv.Client()), controllerCreds)
	f.pc = NewPaymentController(PaymentDeps{
		Processor:   processor,
		Reconciler:  job,
		Ledger:      f.ledger,
		Gateway:     gateway.NewClient(nil),
		Catalog:     engine,
		Credentials: controllerCreds,
		Currency:    "EUR",
	})
	f.pc.now = func() time.Time { return time.UnixMilli(1718000000000) }

	mount(gatewayFacing, f.pc, usercontext.UserContext{})
	f.app = fiber.New()
	mount(f.app, f.pc, usercontext.UserContext{UserID: 5, Email: "jane@example.com", IsLoggedIn: true, IsAdmin: true})
	return f
}

func mount(app *fiber.App, pc *PaymentController, uc usercontext.UserContext) {
	app.Use(func(c *fiber.Ctx) error {
		usercontext.SetUserContext(c, uc)
		return c.Next()
	})
	app.Post("/payment-webhook", pc.HandleWebhook)
	app.Post("/payment-webhook-test", pc.HandleWebhookTest)
	app.Post("/admin/payments/sync", pc.HandleSync)
	app.Post("/admin/payments/transactions", pc.HandleTransactions)
	app.Get("/admin/payments/stats", pc.HandleStats)
	app.Post("/payments/checkout", pc.HandleCheckout)
}

func signedForm(t *testing.T, set payment.CredentialSet, cb payment.Callback) string {
	t.Helper()
	fields, err := cb.Fields()
	require.NoError(t, err)
	cb.Hash = payment.NewHashVerifier().CallbackHash(set, fields)
	return cb.Form().Encode()
}

func ticketCallback(txID string) payment.Callback {
	return payment.Callback{
		TransactionID:      txID,
		Amount:             "49.99",
		Currency:           "EUR",
		ProductDescription: "Ticket: Open Air",
		OrderID:            "TICKET_1_1718000000000",
		CustomerName:       "Jane Doe",
		CustomerEmail:      "jane@example.com",
		CustomerPhone:      "+4912345",
		Status:             "success",
	}
}

func post(t *testing.T, app *fiber.App, target, contentType, body string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, contentType)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func postForm(t *testing.T, app *fiber.App, target, form string) (*http.Response, string) {
	return post(t, app, target, fiber.MIMEApplicationForm, form)
}

func postJSON(t *testing.T, app *fiber.App, target, body string) (*http.Response, string) {
	return post(t, app, target, fiber.MIMEApplicationJSON, body)
}

func TestWebhookDoubleDeliveryTX100(t *testing.T) {
	f := newFixture(t)
	form := signedForm(t, controllerCreds.Live, ticketCallback("TX100"))

	var codes []string
	for i := 0; i < 2; i++ {
		resp, body := postForm(t, f.app, "/payment-webhook", form)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, body)

		var result webhook.Result
		require.NoError(t, json.Unmarshal([]byte(body), &result))
		assert.True(t, result.Success)
		assert.Equal(t, models.PaymentStatusCompleted, result.Status)
		require.NotNil(t, result.Data)
		require.NotNil(t, result.Data.Ticket)
		codes = append(codes, result.Data.Ticket.TicketCode)
	}

	assert.Equal(t, codes[0], codes[1])
	assert.Len(t, f.repo.Payments(), 1)
	assert.Len(t, f.repo.Tickets(), 1)
	assert.Equal(t, 9, f.repo.AvailableTickets(1))
}

func TestWebhookTamperedAmount(t *testing.T) {
	f := newFixture(t)
	cb := ticketCallback("TX101")
	fields, err := cb.Fields()
	require.NoError(t, err)
	cb.Hash = payment.NewHashVerifier().CallbackHash(controllerCreds.Live, fields)
	cb.Amount = "0.01"

	resp, body := postForm(t, f.app, "/payment-webhook", cb.Form().Encode())
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "text/plain")
	assert.Equal(t, "Hash verification failed", body)
	assert.Empty(t, f.repo.Payments())
	assert.Empty(t, f.repo.Tickets())
}

func TestWebhookKnownErrors(t *testing.T) {
	tests := []struct {
		name string
		cb   func() payment.Callback
		want string
	}{
		{
			name: "missing transaction id",
			cb:   func() payment.Callback { return ticketCallback("") },
			want: "Missing transaction ID",
		},
		{
			name: "declined",
			cb: func() payment.Callback {
				cb := ticketCallback("TX102")
				cb.Status = "failed"
				return cb
			},
			want: "Payment failed",
		},
		{
			name: "sold out",
			cb: func() payment.Callback {
				cb := ticketCallback("TX103")
				cb.OrderID = "TICKET_2_1718000000000"
				return cb
			},
			want: "No tickets available",
		},
		{
			name: "bad order id",
			cb: func() payment.Callback {
				cb := ticketCallback("TX104")
				cb.OrderID = "ticket-1"
				return cb
			},
			want: "Invalid order ID format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			cb := tt.cb()
			form := cb.Form().Encode()
			if cb.TransactionID != "" {
				form = signedForm(t, controllerCreds.Live, cb)
			}
			resp, body := postForm(t, f.app, "/payment-webhook", form)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.want, body)
		})
	}
}

type failingProcessor struct{}

func (failingProcessor) Process(ctx context.Context, env payment.Environment, cb payment.Callback) (*webhook.Result, error) {
	return nil, errors.New("dial tcp 10.0.0.5:3306: connection refused")
}

func TestWebhookInternalErrorIsGeneric(t *testing.T) {
	pc := NewPaymentController(PaymentDeps{Processor: failingProcessor{}, Credentials: controllerCreds})
	app := fiber.New()
	app.Post("/payment-webhook", pc.HandleWebhook)

	resp, body := postForm(t, app, "/payment-webhook", signedForm(t, controllerCreds.Live, ticketCallback("TX105")))
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"error":"internal_error","message":"An internal error occurred while processing the payment"}`, body)
	assert.NotContains(t, body, "10.0.0.5")
}

func TestWebhookTestEndpointIsSandboxed(t *testing.T) {
	f := newFixture(t)

	t.Run("live key rejected", func(t *testing.T) {
		resp, body := postForm(t, f.app, "/payment-webhook-test", signedForm(t, controllerCreds.Live, ticketCallback("TX106")))
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Hash verification failed", body)
	})

	t.Run("alternate sandbox key accepted", func(t *testing.T) {
		resp, body := postForm(t, f.app, "/payment-webhook-test", signedForm(t, controllerCreds.AltTest, ticketCallback("TX107")))
		require.Equal(t, fiber.StatusOK, resp.StatusCode, body)

		payments := f.repo.Payments()
		require.Len(t, payments, 1)
		assert.Equal(t, string(payment.EnvTest), payments[0].Environment)
		assert.Equal(t, 10, f.repo.AvailableTickets(1))
	})
}

func TestAdminSyncTX200(t *testing.T) {
	f := newFixture(t)
	f.ledger.txs = []gateway.Transaction{{
		TransactionID: "TX200",
		OrderID:       "TICKET_1_1718000000000",
		Amount:        decimal.RequireFromString("49.99"),
		Currency:      "EUR",
		Description:   "Ticket: Open Air",
		CustomerName:  "Jane Doe",
		CustomerEmail: "jane@example.com",
		CustomerPhone: "+4912345",
		Status:        "success",
	}}
	body := `{"startDate":"2024-06-01","endDate":"2024-06-07"}`

	resp, raw := postJSON(t, f.app, "/admin/payments/sync", body)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, raw)
	assert.JSONEq(t, `{"success":true,"message":"1/1 records synced.","synced":1,"missing":1,"failed":0}`, raw)
	require.Len(t, f.repo.Tickets(), 1)
	assert.Equal(t, "TX200", f.repo.Tickets()[0].TransactionID)

	resp, raw = postJSON(t, f.app, "/admin/payments/sync", body)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, raw)
	assert.JSONEq(t, `{"success":true,"message":"All payments are already up to date.","synced":0,"missing":0,"failed":0}`, raw)
	assert.Len(t, f.repo.Tickets(), 1)
}

func ledgerEntry(txID string) gateway.Transaction {
	return gateway.Transaction{
		TransactionID: txID,
		OrderID:       "TICKET_1_1718000000000",
		Amount:        decimal.RequireFromString("49.99"),
		Currency:      "EUR",
		Description:   "Ticket: Open Air",
		CustomerName:  "Jane Doe",
		CustomerEmail: "jane@example.com",
		CustomerPhone: "+4912345",
		Status:        "success",
	}
}

func TestAdminSyncFinishesPendingPayment(t *testing.T) {
	f := newFixture(t)
	f.repo.AddPayment(models.Payment{
		Environment:   string(payment.EnvLive),
		TransactionID: "TX300",
		OrderID:       "TICKET_1_1718000000000",
		ProductType:   string(payment.ProductTicket),
		Amount:        decimal.RequireFromString("49.99"),
		Currency:      "EUR",
		CustomerEmail: "jane@example.com",
		Status:        models.PaymentStatusPending,
	})
	f.ledger.txs = []gateway.Transaction{ledgerEntry("TX300")}
	body := `{"startDate":"2024-06-01","endDate":"2024-06-07"}`

	resp, raw := postJSON(t, f.app, "/admin/payments/sync", body)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, raw)
	assert.JSONEq(t, `{"success":true,"message":"1/1 records synced.","synced":1,"missing":1,"failed":0}`, raw)

	payments := f.repo.Payments()
	require.Len(t, payments, 1)
	assert.Equal(t, models.PaymentStatusCompleted, payments[0].Status)
	require.Len(t, f.repo.Tickets(), 1)
	assert.Equal(t, 9, f.repo.AvailableTickets(1))

	resp, raw = postJSON(t, f.app, "/admin/payments/sync", body)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, raw)
	assert.JSONEq(t, `{"success":true,"message":"All payments are already up to date.","synced":0,"missing":0,"failed":0}`, raw)
}

func TestInfrastructureFailureIsRetriedExactlyOnce(t *testing.T) {
	tests := []struct {
		name  string
		retry func(t *testing.T, f *fixture, form string)
	}{
		{
			name: "gateway redelivery",
			retry: func(t *testing.T, f *fixture, form string) {
				resp, body := postForm(t, f.app, "/payment-webhook", form)
				require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
				resp, body = postForm(t, f.app, "/payment-webhook", form)
				require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
			},
		},
		{
			name: "reconciliation",
			retry: func(t *testing.T, f *fixture, form string) {
				f.ledger.txs = []gateway.Transaction{ledgerEntry("TX301")}
				resp, raw := postJSON(t, f.app, "/admin/payments/sync", `{"startDate":"2024-06-01","endDate":"2024-06-07"}`)
				require.Equal(t, fiber.StatusOK, resp.StatusCode, raw)
				assert.JSONEq(t, `{"success":true,"message":"1/1 records synced.","synced":1,"missing":1,"failed":0}`, raw)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.fulfiller.failures.Store(1)
			form := signedForm(t, controllerCreds.Live, ticketCallback("TX301"))

			resp, body := postForm(t, f.app, "/payment-webhook", form)
			require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode, body)
			payments := f.repo.Payments()
			require.Len(t, payments, 1)
			assert.Equal(t, models.PaymentStatusPending, payments[0].Status)
			assert.Empty(t, f.repo.Tickets())

			tt.retry(t, f, form)

			payments = f.repo.Payments()
			require.Len(t, payments, 1)
			assert.Equal(t, models.PaymentStatusCompleted, payments[0].Status)
			assert.Len(t, f.repo.Tickets(), 1)
			assert.Equal(t, 9, f.repo.AvailableTickets(1))
		})
	}
}

func TestAdminSyncInvalidDates(t *testing.T) {
	f := newFixture(t)

	for name, body := range map[string]string{
		"missing end":      `{"startDate":"2024-06-01"}`,
		"not a date":       `{"startDate":"yesterday","endDate":"2024-06-07"}`,
		"end before start": `{"startDate":"2024-06-07","endDate":"2024-06-01"}`,
		"malformed json":   `{"startDate":`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, raw := postJSON(t, f.app, "/admin/payments/sync", body)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.JSONEq(t, `{"error":"Invalid date range"}`, raw)
		})
	}
}

func TestAdminSyncFatalError(t *testing.T) {
	f := newFixture(t)
	f.ledger.err = payment.ErrGatewayUnavailable

	resp, raw := postJSON(t, f.app, "/admin/payments/sync", `{"startDate":"2024-06-01","endDate":"2024-06-07"}`)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, raw, "Payment gateway unavailable")
}

func TestAdminTransactions(t *testing.T) {
	f := newFixture(t)
	f.ledger.txs = []gateway.Transaction{{TransactionID: "TX300", Amount: decimal.RequireFromString("5"), Status: "success"}}

	resp, raw := postJSON(t, f.app, "/admin/payments/transactions", `{"startDate":"2024-06-01","endDate":"2024-06-07"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, raw)

	var out struct {
		Success      bool                  `json:"success"`
		Transactions []gateway.Transaction `json:"transactions"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	assert.True(t, out.Success)
	require.Len(t, out.Transactions, 1)
	assert.Equal(t, "TX300", out.Transactions[0].TransactionID)

	f.ledger.err = payment.ErrMissingMerchantConfig
	resp, raw = postJSON(t, f.app, "/admin/payments/transactions", `{"startDate":"2024-06-01","endDate":"2024-06-07"}`)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, raw, "Payment merchant is not configured")
}

func TestCheckout(t *testing.T) {
	f := newFixture(t)

	t.Run("signed gateway url", func(t *testing.T) {
		resp, raw := postJSON(t, f.app, "/payments/checkout", `{"productType":"ticket","sourceId":1,"customerName":"Jane Doe"}`)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, raw)

		var out struct {
			Success bool   `json:"success"`
			URL     string `json:"url"`
			OrderID string `json:"orderId"`
		}
		require.NoError(t, json.Unmarshal([]byte(raw), &out))
		assert.True(t, out.Success)
		assert.Equal(t, "TICKET_1_1718000000000", out.OrderID)
		assert.True(t, strings.HasPrefix(out.URL, "https://gateway.example/pay?"))
		assert.Contains(t, out.URL, "app_id=live-app")
		assert.Contains(t, out.URL, "amount=49.99")
		assert.Contains(t, out.URL, "customer_email=jane%40example.com")
		assert.Contains(t, out.URL, "product_type=ticket")
		assert.Contains(t, out.URL, "source_ref=1")
	})

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "unknown product type", body: `{"productType":"bundle","sourceId":1,"customerName":"Jane Doe"}`, status: fiber.StatusBadRequest},
		{name: "missing source", body: `{"productType":"ticket","customerName":"Jane Doe"}`, status: fiber.StatusBadRequest},
		{name: "unknown event", body: `{"productType":"ticket","sourceId":99,"customerName":"Jane Doe"}`, status: fiber.StatusNotFound},
		{name: "sold out", body: `{"productType":"ticket","sourceId":2,"customerName":"Jane Doe"}`, status: fiber.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := postJSON(t, f.app, "/payments/checkout", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

type fakeCounters map[string]map[string]int64

func (c fakeCounters) Snapshot(ctx context.Context, env string) (map[string]int64, error) {
	return c[env], nil
}

type fakeQueue struct{}

func (fakeQueue) GetJobStats(ctx context.Context) (map[jobqueue.JobStatus]int64, error) {
	return map[jobqueue.JobStatus]int64{jobqueue.JobStatusCompleted: 4}, nil
}
func (fakeQueue) GetQueueSize(ctx context.Context) (int64, error)      { return 2, nil }
func (fakeQueue) GetProcessingSize(ctx context.Context) (int64, error) { return 1, nil }

func TestAdminStats(t *testing.T) {
	pc := NewPaymentController(PaymentDeps{
		Credentials: controllerCreds,
		Counters: fakeCounters{
			"live": {"received": 3, "fulfilled": 2},
			"test": {"received": 1},
		},
		Jobs: fakeQueue{},
	})
	app := fiber.New()
	app.Get("/admin/payments/stats", pc.HandleStats)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin/payments/stats", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"success": true,
		"counters": {"live": {"received": 3, "fulfilled": 2}, "test": {"received": 1}},
		"jobs": {"stats": {"completed": 4}, "pending": 2, "processing": 1}
	}`, string(raw))
}
