package router

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ManuelReschke/EventFox/app/controllers"
	"github.com/ManuelReschke/EventFox/internal/pkg/payment"
	"github.com/ManuelReschke/EventFox/internal/pkg/session"
	"github.com/ManuelReschke/EventFox/internal/pkg/webhook"
)

type okProcessor struct{}

func (okProcessor) Process(ctx context.Context, env payment.Environment, cb payment.Callback) (*webhook.Result, error) {
	return &webhook.Result{Success: true, Status: "completed"}, nil
}

func newRouterApp(t *testing.T) *fiber.App {
	t.Helper()
	session.SetSessionStore(fibersession.New())
	t.Cleanup(func() { session.SetSessionStore(nil) })

	hash, err := bcrypt.GenerateFromPassword([]byte("ops-key"), bcrypt.MinCost)
	require.NoError(t, err)

	controllers.InitializePaymentController(controllers.PaymentDeps{Processor: okProcessor{}})
	app := fiber.New()
	setup(app, &HttpRouter{adminKeyHash: string(hash)})
	return app
}

func TestRoutes(t *testing.T) {
	app := newRouterApp(t)

	tests := []struct {
		name    string
		method  string
		target  string
		body    string
		ctype   string
		headers map[string]string
		status  int
		want    string
	}{
		{
			name: "webhook needs no session or csrf", method: http.MethodPost, target: "/payment-webhook",
			body: "transaction_id=TX1", ctype: fiber.MIMEApplicationForm, status: fiber.StatusOK,
			want: `{"success":true,"status":"completed"}`,
		},
		{
			name: "test webhook", method: http.MethodPost, target: "/payment-webhook-test",
			body: "transaction_id=TX1", ctype: fiber.MIMEApplicationForm, status: fiber.StatusOK,
		},
		{
			name: "admin sync without principal", method: http.MethodPost, target: "/admin/payments/sync",
			body: `{}`, ctype: fiber.MIMEApplicationJSON, status: fiber.StatusUnauthorized,
			want: `{"error":"unauthorized","message":"login required"}`,
		},
		{
			name: "admin stats without principal", method: http.MethodGet, target: "/admin/payments/stats",
			status: fiber.StatusUnauthorized,
		},
		{
			name: "admin sync with api key reaches handler", method: http.MethodPost, target: "/admin/payments/sync",
			body: `{}`, ctype: fiber.MIMEApplicationJSON, headers: map[string]string{"X-API-Key": "ops-key"},
			status: fiber.StatusBadRequest, want: `{"error":"Invalid date range"}`,
		},
		{
			name: "checkout without session", method: http.MethodPost, target: "/payments/checkout",
			body: `{}`, ctype: fiber.MIMEApplicationJSON, status: fiber.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			if tt.ctype != "" {
				req.Header.Set(fiber.HeaderContentType, tt.ctype)
			}
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.want != "" {
				raw, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				assert.JSONEq(t, tt.want, string(raw))
			}
		})
	}
}
