package jobqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/EventFox/internal/pkg/payment"
	"github.com/ManuelReschke/EventFox/internal/pkg/reconcile"
	"github.com/ManuelReschke/EventFox/internal/pkg/webhook"
)

type sentMail struct {
	to, subject, body string
}

func TestPaymentNotifierEnqueuesJob(t *testing.T) {
	q := NewQueue(newTestRedis(t), 1)
	n := NewPaymentNotifier(q)
	ctx := context.Background()

	err := n.PaymentFulfilled(ctx, webhook.Notification{
		Environment:   payment.EnvLive,
		TransactionID: "TX100",
		ProductType:   payment.ProductTicket,
		CustomerEmail: "jane@example.com",
	})
	require.NoError(t, err)

	size, err := q.GetQueueSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size)
}

func TestNotificationHandler(t *testing.T) {
	tests := []struct {
		name        string
		payload     PaymentNotificationJobPayload
		wantSent    bool
		wantSubject string
	}{
		{
			name:        "ticket",
			payload:     PaymentNotificationJobPayload{Environment: "live", ProductType: "ticket", CustomerEmail: "jane@example.com", CustomerName: "<Jane>"},
			wantSent:    true,
			wantSubject: "Your ticket is ready",
		},
		{
			name:        "sandbox video",
			payload:     PaymentNotificationJobPayload{Environment: "test", ProductType: "video", CustomerEmail: "jane@example.com"},
			wantSent:    true,
			wantSubject: "[TEST] Your video is unlocked",
		},
		{
			name:     "no address",
			payload:  PaymentNotificationJobPayload{Environment: "live", ProductType: "storage"},
			wantSent: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sent []sentMail
			h := NotificationHandler(func(to, subject, body string) error {
				sent = append(sent, sentMail{to, subject, body})
				return nil
			})

			err := h(context.Background(), &Job{Payload: tt.payload.ToMap()})
			require.NoError(t, err)
			if !tt.wantSent {
				assert.Empty(t, sent)
				return
			}
			require.Len(t, sent, 1)
			assert.Equal(t, tt.payload.CustomerEmail, sent[0].to)
			assert.Equal(t, tt.wantSubject, sent[0].subject)
			assert.NotContains(t, sent[0].body, "<Jane>")
		})
	}
}

func TestNotificationHandlerPropagatesMailErrors(t *testing.T) {
	h := NotificationHandler(func(to, subject, body string) error { return errors.New("smtp down") })
	err := h(context.Background(), &Job{Payload: PaymentNotificationJobPayload{CustomerEmail: "a@b.c"}.ToMap()})
	assert.Error(t, err)
}

type fakeReconciler struct {
	got reconcile.Request
	err error
}

func (f *fakeReconciler) Run(ctx context.Context, req reconcile.Request) (*reconcile.Summary, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &reconcile.Summary{Message: "All payments are already up to date."}, nil
}

func TestReconcileHandler(t *testing.T) {
	r := &fakeReconciler{}
	h := ReconcileHandler(r)

	err := h(context.Background(), &Job{Payload: PaymentReconcileJobPayload{StartDate: "2024-06-01", EndDate: "2024-06-07", UseAlternate: true}.ToMap()})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), r.got.Start)
	assert.Equal(t, time.Date(2024, 6, 7, 0, 0, 0, 0, time.UTC), r.got.End)
	assert.True(t, r.got.UseAlternate)

	err = h(context.Background(), &Job{Payload: PaymentReconcileJobPayload{StartDate: "06/01/2024", EndDate: "2024-06-07"}.ToMap()})
	assert.Error(t, err)

	r.err = payment.ErrGatewayUnavailable
	err = h(context.Background(), &Job{Payload: PaymentReconcileJobPayload{StartDate: "2024-06-01", EndDate: "2024-06-07"}.ToMap()})
	assert.ErrorIs(t, err, payment.ErrGatewayUnavailable)
}
