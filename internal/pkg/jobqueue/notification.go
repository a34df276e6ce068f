package jobqueue

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/ManuelReschke/EventFox/internal/pkg/webhook"
)

// MailFunc sends one HTML mail. mail.SendMail satisfies it.
type MailFunc func(to, subject, body string) error

// PaymentNotifier queues a notification job for every fulfilled payment.
type PaymentNotifier struct {
	queue *Queue
}

func NewPaymentNotifier(q *Queue) *PaymentNotifier {
	return &PaymentNotifier{queue: q}
}

func (n *PaymentNotifier) PaymentFulfilled(ctx context.Context, note webhook.Notification) error {
	_, err := n.queue.EnqueueJob(ctx, JobTypePaymentNotification, PaymentNotificationJobPayload{
		Environment:   string(note.Environment),
		TransactionID: note.TransactionID,
		OrderID:       note.OrderID,
		ProductType:   string(note.ProductType),
		CustomerEmail: note.CustomerEmail,
		CustomerName:  note.CustomerName,
		Amount:        note.Amount,
		Currency:      note.Currency,
	}.ToMap())
	return err
}

// NotificationHandler mails the buyer. Jobs without an address complete
// without sending.
func NotificationHandler(send MailFunc) Handler {
	return func(ctx context.Context, job *Job) error {
		p, err := PaymentNotificationJobPayloadFromMap(job.Payload)
		if err != nil {
			return fmt.Errorf("invalid payment notification payload: %w", err)
		}
		if strings.TrimSpace(p.CustomerEmail) == "" {
			return nil
		}
		subject, body := notificationMail(p)
		return send(p.CustomerEmail, subject, body)
	}
}

func notificationMail(p *PaymentNotificationJobPayload) (string, string) {
	var what string
	switch p.ProductType {
	case "ticket":
		what = "Your ticket is ready"
	case "video":
		what = "Your video is unlocked"
	case "storage":
		what = "Your storage was added"
	default:
		what = "Your order is complete"
	}
	subject := what
	if p.Environment == "test" {
		subject = "[TEST] " + subject
	}

	name := p.CustomerName
	if name == "" {
		name = "there"
	}
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>%s.</p><p>Order: %s<br>Transaction: %s<br>Amount: %s %s</p>",
		html.EscapeString(name),
		html.EscapeString(what),
		html.EscapeString(p.OrderID),
		html.EscapeString(p.TransactionID),
		html.EscapeString(p.Amount),
		html.EscapeString(p.Currency),
	)
	return subject, body
}
