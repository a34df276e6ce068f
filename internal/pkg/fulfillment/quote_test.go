package fulfillment_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/EventFox/app/models"
	"github.com/ManuelReschke/EventFox/internal/pkg/fulfillment"
	"github.com/ManuelReschke/EventFox/internal/pkg/payment"
)

func TestQuote(t *testing.T) {
	repo := seededRepo()
	repo.AddEvent(models.Event{ID: 8, Title: "Gala", Price: decimal.RequireFromString("25.00"), AvailableTickets: 3})
	repo.AddEvent(models.Event{ID: 9, Title: "Sold Out", Price: decimal.RequireFromString("10.00")})
	repo.AddMovie(models.Movie{ID: 4, Title: "Feature", Price: decimal.RequireFromString("4.99")})
	repo.AddStoragePlan(models.StoragePlan{ID: 6, Name: "1 TB", Price: decimal.RequireFromString("99.00"), IsActive: true})
	repo.AddStoragePlan(models.StoragePlan{ID: 7, Name: "Legacy", Price: decimal.RequireFromString("1.00")})
	engine := fulfillment.NewEngine(repo, "https://events.example")

	tests := []struct {
		name        string
		pt          payment.ProductType
		id          uint64
		amount      string
		description string
		err         error
	}{
		{name: "ticket", pt: payment.ProductTicket, id: 8, amount: "25", description: "Ticket: Gala"},
		{name: "video", pt: payment.ProductVideo, id: 4, amount: "4.99", description: "Video: Feature"},
		{name: "storage", pt: payment.ProductStorage, id: 6, amount: "99", description: "Storage: 1 TB"},
		{name: "sold out event", pt: payment.ProductTicket, id: 9, err: payment.ErrNoTicketsAvailable},
		{name: "unknown event", pt: payment.ProductTicket, id: 404, err: fulfillment.ErrProductNotFound},
		{name: "unknown movie", pt: payment.ProductVideo, id: 404, err: fulfillment.ErrProductNotFound},
		{name: "inactive plan", pt: payment.ProductStorage, id: 7, err: fulfillment.ErrProductNotFound},
		{name: "unknown type", pt: payment.ProductType("bundle"), id: 1, err: fulfillment.ErrProductNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := engine.Quote(context.Background(), tt.pt, tt.id)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.amount).Equal(q.Amount))
			assert.Equal(t, tt.description, q.Description)
			assert.Equal(t, tt.id, q.SourceID)
		})
	}
}
