package fulfillment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ManuelReschke/EventFox/internal/pkg/payment"
)

// ErrProductNotFound is returned when a checkout names a product that does
// not exist or cannot be bought.
var ErrProductNotFound = errors.New("product not found")

// Quote is the server side price of a product.
type Quote struct {
	Type        payment.ProductType
	SourceID    uint64
	Amount      decimal.Decimal
	Description string
}

// Quote prices a product for checkout. Sold out events are refused before
// the customer is sent to the gateway.
func (e *Engine) Quote(ctx context.Context, pt payment.ProductType, sourceID uint64) (*Quote, error) {
	q := &Quote{Type: pt, SourceID: sourceID}
	id := uint(sourceID)

	switch pt {
	case payment.ProductTicket:
		ev, err := e.repo.FindEvent(ctx, id)
		if err != nil {
			return nil, notFound(err, "event", sourceID)
		}
		if ev.AvailableTickets <= 0 {
			return nil, payment.ErrNoTicketsAvailable
		}
		q.Amount, q.Description = ev.Price, "Ticket: "+ev.Title
	case payment.ProductVideo:
		m, err := e.repo.FindMovie(ctx, id)
		if err != nil {
			return nil, notFound(err, "movie", sourceID)
		}
		q.Amount, q.Description = m.Price, "Video: "+m.Title
	case payment.ProductStorage:
		p, err := e.repo.FindStoragePlan(ctx, id)
		if err != nil {
			return nil, notFound(err, "storage plan", sourceID)
		}
		if !p.IsActive {
			return nil, fmt.Errorf("storage plan %d is inactive: %w", sourceID, ErrProductNotFound)
		}
		q.Amount, q.Description = p.Price, "Storage: "+p.Name
	default:
		return nil, ErrProductNotFound
	}
	return q, nil
}

func notFound(err error, what string, id uint64) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %d: %w", what, id, ErrProductNotFound)
	}
	return fmt.Errorf("load %s %d: %w", what, id, err)
}
