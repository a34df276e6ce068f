package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ManuelReschke/EventFox/app/models"
	"github.com/ManuelReschke/EventFox/internal/pkg/payment"
)

// Order is a verified, paid order ready to be fulfilled.
type Order struct {
	Environment   payment.Environment
	Ref           payment.OrderRef
	OrderID       string
	TransactionID string
	CustomerEmail string
}

// Artifact is what a fulfilled order produced. Exactly one of Ticket, Video
// and Storage is set.
type Artifact struct {
	Type     payment.ProductType    `json:"type"`
	Ticket   *models.Ticket         `json:"ticket,omitempty"`
	Video    *models.PurchasedVideo `json:"video,omitempty"`
	Storage  *models.StorageCredit  `json:"storage,omitempty"`
	Existing bool                   `json:"existing"`
}

// Engine applies the side effect of a paid order exactly once per transaction.
type Engine struct {
	repo    Repository
	baseURL string
	newCode func() string
}

func NewEngine(repo Repository, baseURL string) *Engine {
	return &Engine{
		repo:    repo,
		baseURL: strings.TrimRight(baseURL, "/"),
		newCode: uuid.NewString,
	}
}

// Fulfill completes the pending payment and creates its artifact in one
// transaction. Called again for the same transaction it returns the
// artifact created the first time.
func (e *Engine) Fulfill(ctx context.Context, o Order) (*Artifact, error) {
	env := string(o.Environment)
	var art *Artifact

	err := e.repo.WithinTx(ctx, func(tx Repository) error {
		moved, err := tx.TransitionPayment(ctx, env, o.TransactionID, models.PaymentStatusCompleted, "")
		if err != nil {
			return fmt.Errorf("complete payment %s: %w", o.TransactionID, err)
		}
		if !moved {
			p, err := tx.FindPayment(ctx, env, o.TransactionID)
			if err != nil {
				return fmt.Errorf("load payment %s: %w", o.TransactionID, err)
			}
			if !p.IsCompleted() {
				return payment.ErrDuplicateTransaction
			}
			art, err = e.existing(ctx, tx, o)
			return err
		}

		switch o.Ref.Type {
		case payment.ProductTicket:
			art, err = e.issueTicket(ctx, tx, o)
		case payment.ProductVideo:
			art, err = e.unlockVideo(ctx, tx, o)
		case payment.ProductStorage:
			art, err = e.creditStorage(ctx, tx, o)
		default:
			err = payment.ErrInvalidOrderIDFormat
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	if art.Existing {
		log.Infof("[Fulfillment] %s %s already fulfilled", o.Ref.Type, o.TransactionID)
	} else {
		log.Infof("[Fulfillment] Fulfilled %s %s (order %s, env %s)", o.Ref.Type, o.TransactionID, o.OrderID, env)
	}
	return art, nil
}

func (e *Engine) issueTicket(ctx context.Context, tx Repository, o Order) (*Artifact, error) {
	eventID := uint(o.Ref.SourceID)

	if o.Environment == payment.EnvLive {
		ok, err := tx.DecrementTickets(ctx, eventID)
		if err != nil {
			return nil, fmt.Errorf("reserve ticket for event %d: %w", eventID, err)
		}
		if !ok {
			return nil, payment.ErrNoTicketsAvailable
		}
	} else {
		// Sandbox tickets never touch the live counter.
		ev, err := tx.FindEvent(ctx, eventID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, payment.ErrNoTicketsAvailable
		}
		if err != nil {
			return nil, err
		}
		if ev.AvailableTickets <= 0 {
			return nil, payment.ErrNoTicketsAvailable
		}
	}

	var userID *uint
	if u, err := tx.FindUserByEmail(ctx, o.CustomerEmail); err == nil {
		userID = &u.ID
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	code := e.newCode()
	ticket := &models.Ticket{
		EventID:       eventID,
		UserID:        userID,
		Environment:   string(o.Environment),
		TransactionID: o.TransactionID,
		OrderID:       o.OrderID,
		TicketCode:    code,
		QRCode:        e.qrPayload(code),
		Status:        models.TicketStatusValid,
	}
	if err := tx.CreateTicket(ctx, ticket); err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	return &Artifact{Type: payment.ProductTicket, Ticket: ticket}, nil
}

func (e *Engine) unlockVideo(ctx context.Context, tx Repository, o Order) (*Artifact, error) {
	movie, err := tx.FindMovie(ctx, uint(o.Ref.SourceID))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, payment.ErrCustomerNotFound.Wrap(fmt.Errorf("movie %d not found", o.Ref.SourceID))
	}
	if err != nil {
		return nil, err
	}
	user, err := tx.FindUserByEmail(ctx, o.CustomerEmail)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, payment.ErrCustomerNotFound.Wrap(fmt.Errorf("no user with email %q", o.CustomerEmail))
	}
	if err != nil {
		return nil, err
	}

	video := &models.PurchasedVideo{
		MovieID:       movie.ID,
		UserEmail:     user.Email,
		YoutubeURL:    movie.YoutubeURL,
		Environment:   string(o.Environment),
		TransactionID: o.TransactionID,
		OrderID:       o.OrderID,
	}
	if err := tx.CreatePurchasedVideo(ctx, video); err != nil {
		return nil, fmt.Errorf("create purchased video: %w", err)
	}
	return &Artifact{Type: payment.ProductVideo, Video: video}, nil
}

func (e *Engine) creditStorage(ctx context.Context, tx Repository, o Order) (*Artifact, error) {
	plan, err := tx.FindStoragePlan(ctx, uint(o.Ref.SourceID))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, payment.ErrCustomerNotFound.Wrap(fmt.Errorf("storage plan %d not found", o.Ref.SourceID))
	}
	if err != nil {
		return nil, err
	}
	user, err := tx.FindUserByEmail(ctx, o.CustomerEmail)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, payment.ErrCustomerNotFound.Wrap(fmt.Errorf("no user with email %q", o.CustomerEmail))
	}
	if err != nil {
		return nil, err
	}

	credit := &models.StorageCredit{
		UserID:        user.ID,
		PlanID:        plan.ID,
		BytesAdded:    plan.Bytes,
		Environment:   string(o.Environment),
		TransactionID: o.TransactionID,
		OrderID:       o.OrderID,
	}
	if err := tx.CreateStorageCredit(ctx, credit); err != nil {
		return nil, fmt.Errorf("create storage credit: %w", err)
	}
	if o.Environment == payment.EnvLive {
		if err := tx.IncrementStorageUsed(ctx, user.ID, plan.Bytes); err != nil {
			return nil, fmt.Errorf("credit storage: %w", err)
		}
	}
	return &Artifact{Type: payment.ProductStorage, Storage: credit}, nil
}

func (e *Engine) existing(ctx context.Context, tx Repository, o Order) (*Artifact, error) {
	env := string(o.Environment)
	art := &Artifact{Type: o.Ref.Type, Existing: true}
	var err error
	switch o.Ref.Type {
	case payment.ProductTicket:
		art.Ticket, err = tx.FindTicket(ctx, env, o.TransactionID)
	case payment.ProductVideo:
		art.Video, err = tx.FindPurchasedVideo(ctx, env, o.TransactionID)
	case payment.ProductStorage:
		art.Storage, err = tx.FindStorageCredit(ctx, env, o.TransactionID)
	default:
		return nil, payment.ErrInvalidOrderIDFormat
	}
	if err != nil {
		return nil, fmt.Errorf("load artifact of completed payment %s: %w", o.TransactionID, err)
	}
	return art, nil
}

func (e *Engine) qrPayload(code string) string {
	return e.baseURL + "/tickets/verify/" + code
}
