package fulfillment

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/EventFox/app/models"
)

// Repository provides DB operations used by the payment pipeline.
// Lookups return gorm.ErrRecordNotFound when nothing matches.
type Repository interface {
	WithinTx(ctx context.Context, fn func(tx Repository) error) error

	CreatePendingPayment(ctx context.Context, p *models.Payment) (bool, *models.Payment, error)
	FindPayment(ctx context.Context, env, transactionID string) (*models.Payment, error)
	TransitionPayment(ctx context.Context, env, transactionID, to, reason string) (bool, error)
	SettledTransactionIDs(ctx context.Context, env string, ids []string) (map[string]struct{}, error)

	FindEvent(ctx context.Context, id uint) (*models.Event, error)
	DecrementTickets(ctx context.Context, eventID uint) (bool, error)
	CreateTicket(ctx context.Context, t *models.Ticket) error
	FindTicket(ctx context.Context, env, transactionID string) (*models.Ticket, error)

	FindUserByEmail(ctx context.Context, email string) (*models.User, error)

	FindMovie(ctx context.Context, id uint) (*models.Movie, error)
	CreatePurchasedVideo(ctx context.Context, v *models.PurchasedVideo) error
	FindPurchasedVideo(ctx context.Context, env, transactionID string) (*models.PurchasedVideo, error)

	FindStoragePlan(ctx context.Context, id uint) (*models.StoragePlan, error)
	CreateStorageCredit(ctx context.Context, c *models.StorageCredit) error
	FindStorageCredit(ctx context.Context, env, transactionID string) (*models.StorageCredit, error)
	IncrementStorageUsed(ctx context.Context, userID uint, bytes int64) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payment repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithinTx(ctx context.Context, fn func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) CreatePendingPayment(ctx context.Context, p *models.Payment) (bool, *models.Payment, error) {
	p.Status = models.PaymentStatusPending
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "environment"},
			{Name: "transaction_id"},
		},
		DoNothing: true,
	}).Create(p)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	stored, err := r.FindPayment(ctx, p.Environment, p.TransactionID)
	if err != nil {
		return false, nil, err
	}
	return created, stored, nil
}

func (r *gormRepository) FindPayment(ctx context.Context, env, transactionID string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).
		Where("environment = ? AND transaction_id = ?", env, transactionID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// TransitionPayment moves a pending payment to its final status. It reports
// false when the payment was not pending anymore.
func (r *gormRepository) TransitionPayment(ctx context.Context, env, transactionID, to, reason string) (bool, error) {
	updates := map[string]interface{}{"status": to}
	if reason != "" {
		updates["failure_reason"] = reason
	}
	tx := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("environment = ? AND transaction_id = ? AND status = ?", env, transactionID, models.PaymentStatusPending).
		Updates(updates)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

// SettledTransactionIDs returns the ids among ids that are completed or
// failed. Pending payments are left out so reconciliation replays them.
func (r *gormRepository) SettledTransactionIDs(ctx context.Context, env string, ids []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var found []string
	if err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("environment = ? AND transaction_id IN ?", env, ids).
		Where("status IN ?", []string{models.PaymentStatusCompleted, models.PaymentStatusFailed}).
		Pluck("transaction_id", &found).Error; err != nil {
		return nil, err
	}
	for _, id := range found {
		out[id] = struct{}{}
	}
	return out, nil
}

func (r *gormRepository) FindEvent(ctx context.Context, id uint) (*models.Event, error) {
	var e models.Event
	if err := r.db.WithContext(ctx).First(&e, id).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// DecrementTickets takes one ticket if any is left, in a single statement.
func (r *gormRepository) DecrementTickets(ctx context.Context, eventID uint) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&models.Event{}).
		Where("id = ? AND available_tickets > 0", eventID).
		UpdateColumn("available_tickets", gorm.Expr("available_tickets - ?", 1))
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

func (r *gormRepository) CreateTicket(ctx context.Context, t *models.Ticket) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *gormRepository) FindTicket(ctx context.Context, env, transactionID string) (*models.Ticket, error) {
	var t models.Ticket
	err := r.db.WithContext(ctx).Where("environment = ? AND transaction_id = ?", env, transactionID).First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *gormRepository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	if strings.TrimSpace(email) == "" {
		return nil, gorm.ErrRecordNotFound
	}
	return models.FindUserByEmail(r.db.WithContext(ctx), email)
}

func (r *gormRepository) FindMovie(ctx context.Context, id uint) (*models.Movie, error) {
	var m models.Movie
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *gormRepository) CreatePurchasedVideo(ctx context.Context, v *models.PurchasedVideo) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *gormRepository) FindPurchasedVideo(ctx context.Context, env, transactionID string) (*models.PurchasedVideo, error) {
	var v models.PurchasedVideo
	err := r.db.WithContext(ctx).Where("environment = ? AND transaction_id = ?", env, transactionID).First(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *gormRepository) FindStoragePlan(ctx context.Context, id uint) (*models.StoragePlan, error) {
	var p models.StoragePlan
	if err := r.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) CreateStorageCredit(ctx context.Context, c *models.StorageCredit) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *gormRepository) FindStorageCredit(ctx context.Context, env, transactionID string) (*models.StorageCredit, error) {
	var c models.StorageCredit
	err := r.db.WithContext(ctx).Where("environment = ? AND transaction_id = ?", env, transactionID).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// IncrementStorageUsed adds bytes to the user's plan, creating the row on
// first purchase.
func (r *gormRepository) IncrementStorageUsed(ctx context.Context, userID uint, bytes int64) error {
	if userID == 0 || bytes <= 0 {
		return errors.New("user_id and a positive byte amount are required")
	}
	plan := &models.UserStoragePlan{UserID: userID, Used: bytes}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"used":       gorm.Expr("used + ?", bytes),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(plan).Error
}
