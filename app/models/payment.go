package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"

	PaymentEnvLive = "live"
	PaymentEnvTest = "test"
)

// Payment is the local record of a gateway transaction. It is created once per
// (environment, transaction_id) and only ever moves out of pending once.
type Payment struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Environment   string          `gorm:"type:varchar(10);not null;default:'live';index:ux_payments_env_tx,unique,priority:1" json:"environment"`
	TransactionID string          `gorm:"type:varchar(191);not null;index:ux_payments_env_tx,unique,priority:2" json:"transaction_id"`
	OrderID       string          `gorm:"type:varchar(191);not null;index" json:"order_id"`
	ProductType   string          `gorm:"type:varchar(20);not null" json:"product_type"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency      string          `gorm:"type:varchar(10);not null" json:"currency"`
	Status        string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PaymentMethod string          `gorm:"type:varchar(50)" json:"payment_method"`
	Channel       string          `gorm:"type:varchar(50)" json:"channel"`
	CustomerEmail string          `gorm:"type:varchar(200)" json:"customer_email"`
	FailureReason string          `gorm:"type:text" json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Payment) IsCompleted() bool {
	return p != nil && p.Status == PaymentStatusCompleted
}

func (p *Payment) IsFailed() bool {
	return p != nil && p.Status == PaymentStatusFailed
}
