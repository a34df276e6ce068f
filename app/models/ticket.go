package models

import "time"

const (
	TicketStatusValid     = "valid"
	TicketStatusUsed      = "used"
	TicketStatusCancelled = "cancelled"
)

type Ticket struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	EventID       uint      `gorm:"not null;index" json:"event_id"`
	UserID        *uint     `gorm:"index" json:"user_id,omitempty"`
	Environment   string    `gorm:"type:varchar(10);not null;default:'live';index:ux_tickets_env_tx,unique,priority:1" json:"environment"`
	TransactionID string    `gorm:"type:varchar(191);not null;index:ux_tickets_env_tx,unique,priority:2" json:"transaction_id"`
	OrderID       string    `gorm:"type:varchar(191);not null" json:"order_id"`
	TicketCode    string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"ticket_code"`
	QRCode        string    `gorm:"type:varchar(512);not null" json:"qr_code"`
	Status        string    `gorm:"type:varchar(20);not null;default:'valid'" json:"status"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
