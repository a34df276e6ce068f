package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Event is a live event with a bounded number of tickets.
type Event struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	Title            string          `gorm:"type:varchar(255);not null" json:"title"`
	StartsAt         *time.Time      `gorm:"type:timestamp;default:null" json:"starts_at"`
	Price            decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	AvailableTickets int             `gorm:"not null;default:0" json:"available_tickets"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt  `gorm:"index" json:"-"`
}
