package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Movie struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	Title      string          `gorm:"type:varchar(255);not null" json:"title"`
	YoutubeURL string          `gorm:"type:varchar(255);not null" json:"youtube_url"`
	Price      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt  `gorm:"index" json:"-"`
}

// PurchasedVideo unlocks a movie for the buyer's email address.
type PurchasedVideo struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	MovieID       uint      `gorm:"not null;index" json:"movie_id"`
	UserEmail     string    `gorm:"type:varchar(200);not null;index" json:"user_email"`
	YoutubeURL    string    `gorm:"type:varchar(255);not null" json:"youtube_url"`
	Environment   string    `gorm:"type:varchar(10);not null;default:'live';index:ux_purchased_videos_env_tx,unique,priority:1" json:"environment"`
	TransactionID string    `gorm:"type:varchar(191);not null;index:ux_purchased_videos_env_tx,unique,priority:2" json:"transaction_id"`
	OrderID       string    `gorm:"type:varchar(191);not null" json:"order_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}
