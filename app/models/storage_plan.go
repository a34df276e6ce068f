package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StoragePlan is a purchasable storage package.
type StoragePlan struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Name      string          `gorm:"type:varchar(100);not null" json:"name"`
	Bytes     int64           `gorm:"not null" json:"bytes"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	IsActive  bool            `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// UserStoragePlan tracks the storage bytes credited to a user.
type UserStoragePlan struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Used      int64     `gorm:"not null;default:0" json:"used"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// StorageCredit records a single storage purchase so it is applied once.
type StorageCredit struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;index" json:"user_id"`
	PlanID        uint      `gorm:"not null" json:"plan_id"`
	BytesAdded    int64     `gorm:"not null" json:"bytes_added"`
	Environment   string    `gorm:"type:varchar(10);not null;default:'live';index:ux_storage_credits_env_tx,unique,priority:1" json:"environment"`
	TransactionID string    `gorm:"type:varchar(191);not null;index:ux_storage_credits_env_tx,unique,priority:2" json:"transaction_id"`
	OrderID       string    `gorm:"type:varchar(191);not null" json:"order_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}
