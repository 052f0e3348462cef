package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account backs the gorm ledger adapter: one balance row per user and
// currency. In production deployments the ledger lives in a separate
// service and this table is unused.
type Account struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"not null;uniqueIndex:idx_user_currency" json:"user_id"`
	Currency  Currency        `gorm:"size:10;not null;uniqueIndex:idx_user_currency" json:"currency"`
	Balance   decimal.Decimal `gorm:"type:decimal(30,10);not null;default:0" json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName specifies the table name for Account model
func (Account) TableName() string {
	return "accounts"
}
