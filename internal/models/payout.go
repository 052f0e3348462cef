package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PayoutRecord is the write-once settlement outcome for a single bet. Losing
// bets get a record with a zero amount so that every settled bet is
// accounted for.
type PayoutRecord struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	BetID       uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex" json:"bet_id"`
	MarketID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"market_id"`
	BettorID    uint            `gorm:"not null;index" json:"bettor_id"`
	Currency    Currency        `gorm:"size:10;not null" json:"currency"`
	AmountPaid  decimal.Decimal `gorm:"type:decimal(30,10);not null" json:"amount_paid"`
	FeeDeducted decimal.Decimal `gorm:"type:decimal(30,10);not null" json:"fee_deducted"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TableName specifies the table name for PayoutRecord model
func (PayoutRecord) TableName() string {
	return "payout_records"
}
