package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BetSide string

const (
	BetSideYes BetSide = "yes"
	BetSideNo  BetSide = "no"
)

// IsValid reports whether the side is a recognised outcome direction.
func (s BetSide) IsValid() bool {
	return s == BetSideYes || s == BetSideNo
}

// Wins reports whether this side pays out for the given market outcome.
func (s BetSide) Wins(outcome bool) bool {
	if outcome {
		return s == BetSideYes
	}
	return s == BetSideNo
}

type BetStatus string

const (
	BetStatusActive    BetStatus = "ACTIVE"
	BetStatusSettled   BetStatus = "SETTLED"
	BetStatusCancelled BetStatus = "CANCELLED"
	BetStatusRefunded  BetStatus = "REFUNDED" // stake returned because the market was voided
)

// Bet represents a single stake on one side of a market. MultiplierAtCommit
// is fixed when the bet lands and is never recomputed.
type Bet struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	IdempotencyKey     string          `gorm:"size:100;not null;uniqueIndex" json:"idempotency_key"`
	MarketID           uuid.UUID       `gorm:"type:uuid;not null;index" json:"market_id"`
	BettorID           uint            `gorm:"not null;index" json:"bettor_id"`
	Currency           Currency        `gorm:"size:10;not null;index" json:"currency"`
	Amount             decimal.Decimal `gorm:"type:decimal(30,10);not null" json:"amount"`
	Side               BetSide         `gorm:"size:10;not null" json:"side"`
	MultiplierAtCommit decimal.Decimal `gorm:"type:decimal(30,16);not null" json:"multiplier_at_commit"`
	Status             BetStatus       `gorm:"size:20;not null;default:ACTIVE;index" json:"status"`
	CancelKey          *string         `gorm:"size:100" json:"-"`
	CreatedAt          time.Time       `json:"created_at"`
	SettledAt          *time.Time      `json:"settled_at,omitempty"`
}

// TableName specifies the table name for Bet model
func (Bet) TableName() string {
	return "bets"
}
