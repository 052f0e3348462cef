package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MarketState string

const (
	MarketStateOpen     MarketState = "OPEN"
	MarketStateLocked   MarketState = "LOCKED" // settlement in progress
	MarketStateResolved MarketState = "RESOLVED"
	MarketStateVoid     MarketState = "VOID"
	MarketStateHalted   MarketState = "HALTED" // pool corruption detected, operator required
)

// Terminal reports whether no further pool mutation is possible.
func (s MarketState) Terminal() bool {
	return s == MarketStateResolved || s == MarketStateVoid
}

// Market represents a binary-outcome wagering market.
type Market struct {
	ID         uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Title      string           `gorm:"size:500;not null" json:"title"`
	CreatedBy  uint             `gorm:"not null;index" json:"created_by"`
	Deadline   time.Time        `gorm:"not null" json:"deadline"`
	State      MarketState      `gorm:"size:20;not null;default:OPEN;index" json:"state"`
	Outcome    *bool            `json:"outcome,omitempty"`
	FeeRate    *decimal.Decimal `gorm:"type:decimal(10,6)" json:"fee_rate,omitempty"` // captured when settlement starts
	Pools      []MarketPool     `gorm:"foreignKey:MarketID" json:"pools,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	ResolvedAt *time.Time       `json:"resolved_at,omitempty"`
}

// TableName specifies the table name for Market model
func (Market) TableName() string {
	return "markets"
}

// MarketPool holds the staked amounts for one currency of a market.
// Invariant: TotalPool == YesPool + NoPool after every successful mutation.
type MarketPool struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	MarketID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_market_currency" json:"market_id"`
	Currency  Currency        `gorm:"size:10;not null;uniqueIndex:idx_market_currency" json:"currency"`
	YesPool   decimal.Decimal `gorm:"type:decimal(30,10);not null;default:0" json:"yes_pool"`
	NoPool    decimal.Decimal `gorm:"type:decimal(30,10);not null;default:0" json:"no_pool"`
	TotalPool decimal.Decimal `gorm:"type:decimal(30,10);not null;default:0" json:"total_pool"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TableName specifies the table name for MarketPool model
func (MarketPool) TableName() string {
	return "market_pools"
}

// SidePool returns the pool staked on the given side.
func (p *MarketPool) SidePool(side BetSide) decimal.Decimal {
	if side == BetSideYes {
		return p.YesPool
	}
	return p.NoPool
}

// Consistent reports whether the pool totals still add up.
func (p *MarketPool) Consistent() bool {
	return p.TotalPool.Equal(p.YesPool.Add(p.NoPool))
}
