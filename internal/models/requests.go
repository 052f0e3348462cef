package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateMarketRequest is the payload for creating a new market.
type CreateMarketRequest struct {
	Title    string    `json:"title" binding:"required"`
	Deadline time.Time `json:"deadline" binding:"required"`
}

// PlaceBetRequest is the payload for placing a bet. The idempotency key is
// client-supplied so a retried request lands at most once.
type PlaceBetRequest struct {
	IdempotencyKey string          `json:"idempotency_key" binding:"required"`
	MarketID       string          `json:"market_id" binding:"required"`
	Currency       Currency        `json:"currency" binding:"required"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	Side           BetSide         `json:"side" binding:"required"`
}

// PlaceBetResponse echoes the committed bet together with the multiplier the
// bettor locked in and the payout it projects to.
type PlaceBetResponse struct {
	Bet             *Bet            `json:"bet"`
	Multiplier      decimal.Decimal `json:"multiplier"`
	PotentialPayout decimal.Decimal `json:"potential_payout"`
}

// CancelBetRequest is the payload for cancelling a bet.
type CancelBetRequest struct {
	IdempotencyKey string `json:"idempotency_key" binding:"required"`
}

// CancelBetResponse reports the refunded stake.
type CancelBetResponse struct {
	BetID          uuid.UUID       `json:"bet_id"`
	RefundedAmount decimal.Decimal `json:"refunded_amount"`
}

// DepositRequest credits a user's account. Admin only.
type DepositRequest struct {
	UserID   uint            `json:"user_id" binding:"required"`
	Currency Currency        `json:"currency" binding:"required"`
	Amount   decimal.Decimal `json:"amount" binding:"required"`
}

// ResolveMarketRequest is the payload for resolving a market.
type ResolveMarketRequest struct {
	Outcome *bool            `json:"outcome" binding:"required"`
	FeeRate *decimal.Decimal `json:"fee_rate,omitempty"`
}

// MultiplierPreview quotes a prospective bet without taking any lock. The
// quoted multiplier is the display value (first-mover placeholder when the
// opposite side is empty); the committed multiplier is the projected ratio
// that would actually be persisted.
type MultiplierPreview struct {
	MarketID            uuid.UUID       `json:"market_id"`
	Currency            Currency        `json:"currency"`
	Side                BetSide         `json:"side"`
	Amount              decimal.Decimal `json:"amount"`
	QuotedMultiplier    decimal.Decimal `json:"quoted_multiplier"`
	CommittedMultiplier decimal.Decimal `json:"committed_multiplier"`
	PotentialPayout     decimal.Decimal `json:"potential_payout"`
}

// CurrencySettlement aggregates one currency's side of a resolution.
type CurrencySettlement struct {
	Currency  Currency        `json:"currency"`
	TotalPot  decimal.Decimal `json:"total_pot"`
	TotalPaid decimal.Decimal `json:"total_paid"`
	TotalFees decimal.Decimal `json:"total_fees"`
}

// ResolutionResult reports the outcome of a Resolve or Void pass. PendingBets
// counts bets whose credit failed and remain queued for retry; the market
// stays LOCKED until it reaches zero.
type ResolutionResult struct {
	MarketID    uuid.UUID            `json:"market_id"`
	Outcome     *bool                `json:"outcome,omitempty"`
	Settlements []CurrencySettlement `json:"settlements"`
	SettledBets int                  `json:"settled_bets"`
	PendingBets int                  `json:"pending_bets"`
}
