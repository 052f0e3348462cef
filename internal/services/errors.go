package services

import "errors"

// Validation errors: rejected before any lock is taken, caller can retry with
// corrected input.
var (
	ErrInvalidAmount   = errors.New("bet amount must be positive and within currency limits")
	ErrInvalidCurrency = errors.New("unsupported currency")
	ErrInvalidSide     = errors.New("side must be yes or no")
	ErrInvalidFeeRate  = errors.New("fee rate must be in [0, 1)")
	ErrMarketNotFound  = errors.New("market not found")
	ErrBetNotFound     = errors.New("bet not found")
	ErrDeadlinePassed  = errors.New("market deadline has passed")
)

// Conflict errors: the operation raced with another state change; the caller
// decides whether to re-check and retry or abandon.
var (
	ErrMarketNotOpen        = errors.New("market is not open")
	ErrAlreadyResolved      = errors.New("market already resolved")
	ErrResolutionInProgress = errors.New("resolution already in progress")
	ErrOutcomeMismatch      = errors.New("outcome differs from the one settlement started with")
	ErrNotBetOwner          = errors.New("bet belongs to another bettor")
	ErrBetNotActive         = errors.New("bet is not active")
	ErrCancelWindowClosed   = errors.New("cancellation window has closed")
	ErrIdempotencyConflict  = errors.New("idempotency key already used by another request")
)

// Transient errors: safe to retry, no partial state was left behind.
var (
	ErrLockTimeout          = errors.New("could not acquire pool lock in time")
	ErrSettlementIncomplete = errors.New("settlement incomplete, some credits pending retry")
)

// Fatal errors: an invariant was violated. The market is halted and requires
// operator intervention; these must never be swallowed.
var (
	ErrPoolCorrupted = errors.New("pool totals are inconsistent")
	ErrMarketHalted  = errors.New("market is halted pending operator intervention")
)
