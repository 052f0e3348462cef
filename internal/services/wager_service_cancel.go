package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"wager-engine/internal/events"
	"wager-engine/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CancelBet reverses a single bet's contribution to the pools and refunds
// the stake. Only the bet's owner may cancel, only while the market is still
// open, and not inside the configured window before the deadline. Uses the
// same (market, currency) lock as PlaceBet so it cannot race a concurrent
// placement on the same pool.
func (s *WagerService) CancelBet(ctx context.Context, betID uuid.UUID, bettorID uint, idempotencyKey string) (decimal.Decimal, error) {
	bet, err := s.GetBet(ctx, betID)
	if err != nil {
		return decimal.Zero, err
	}
	if bet.BettorID != bettorID {
		return decimal.Zero, ErrNotBetOwner
	}

	// Idempotent replay: a cancel that already committed under this key
	// reports the original refund.
	if bet.Status == models.BetStatusCancelled {
		if bet.CancelKey != nil && *bet.CancelKey == idempotencyKey {
			return bet.Amount, nil
		}
		return decimal.Zero, ErrBetNotActive
	}
	if bet.Status != models.BetStatusActive {
		return decimal.Zero, ErrBetNotActive
	}

	market, err := s.checkMarketOpen(ctx, s.db, bet.MarketID)
	if err != nil {
		return decimal.Zero, err
	}
	if time.Until(market.Deadline) <= s.cfg.CancelWindow {
		return decimal.Zero, ErrCancelWindowClosed
	}

	release, err := s.locks.Acquire(ctx, bet.MarketID, bet.Currency, s.cfg.LockWait)
	if err != nil {
		return decimal.Zero, err
	}
	defer release()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Re-read under the lock; the bet may have settled or the market
		// locked while we waited.
		var current models.Bet
		if err := tx.WithContext(ctx).First(&current, "id = ?", betID).Error; err != nil {
			return fmt.Errorf("failed to re-read bet: %w", err)
		}
		if current.Status != models.BetStatusActive {
			return ErrBetNotActive
		}
		if _, err := s.checkMarketOpen(ctx, tx, bet.MarketID); err != nil {
			return err
		}

		pool, err := readPool(ctx, tx, bet.MarketID, bet.Currency)
		if err != nil {
			return err
		}

		// Clamp at zero to defend against concurrent-decrement races; the
		// lock should make this unreachable.
		if bet.Side == models.BetSideYes {
			pool.YesPool = clampZero(pool.YesPool.Sub(bet.Amount))
		} else {
			pool.NoPool = clampZero(pool.NoPool.Sub(bet.Amount))
		}
		pool.TotalPool = clampZero(pool.TotalPool.Sub(bet.Amount))
		pool.UpdatedAt = time.Now()

		if err := tx.Save(pool).Error; err != nil {
			return fmt.Errorf("failed to update pool: %w", err)
		}

		if err := s.ledger.Credit(ctx, tx, bettorID, bet.Currency, bet.Amount); err != nil {
			return err
		}

		key := idempotencyKey
		current.Status = models.BetStatusCancelled
		current.CancelKey = &key
		if err := tx.Save(&current).Error; err != nil {
			return fmt.Errorf("failed to cancel bet: %w", err)
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, ErrPoolCorrupted) {
			haltMarket(ctx, s.db, bet.MarketID)
		}
		return decimal.Zero, err
	}

	s.events.Publish(events.Event{
		Type:     events.TypeBetCancelled,
		MarketID: bet.MarketID,
		BetID:    &betID,
		BettorID: bettorID,
		Currency: bet.Currency,
		Amount:   bet.Amount,
	})

	log.Printf("[WagerService] Bet %s cancelled by bettor %d, refunded %s %s",
		betID, bettorID, bet.Amount, bet.Currency)

	return bet.Amount, nil
}

func clampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
