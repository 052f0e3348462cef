package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"wager-engine/internal/config"
	"wager-engine/internal/events"
	"wager-engine/internal/ledger"
	"wager-engine/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ResolutionService orchestrates market settlement: it locks the market,
// records the outcome, credits winners with the fee deducted and marks the
// market terminal. A failed credit leaves the bet active and the market
// LOCKED so settlement can be resumed; it is never silently lost.
type ResolutionService struct {
	db     *gorm.DB
	ledger ledger.Client
	cfg    *config.EngineConfig
	locks  *LockTable
	events *events.Publisher
}

// NewResolutionService creates a new resolution service. The lock table must
// be the one used by the wager service.
func NewResolutionService(db *gorm.DB, ledgerClient ledger.Client, cfg *config.EngineConfig, locks *LockTable, publisher *events.Publisher) *ResolutionService {
	return &ResolutionService{
		db:     db,
		ledger: ledgerClient,
		cfg:    cfg,
		locks:  locks,
		events: publisher,
	}
}

// Resolve settles a market with the given outcome. Safe against duplicate
// invocation: a RESOLVED market rejects with ErrAlreadyResolved, and a
// re-entry on a LOCKED market with the same outcome resumes settling
// whatever bets are still pending.
func (s *ResolutionService) Resolve(ctx context.Context, marketID uuid.UUID, outcome bool, feeRate decimal.Decimal) (*models.ResolutionResult, error) {
	if feeRate.IsNegative() || feeRate.GreaterThanOrEqual(one) {
		return nil, ErrInvalidFeeRate
	}

	release, err := s.locks.AcquireMarket(ctx, marketID, s.cfg.LockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	market, err := s.lockForSettlement(ctx, marketID, &outcome, feeRate)
	if err != nil {
		return nil, err
	}
	if market.FeeRate != nil {
		feeRate = *market.FeeRate
	}

	result := &models.ResolutionResult{MarketID: marketID, Outcome: market.Outcome}

	var pools []models.MarketPool
	if err := s.db.WithContext(ctx).Where("market_id = ?", marketID).Find(&pools).Error; err != nil {
		return nil, fmt.Errorf("failed to read pools: %w", err)
	}

	for i := range pools {
		pool := &pools[i]
		if pool.TotalPool.IsZero() {
			continue
		}
		if !pool.Consistent() {
			log.Printf("[Resolution] INVARIANT VIOLATION: market=%s currency=%s total=%s yes=%s no=%s",
				marketID, pool.Currency, pool.TotalPool, pool.YesPool, pool.NoPool)
			haltMarket(ctx, s.db, marketID)
			return nil, ErrPoolCorrupted
		}

		settlement, pending, err := s.settleCurrency(ctx, market, pool, outcome, feeRate)
		if err != nil {
			return nil, err
		}
		result.Settlements = append(result.Settlements, settlement.CurrencySettlement)
		result.SettledBets += settlement.settled
		result.PendingBets += pending
	}

	if result.PendingBets > 0 {
		log.Printf("[Resolution] Market %s settlement incomplete: %d credits pending retry",
			marketID, result.PendingBets)
		return result, ErrSettlementIncomplete
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Model(&models.Market{}).
		Where("id = ? AND state = ?", marketID, models.MarketStateLocked).
		Updates(map[string]interface{}{
			"state":       models.MarketStateResolved,
			"resolved_at": now,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to mark market resolved: %w", err)
	}

	s.events.Publish(events.Event{
		Type:     events.TypeMarketResolved,
		MarketID: marketID,
		Outcome:  &outcome,
	})

	log.Printf("[Resolution] Market %s resolved: outcome=%t, %d bets settled",
		marketID, outcome, result.SettledBets)

	return result, nil
}

// lockForSettlement performs the OPEN -> LOCKED transition, capturing the
// outcome and fee rate so a resumed run settles with the same parameters.
// Caller must hold every currency lock of the market.
func (s *ResolutionService) lockForSettlement(ctx context.Context, marketID uuid.UUID, outcome *bool, feeRate decimal.Decimal) (*models.Market, error) {
	var market models.Market
	err := s.db.WithContext(ctx).First(&market, "id = ?", marketID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrMarketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}

	switch market.State {
	case models.MarketStateResolved, models.MarketStateVoid:
		return nil, ErrAlreadyResolved
	case models.MarketStateHalted:
		return nil, ErrMarketHalted
	case models.MarketStateLocked:
		// A previous run crashed or left credits pending. Resuming is only
		// legal with the same intent it started with.
		if (market.Outcome == nil) != (outcome == nil) {
			return nil, ErrResolutionInProgress
		}
		if outcome != nil && *market.Outcome != *outcome {
			return nil, ErrOutcomeMismatch
		}
		return &market, nil
	}

	updates := map[string]interface{}{
		"state":    models.MarketStateLocked,
		"fee_rate": feeRate,
	}
	if outcome != nil {
		updates["outcome"] = *outcome
	}

	res := s.db.WithContext(ctx).Model(&models.Market{}).
		Where("id = ? AND state = ?", marketID, models.MarketStateOpen).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to lock market: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Someone else won the transition between our read and the update.
		return nil, ErrResolutionInProgress
	}

	market.State = models.MarketStateLocked
	market.Outcome = outcome
	market.FeeRate = &feeRate
	return &market, nil
}

type currencySettlementTally struct {
	models.CurrencySettlement
	settled int
}

// settleCurrency settles every still-active bet in one currency. Winners are
// paid amount * multiplier_at_commit, scaled down pro rata if the aggregate
// gross would exceed the pot, so the no-over-payout bound holds regardless of
// the order bets arrived in. Each bet settles in its own transaction; a
// failed credit leaves that bet active for retry and does not stop the rest.
func (s *ResolutionService) settleCurrency(ctx context.Context, market *models.Market, pool *models.MarketPool, outcome bool, feeRate decimal.Decimal) (*currencySettlementTally, int, error) {
	var bets []models.Bet
	err := s.db.WithContext(ctx).
		Where("market_id = ? AND currency = ? AND status IN ?",
			market.ID, pool.Currency,
			[]models.BetStatus{models.BetStatusActive, models.BetStatusSettled}).
		Order("created_at ASC").
		Find(&bets).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load bets: %w", err)
	}

	// The scale factor must be deterministic across resumed runs, so it is
	// computed over every winning bet regardless of settlement status:
	// amounts and committed multipliers are immutable, and the pot is frozen
	// once the market locks.
	grossSum := decimal.Zero
	for _, bet := range bets {
		if bet.Side.Wins(outcome) {
			grossSum = grossSum.Add(bet.Amount.Mul(bet.MultiplierAtCommit))
		}
	}
	scale := one
	if grossSum.GreaterThan(pool.TotalPool) {
		scale = pool.TotalPool.Div(grossSum).Truncate(12)
	}

	tally := &currencySettlementTally{
		CurrencySettlement: models.CurrencySettlement{
			Currency: pool.Currency,
			TotalPot: pool.TotalPool,
		},
	}
	pending := 0

	for i := range bets {
		bet := &bets[i]
		if bet.Status != models.BetStatusActive {
			continue
		}

		paid, fee, err := s.settleBet(ctx, bet, outcome, feeRate, scale)
		if err != nil {
			log.Printf("[Resolution] Error settling bet %s (bettor %d): %v; left active for retry",
				bet.ID, bet.BettorID, err)
			pending++
			continue
		}

		tally.TotalPaid = tally.TotalPaid.Add(paid)
		tally.TotalFees = tally.TotalFees.Add(fee)
		tally.settled++
	}

	return tally, pending, nil
}

// settleBet credits a single bet's payout, writes its payout record and marks
// it settled, all in one transaction so a failure leaves the bet untouched.
func (s *ResolutionService) settleBet(ctx context.Context, bet *models.Bet, outcome bool, feeRate, scale decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	netPayout := decimal.Zero
	fee := decimal.Zero

	if bet.Side.Wins(outcome) {
		gross := bet.Amount.Mul(bet.MultiplierAtCommit).Mul(scale).Truncate(10)
		fee = gross.Mul(feeRate).Truncate(10)
		netPayout = gross.Sub(fee)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if netPayout.IsPositive() {
			if err := s.ledger.Credit(ctx, tx, bet.BettorID, bet.Currency, netPayout); err != nil {
				return err
			}
		}

		record := &models.PayoutRecord{
			ID:          uuid.New(),
			BetID:       bet.ID,
			MarketID:    bet.MarketID,
			BettorID:    bet.BettorID,
			Currency:    bet.Currency,
			AmountPaid:  netPayout,
			FeeDeducted: fee,
			CreatedAt:   time.Now(),
		}
		if err := tx.Create(record).Error; err != nil {
			return fmt.Errorf("failed to write payout record: %w", err)
		}

		now := time.Now()
		res := tx.Model(&models.Bet{}).
			Where("id = ? AND status = ?", bet.ID, models.BetStatusActive).
			Updates(map[string]interface{}{
				"status":     models.BetStatusSettled,
				"settled_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to mark bet settled: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("bet %s changed status during settlement", bet.ID)
		}
		return nil
	})

	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return netPayout, fee, nil
}

// Void administratively voids a market: every active bet is refunded in full
// and the market ends with no winners. Allowed while the market is OPEN, or
// LOCKED by a previous void run that is being resumed.
func (s *ResolutionService) Void(ctx context.Context, marketID uuid.UUID) (*models.ResolutionResult, error) {
	release, err := s.locks.AcquireMarket(ctx, marketID, s.cfg.LockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	market, err := s.lockForSettlement(ctx, marketID, nil, decimal.Zero)
	if err != nil {
		return nil, err
	}

	result := &models.ResolutionResult{MarketID: marketID}

	var bets []models.Bet
	err = s.db.WithContext(ctx).
		Where("market_id = ? AND status = ?", market.ID, models.BetStatusActive).
		Find(&bets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load bets: %w", err)
	}

	for i := range bets {
		bet := &bets[i]
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.ledger.Credit(ctx, tx, bet.BettorID, bet.Currency, bet.Amount); err != nil {
				return err
			}
			now := time.Now()
			res := tx.Model(&models.Bet{}).
				Where("id = ? AND status = ?", bet.ID, models.BetStatusActive).
				Updates(map[string]interface{}{
					"status":     models.BetStatusRefunded,
					"settled_at": now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("bet %s changed status during void", bet.ID)
			}
			return nil
		})
		if err != nil {
			log.Printf("[Resolution] Error refunding bet %s: %v; left active for retry", bet.ID, err)
			result.PendingBets++
			continue
		}
		result.SettledBets++
	}

	if result.PendingBets > 0 {
		return result, ErrSettlementIncomplete
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Model(&models.Market{}).
		Where("id = ? AND state = ?", marketID, models.MarketStateLocked).
		Updates(map[string]interface{}{
			"state":       models.MarketStateVoid,
			"resolved_at": now,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to mark market void: %w", err)
	}

	s.events.Publish(events.Event{
		Type:     events.TypeMarketVoided,
		MarketID: marketID,
	})

	log.Printf("[Resolution] Market %s voided, %d bets refunded", marketID, result.SettledBets)
	return result, nil
}

// ResumePending retries settlement for every market stuck in LOCKED state.
// Invoked periodically by the settlement retry job.
func (s *ResolutionService) ResumePending(ctx context.Context) {
	var markets []models.Market
	err := s.db.WithContext(ctx).
		Where("state = ?", models.MarketStateLocked).
		Find(&markets).Error
	if err != nil {
		log.Printf("[Resolution] Error listing locked markets: %v", err)
		return
	}

	for i := range markets {
		market := &markets[i]
		if market.Outcome == nil {
			if _, err := s.Void(ctx, market.ID); err != nil {
				log.Printf("[Resolution] Retry void of market %s: %v", market.ID, err)
			}
			continue
		}
		feeRate := s.cfg.PlatformFeeRate
		if market.FeeRate != nil {
			feeRate = *market.FeeRate
		}
		if _, err := s.Resolve(ctx, market.ID, *market.Outcome, feeRate); err != nil {
			log.Printf("[Resolution] Retry settlement of market %s: %v", market.ID, err)
		}
	}
}
