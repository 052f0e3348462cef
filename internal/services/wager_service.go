package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"wager-engine/internal/config"
	"wager-engine/internal/events"
	"wager-engine/internal/ledger"
	"wager-engine/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WagerService orchestrates the atomic place-bet transaction: validate, lock
// the (market, currency) unit, debit the stake, update pools and record the
// bet with its captured multiplier.
type WagerService struct {
	db     *gorm.DB
	ledger ledger.Client
	cfg    *config.EngineConfig
	locks  *LockTable
	events *events.Publisher
}

// NewWagerService creates a new wager service. The lock table must be shared
// with the resolution service so settlement cannot interleave with placement.
func NewWagerService(db *gorm.DB, ledgerClient ledger.Client, cfg *config.EngineConfig, locks *LockTable, publisher *events.Publisher) *WagerService {
	return &WagerService{
		db:     db,
		ledger: ledgerClient,
		cfg:    cfg,
		locks:  locks,
		events: publisher,
	}
}

// PlaceBet places a stake on one side of a market. The whole operation is
// all-or-nothing: either the balance is debited, the pool incremented and the
// bet recorded, or nothing happened. Retries with the same idempotency key
// return the original bet.
func (s *WagerService) PlaceBet(ctx context.Context, bettorID uint, req *models.PlaceBetRequest) (*models.PlaceBetResponse, error) {
	if !req.Currency.IsValid() {
		return nil, ErrInvalidCurrency
	}
	if !req.Side.IsValid() {
		return nil, ErrInvalidSide
	}
	limits, ok := s.cfg.Limits[req.Currency]
	if !ok || !req.Amount.IsPositive() ||
		req.Amount.LessThan(limits.Min) || req.Amount.GreaterThan(limits.Max) {
		return nil, ErrInvalidAmount
	}

	marketID, err := uuid.Parse(req.MarketID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid market id", ErrMarketNotFound)
	}

	// Idempotent replay: a key we have already committed returns the
	// original result, no matter how often the client retries.
	if resp, err := s.replayBet(ctx, bettorID, req.IdempotencyKey); resp != nil || err != nil {
		return resp, err
	}

	// Precheck outside the lock so obviously-broken requests never contend.
	if _, err := s.checkMarketOpen(ctx, s.db, marketID); err != nil {
		return nil, err
	}

	balance, err := s.ledger.Balance(ctx, s.db, bettorID, req.Currency)
	if err != nil {
		return nil, err
	}
	if balance.LessThan(req.Amount) {
		return nil, ledger.ErrInsufficientFunds
	}

	release, err := s.locks.Acquire(ctx, marketID, req.Currency, s.cfg.LockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	var resp *models.PlaceBetResponse
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Re-check state under the lock; the market may have locked or the
		// deadline passed while we waited.
		if _, err := s.checkMarketOpen(ctx, tx, marketID); err != nil {
			return err
		}

		pool, err := readPool(ctx, tx, marketID, req.Currency)
		if err != nil {
			return err
		}

		multiplier := ProjectedMultiplier(pool.TotalPool, pool.SidePool(req.Side), req.Amount)

		// Debit before mutating the pool. The balance may have moved since
		// the precheck; a failed debit aborts with no pool mutation.
		if err := s.ledger.Debit(ctx, tx, bettorID, req.Currency, req.Amount); err != nil {
			return err
		}

		if req.Side == models.BetSideYes {
			pool.YesPool = pool.YesPool.Add(req.Amount)
		} else {
			pool.NoPool = pool.NoPool.Add(req.Amount)
		}
		pool.TotalPool = pool.TotalPool.Add(req.Amount)
		pool.UpdatedAt = time.Now()

		if err := tx.Save(pool).Error; err != nil {
			return fmt.Errorf("failed to update pool: %w", err)
		}

		bet := &models.Bet{
			ID:                 uuid.New(),
			IdempotencyKey:     req.IdempotencyKey,
			MarketID:           marketID,
			BettorID:           bettorID,
			Currency:           req.Currency,
			Amount:             req.Amount,
			Side:               req.Side,
			MultiplierAtCommit: multiplier,
			Status:             models.BetStatusActive,
			CreatedAt:          time.Now(),
		}
		if err := tx.Create(bet).Error; err != nil {
			return fmt.Errorf("failed to record bet: %w", err)
		}

		resp = &models.PlaceBetResponse{
			Bet:             bet,
			Multiplier:      multiplier,
			PotentialPayout: req.Amount.Mul(multiplier),
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, ErrPoolCorrupted) {
			haltMarket(ctx, s.db, marketID)
		}
		return nil, err
	}

	betID := resp.Bet.ID
	s.events.Publish(events.Event{
		Type:     events.TypeBetPlaced,
		MarketID: marketID,
		BetID:    &betID,
		BettorID: bettorID,
		Currency: req.Currency,
		Amount:   req.Amount,
	})

	log.Printf("[WagerService] Bet %s placed: market=%s bettor=%d %s %s on %s, multiplier=%s",
		betID, marketID, bettorID, req.Amount, req.Currency, req.Side, resp.Multiplier)

	return resp, nil
}

// replayBet returns the stored result for an idempotency key that already
// committed, nil when the key is fresh.
func (s *WagerService) replayBet(ctx context.Context, bettorID uint, key string) (*models.PlaceBetResponse, error) {
	var bet models.Bet
	err := s.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		First(&bet).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	if bet.BettorID != bettorID {
		return nil, ErrIdempotencyConflict
	}

	return &models.PlaceBetResponse{
		Bet:             &bet,
		Multiplier:      bet.MultiplierAtCommit,
		PotentialPayout: bet.Amount.Mul(bet.MultiplierAtCommit),
	}, nil
}

// checkMarketOpen loads the market and rejects anything that cannot accept a
// bet right now.
func (s *WagerService) checkMarketOpen(ctx context.Context, db *gorm.DB, marketID uuid.UUID) (*models.Market, error) {
	var market models.Market
	err := db.WithContext(ctx).First(&market, "id = ?", marketID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrMarketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}

	if market.State == models.MarketStateHalted {
		return nil, ErrMarketHalted
	}
	if market.State != models.MarketStateOpen {
		return nil, ErrMarketNotOpen
	}
	if !time.Now().Before(market.Deadline) {
		return nil, ErrDeadlinePassed
	}
	return &market, nil
}

// readPool reads the pool row under the caller's lock and verifies the
// total == yes + no invariant. A violation is a bug, not something to
// auto-correct: it is surfaced loudly as ErrPoolCorrupted and the caller is
// expected to halt the market once its transaction has rolled back.
func readPool(ctx context.Context, tx *gorm.DB, marketID uuid.UUID, currency models.Currency) (*models.MarketPool, error) {
	var pool models.MarketPool
	err := tx.WithContext(ctx).
		Where("market_id = ? AND currency = ?", marketID, currency).
		First(&pool).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read pool: %w", err)
	}

	if !pool.Consistent() {
		log.Printf("[Engine] INVARIANT VIOLATION: market=%s currency=%s total=%s yes=%s no=%s",
			marketID, pool.Currency, pool.TotalPool, pool.YesPool, pool.NoPool)
		return nil, ErrPoolCorrupted
	}
	return &pool, nil
}

// haltMarket moves a market with corrupted pools to HALTED so every later
// mutation is refused until an operator intervenes. Must run outside the
// failed transaction so the halt is not rolled back with it.
func haltMarket(ctx context.Context, db *gorm.DB, marketID uuid.UUID) {
	log.Printf("[Engine] Halting market %s after invariant violation", marketID)
	if err := db.WithContext(ctx).Model(&models.Market{}).
		Where("id = ?", marketID).
		Update("state", models.MarketStateHalted).Error; err != nil {
		log.Printf("[Engine] Error halting market %s: %v", marketID, err)
	}
}

// GetBet retrieves a bet by ID.
func (s *WagerService) GetBet(ctx context.Context, betID uuid.UUID) (*models.Bet, error) {
	var bet models.Bet
	err := s.db.WithContext(ctx).First(&bet, "id = ?", betID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrBetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bet: %w", err)
	}
	return &bet, nil
}

// GetBettorBets retrieves a bettor's bets with pagination.
func (s *WagerService) GetBettorBets(ctx context.Context, bettorID uint, limit, offset int) ([]models.Bet, error) {
	var bets []models.Bet
	err := s.db.WithContext(ctx).
		Where("bettor_id = ?", bettorID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&bets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get bets: %w", err)
	}
	return bets, nil
}

// GetMarketBets retrieves a market's bets with pagination.
func (s *WagerService) GetMarketBets(ctx context.Context, marketID uuid.UUID, limit, offset int) ([]models.Bet, error) {
	var bets []models.Bet
	err := s.db.WithContext(ctx).
		Where("market_id = ?", marketID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&bets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get market bets: %w", err)
	}
	return bets, nil
}
