package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wager-engine/internal/config"
	"wager-engine/internal/events"
	"wager-engine/internal/ledger"
	"wager-engine/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	// One connection keeps the in-memory DB alive and serializes access.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.Market{},
		&models.MarketPool{},
		&models.Bet{},
		&models.PayoutRecord{},
		&models.Account{},
	)
	if err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

func testConfig() *config.EngineConfig {
	return &config.EngineConfig{
		PlatformFeeRate: dec("0.05"),
		CancelWindow:    time.Hour,
		LockWait:        2 * time.Second,
		RetryInterval:   time.Second,
		Limits: map[models.Currency]config.BetLimits{
			models.CurrencyXP: {Min: dec("1"), Max: dec("100000")},
			models.CurrencyXC: {Min: dec("0.01"), Max: dec("10000")},
		},
	}
}

type testEngine struct {
	db         *gorm.DB
	cfg        *config.EngineConfig
	ledger     ledger.Client
	markets    *MarketService
	wagers     *WagerService
	resolution *ResolutionService
}

func newTestEngine(t *testing.T) *testEngine {
	return newTestEngineWithLedger(t, ledger.NewGormClient())
}

func newTestEngineWithLedger(t *testing.T, lc ledger.Client) *testEngine {
	db := setupTestDB(t)
	cfg := testConfig()
	locks := NewLockTable()
	publisher := events.NewPublisher()
	t.Cleanup(publisher.Close)

	return &testEngine{
		db:         db,
		cfg:        cfg,
		ledger:     lc,
		markets:    NewMarketService(db),
		wagers:     NewWagerService(db, lc, cfg, locks, publisher),
		resolution: NewResolutionService(db, lc, cfg, locks, publisher),
	}
}

func (e *testEngine) createMarket(t *testing.T, deadline time.Time) *models.Market {
	market, err := e.markets.CreateMarket(context.Background(), 1, &models.CreateMarketRequest{
		Title:    "Will it rain tomorrow?",
		Deadline: deadline,
	})
	if err != nil {
		t.Fatalf("failed to create market: %v", err)
	}
	return market
}

func (e *testEngine) fund(t *testing.T, userID uint, currency models.Currency, amount decimal.Decimal) {
	if err := e.ledger.Credit(context.Background(), e.db, userID, currency, amount); err != nil {
		t.Fatalf("failed to fund user %d: %v", userID, err)
	}
}

func (e *testEngine) balance(t *testing.T, userID uint, currency models.Currency) decimal.Decimal {
	balance, err := e.ledger.Balance(context.Background(), e.db, userID, currency)
	if err != nil {
		t.Fatalf("failed to read balance: %v", err)
	}
	return balance
}

func (e *testEngine) pool(t *testing.T, marketID uuid.UUID, currency models.Currency) *models.MarketPool {
	var pool models.MarketPool
	err := e.db.Where("market_id = ? AND currency = ?", marketID, currency).First(&pool).Error
	if err != nil {
		t.Fatalf("failed to read pool: %v", err)
	}
	return &pool
}

func betRequest(marketID uuid.UUID, key string, currency models.Currency, amount string, side models.BetSide) *models.PlaceBetRequest {
	return &models.PlaceBetRequest{
		IdempotencyKey: key,
		MarketID:       marketID.String(),
		Currency:       currency,
		Amount:         dec(amount),
		Side:           side,
	}
}

func TestPlaceBetHappyPath(t *testing.T) {
	eng := newTestEngine(t)
	market := eng.createMarket(t, time.Now().Add(48*time.Hour))
	eng.fund(t, 10, models.CurrencyXP, dec("1000"))

	resp, err := eng.wagers.PlaceBet(context.Background(), 10,
		betRequest(market.ID, "key-1", models.CurrencyXP, "100", models.BetSideYes))
	if err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}

	// First bet on an empty market commits at 1.0.
	if !resp.Multiplier.Equal(dec("1")) {
		t.Errorf("expected multiplier 1, got %s", resp.Multiplier)
	}
	if !resp.PotentialPayout.Equal(dec("100")) {
		t.Errorf("expected potential payout 100, got %s", resp.PotentialPayout)
	}
	if resp.Bet.Status != models.BetStatusActive {
		t.Errorf("expected ACTIVE bet, got %s", resp.Bet.Status)
	}

	if got := eng.balance(t, 10, models.CurrencyXP); !got.Equal(dec("900")) {
		t.Errorf("expected balance 900 after debit, got %s", got)
	}

	pool := eng.pool(t, market.ID, models.CurrencyXP)
	if !pool.YesPool.Equal(dec("100")) || !pool.TotalPool.Equal(dec("100")) {
		t.Errorf("expected yes=100 total=100, got yes=%s total=%s", pool.YesPool, pool.TotalPool)
	}
	if !pool.Consistent() {
		t.Errorf("pool totals inconsistent: total=%s yes=%s no=%s", pool.TotalPool, pool.YesPool, pool.NoPool)
	}
}

func TestPlaceBetSecondSideMultiplier(t *testing.T) {
	eng := newTestEngine(t)
	market := eng.createMarket(t, time.Now().Add(48*time.Hour))
	eng.fund(t, 1, models.CurrencyXP, dec("1000"))
	eng.fund(t, 2, models.CurrencyXP, dec("1000"))

	_, err := eng.wagers.PlaceBet(context.Background(), 1,
		betRequest(market.ID, "a-1", models.CurrencyXP, "100", models.BetSideYes))
	if err != nil {
		t.Fatalf("first bet failed: %v", err)
	}

	resp, err := eng.wagers.PlaceBet(context.Background(), 2,
		betRequest(market.ID, "b-1", models.CurrencyXP, "100", models.BetSideNo))
	if err != nil {
		t.Fatalf("second bet failed: %v", err)
	}

	// (100 + 100) / (0 + 100) = 2.0 on the empty side.
	if !resp.Multiplier.Equal(dec("2")) {
		t.Errorf("expected multiplier 2, got %s", resp.Multiplier)
	}
	if !resp.PotentialPayout.Equal(dec("200")) {
		t.Errorf("expected potential payout 200, got %s", resp.PotentialPayout)
	}
}

func TestPlaceBetValidation(t *testing.T) {
	eng := newTestEngine(t)
	market := eng.createMarket(t, time.Now().Add(48*time.Hour))
	eng.fund(t, 1, models.CurrencyXP, dec("1000"))
	ctx := context.Background()

	_, err := eng.wagers.PlaceBet(ctx, 1,
		betRequest(market.ID, "v-1", models.Currency("DOGE"), "100", models.BetSideYes))
	if !errors.Is(err, ErrInvalidCurrency) {
		t.Errorf("expected ErrInvalidCurrency, got %v", err)
	}

	_, err = eng.wagers.PlaceBet(ctx, 1,
		betRequest(market.ID, "v-2", models.CurrencyXP, "100", models.BetSide("maybe")))
	if !errors.Is(err, ErrInvalidSide) {
		t.Errorf("expected ErrInvalidSide, got %v", err)
	}

	_, err = eng.wagers.PlaceBet(ctx, 1,
		betRequest(market.ID, "v-3", models.CurrencyXP, "0.5", models.BetSideYes))
	if !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount below minimum, got %v", err)
	}

	_, err = eng.wagers.PlaceBet(ctx, 1,
		betRequest(market.ID, "v-4", models.CurrencyXP, "200000", models.BetSideYes))
	if !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount above maximum, got %v", err)
	}

	_, err = eng.wagers.PlaceBet(ctx, 1, &models.PlaceBetRequest{
		IdempotencyKey: "v-5",
		MarketID:       "not-a-uuid",
		Currency:       models.CurrencyXP,
		Amount:         dec("100"),
		Side:           models.BetSideYes,
	})
	if !errors.Is(err, ErrMarketNotFound) {
		t.Errorf("expected ErrMarketNotFound for malformed id, got %v", err)
	}

	_, err = eng.wagers.PlaceBet(ctx, 1,
		betRequest(uuid.New(), "v-6", models.CurrencyXP, "100", models.BetSideYes))
	if !errors.Is(err, ErrMarketNotFound) {
		t.Errorf("expected ErrMarketNotFound for unknown market, got %v", err)
	}

	// Deadline in the past refuses new bets.
	eng.db.Model(&models.Market{}).Where("id = ?", market.ID).
		Update("deadline", time.Now().Add(-time.Minute))
	_, err = eng.wagers.PlaceBet(ctx, 1,
		betRequest(market.ID, "v-7", models.CurrencyXP, "100", models.BetSideYes))
	if !errors.Is(err, ErrDeadlinePassed) {
		t.Errorf("expected ErrDeadlinePassed, got %v", err)
	}

	// Non-open market refuses new bets.
	eng.db.Model(&models.Market{}).Where("id = ?", market.ID).
		Updates(map[string]interface{}{"deadline": time.Now().Add(time.Hour), "state": models.MarketStateResolved})
	_, err = eng.wagers.PlaceBet(ctx, 1,
		betRequest(market.ID, "v-8", models.CurrencyXP, "100", models.BetSideYes))
	if !errors.Is(err, ErrMarketNotOpen) {
		t.Errorf("expected ErrMarketNotOpen, got %v", err)
	}

	eng.db.Model(&models.Market{}).Where("id = ?", market.ID).
		Update("state", models.MarketStateHalted)
	_, err = eng.wagers.PlaceBet(ctx, 1,
		betRequest(market.ID, "v-9", models.CurrencyXP, "100", models.BetSideYes))
	if !errors.Is(err, ErrMarketHalted) {
		t.Errorf("expected ErrMarketHalted, got %v", err)
	}
}

func TestPlaceBetInsufficientFunds(t *testing.T) {
	eng := newTestEngine(t)
	market := eng.createMarket(t, time.Now().Add(48*time.Hour))
	eng.fund(t, 1, models.CurrencyXP, dec("50"))

	_, err := eng.wagers.PlaceBet(context.Background(), 1,
		betRequest(market.ID, "poor-1", models.CurrencyXP, "100", models.BetSideYes))
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// Nothing happened: no bet, no pool movement, no debit.
	var count int64
	eng.db.Model(&models.Bet{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no bets recorded, got %d", count)
	}
	pool := eng.pool(t, market.ID, models.CurrencyXP)
	if !pool.TotalPool.IsZero() {
		t.Errorf("expected untouched pool, got total %s", pool.TotalPool)
	}
	if got := eng.balance(t, 1, models.CurrencyXP); !got.Equal(dec("50")) {
		t.Errorf("expected balance 50, got %s", got)
	}
}

func TestPlaceBetIdempotentReplay(t *testing.T) {
	eng := newTestEngine(t)
	market := eng.createMarket(t, time.Now().Add(48*time.Hour))
	eng.fund(t, 1, models.CurrencyXP, dec("1000"))
	ctx := context.Background()

	req := betRequest(market.ID, "same-key", models.CurrencyXP, "100", models.BetSideYes)
	first, err := eng.wagers.PlaceBet(ctx, 1, req)
	if err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}

	replay, err := eng.wagers.PlaceBet(ctx, 1, req)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if replay.Bet.ID != first.Bet.ID {
		t.Errorf("replay returned different bet: %s vs %s", replay.Bet.ID, first.Bet.ID)
	}
	if !replay.Multiplier.Equal(first.Multiplier) {
		t.Errorf("replay multiplier %s differs from original %s", replay.Multiplier, first.Multiplier)
	}

	// The stake landed exactly once.
	if got := eng.balance(t, 1, models.CurrencyXP); !got.Equal(dec("900")) {
		t.Errorf("expected balance 900, got %s", got)
	}
	pool := eng.pool(t, market.ID, models.CurrencyXP)
	if !pool.TotalPool.Equal(dec("100")) {
		t.Errorf("expected pool total 100, got %s", pool.TotalPool)
	}

	// Another bettor reusing the key is a conflict, not a replay.
	eng.fund(t, 2, models.CurrencyXP, dec("1000"))
	_, err = eng.wagers.PlaceBet(ctx, 2, req)
	if !errors.Is(err, ErrIdempotencyConflict) {
		t.Errorf("expected ErrIdempotencyConflict, got %v", err)
	}
}

func TestPlaceBetConcurrent(t *testing.T) {
	eng := newTestEngine(t)
	market := eng.createMarket(t, time.Now().Add(48*time.Hour))

	const bettors = 20
	for i := 1; i <= bettors; i++ {
		eng.fund(t, uint(i), models.CurrencyXP, dec("100"))
	}

	var wg sync.WaitGroup
	errCh := make(chan error, bettors)
	for i := 1; i <= bettors; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			side := models.BetSideYes
			if n%2 == 0 {
				side = models.BetSideNo
			}
			_, err := eng.wagers.PlaceBet(context.Background(), uint(n),
				betRequest(market.ID, fmt.Sprintf("conc-%d", n), models.CurrencyXP, "10", side))
			if err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("concurrent PlaceBet failed: %v", err)
	}

	var count int64
	eng.db.Model(&models.Bet{}).Where("market_id = ?", market.ID).Count(&count)
	if count != bettors {
		t.Errorf("expected %d bets, got %d", bettors, count)
	}

	pool := eng.pool(t, market.ID, models.CurrencyXP)
	if !pool.TotalPool.Equal(dec("200")) {
		t.Errorf("expected pool total 200, got %s", pool.TotalPool)
	}
	if !pool.YesPool.Equal(dec("100")) || !pool.NoPool.Equal(dec("100")) {
		t.Errorf("expected yes=100 no=100, got yes=%s no=%s", pool.YesPool, pool.NoPool)
	}
	if !pool.Consistent() {
		t.Errorf("pool totals inconsistent after concurrent bets")
	}
}

func TestPlaceBetHaltsOnCorruptPool(t *testing.T) {
	eng := newTestEngine(t)
	market := eng.createMarket(t, time.Now().Add(48*time.Hour))
	eng.fund(t, 1, models.CurrencyXP, dec("1000"))

	// Break the total == yes + no invariant behind the engine's back.
	eng.db.Model(&models.MarketPool{}).
		Where("market_id = ? AND currency = ?", market.ID, models.CurrencyXP).
		Update("total_pool", dec("999"))

	_, err := eng.wagers.PlaceBet(context.Background(), 1,
		betRequest(market.ID, "corrupt-1", models.CurrencyXP, "100", models.BetSideYes))
	if !errors.Is(err, ErrPoolCorrupted) {
		t.Fatalf("expected ErrPoolCorrupted, got %v", err)
	}

	var state models.Market
	eng.db.First(&state, "id = ?", market.ID)
	if state.State != models.MarketStateHalted {
		t.Errorf("expected HALTED market, got %s", state.State)
	}
	if got := eng.balance(t, 1, models.CurrencyXP); !got.Equal(dec("1000")) {
		t.Errorf("expected stake rolled back, balance %s", got)
	}
}

func TestCancelBetRestoresState(t *testing.T) {
	eng := newTestEngine(t)
	market := eng.createMarket(t, time.Now().Add(48*time.Hour))
	eng.fund(t, 1, models.CurrencyXP, dec("1000"))
	ctx := context.Background()

	resp, err := eng.wagers.PlaceBet(ctx, 1,
		betRequest(market.ID, "place-1", models.CurrencyXP, "100", models.BetSideYes))
	if err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}

	refunded, err := eng.wagers.CancelBet(ctx, resp.Bet.ID, 1, "cancel-1")
	if err != nil {
		t.Fatalf("CancelBet failed: %v", err)
	}
	if !refunded.Equal(dec("100")) {
		t.Errorf("expected refund 100, got %s", refunded)
	}

	if got := eng.balance(t, 1, models.CurrencyXP); !got.Equal(dec("1000")) {
		t.Errorf("expected balance restored to 1000, got %s", got)
	}
	pool := eng.pool(t, market.ID, models.CurrencyXP)
	if !pool.TotalPool.IsZero() || !pool.YesPool.IsZero() {
		t.Errorf("expected empty pool after cancel, got total=%s yes=%s", pool.TotalPool, pool.YesPool)
	}

	var bet models.Bet
	eng.db.First(&bet, "id = ?", resp.Bet.ID)
	if bet.Status != models.BetStatusCancelled {
		t.Errorf("expected CANCELLED bet, got %s", bet.Status)
	}

	// Replaying the same cancel key reports the original refund.
	refunded, err = eng.wagers.CancelBet(ctx, resp.Bet.ID, 1, "cancel-1")
	if err != nil {
		t.Fatalf("cancel replay failed: %v", err)
	}
	if !refunded.Equal(dec("100")) {
		t.Errorf("expected replayed refund 100, got %s", refunded)
	}

	// A different key against a cancelled bet is rejected.
	_, err = eng.wagers.CancelBet(ctx, resp.Bet.ID, 1, "cancel-2")
	if !errors.Is(err, ErrBetNotActive) {
		t.Errorf("expected ErrBetNotActive, got %v", err)
	}
}

func TestCancelBetWindowClosed(t *testing.T) {
	eng := newTestEngine(t)
	// Deadline closer than the one hour cancel window.
	market := eng.createMarket(t, time.Now().Add(30*time.Minute))
	eng.fund(t, 1, models.CurrencyXP, dec("1000"))
	ctx := context.Background()

	resp, err := eng.wagers.PlaceBet(ctx, 1,
		betRequest(market.ID, "late-1", models.CurrencyXP, "100", models.BetSideYes))
	if err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}

	_, err = eng.wagers.CancelBet(ctx, resp.Bet.ID, 1, "late-cancel")
	if !errors.Is(err, ErrCancelWindowClosed) {
		t.Errorf("expected ErrCancelWindowClosed, got %v", err)
	}

	var bet models.Bet
	eng.db.First(&bet, "id = ?", resp.Bet.ID)
	if bet.Status != models.BetStatusActive {
		t.Errorf("expected bet still ACTIVE, got %s", bet.Status)
	}
}

func TestCancelBetNotOwner(t *testing.T) {
	eng := newTestEngine(t)
	market := eng.createMarket(t, time.Now().Add(48*time.Hour))
	eng.fund(t, 1, models.CurrencyXP, dec("1000"))
	ctx := context.Background()

	resp, err := eng.wagers.PlaceBet(ctx, 1,
		betRequest(market.ID, "own-1", models.CurrencyXP, "100", models.BetSideYes))
	if err != nil {
		t.Fatalf("PlaceBet failed: %v", err)
	}

	_, err = eng.wagers.CancelBet(ctx, resp.Bet.ID, 2, "steal-1")
	if !errors.Is(err, ErrNotBetOwner) {
		t.Errorf("expected ErrNotBetOwner, got %v", err)
	}
}
