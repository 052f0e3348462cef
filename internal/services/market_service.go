package services

import (
	"context"
	"fmt"
	"time"

	"wager-engine/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MarketService handles market creation and read access.
type MarketService struct {
	db *gorm.DB
}

// NewMarketService creates a new market service
func NewMarketService(db *gorm.DB) *MarketService {
	return &MarketService{db: db}
}

// CreateMarket creates a market in OPEN state with a zero pool row per
// supported currency.
func (s *MarketService) CreateMarket(ctx context.Context, creatorID uint, req *models.CreateMarketRequest) (*models.Market, error) {
	if req.Title == "" {
		return nil, fmt.Errorf("market title is required")
	}
	if !req.Deadline.After(time.Now()) {
		return nil, fmt.Errorf("deadline must be in the future")
	}

	market := &models.Market{
		ID:        uuid.New(),
		Title:     req.Title,
		CreatedBy: creatorID,
		Deadline:  req.Deadline,
		State:     models.MarketStateOpen,
		CreatedAt: time.Now(),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(market).Error; err != nil {
			return fmt.Errorf("failed to create market: %w", err)
		}
		for _, currency := range models.AllCurrencies() {
			pool := &models.MarketPool{
				MarketID: market.ID,
				Currency: currency,
			}
			if err := tx.Create(pool).Error; err != nil {
				return fmt.Errorf("failed to create %s pool: %w", currency, err)
			}
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return market, nil
}

// GetMarket retrieves a market with its pools.
func (s *MarketService) GetMarket(ctx context.Context, marketID uuid.UUID) (*models.Market, error) {
	var market models.Market
	err := s.db.WithContext(ctx).
		Preload("Pools").
		First(&market, "id = ?", marketID).Error

	if err == gorm.ErrRecordNotFound {
		return nil, ErrMarketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}
	return &market, nil
}

// ListMarkets retrieves markets, optionally filtered by state.
func (s *MarketService) ListMarkets(ctx context.Context, state models.MarketState, limit, offset int) ([]models.Market, error) {
	query := s.db.WithContext(ctx).Preload("Pools").Order("created_at DESC")
	if state != "" {
		query = query.Where("state = ?", state)
	}

	var markets []models.Market
	if err := query.Limit(limit).Offset(offset).Find(&markets).Error; err != nil {
		return nil, fmt.Errorf("failed to list markets: %w", err)
	}
	return markets, nil
}

// PreviewMultiplier quotes a prospective bet from a consistent snapshot read.
// No lock is taken; the committed value may differ if the pool moves before
// the bet lands.
func (s *MarketService) PreviewMultiplier(ctx context.Context, marketID uuid.UUID, currency models.Currency, side models.BetSide, amount decimal.Decimal) (*models.MultiplierPreview, error) {
	if !currency.IsValid() {
		return nil, ErrInvalidCurrency
	}
	if !side.IsValid() {
		return nil, ErrInvalidSide
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	var pool models.MarketPool
	err := s.db.WithContext(ctx).
		Where("market_id = ? AND currency = ?", marketID, currency).
		First(&pool).Error

	if err == gorm.ErrRecordNotFound {
		return nil, ErrMarketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pool: %w", err)
	}

	committed := ProjectedMultiplier(pool.TotalPool, pool.SidePool(side), amount)

	return &models.MultiplierPreview{
		MarketID:            marketID,
		Currency:            currency,
		Side:                side,
		Amount:              amount,
		QuotedMultiplier:    QuotedMultiplier(pool.TotalPool, pool.SidePool(side), amount),
		CommittedMultiplier: committed,
		PotentialPayout:     amount.Mul(committed),
	}, nil
}
