package handlers

import (
	"net/http"

	"wager-engine/internal/auth"
	"wager-engine/internal/models"
	"wager-engine/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MarketHandler struct {
	markets    *services.MarketService
	resolution *services.ResolutionService
	defaultFee decimal.Decimal
}

func NewMarketHandler(markets *services.MarketService, resolution *services.ResolutionService, defaultFee decimal.Decimal) *MarketHandler {
	return &MarketHandler{
		markets:    markets,
		resolution: resolution,
		defaultFee: defaultFee,
	}
}

// CreateMarket creates a new market
// POST /api/markets
func (h *MarketHandler) CreateMarket(c *gin.Context) {
	creatorID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req models.CreateMarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	market, err := h.markets.CreateMarket(c.Request.Context(), creatorID, &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, market)
}

// GetMarkets lists markets, optionally filtered by state
// GET /api/markets?state=OPEN
func (h *MarketHandler) GetMarkets(c *gin.Context) {
	limit, offset := parsePagination(c)
	state := models.MarketState(c.Query("state"))

	markets, err := h.markets.ListMarkets(c.Request.Context(), state, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get markets"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"markets": markets,
		"total":   len(markets),
	})
}

// GetMarketByID retrieves a market with its pools
// GET /api/markets/:id
func (h *MarketHandler) GetMarketByID(c *gin.Context) {
	marketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid market id"})
		return
	}

	market, err := h.markets.GetMarket(c.Request.Context(), marketID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, market)
}

// GetMultiplierPreview quotes a prospective bet without placing it
// GET /api/markets/:id/preview?currency=XP&side=yes&amount=100
func (h *MarketHandler) GetMultiplierPreview(c *gin.Context) {
	marketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid market id"})
		return
	}

	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	preview, err := h.markets.PreviewMultiplier(
		c.Request.Context(),
		marketID,
		models.Currency(c.Query("currency")),
		models.BetSide(c.Query("side")),
		amount,
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, preview)
}

// ResolveMarket settles a market with an outcome
// POST /api/markets/:id/resolve
func (h *MarketHandler) ResolveMarket(c *gin.Context) {
	marketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid market id"})
		return
	}

	var req models.ResolveMarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	feeRate := h.defaultFee
	if req.FeeRate != nil {
		feeRate = *req.FeeRate
	}

	result, err := h.resolution.Resolve(c.Request.Context(), marketID, *req.Outcome, feeRate)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// VoidMarket voids a market and refunds every active bet
// POST /api/markets/:id/void
func (h *MarketHandler) VoidMarket(c *gin.Context) {
	marketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid market id"})
		return
	}

	result, err := h.resolution.Void(c.Request.Context(), marketID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
