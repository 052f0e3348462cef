package handlers

import (
	"net/http"

	"wager-engine/internal/auth"
	"wager-engine/internal/models"
	"wager-engine/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type WagerHandler struct {
	wagers *services.WagerService
}

func NewWagerHandler(wagers *services.WagerService) *WagerHandler {
	return &WagerHandler{wagers: wagers}
}

// PlaceBet places a bet on a market
// POST /api/bets
func (h *WagerHandler) PlaceBet(c *gin.Context) {
	bettorID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req models.PlaceBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.wagers.PlaceBet(c.Request.Context(), bettorID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// CancelBet cancels an active bet and refunds the stake
// POST /api/bets/:id/cancel
func (h *WagerHandler) CancelBet(c *gin.Context) {
	bettorID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	betID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bet id"})
		return
	}

	var req models.CancelBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	refunded, err := h.wagers.CancelBet(c.Request.Context(), betID, bettorID, req.IdempotencyKey)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.CancelBetResponse{
		BetID:          betID,
		RefundedAmount: refunded,
	})
}

// GetBet retrieves a bet by ID
// GET /api/bets/:id
func (h *WagerHandler) GetBet(c *gin.Context) {
	bettorID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	betID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bet id"})
		return
	}

	bet, err := h.wagers.GetBet(c.Request.Context(), betID)
	if err != nil {
		respondError(c, err)
		return
	}
	if bet.BettorID != bettorID {
		c.JSON(http.StatusForbidden, gin.H{"error": "bet belongs to another bettor"})
		return
	}

	c.JSON(http.StatusOK, bet)
}

// GetMyBets retrieves the caller's bets
// GET /api/bets
func (h *WagerHandler) GetMyBets(c *gin.Context) {
	bettorID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, offset := parsePagination(c)
	bets, err := h.wagers.GetBettorBets(c.Request.Context(), bettorID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get bets"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bets":  bets,
		"total": len(bets),
	})
}

// GetMarketBets retrieves the bets of a market (admin)
// GET /api/admin/markets/:id/bets
func (h *WagerHandler) GetMarketBets(c *gin.Context) {
	marketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid market id"})
		return
	}

	limit, offset := parsePagination(c)
	bets, err := h.wagers.GetMarketBets(c.Request.Context(), marketID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get market bets"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"bets":  bets,
		"total": len(bets),
	})
}
