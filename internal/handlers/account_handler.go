package handlers

import (
	"net/http"

	"wager-engine/internal/auth"
	"wager-engine/internal/ledger"
	"wager-engine/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AccountHandler struct {
	db     *gorm.DB
	ledger ledger.Client
}

func NewAccountHandler(db *gorm.DB, ledgerClient ledger.Client) *AccountHandler {
	return &AccountHandler{db: db, ledger: ledgerClient}
}

// GetBalances returns the caller's balance in every currency
// GET /api/balances
func (h *AccountHandler) GetBalances(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	balances := make(map[models.Currency]decimal.Decimal)
	for _, currency := range models.AllCurrencies() {
		balance, err := h.ledger.Balance(c.Request.Context(), h.db, userID, currency)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get balance"})
			return
		}
		balances[currency] = balance
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":  userID,
		"balances": balances,
	})
}

// Deposit credits a user's account (admin)
// POST /api/admin/deposits
func (h *AccountHandler) Deposit(c *gin.Context) {
	var req models.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !req.Currency.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid currency"})
		return
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount must be positive"})
		return
	}

	if err := h.ledger.Credit(c.Request.Context(), h.db, req.UserID, req.Currency, req.Amount); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to credit account"})
		return
	}

	balance, err := h.ledger.Balance(c.Request.Context(), h.db, req.UserID, req.Currency)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get balance"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":  req.UserID,
		"currency": req.Currency,
		"balance":  balance,
	})
}
