package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"wager-engine/internal/ledger"
	"wager-engine/internal/services"

	"github.com/gin-gonic/gin"
)

// respondError maps engine error kinds to HTTP codes: validation -> 400,
// not found -> 404, conflicts -> 409, transient -> 503, fatal -> 500.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrMarketNotFound),
		errors.Is(err, services.ErrBetNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidCurrency),
		errors.Is(err, services.ErrInvalidSide),
		errors.Is(err, services.ErrInvalidFeeRate),
		errors.Is(err, services.ErrDeadlinePassed):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, services.ErrNotBetOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})

	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, services.ErrMarketNotOpen),
		errors.Is(err, services.ErrAlreadyResolved),
		errors.Is(err, services.ErrResolutionInProgress),
		errors.Is(err, services.ErrOutcomeMismatch),
		errors.Is(err, services.ErrBetNotActive),
		errors.Is(err, services.ErrCancelWindowClosed),
		errors.Is(err, services.ErrIdempotencyConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.Is(err, services.ErrLockTimeout),
		errors.Is(err, services.ErrSettlementIncomplete):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "retryable": true})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// parsePagination reads limit/offset query params with sane bounds.
func parsePagination(c *gin.Context) (int, int) {
	limit := 20
	offset := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}
	return limit, offset
}
