package ledger

import (
	"context"
	"errors"
	"fmt"

	"wager-engine/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrInsufficientFunds is returned by Debit when the account balance cannot
// cover the requested amount.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Client is the engine's contract with the balance store. Every call takes
// the gorm handle it must run on, so a debit or credit can join the engine's
// own transaction and roll back with it.
type Client interface {
	Debit(ctx context.Context, db *gorm.DB, userID uint, currency models.Currency, amount decimal.Decimal) error
	Credit(ctx context.Context, db *gorm.DB, userID uint, currency models.Currency, amount decimal.Decimal) error
	Balance(ctx context.Context, db *gorm.DB, userID uint, currency models.Currency) (decimal.Decimal, error)
}

// GormClient implements Client against the local accounts table.
type GormClient struct{}

// NewGormClient creates a ledger client backed by the accounts table.
func NewGormClient() *GormClient {
	return &GormClient{}
}

// Debit removes amount from the account. The decrement is guarded by the
// current balance so a concurrent spender cannot drive the account negative.
func (c *GormClient) Debit(ctx context.Context, db *gorm.DB, userID uint, currency models.Currency, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("debit amount must be positive, got %s", amount)
	}

	result := db.WithContext(ctx).Model(&models.Account{}).
		Where("user_id = ? AND currency = ? AND balance >= ?", userID, currency, amount).
		Update("balance", gorm.Expr("balance - ?", amount))

	if result.Error != nil {
		return fmt.Errorf("failed to debit account: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

// Credit adds amount to the account, creating the row if it does not exist.
func (c *GormClient) Credit(ctx context.Context, db *gorm.DB, userID uint, currency models.Currency, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("credit amount must not be negative, got %s", amount)
	}

	result := db.WithContext(ctx).Model(&models.Account{}).
		Where("user_id = ? AND currency = ?", userID, currency).
		Update("balance", gorm.Expr("balance + ?", amount))

	if result.Error != nil {
		return fmt.Errorf("failed to credit account: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		account := &models.Account{
			UserID:   userID,
			Currency: currency,
			Balance:  amount,
		}
		if err := db.WithContext(ctx).Create(account).Error; err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
	}
	return nil
}

// Balance returns the current balance, zero for accounts that do not exist.
func (c *GormClient) Balance(ctx context.Context, db *gorm.DB, userID uint, currency models.Currency) (decimal.Decimal, error) {
	var account models.Account
	err := db.WithContext(ctx).
		Where("user_id = ? AND currency = ?", userID, currency).
		First(&account).Error

	if err == gorm.ErrRecordNotFound {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to read balance: %w", err)
	}
	return account.Balance, nil
}
