package services

import "github.com/shopspring/decimal"

var one = decimal.NewFromInt(1)

// Multiplier computes the payout multiplier for the current pool state:
// totalPot / winningPool. With nothing staked on the winning side there is no
// ratio; the first-mover placeholder totalPot+1 (full pot plus unit) is
// returned instead. That placeholder is display-only and is never persisted
// as a bet's committed multiplier.
func Multiplier(totalPot, winningPool decimal.Decimal) decimal.Decimal {
	if winningPool.IsPositive() {
		return totalPot.Div(winningPool)
	}
	return totalPot.Add(one)
}

// ProjectedMultiplier quotes a candidate bet as if its stake were already
// committed: (totalPot + amount) / (sidePool + amount). This is the value
// persisted as multiplier_at_commit, so the quote matches what the bettor
// will actually receive. For a positive amount the denominator is never zero.
func ProjectedMultiplier(totalPot, sidePool, amount decimal.Decimal) decimal.Decimal {
	return totalPot.Add(amount).Div(sidePool.Add(amount))
}

// QuotedMultiplier is the display value for a prospective bet. When the
// opposite side would still be empty after the stake lands, the projected
// ratio degenerates to 1.0, so the first-mover placeholder is shown instead.
func QuotedMultiplier(totalPot, sidePool, amount decimal.Decimal) decimal.Decimal {
	newTotal := totalPot.Add(amount)
	newSide := sidePool.Add(amount)
	if newTotal.Sub(newSide).IsZero() {
		return newTotal.Add(one)
	}
	return newTotal.Div(newSide)
}
