package models

// Currency is the closed set of wagering currencies. Pool state, bets and
// ledger accounts are all keyed by it; unknown values are rejected before any
// pool is touched.
type Currency string

const (
	CurrencyXP Currency = "XP" // earned experience points
	CurrencyXC Currency = "XC" // purchased credits
)

// AllCurrencies lists every supported currency in a fixed order. Lock
// acquisition over a whole market iterates this order, so it must stay stable.
func AllCurrencies() []Currency {
	return []Currency{CurrencyXP, CurrencyXC}
}

// IsValid reports whether c is a supported currency.
func (c Currency) IsValid() bool {
	switch c {
	case CurrencyXP, CurrencyXC:
		return true
	}
	return false
}
