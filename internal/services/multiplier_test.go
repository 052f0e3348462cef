package services

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestMultiplierRatio(t *testing.T) {
	got := Multiplier(dec("300"), dec("100"))
	if !got.Equal(dec("3")) {
		t.Errorf("expected multiplier 3, got %s", got)
	}

	got = Multiplier(dec("150"), dec("100"))
	if !got.Equal(dec("1.5")) {
		t.Errorf("expected multiplier 1.5, got %s", got)
	}
}

func TestMultiplierEmptySidePlaceholder(t *testing.T) {
	// Nothing staked on the winning side: full pot plus one unit.
	got := Multiplier(dec("100"), decimal.Zero)
	if !got.Equal(dec("101")) {
		t.Errorf("expected placeholder 101, got %s", got)
	}
}

func TestProjectedMultiplierFirstBet(t *testing.T) {
	// First bet on an empty market projects to 1.0: the bettor would win
	// back only their own stake.
	got := ProjectedMultiplier(decimal.Zero, decimal.Zero, dec("100"))
	if !got.Equal(dec("1")) {
		t.Errorf("expected projected multiplier 1, got %s", got)
	}
}

func TestProjectedMultiplierOppositeSide(t *testing.T) {
	// 100 staked against, nothing on our side yet: (0+100+100)/(0+100) = 2.
	got := ProjectedMultiplier(dec("100"), decimal.Zero, dec("100"))
	if !got.Equal(dec("2")) {
		t.Errorf("expected projected multiplier 2, got %s", got)
	}

	// 200 pot, 100 already on our side: (200+100)/(100+100) = 1.5.
	got = ProjectedMultiplier(dec("200"), dec("100"), dec("100"))
	if !got.Equal(dec("1.5")) {
		t.Errorf("expected projected multiplier 1.5, got %s", got)
	}
}

func TestQuotedMultiplier(t *testing.T) {
	// First bet: opposite side still empty after the stake, show the
	// placeholder (new total + 1) instead of the degenerate 1.0 ratio.
	got := QuotedMultiplier(decimal.Zero, decimal.Zero, dec("100"))
	if !got.Equal(dec("101")) {
		t.Errorf("expected quoted placeholder 101, got %s", got)
	}

	// Opposite side funded: plain projected ratio.
	got = QuotedMultiplier(dec("100"), decimal.Zero, dec("100"))
	if !got.Equal(dec("2")) {
		t.Errorf("expected quoted multiplier 2, got %s", got)
	}
}
