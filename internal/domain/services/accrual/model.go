// Package accrual computes the time-based account balance from the
// compounding growth model. Everything here is pure; the settlement and
// deposit pipelines call it with a frozen "now" inside their transactions.
package accrual

import (
	"math"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultPeriodDays is the number of days over which a balance doubles
const DefaultPeriodDays = 10.0

// Model holds the growth parameters
type Model struct {
	periodDays float64
}

// NewModel creates a model with the given doubling period in days.
// Non-positive values fall back to the default.
func NewModel(periodDays float64) *Model {
	if periodDays <= 0 {
		periodDays = DefaultPeriodDays
	}
	return &Model{periodDays: periodDays}
}

// Balance returns the compounded balance for principal anchored at anchor,
// evaluated at now. The model doubles every period with continuous
// interpolation inside a period:
//
//	balance = principal * 2^(elapsedDays / periodDays)
//
// Clock skew (now before anchor) floors to the principal; a zero principal
// is always zero regardless of elapsed time.
func (m *Model) Balance(principal decimal.Decimal, anchor, now time.Time) decimal.Decimal {
	if !principal.IsPositive() {
		return decimal.Zero
	}

	elapsedDays := now.Sub(anchor).Hours() / 24
	if elapsedDays <= 0 {
		return principal
	}

	// Split into full doubling periods and the fractional remainder so the
	// integer part stays exact for large elapsed times.
	periods := elapsedDays / m.periodDays
	full := math.Floor(periods)
	remainder := periods - full

	multiplier := decimal.NewFromBigInt(bigPow2(int64(full)), 0)
	fractional := decimal.NewFromFloat(math.Pow(2, remainder))

	// Amounts are whole base units; floor so the stored balance can
	// never exceed the computed one.
	return principal.Mul(multiplier).Mul(fractional).Floor()
}

// Profit returns the withdrawable portion: balance minus principal, floored
// at zero.
func (m *Model) Profit(principal decimal.Decimal, anchor, now time.Time) decimal.Decimal {
	profit := m.Balance(principal, anchor, now).Sub(principal)
	if profit.IsNegative() {
		return decimal.Zero
	}
	return profit
}

// PeriodDays exposes the configured doubling period
func (m *Model) PeriodDays() float64 {
	return m.periodDays
}

func bigPow2(n int64) *big.Int {
	if n <= 0 {
		return big.NewInt(1)
	}
	return new(big.Int).Lsh(big.NewInt(1), uint(n))
}
