package accrual

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n float64) time.Duration {
	return time.Duration(n * 24 * float64(time.Hour))
}

func TestBalance_AtAnchorEqualsPrincipal(t *testing.T) {
	m := NewModel(10)
	anchor := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, p := range []string{"1", "0.5", "1000000", "123456789.123"} {
		principal := decimal.RequireFromString(p)
		got := m.Balance(principal, anchor, anchor)
		assert.True(t, got.Equal(principal), "principal %s: got %s", p, got)
	}
}

func TestBalance_DoublingLaw(t *testing.T) {
	m := NewModel(10)
	anchor := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, p := range []string{"1", "2.5", "999999"} {
		principal := decimal.RequireFromString(p)

		got := m.Balance(principal, anchor, anchor.Add(day(10)))
		want := principal.Mul(decimal.NewFromInt(2))
		diff := got.Sub(want).Abs()
		assert.True(t, diff.LessThan(want.Mul(decimal.NewFromFloat(1e-9))),
			"balance at one full period should be 2p, got %s want %s", got, want)

		got = m.Balance(principal, anchor, anchor.Add(day(20)))
		want = principal.Mul(decimal.NewFromInt(4))
		diff = got.Sub(want).Abs()
		assert.True(t, diff.LessThan(want.Mul(decimal.NewFromFloat(1e-9))),
			"balance at two full periods should be 4p, got %s", got)
	}
}

func TestBalance_MonotonicInElapsed(t *testing.T) {
	m := NewModel(10)
	anchor := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	principal := decimal.NewFromInt(100)

	prev := decimal.Zero
	for d := 0.0; d <= 40; d += 1.5 {
		got := m.Balance(principal, anchor, anchor.Add(day(d)))
		assert.True(t, got.GreaterThanOrEqual(prev),
			"balance must be non-decreasing, at %.1fd got %s after %s", d, got, prev)
		assert.True(t, got.GreaterThanOrEqual(principal))
		prev = got
	}
}

func TestBalance_ClockSkewFloorsToPrincipal(t *testing.T) {
	m := NewModel(10)
	anchor := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	principal := decimal.NewFromInt(50)

	got := m.Balance(principal, anchor, anchor.Add(-day(3)))
	assert.True(t, got.Equal(principal), "negative elapsed must not shrink the balance")
}

func TestBalance_ZeroPrincipal(t *testing.T) {
	m := NewModel(10)
	anchor := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	got := m.Balance(decimal.Zero, anchor, anchor.Add(day(365)))
	assert.True(t, got.IsZero(), "zero principal never grows")
}

func TestProfit(t *testing.T) {
	m := NewModel(10)
	anchor := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	principal := decimal.NewFromInt(1)

	profit := m.Profit(principal, anchor, anchor.Add(day(10)))
	diff := profit.Sub(decimal.NewFromInt(1)).Abs()
	require.True(t, diff.LessThan(decimal.NewFromFloat(1e-9)),
		"one full period yields profit equal to principal, got %s", profit)

	assert.True(t, m.Profit(principal, anchor, anchor).IsZero())
	assert.True(t, m.Profit(principal, anchor, anchor.Add(-day(1))).IsZero())
}

func TestBalance_FractionalInterpolationIsContinuous(t *testing.T) {
	m := NewModel(10)
	anchor := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	principal := decimal.NewFromInt(1000)

	// Just below and just above a period boundary should differ by at
	// most one base unit: the curve step over that window plus rounding.
	below := m.Balance(principal, anchor, anchor.Add(day(9.999)))
	above := m.Balance(principal, anchor, anchor.Add(day(10.001)))
	gap := above.Sub(below)
	assert.True(t, gap.IsPositive())
	assert.True(t, gap.LessThanOrEqual(decimal.NewFromInt(1)),
		"no stepwise jump at the period boundary, gap %s", gap)
}

func TestBalance_WholeBaseUnits(t *testing.T) {
	m := NewModel(10)
	anchor := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// Fractional growth is floored so the stored balance never exceeds
	// the computed one.
	for _, p := range []string{"1", "3", "999983", "1000000000001"} {
		principal := decimal.RequireFromString(p)
		for _, d := range []float64{0.4, 3.3, 9.999, 10.001, 25.7} {
			got := m.Balance(principal, anchor, anchor.Add(day(d)))
			assert.True(t, got.Equal(got.Floor()),
				"principal %s at %v days: %s is not a whole base unit", p, d, got)
		}
	}
}

func TestNewModel_DefaultPeriod(t *testing.T) {
	assert.Equal(t, DefaultPeriodDays, NewModel(0).PeriodDays())
	assert.Equal(t, DefaultPeriodDays, NewModel(-5).PeriodDays())
	assert.Equal(t, 7.0, NewModel(7).PeriodDays())
}
