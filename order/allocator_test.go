package order

import (
	"testing"
	"time"

	"swingline/core"
	"swingline/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAllocatorSettings() core.AllocatorSettings {
	return core.AllocatorSettings{
		PerTradePct:       0.10,
		MaxUtilizationPct: 1.0,
		DynamicLimit:      true,
		SafetyBuffer:      1,
		StaticMaxOpen:     8,
		DailyEntryCap:     3,
	}
}

func candidateAt(symbol string, score float64, at time.Time) Candidate {
	return Candidate{
		Symbol: symbol,
		Tier:   core.TierPrimary,
		Candle: core.Candle{Symbol: symbol, Time: at, Close: 100},
		Eval:   strategy.Evaluation{Score: score, Action: core.ActionBuySetup},
		Time:   at,
	}
}

func TestPositionSizeAndQuantity(t *testing.T) {
	a := NewAllocator(testAllocatorSettings())

	assert.InDelta(t, 10_000.0, a.PositionSize(100_000), 1e-9)
	assert.Equal(t, 30.0, a.Quantity(100_000, 333)) // whole shares only
	assert.Equal(t, 0.0, a.Quantity(100_000, 0))
}

func TestDynamicCapShrinksWithUtilization(t *testing.T) {
	a := NewAllocator(testAllocatorSettings())

	// half the equity deployed: floor(0.5/0.1) - 1 buffer
	assert.Equal(t, 4, a.MaxOpenPositions(Ledger{Equity: 100_000, Exposure: 50_000}))

	// fully deployed
	assert.Equal(t, 0, a.MaxOpenPositions(Ledger{Equity: 100_000, Exposure: 100_000}))

	// nothing deployed: floor(1.0/0.1) - 1
	assert.Equal(t, 9, a.MaxOpenPositions(Ledger{Equity: 100_000}))
}

func TestStaticCapWhenDynamicDisabled(t *testing.T) {
	cfg := testAllocatorSettings()
	cfg.DynamicLimit = false
	a := NewAllocator(cfg)

	assert.Equal(t, 8, a.MaxOpenPositions(Ledger{Equity: 100_000, Exposure: 90_000}))
}

func TestSelectEntriesRanksByScoreThenTime(t *testing.T) {
	cfg := testAllocatorSettings()
	cfg.DailyEntryCap = 2
	a := NewAllocator(cfg)

	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	candidates := []Candidate{
		candidateAt("LATE", 4, day.Add(2*time.Hour)),
		candidateAt("BEST", 5, day.Add(3*time.Hour)),
		candidateAt("EARLY", 4, day.Add(1*time.Hour)),
	}

	admitted, rejected := a.SelectEntries(candidates, Ledger{Equity: 100_000})

	require.Len(t, admitted, 2)
	assert.Equal(t, "BEST", admitted[0].Symbol)  // highest score first
	assert.Equal(t, "EARLY", admitted[1].Symbol) // tie broken by earlier time

	require.Len(t, rejected, 1)
	assert.Equal(t, "LATE", rejected[0].Candidate.Symbol)
	assert.Equal(t, "daily entry cap reached", rejected[0].Reason)
}

func TestSelectEntriesHonorsOpenPositionCap(t *testing.T) {
	a := NewAllocator(testAllocatorSettings())

	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	candidates := []Candidate{candidateAt("A", 5, day)}

	// utilization leaves no room for another position
	_, rejected := a.SelectEntries(candidates, Ledger{Equity: 100_000, Exposure: 95_000})
	require.Len(t, rejected, 1)
	assert.Equal(t, "position cap reached", rejected[0].Reason)
}

func TestDailyCapResetsNextDay(t *testing.T) {
	cfg := testAllocatorSettings()
	cfg.DailyEntryCap = 1
	a := NewAllocator(cfg)

	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	admitted, rejected := a.SelectEntries([]Candidate{
		candidateAt("A", 5, day),
		candidateAt("B", 4, day),
	}, Ledger{Equity: 100_000})
	require.Len(t, admitted, 1)
	require.Len(t, rejected, 1)
	assert.True(t, a.EnteredToday("A"))

	// the next day starts with a fresh budget
	next := day.AddDate(0, 0, 1)
	admitted, _ = a.SelectEntries([]Candidate{candidateAt("B", 4, next)}, Ledger{Equity: 100_000})
	require.Len(t, admitted, 1)
	assert.False(t, a.EnteredToday("A"))
	assert.True(t, a.EnteredToday("B"))
}
