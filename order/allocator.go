package order

import (
	"math"
	"sort"
	"time"

	"swingline/core"
	"swingline/strategy"

	"github.com/StudioSol/set"
)

// Ledger is the capital snapshot recomputed from open positions at
// decision time. It is never persisted as mutable state.
type Ledger struct {
	Equity      float64
	Exposure    float64
	OpenCount   int
	OpenedToday int
}

// Utilization returns the fraction of equity tied up in open positions.
func (l Ledger) Utilization() float64 {
	if l.Equity <= 0 {
		return 1
	}
	return l.Exposure / l.Equity
}

// Candidate is one qualifying entry signal awaiting admission.
type Candidate struct {
	Symbol string
	Tier   core.Tier
	Candle core.Candle
	Eval   strategy.Evaluation
	Time   time.Time
}

// Rejection explains why a candidate produced no entry. It is recorded on
// the signal stream with executed=false, never raised as an error.
type Rejection struct {
	Candidate Candidate
	Reason    string
}

// Allocator converts account equity and current exposure into position
// sizes and enforces the concurrent-position, per-symbol and daily caps.
type Allocator struct {
	cfg core.AllocatorSettings

	day          time.Time
	enteredToday *set.LinkedHashSetString
	countToday   int
}

// NewAllocator creates an allocator.
func NewAllocator(cfg core.AllocatorSettings) *Allocator {
	return &Allocator{
		cfg:          cfg,
		enteredToday: set.NewLinkedHashSetString(),
	}
}

// PositionSize returns the dollar value of one new position.
func (a *Allocator) PositionSize(equity float64) float64 {
	return equity * a.cfg.PerTradePct
}

// Quantity converts the position size to whole shares at price.
func (a *Allocator) Quantity(equity, price float64) float64 {
	if price <= 0 {
		return 0
	}
	return math.Floor(a.PositionSize(equity) / price)
}

// MaxOpenPositions returns the cap on concurrently open positions. With
// dynamic limiting the cap shrinks as utilization rises, minus a safety
// buffer; otherwise the static cap applies.
func (a *Allocator) MaxOpenPositions(ledger Ledger) int {
	if !a.cfg.DynamicLimit {
		return a.cfg.StaticMaxOpen
	}

	available := a.cfg.MaxUtilizationPct - ledger.Utilization()
	if available <= 0 || a.cfg.PerTradePct <= 0 {
		return 0
	}

	max := int(math.Floor(available/a.cfg.PerTradePct)) - a.cfg.SafetyBuffer
	if max < 0 {
		max = 0
	}
	return max
}

// SelectEntries admits candidates up to the open-position and daily caps.
// Candidates are ranked by descending score, ties broken by earlier
// signal time, so the ordering is deterministic across runs.
func (a *Allocator) SelectEntries(candidates []Candidate, ledger Ledger) (admitted []Candidate, rejected []Rejection) {
	a.rollDay(candidates)

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Eval.Score != candidates[j].Eval.Score {
			return candidates[i].Eval.Score > candidates[j].Eval.Score
		}
		return candidates[i].Time.Before(candidates[j].Time)
	})

	maxOpen := a.MaxOpenPositions(ledger)
	open := ledger.OpenCount

	for _, c := range candidates {
		switch {
		case open >= maxOpen:
			rejected = append(rejected, Rejection{c, "position cap reached"})
		case a.countToday >= a.cfg.DailyEntryCap:
			rejected = append(rejected, Rejection{c, "daily entry cap reached"})
		default:
			admitted = append(admitted, c)
			open++
			a.countToday++
			a.enteredToday.Add(c.Symbol)
		}
	}

	return admitted, rejected
}

// EnteredToday reports whether the symbol already produced an entry today.
func (a *Allocator) EnteredToday(symbol string) bool {
	return a.enteredToday.InArray(symbol)
}

// rollDay resets the daily counters when the date advances.
func (a *Allocator) rollDay(candidates []Candidate) {
	if len(candidates) == 0 {
		return
	}
	day := candidates[0].Time.Truncate(24 * time.Hour)
	if !day.Equal(a.day) {
		a.day = day
		a.countToday = 0
		a.enteredToday = set.NewLinkedHashSetString()
	}
}
