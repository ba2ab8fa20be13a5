package core

import (
	"fmt"
	"math"
	"time"
)

// Tier identifies which of the two independent position slots per symbol
// a position occupies.
type Tier string

const (
	TierPrimary   Tier = "primary"
	TierSecondary Tier = "secondary"
)

// PositionStatus represents the lifecycle state of a position.
type PositionStatus string

const (
	StatusOpen   PositionStatus = "open"
	StatusClosed PositionStatus = "closed"
)

// ExitReason records why a position was closed.
type ExitReason string

const (
	ExitTargetFinal ExitReason = "T3"  // final profit target reached
	ExitStopLoss    ExitReason = "SL"  // closing-basis stop, executed next open
	ExitTimeLimit   ExitReason = "TES" // time-based exit after max hold period
	ExitManual      ExitReason = "MANUAL"
)

// TargetLabel names one of the three partial-exit targets.
type TargetLabel string

const (
	TargetT1 TargetLabel = "T1"
	TargetT2 TargetLabel = "T2"
	TargetT3 TargetLabel = "T3"
)

// TargetIndex maps a target label to its slot.
func (l TargetLabel) Index() int {
	switch l {
	case TargetT1:
		return 0
	case TargetT2:
		return 1
	default:
		return 2
	}
}

// Fill records one executed exit leg of a position.
type Fill struct {
	Time     time.Time   `json:"time"`
	Price    float64     `json:"price"`
	Quantity float64     `json:"quantity"`
	Target   TargetLabel `json:"target,omitempty"`
}

// Position represents one open or closed trade for a symbol and tier.
// At most one position per tier may be open per symbol at any time.
//
// Invariants:
//   - 0 <= RemainingQty <= Quantity
//   - Stop never decreases while the position is open
//   - fill quantities plus RemainingQty always equal Quantity
//   - the open -> closed transition happens exactly once
type Position struct {
	ID         string         `json:"id" gorm:"primaryKey"`
	Symbol     string         `json:"symbol" gorm:"index"`
	Tier       Tier           `json:"tier" gorm:"index"`
	Status     PositionStatus `json:"status" gorm:"index"`
	EntryDate  time.Time      `json:"entry_date"`
	EntryPrice float64        `json:"entry_price"`

	Quantity     float64 `json:"quantity"`
	RemainingQty float64 `json:"remaining_qty"`

	Stop         float64    `json:"stop"`
	Targets      [3]float64 `json:"targets" gorm:"serializer:json"`
	TargetFilled [3]bool    `json:"target_filled" gorm:"serializer:json"`
	Fills        []Fill     `json:"fills" gorm:"serializer:json"`

	// Signal context captured at entry
	Score   float64 `json:"score"`
	Pattern string  `json:"pattern,omitempty"`

	BarsHeld int `json:"bars_held"`

	ExitDate   time.Time  `json:"exit_date"`
	ExitPrice  float64    `json:"exit_price"`
	ExitReason ExitReason `json:"exit_reason,omitempty"`

	// Deferred and failed exit bookkeeping
	ExitPending  bool `json:"exit_pending"`
	ExitAttempts int  `json:"exit_attempts"`
	ExitFailed   bool `json:"exit_failed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsOpen reports whether the position is still open.
func (p *Position) IsOpen() bool { return p.Status == StatusOpen }

// RaiseStop lifts the stop to level if it is higher than the current stop.
// The stop is a ratchet and never moves down.
func (p *Position) RaiseStop(level float64) bool {
	if level > p.Stop {
		p.Stop = level
		return true
	}
	return false
}

// LegQuantity returns the share quantity assigned to a target leg.
// The first two legs round down to whole shares and the final leg absorbs
// the remainder so the three legs always reconcile with Quantity.
func (p *Position) LegQuantity(index int) float64 {
	third := math.Floor(p.Quantity / 3)
	if index < 2 {
		return third
	}
	return p.Quantity - 2*third
}

// RecordFill applies one exit leg to the position state.
func (p *Position) RecordFill(t time.Time, price, qty float64, target TargetLabel) error {
	if qty > p.RemainingQty {
		return fmt.Errorf("%w: fill %f exceeds remaining %f", ErrInvalidQuantity, qty, p.RemainingQty)
	}
	p.RemainingQty -= qty
	if target != "" {
		p.TargetFilled[target.Index()] = true
	}
	p.Fills = append(p.Fills, Fill{Time: t, Price: price, Quantity: qty, Target: target})
	return nil
}

// NextTarget returns the next unfilled target slot, honoring the T1 -> T2 -> T3
// fill order. ok is false when all targets have been filled.
func (p *Position) NextTarget() (index int, price float64, ok bool) {
	for i := range p.Targets {
		if !p.TargetFilled[i] {
			return i, p.Targets[i], true
		}
	}
	return 0, 0, false
}

// RealizedPnL returns the weighted percentage profit across all fills.
// Each leg contributes (fill-entry)/entry scaled by its fraction of the
// original quantity.
func (p *Position) RealizedPnL() float64 {
	if p.EntryPrice == 0 || p.Quantity == 0 {
		return 0
	}
	var pnl float64
	for _, f := range p.Fills {
		pnl += (f.Price - p.EntryPrice) / p.EntryPrice * (f.Quantity / p.Quantity)
	}
	return pnl
}

// Exposure returns the entry-basis dollar value still at risk.
func (p *Position) Exposure() float64 {
	return p.RemainingQty * p.EntryPrice
}
