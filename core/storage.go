package core

import (
	"context"
)

// PositionFilter filters positions in store queries.
type PositionFilter func(p Position) bool

// PositionStore persists position state. Every mutation is atomic per
// position: a crash mid-update must never leave remaining quantity and
// status inconsistent.
type PositionStore interface {
	// Create stores a newly opened position.
	Create(ctx context.Context, p *Position) error

	// UpdateStop raises the stop level. Lower levels are ignored, the
	// stop is a ratchet.
	UpdateStop(ctx context.Context, id string, level float64) error

	// RecordPartialExit applies one target-leg fill.
	RecordPartialExit(ctx context.Context, id string, qty, price float64, target TargetLabel) error

	// Close marks the position closed. Closing twice is an error.
	Close(ctx context.Context, id string, exitPrice float64, reason ExitReason) error

	// Update persists exit-retry bookkeeping and bar counters.
	Update(ctx context.Context, p *Position) error

	// Positions returns positions matching all filters, ordered by entry date.
	Positions(ctx context.Context, filters ...PositionFilter) ([]*Position, error)

	// CountOpenByTier returns the number of open positions in a tier.
	CountOpenByTier(ctx context.Context, tier Tier) (int, error)
}

func WithSymbol(symbol string) PositionFilter {
	return func(p Position) bool {
		return p.Symbol == symbol
	}
}

func WithTier(tier Tier) PositionFilter {
	return func(p Position) bool {
		return p.Tier == tier
	}
}

func WithStatus(status PositionStatus) PositionFilter {
	return func(p Position) bool {
		return p.Status == status
	}
}

func OpenOnly() PositionFilter {
	return WithStatus(StatusOpen)
}
