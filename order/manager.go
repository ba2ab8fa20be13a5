// Package order implements the position lifecycle state machine and
// capital allocation. The same manager drives both the live loop and the
// backtest replay; any divergence between the two is a bug.
package order

import (
	"context"
	"fmt"
	"time"

	"swingline/core"
	"swingline/strategy"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
)

const maxExitAttempts = 3

// Manager owns every open position's per-bar update: stop ratcheting,
// partial target exits, the closing-basis deferred stop and the time exit.
type Manager struct {
	tiers  core.TierSet
	store  core.PositionStore
	broker core.Broker
	feed   *Feed
	log    core.Logger

	// sleep between failed submissions; replaced in tests
	wait func(d time.Duration)
}

// NewManager creates a lifecycle manager.
func NewManager(tiers core.TierSet, store core.PositionStore, broker core.Broker, feed *Feed, log core.Logger) *Manager {
	return &Manager{
		tiers:  tiers,
		store:  store,
		broker: broker,
		feed:   feed,
		log:    log,
		wait:   time.Sleep,
	}
}

// OpenPosition submits a buy at the candle close and records the new
// position. Position state is only persisted after the broker accepted
// the order.
func (m *Manager) OpenPosition(ctx context.Context, tier core.Tier, candle core.Candle, eval strategy.Evaluation, qty float64) (*core.Position, error) {
	if qty <= 0 {
		return nil, core.ErrInvalidQuantity
	}

	if _, err := m.broker.SubmitOrder(ctx, core.DecisionBuy, candle.Symbol, qty); err != nil {
		return nil, fmt.Errorf("entry order rejected: %w", err)
	}

	cfg := m.tiers.ForTier(tier)
	entry := candle.Close

	p := &core.Position{
		ID:           uuid.NewString(),
		Symbol:       candle.Symbol,
		Tier:         tier,
		Status:       core.StatusOpen,
		EntryDate:    candle.Time,
		EntryPrice:   entry,
		Quantity:     qty,
		RemainingQty: qty,
		// Additive form keeps whole-number levels exact: 100*(1+0.10)
		// is 110.00000000000001 in floats, 100+100*0.10 is 110.
		Stop:         entry - entry*cfg.InitialStopPct,
		Targets: [3]float64{
			entry + entry*cfg.TargetPcts[0],
			entry + entry*cfg.TargetPcts[1],
			entry + entry*cfg.TargetPcts[2],
		},
		Score:     eval.Score,
		Pattern:   string(eval.Pattern),
		CreatedAt: candle.Time,
		UpdatedAt: candle.Time,
	}

	if err := m.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to persist position: %w", err)
	}

	m.publish(core.Decision{
		Side: core.DecisionBuy, Symbol: p.Symbol, Tier: tier,
		Quantity: qty, Price: entry, Reason: eval.Reason, Time: candle.Time,
	})

	m.log.WithFields(map[string]any{
		"symbol": p.Symbol, "tier": tier, "qty": qty,
		"entry": entry, "stop": p.Stop, "score": eval.Score,
	}).Info("position opened")

	return p, nil
}

// OnCandle runs the per-bar update for one open position. The evaluation
// order is fixed: pending exit first, then stop ratchet on the intraday
// high, then target fills on the high, then the closing-basis stop check,
// then the time exit.
func (m *Manager) OnCandle(ctx context.Context, p *core.Position, candle core.Candle) error {
	if !p.IsOpen() || p.ExitFailed {
		return nil
	}

	// A stop triggered on the previous close executes at this bar's open,
	// before anything else can happen to the position.
	if p.ExitPending {
		return m.exit(ctx, p, candle.Open, core.ExitStopLoss, candle.Time)
	}

	p.BarsHeld++
	cfg := m.tiers.ForTier(p.Tier)

	// 1. Ratchet the stop. Tier thresholds are relative to the entry
	// price, never to the current price or an intermediate high.
	if candle.High >= p.EntryPrice+p.EntryPrice*cfg.Tier2Trigger {
		m.raiseStop(ctx, p, p.EntryPrice-p.EntryPrice*cfg.Tier2StopPct)
	} else if candle.High >= p.EntryPrice+p.EntryPrice*cfg.Tier1Trigger {
		m.raiseStop(ctx, p, p.EntryPrice-p.EntryPrice*cfg.Tier1StopPct)
	}

	// 2. Target fills against the intraday high, one leg per bar.
	targetFired := false
	if index, price, ok := p.NextTarget(); ok && candle.High >= price {
		targetFired = true
		label := [3]core.TargetLabel{core.TargetT1, core.TargetT2, core.TargetT3}[index]

		if index == 2 {
			// Final leg fills and closes the position.
			qty := p.RemainingQty
			if err := m.submitSell(ctx, p.Symbol, qty); err != nil {
				return m.flagFailedExit(ctx, p, err)
			}
			if err := p.RecordFill(candle.Time, price, qty, label); err != nil {
				return err
			}
			return m.closeStored(ctx, p, price, core.ExitTargetFinal, candle.Time)
		}

		qty := p.LegQuantity(index)
		if qty > 0 {
			if err := m.submitSell(ctx, p.Symbol, qty); err != nil {
				return m.flagFailedExit(ctx, p, err)
			}
			if err := p.RecordFill(candle.Time, price, qty, label); err != nil {
				return err
			}
			if err := m.store.RecordPartialExit(ctx, p.ID, qty, price, label); err != nil {
				return fmt.Errorf("failed to persist partial exit: %w", err)
			}
			m.publish(core.Decision{
				Side: core.DecisionSell, Symbol: p.Symbol, Tier: p.Tier,
				Quantity: qty, Price: price, Reason: string(label), Time: candle.Time,
			})
		}
	}

	// 3. Closing-basis stop. The trigger is the close, never the intraday
	// low, and execution is deferred to the next bar's open.
	if candle.Close <= p.Stop {
		p.ExitPending = true
		if err := m.store.Update(ctx, p); err != nil {
			return fmt.Errorf("failed to persist pending exit: %w", err)
		}
		m.log.WithFields(map[string]any{
			"symbol": p.Symbol, "tier": p.Tier, "close": candle.Close, "stop": p.Stop,
		}).Info("stop triggered on close, exit at next open")
		return nil
	}

	// 4. Time exit, only when no target and no stop fired on this bar.
	if !targetFired && p.BarsHeld >= cfg.MaxHoldBars {
		return m.exit(ctx, p, candle.Close, core.ExitTimeLimit, candle.Time)
	}

	return m.store.Update(ctx, p)
}

// Finalize settles a position at the end of available data: a pending
// stop executes at the final close because no next open exists.
func (m *Manager) Finalize(ctx context.Context, p *core.Position, last core.Candle) error {
	if !p.IsOpen() || !p.ExitPending {
		return nil
	}
	return m.exit(ctx, p, last.Close, core.ExitStopLoss, last.Time)
}

// SellOldest matches an external, non-targeted sell instruction against
// the oldest open position of the symbol and tier (FIFO by entry date).
func (m *Manager) SellOldest(ctx context.Context, symbol string, tier core.Tier, price float64, at time.Time) error {
	positions, err := m.store.Positions(ctx, core.OpenOnly(), core.WithSymbol(symbol), core.WithTier(tier))
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		return core.ErrPositionNotFound
	}

	oldest := positions[0]
	for _, p := range positions[1:] {
		if p.EntryDate.Before(oldest.EntryDate) {
			oldest = p
		}
	}
	return m.exit(ctx, oldest, price, core.ExitManual, at)
}

// exit closes the remaining quantity at price. Broker submission failures
// are retried a bounded number of times with backoff; exhaustion flags the
// position for manual review instead of looping forever.
func (m *Manager) exit(ctx context.Context, p *core.Position, price float64, reason core.ExitReason, at time.Time) error {
	if err := m.submitSell(ctx, p.Symbol, p.RemainingQty); err != nil {
		return m.flagFailedExit(ctx, p, err)
	}

	if err := p.RecordFill(at, price, p.RemainingQty, ""); err != nil {
		return err
	}
	return m.closeStored(ctx, p, price, reason, at)
}

func (m *Manager) closeStored(ctx context.Context, p *core.Position, price float64, reason core.ExitReason, at time.Time) error {
	p.Status = core.StatusClosed
	p.ExitPrice = price
	p.ExitReason = reason
	p.ExitDate = at
	p.ExitPending = false
	p.UpdatedAt = at

	if err := m.store.Close(ctx, p.ID, price, reason); err != nil {
		return fmt.Errorf("failed to persist close: %w", err)
	}
	// Close guards the open -> closed transition; the follow-up rewrite
	// persists the final fill and bar bookkeeping.
	if err := m.store.Update(ctx, p); err != nil {
		return fmt.Errorf("failed to persist close bookkeeping: %w", err)
	}

	m.publish(core.Decision{
		Side: core.DecisionSell, Symbol: p.Symbol, Tier: p.Tier,
		Quantity: p.Quantity, Price: price, Reason: string(reason), Time: at,
	})

	m.log.WithFields(map[string]any{
		"symbol": p.Symbol, "tier": p.Tier, "reason": reason,
		"exit": price, "pnl_pct": p.RealizedPnL() * 100, "bars_held": p.BarsHeld,
	}).Info("position closed")

	return nil
}

// raiseStop ratchets the stop and persists the new level. A persistence
// failure is logged, not fatal: the in-memory level still protects the
// position for the rest of the run.
func (m *Manager) raiseStop(ctx context.Context, p *core.Position, level float64) {
	if !p.RaiseStop(level) {
		return
	}
	if err := m.store.UpdateStop(ctx, p.ID, p.Stop); err != nil {
		m.log.WithError(err).WithField("symbol", p.Symbol).Error("failed to persist stop level")
		return
	}
	m.log.WithFields(map[string]any{
		"symbol": p.Symbol, "tier": p.Tier, "stop": p.Stop,
	}).Info("stop raised")
}

// submitSell pushes a market sell through the broker with bounded retry.
func (m *Manager) submitSell(ctx context.Context, symbol string, qty float64) error {
	retry := &backoff.Backoff{Min: 100 * time.Millisecond, Max: 2 * time.Second, Jitter: true}

	var err error
	for attempt := 0; attempt < maxExitAttempts; attempt++ {
		if attempt > 0 {
			m.wait(retry.Duration())
		}
		if _, err = m.broker.SubmitOrder(ctx, core.DecisionSell, symbol, qty); err == nil {
			return nil
		}
		m.log.WithError(err).WithField("symbol", symbol).Warn("sell submission failed")
	}
	return err
}

// flagFailedExit moves the position into the terminal manual-review state.
// Position quantities are left untouched: nothing was confirmed filled.
func (m *Manager) flagFailedExit(ctx context.Context, p *core.Position, cause error) error {
	p.ExitAttempts += maxExitAttempts
	p.ExitFailed = true
	if err := m.store.Update(ctx, p); err != nil {
		return fmt.Errorf("failed to persist exit failure: %w", err)
	}

	err := fmt.Errorf("%w: %s %s: %v", core.ErrExitFailed, p.Symbol, p.Tier, cause)
	if m.feed != nil {
		m.feed.PublishError(err)
	}
	m.log.WithError(cause).WithFields(map[string]any{
		"symbol": p.Symbol, "tier": p.Tier,
	}).Error("exit failed after bounded retries, flagged for manual review")
	return err
}

func (m *Manager) publish(decision core.Decision) {
	if m.feed != nil {
		m.feed.PublishDecision(decision)
	}
}
