// Package backtest replays historical daily bars through the exact same
// scorer and lifecycle manager the live loop runs. Bars are processed
// strictly in chronological order and every decision uses only data up
// to and including the current bar.
package backtest

import (
	"context"
	"sort"
	"time"

	"swingline/core"
	"swingline/exchange"
	"swingline/order"
	"swingline/strategy"

	"github.com/schollz/progressbar/v3"
)

// Engine drives a full walk-forward replay over one or more symbols.
type Engine struct {
	settings core.Settings
	feed     *exchange.CSVFeed
	broker   *exchange.PaperBroker
	store    core.PositionStore
	scorer   *strategy.Scorer
	manager  *order.Manager
	alloc    *order.Allocator
	log      core.Logger

	frames  map[string]*core.Dataframe
	signals []core.SignalRecord

	// ShowProgress renders a progress bar during the replay.
	ShowProgress bool
}

// NewEngine wires a replay around a CSV feed and a paper broker.
func NewEngine(settings core.Settings, feed *exchange.CSVFeed, broker *exchange.PaperBroker,
	store core.PositionStore, manager *order.Manager, log core.Logger) *Engine {
	return &Engine{
		settings: settings,
		feed:     feed,
		broker:   broker,
		store:    store,
		scorer:   strategy.NewScorer(settings.Strategy, log),
		manager:  manager,
		alloc:    order.NewAllocator(settings.Allocator),
		log:      log,
		frames:   make(map[string]*core.Dataframe),
	}
}

// Run replays every bar of every symbol. Symbols sharing a timestamp are
// processed in lexical order so repeated runs produce identical output.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	symbols := e.feed.Symbols()
	cursors := make(map[string]int, len(symbols))
	timeline := e.timeline(symbols)

	var bar *progressbar.ProgressBar
	if e.ShowProgress {
		total := 0
		for _, symbol := range symbols {
			total += len(e.feed.AllCandles(symbol))
		}
		bar = progressbar.Default(int64(total))
	}

	for _, symbol := range symbols {
		e.frames[symbol] = core.NewDataframe(symbol)
	}

	for _, t := range timeline {
		var candidates []order.Candidate

		for _, symbol := range symbols {
			candles := e.feed.AllCandles(symbol)
			i := cursors[symbol]
			if i >= len(candles) || !candles[i].Time.Equal(t) {
				continue
			}
			cursors[symbol]++

			if bar != nil {
				if err := bar.Add(1); err != nil {
					e.log.Warn("failed to update progress bar: ", err)
				}
			}

			candidate, err := e.processBar(ctx, symbol, candles[i])
			if err != nil {
				return nil, err
			}
			if candidate != nil {
				candidates = append(candidates, *candidate)
			}
		}

		if err := e.executeEntries(ctx, candidates); err != nil {
			return nil, err
		}
	}

	if err := e.finalize(ctx, symbols, cursors); err != nil {
		return nil, err
	}

	return e.result(ctx)
}

// processBar runs the per-bar pipeline for one symbol: manage the open
// positions first, then evaluate a possible new entry on the same bar.
func (e *Engine) processBar(ctx context.Context, symbol string, candle core.Candle) (*order.Candidate, error) {
	df := e.frames[symbol]
	df.Append(candle)
	e.broker.MarkPrice(symbol, candle.Close)

	positions, err := e.store.Positions(ctx, core.OpenOnly(), core.WithSymbol(symbol))
	if err != nil {
		return nil, err
	}
	for _, p := range positions {
		if err := e.manager.OnCandle(ctx, p, candle); err != nil {
			return nil, err
		}
	}

	if df.Len() < e.scorer.WarmupPeriod() {
		return nil, nil
	}

	e.scorer.Indicators(df)
	eval := e.scorer.Evaluate(df)

	candidate, note, err := order.EntryCandidate(ctx, e.store, e.settings.Strategy, candle, eval)
	if err != nil {
		return nil, err
	}

	e.signals = append(e.signals, core.SignalRecord{
		Symbol:  symbol,
		Date:    candle.Time,
		Score:   eval.Score,
		Action:  eval.Action,
		Checks:  eval.Checks,
		Pattern: string(eval.Pattern),
		Touch:   string(eval.Touch),
		Price:   candle.Close,
		Reason:  eval.Reason,
		Note:    note,
	})

	return candidate, nil
}

// executeEntries ranks one timestamp's candidates through the allocator
// and opens the admitted ones at the bar close.
func (e *Engine) executeEntries(ctx context.Context, candidates []order.Candidate) error {
	if len(candidates) == 0 {
		return nil
	}

	account, err := e.broker.Account(ctx)
	if err != nil {
		return err
	}

	open, err := e.store.Positions(ctx, core.OpenOnly())
	if err != nil {
		return err
	}

	ledger := order.Ledger{Equity: account.Equity, OpenCount: len(open)}
	for _, p := range open {
		ledger.Exposure += p.Exposure()
	}

	admitted, rejected := e.alloc.SelectEntries(candidates, ledger)

	for _, r := range rejected {
		e.annotate(r.Candidate.Symbol, r.Candidate.Time, r.Reason)
		e.log.WithFields(map[string]any{
			"symbol": r.Candidate.Symbol, "tier": r.Candidate.Tier,
			"score": r.Candidate.Eval.Score,
		}).Debug("entry rejected: ", r.Reason)
	}

	for _, c := range admitted {
		qty := e.alloc.Quantity(account.Equity, c.Candle.Close)
		if qty <= 0 {
			continue
		}
		if _, err := e.manager.OpenPosition(ctx, c.Tier, c.Candle, c.Eval, qty); err != nil {
			e.log.WithError(err).WithField("symbol", c.Symbol).Warn("entry failed")
			continue
		}
		e.markExecuted(c.Symbol, c.Candle.Time)
	}

	return nil
}

// finalize settles pending exits at the final bar of each symbol, since
// no next open exists to execute them at.
func (e *Engine) finalize(ctx context.Context, symbols []string, cursors map[string]int) error {
	for _, symbol := range symbols {
		candles := e.feed.AllCandles(symbol)
		if cursors[symbol] == 0 {
			continue
		}
		last := candles[cursors[symbol]-1]

		positions, err := e.store.Positions(ctx, core.OpenOnly(), core.WithSymbol(symbol))
		if err != nil {
			return err
		}
		for _, p := range positions {
			if err := e.manager.Finalize(ctx, p, last); err != nil {
				return err
			}
		}
	}
	return nil
}

// annotate stamps the blocking reason onto the signal record of a
// rejected candidate, so the record stream explains why no order
// followed a qualifying signal.
func (e *Engine) annotate(symbol string, t time.Time, note string) {
	for i := len(e.signals) - 1; i >= 0; i-- {
		if e.signals[i].Symbol == symbol && e.signals[i].Date.Equal(t) {
			e.signals[i].Note = note
			return
		}
	}
}

func (e *Engine) markExecuted(symbol string, t time.Time) {
	for i := len(e.signals) - 1; i >= 0; i-- {
		if e.signals[i].Symbol == symbol && e.signals[i].Date.Equal(t) {
			e.signals[i].Executed = true
			return
		}
	}
}

// timeline returns the sorted union of all bar timestamps.
func (e *Engine) timeline(symbols []string) []time.Time {
	seen := make(map[int64]time.Time)
	for _, symbol := range symbols {
		for _, candle := range e.feed.AllCandles(symbol) {
			seen[candle.Time.Unix()] = candle.Time
		}
	}

	timeline := make([]time.Time, 0, len(seen))
	for _, t := range seen {
		timeline = append(timeline, t)
	}
	sort.Slice(timeline, func(i, j int) bool { return timeline[i].Before(timeline[j]) })
	return timeline
}

func (e *Engine) result(ctx context.Context) (*Result, error) {
	positions, err := e.store.Positions(ctx)
	if err != nil {
		return nil, err
	}

	account, err := e.broker.Account(ctx)
	if err != nil {
		return nil, err
	}

	return NewResult(e.settings.Backtest.StartCapital, account.Equity, positions, e.signals), nil
}

// Signals returns the append-only signal record stream of the replay.
func (e *Engine) Signals() []core.SignalRecord {
	return e.signals
}
