// Package bot runs the live decision loop. Each cycle fetches the latest
// daily bars, manages open positions and evaluates new entries with the
// exact same scorer and lifecycle manager the backtest replays through.
package bot

import (
	"context"
	"fmt"
	"sort"
	"time"

	"swingline/core"
	"swingline/order"
	"swingline/strategy"

	"github.com/xhit/go-str2duration/v2"
)

// Bot is the live trading loop.
type Bot struct {
	settings core.Settings
	exchange core.Exchange
	store    core.PositionStore
	scorer   *strategy.Scorer
	manager  *order.Manager
	alloc    *order.Allocator
	feed     *order.Feed
	notifier core.Notifier
	log      core.Logger

	// lastProcessed guards against evaluating the same bar twice when a
	// cycle fires before the exchange produced a new daily candle.
	lastProcessed map[string]time.Time
	frames        map[string]*core.Dataframe
}

// New creates a live bot.
func New(settings core.Settings, exch core.Exchange, store core.PositionStore,
	manager *order.Manager, feed *order.Feed, notifier core.Notifier, log core.Logger) *Bot {
	return &Bot{
		settings:      settings,
		exchange:      exch,
		store:         store,
		scorer:        strategy.NewScorer(settings.Strategy, log),
		manager:       manager,
		alloc:         order.NewAllocator(settings.Allocator),
		feed:          feed,
		notifier:      notifier,
		log:           log,
		lastProcessed: make(map[string]time.Time),
		frames:        make(map[string]*core.Dataframe),
	}
}

// Run cycles until the context is cancelled. The first cycle runs
// immediately; later cycles follow the configured interval.
func (b *Bot) Run(ctx context.Context) error {
	interval, err := str2duration.ParseDuration(b.settings.Bot.Interval)
	if err != nil {
		return fmt.Errorf("invalid interval %q: %w", b.settings.Bot.Interval, err)
	}

	if b.notifier != nil {
		if starter, ok := b.notifier.(core.NotifierWithStart); ok {
			go starter.Start()
		}
	}

	b.log.WithFields(map[string]any{
		"symbols": len(b.settings.Symbols), "interval": interval.String(),
	}).Info("live loop started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := b.cycle(ctx); err != nil {
			b.log.WithError(err).Error("cycle failed")
			if b.notifier != nil {
				b.notifier.OnError(err)
			}
		}

		select {
		case <-ctx.Done():
			b.log.Info("live loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// cycle runs one full pass over all watched symbols. Symbols are visited
// in lexical order and a failing symbol is skipped, never fatal.
func (b *Bot) cycle(ctx context.Context) error {
	symbols := append([]string(nil), b.settings.Symbols...)
	sort.Strings(symbols)

	var candidates []order.Candidate
	var records []*core.SignalRecord

	for _, symbol := range symbols {
		candidate, record, err := b.processSymbol(ctx, symbol)
		if err != nil {
			b.log.WithError(err).WithField("symbol", symbol).Warn("symbol skipped")
			continue
		}
		if candidate != nil {
			candidates = append(candidates, *candidate)
		}
		if record != nil {
			records = append(records, record)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	if err := b.executeEntries(ctx, candidates, records); err != nil {
		return err
	}

	if b.feed != nil {
		for _, rec := range records {
			b.feed.PublishSignal(*rec)
		}
	}
	return nil
}

func (b *Bot) processSymbol(ctx context.Context, symbol string) (*order.Candidate, *core.SignalRecord, error) {
	candles, err := b.exchange.CandlesByLimit(ctx, symbol, b.settings.Timeframe, b.settings.Bot.Lookback)
	if err != nil {
		return nil, nil, err
	}
	if len(candles) == 0 {
		return nil, nil, core.ErrInsufficientData
	}

	last := candles[len(candles)-1]
	if !last.Time.After(b.lastProcessed[symbol]) {
		return nil, nil, nil // no new bar since the previous cycle
	}

	df := core.NewDataframe(symbol)
	for _, candle := range candles {
		df.Append(candle)
	}
	b.frames[symbol] = df

	positions, err := b.store.Positions(ctx, core.OpenOnly(), core.WithSymbol(symbol))
	if err != nil {
		return nil, nil, err
	}
	for _, p := range positions {
		if err := b.manager.OnCandle(ctx, p, last); err != nil {
			return nil, nil, err
		}
	}

	b.lastProcessed[symbol] = last.Time

	if df.Len() < b.scorer.WarmupPeriod() {
		return nil, nil, nil
	}

	b.scorer.Indicators(df)
	eval := b.scorer.Evaluate(df)

	b.log.WithFields(map[string]any{
		"symbol": symbol, "score": eval.Score, "action": eval.Action,
	}).Debug(eval.Reason)

	candidate, note, err := order.EntryCandidate(ctx, b.store, b.settings.Strategy, last, eval)
	if err != nil {
		return nil, nil, err
	}

	record := &core.SignalRecord{
		Symbol:  symbol,
		Date:    last.Time,
		Score:   eval.Score,
		Action:  eval.Action,
		Checks:  eval.Checks,
		Pattern: string(eval.Pattern),
		Touch:   string(eval.Touch),
		Price:   last.Close,
		Reason:  eval.Reason,
		Note:    note,
	}
	return candidate, record, nil
}

// executeEntries ranks this cycle's candidates and opens the admitted
// ones at their signal close. Rejections and fills are stamped onto the
// cycle's signal records before they are published.
func (b *Bot) executeEntries(ctx context.Context, candidates []order.Candidate, records []*core.SignalRecord) error {
	if len(candidates) == 0 {
		return nil
	}

	account, err := b.exchange.Account(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch account: %w", err)
	}

	open, err := b.store.Positions(ctx, core.OpenOnly())
	if err != nil {
		return err
	}

	ledger := order.Ledger{Equity: b.equity(account, open), OpenCount: len(open)}
	for _, p := range open {
		ledger.Exposure += p.Exposure()
	}

	admitted, rejected := b.alloc.SelectEntries(candidates, ledger)
	for _, r := range rejected {
		if rec := recordFor(records, r.Candidate.Symbol, r.Candidate.Time); rec != nil {
			rec.Note = r.Reason
		}
		b.log.WithFields(map[string]any{
			"symbol": r.Candidate.Symbol, "tier": r.Candidate.Tier,
		}).Info("entry rejected: ", r.Reason)
	}

	for _, c := range admitted {
		qty := b.alloc.Quantity(ledger.Equity, c.Candle.Close)
		if qty <= 0 {
			continue
		}
		if _, err := b.manager.OpenPosition(ctx, c.Tier, c.Candle, c.Eval, qty); err != nil {
			b.log.WithError(err).WithField("symbol", c.Symbol).Warn("entry failed")
			continue
		}
		if rec := recordFor(records, c.Symbol, c.Time); rec != nil {
			rec.Executed = true
		}
	}

	return nil
}

func recordFor(records []*core.SignalRecord, symbol string, t time.Time) *core.SignalRecord {
	for _, rec := range records {
		if rec.Symbol == symbol && rec.Date.Equal(t) {
			return rec
		}
	}
	return nil
}

// equity reconstructs total equity from quote cash plus open positions
// marked at their latest close.
func (b *Bot) equity(account core.Account, open []*core.Position) float64 {
	equity := account.Cash
	for _, p := range open {
		mark := p.EntryPrice
		if df, ok := b.frames[p.Symbol]; ok && df.Len() > 0 {
			mark = df.Close.Last(0)
		}
		equity += p.RemainingQty * mark
	}
	return equity
}
