package order

import (
	"context"

	"swingline/core"
	"swingline/strategy"
)

// NoteOpportunity marks a signal that cleared the primary-open condition
// but not the secondary score bar. It is informational only; no order
// follows from it.
const NoteOpportunity = "opportunity"

// EntryCandidate applies the dual-tier entry gate to one evaluated bar.
// A primary entry needs a full buy setup and a free primary slot. With a
// primary already open and the secondary slot free, a secondary entry
// needs only a score at or above the secondary threshold. Below that bar
// the signal is tagged with NoteOpportunity in the returned note and no
// candidate is produced.
//
// The live loop and the backtest both route through this function, so an
// entry decision can never differ between the two.
func EntryCandidate(ctx context.Context, store core.PositionStore, cfg core.StrategySettings,
	candle core.Candle, eval strategy.Evaluation) (*Candidate, string, error) {

	primaries, err := store.Positions(ctx, core.OpenOnly(), core.WithSymbol(candle.Symbol), core.WithTier(core.TierPrimary))
	if err != nil {
		return nil, "", err
	}

	if len(primaries) == 0 {
		if eval.Action != core.ActionBuySetup {
			return nil, "", nil
		}
		return &Candidate{
			Symbol: candle.Symbol, Tier: core.TierPrimary,
			Candle: candle, Eval: eval, Time: candle.Time,
		}, "", nil
	}

	secondaries, err := store.Positions(ctx, core.OpenOnly(), core.WithSymbol(candle.Symbol), core.WithTier(core.TierSecondary))
	if err != nil {
		return nil, "", err
	}
	if len(secondaries) > 0 {
		return nil, "", nil
	}

	if eval.Score < cfg.SecondaryThreshold {
		return nil, NoteOpportunity, nil
	}

	return &Candidate{
		Symbol: candle.Symbol, Tier: core.TierSecondary,
		Candle: candle, Eval: eval, Time: candle.Time,
	}, "", nil
}
