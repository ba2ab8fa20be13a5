// Package strategy implements the signal scoring rule set: indicator
// derivation, touch tracking, multi-timeframe confirmation and the
// score-to-action classification shared by the live loop and the
// backtest replay.
package strategy

import (
	"fmt"

	"swingline/core"
	"swingline/indicator"
)

// Evaluation is the outcome of scoring one symbol on one bar.
type Evaluation struct {
	Score   float64
	Action  core.Action
	Checks  []string
	Pattern indicator.Pattern
	Touch   TouchType
	Reason  string
}

// Scorer combines indicators, touch state, patterns and multi-timeframe
// confirmation into a score and an action label.
type Scorer struct {
	cfg     core.StrategySettings
	touches *TouchTracker
	log     core.Logger
}

// NewScorer creates a scorer with its own touch state arena.
func NewScorer(cfg core.StrategySettings, log core.Logger) *Scorer {
	return &Scorer{
		cfg:     cfg,
		touches: NewTouchTracker(cfg.TouchTolerance),
		log:     log,
	}
}

// WarmupPeriod is the number of bars required before the first eligible
// entry check.
func (s *Scorer) WarmupPeriod() int {
	return s.cfg.WarmupBars
}

// Indicators fills the dataframe metadata with the derived series the
// scorer needs. Pure recomputation from the bar series; no side effects
// on tracker state.
func (s *Scorer) Indicators(df *core.Dataframe) {
	df.Metadata["ema21"] = indicator.EMA(df.Close, 21)
	df.Metadata["sma50"] = indicator.SMA(df.Close, 50)
	df.Metadata["sma200"] = indicator.SMA(df.Close, 200)
	df.Metadata["rsi14"] = indicator.RSI(df.Close, 14)
	df.Metadata["atr14"] = indicator.ATR(df.High, df.Low, df.Close, 14)
	df.Metadata["atr21"] = indicator.ATR(df.High, df.Low, df.Close, 21)
	df.Metadata["vol_ratio"] = indicator.VolumeRatio(df.Volume, 21)
	df.Metadata["low21"] = indicator.RollingLow(df.Close, 21)
}

// Evaluate scores the latest bar and classifies the action. It advances
// the symbol's touch state, so it must be called exactly once per bar.
func (s *Scorer) Evaluate(df *core.Dataframe) Evaluation {
	state, touch := s.touches.Update(df.Symbol, df)
	pattern := s.detectPattern(df)

	eval := Evaluation{Pattern: pattern, Touch: touch}

	close := df.Close.Last(0)
	ema21 := df.Metadata["ema21"].Last(0)
	sma50 := df.Metadata["sma50"].Last(0)
	sma200 := df.Metadata["sma200"].Last(0)

	addCheck := func(points float64, name string) {
		eval.Score += points
		eval.Checks = append(eval.Checks, name)
	}

	if df.Metadata["rsi14"].Last(0) > 50 {
		addCheck(1, "rsi>50")
	}

	weeklyOK, monthlyOK := s.MultiTimeframeConfirmation(df)
	if weeklyOK {
		addCheck(1, "weekly")
	}
	if monthlyOK {
		addCheck(1, "monthly")
	}

	if df.Metadata["vol_ratio"].Last(0) > 1 {
		addCheck(1, "volume")
	}

	if close <= df.Metadata["low21"].Last(0)*s.cfg.DemandZoneFactor {
		addCheck(1, "demand_zone")
	}

	// Approaches to a moving average earn a diminishing bonus: the first
	// counted touch is worth a full point, the second half, later ones
	// nothing.
	if touch != TouchNone {
		switch state.Count(touch) {
		case 1:
			addCheck(1, "touch")
		case 2:
			addCheck(0.5, "touch_repeat")
		}
	}

	if pattern != indicator.PatternNone && touch != TouchNone {
		addCheck(1, "pattern")
	}

	// Classification order matters; the first matching label wins.
	switch {
	case !(sma50 > sma200 && ema21 >= sma50*s.cfg.StructureFactor):
		eval.Action = core.ActionAvoid
		eval.Reason = "market structure not bullish"
	case close < sma200*s.cfg.TrendFloorFactor:
		eval.Action = core.ActionAvoid
		eval.Reason = fmt.Sprintf("price below SMA200 floor (%.2f)", sma200*s.cfg.TrendFloorFactor)
	case s.isStalling(df):
		eval.Action = core.ActionWatch
		eval.Reason = "stalling"
	case eval.Score >= s.cfg.EntryThreshold && (touch != TouchNone || pattern != indicator.PatternNone):
		eval.Action = core.ActionBuySetup
		eval.Reason = fmt.Sprintf("score %.1f with confirmation", eval.Score)
	case eval.Score >= s.cfg.EntryThreshold-1:
		eval.Action = core.ActionWatch
		eval.Reason = "near threshold"
	case eval.Score >= 2:
		eval.Action = core.ActionWait
		eval.Reason = "weak setup"
	default:
		eval.Action = core.ActionAvoid
		eval.Reason = "no setup"
	}

	return eval
}

// MultiTimeframeConfirmation resamples the daily series and checks the
// weekly close against its EMA21 and the monthly close against its EMA10.
func (s *Scorer) MultiTimeframeConfirmation(df *core.Dataframe) (weeklyOK, monthlyOK bool) {
	weekly := WeeklyCloses(df)
	if len(weekly) > s.cfg.WeeklyEMAPeriod {
		ema := indicator.EMA(weekly, s.cfg.WeeklyEMAPeriod)
		weeklyOK = weekly[len(weekly)-1] > ema[len(ema)-1]
	}

	monthly := MonthlyCloses(df)
	if len(monthly) > s.cfg.MonthlyEMAPeriod {
		ema := indicator.EMA(monthly, s.cfg.MonthlyEMAPeriod)
		monthlyOK = monthly[len(monthly)-1] > ema[len(ema)-1]
	}

	return weeklyOK, monthlyOK
}

// isStalling reports a dead tape: the range of the last stallWindow bars
// is below the threshold fraction of the window low. A consolidation that
// is itself still narrowing (the last 3 bars are below the same absolute
// threshold) is deliberately not counted as stalling.
func (s *Scorer) isStalling(df *core.Dataframe) bool {
	window := s.cfg.StallWindow
	if df.Len() < window {
		return false
	}

	low := df.Low.Lowest(window)
	high := df.High.Highest(window)
	threshold := low * s.cfg.StallThreshold

	if high-low >= threshold {
		return false
	}

	narrowLow := df.Low.Lowest(3)
	narrowHigh := df.High.Highest(3)
	return narrowHigh-narrowLow >= threshold
}

func (s *Scorer) detectPattern(df *core.Dataframe) indicator.Pattern {
	n := df.Len()
	count := 3
	if n < count {
		count = n
	}

	candles := make([]core.Candle, 0, count)
	for i := count - 1; i >= 0; i-- {
		candles = append(candles, df.LastCandle(i))
	}
	return indicator.DetectPattern(candles)
}
