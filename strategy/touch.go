package strategy

import (
	"math"

	"swingline/core"
)

// TouchType names the moving average a bar approached.
type TouchType string

const (
	TouchNone  TouchType = ""
	TouchEMA21 TouchType = "EMA21"
	TouchSMA50 TouchType = "SMA50"
)

// TouchState tracks how many times price has approached a moving average
// since the last structural trend change. It outlives individual positions
// and is reset only when SMA50 crosses above SMA200.
type TouchState struct {
	EMA21Count int
	SMA50Count int
	NewTrend   bool

	// whether the previous bar was already inside the approach band,
	// so a multi-bar hover counts as a single approach
	inBandEMA21 bool
	inBandSMA50 bool
}

// Count returns the approach count for a touch type.
func (s TouchState) Count(t TouchType) int {
	switch t {
	case TouchEMA21:
		return s.EMA21Count
	case TouchSMA50:
		return s.SMA50Count
	default:
		return 0
	}
}

// TouchTracker owns the per-symbol touch state arena. All mutation goes
// through Update; nothing here is package-level state.
type TouchTracker struct {
	tolerance float64
	states    map[string]*TouchState
}

// NewTouchTracker creates a tracker with the given approach tolerance
// (fraction of the moving average, e.g. 0.025 for 2.5%).
func NewTouchTracker(tolerance float64) *TouchTracker {
	return &TouchTracker{
		tolerance: tolerance,
		states:    make(map[string]*TouchState),
	}
}

// State returns a copy of the current state for a symbol.
func (t *TouchTracker) State(symbol string) TouchState {
	if s, ok := t.states[symbol]; ok {
		return *s
	}
	return TouchState{NewTrend: true}
}

// Update advances the touch state for the symbol using the latest bar of
// the dataframe. It returns the updated state and the touch registered on
// this bar, if any. The dataframe must already carry sma50/sma200/ema21
// metadata.
func (t *TouchTracker) Update(symbol string, df *core.Dataframe) (TouchState, TouchType) {
	state, ok := t.states[symbol]
	if !ok {
		state = &TouchState{NewTrend: true}
		t.states[symbol] = state
	}

	sma50 := df.Metadata["sma50"]
	sma200 := df.Metadata["sma200"]

	// A golden cross starts a new structural uptrend and resets the counts.
	if df.Len() >= 2 && sma200.Last(0) > 0 && sma50.Crossover(sma200) {
		*state = TouchState{NewTrend: true}
	}

	close := df.Close.Last(0)
	nearEMA21 := t.approached(close, df.Metadata["ema21"].Last(0))
	nearSMA50 := t.approached(close, sma50.Last(0))

	// EMA21 takes precedence: a hover near EMA21 is never re-attributed
	// to SMA50. Both in-band flags advance every bar so a multi-bar
	// hover inside either band stays a single approach.
	touch := TouchNone
	switch {
	case nearEMA21 && !state.inBandEMA21:
		state.EMA21Count++
		touch = TouchEMA21
	case !nearEMA21 && nearSMA50 && !state.inBandSMA50:
		state.SMA50Count++
		touch = TouchSMA50
	}
	state.inBandEMA21 = nearEMA21
	state.inBandSMA50 = nearSMA50

	if touch != TouchNone {
		state.NewTrend = false
	}

	return *state, touch
}

func (t *TouchTracker) approached(price, ma float64) bool {
	if ma <= 0 {
		return false
	}
	return math.Abs(price-ma)/ma <= t.tolerance
}
