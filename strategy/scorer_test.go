package strategy

import (
	"testing"
	"time"

	"swingline/core"
	zerologger "swingline/logger/zerolog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScorer() *Scorer {
	return NewScorer(core.DefaultSettings().Strategy, zerologger.New(core.Disabled))
}

// flatFrame builds a frame of flat bars at 100 with the last close moved
// to lastClose, plus hand-set indicator levels.
func flatFrame(bars int, lastClose float64, meta map[string]float64) *core.Dataframe {
	df := core.NewDataframe("TEST")
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < bars; i++ {
		price := 100.0
		if i == bars-1 {
			price = lastClose
		}
		df.Append(core.Candle{
			Symbol: "TEST", Time: start.AddDate(0, 0, i),
			Open: price, High: price, Low: price, Close: price,
			Volume: 1000, Complete: true,
		})
	}
	for name, level := range meta {
		series := make(core.Series[float64], bars)
		for i := range series {
			series[i] = level
		}
		df.Metadata[name] = series
	}
	return df
}

func bullishLevels() map[string]float64 {
	return map[string]float64{
		"ema21": 100, "sma50": 99, "sma200": 90,
		"rsi14": 60, "vol_ratio": 1.5, "low21": 99,
	}
}

func TestEvaluateBuySetupOnFirstTouch(t *testing.T) {
	s := newTestScorer()

	eval := s.Evaluate(flatFrame(8, 100, bullishLevels()))

	assert.Equal(t, core.ActionBuySetup, eval.Action)
	assert.Equal(t, 4.0, eval.Score)
	assert.Equal(t, TouchEMA21, eval.Touch)
	assert.Contains(t, eval.Checks, "touch")
	assert.Contains(t, eval.Checks, "rsi>50")
	assert.Contains(t, eval.Checks, "volume")
	assert.Contains(t, eval.Checks, "demand_zone")
}

func TestTouchBonusDiminishes(t *testing.T) {
	s := newTestScorer()

	// first approach: full point
	eval := s.Evaluate(flatFrame(8, 100, bullishLevels()))
	assert.Contains(t, eval.Checks, "touch")

	// hovering in the band is not a new approach
	eval = s.Evaluate(flatFrame(9, 100, bullishLevels()))
	assert.NotContains(t, eval.Checks, "touch")
	assert.NotContains(t, eval.Checks, "touch_repeat")
	assert.Equal(t, 3.0, eval.Score)
	assert.Equal(t, core.ActionWatch, eval.Action)

	// leave the band, then return: half a point
	s.Evaluate(flatFrame(10, 110, bullishLevels()))
	eval = s.Evaluate(flatFrame(11, 100, bullishLevels()))
	assert.Contains(t, eval.Checks, "touch_repeat")
	assert.Equal(t, 3.5, eval.Score)

	// third approach earns nothing
	s.Evaluate(flatFrame(12, 110, bullishLevels()))
	eval = s.Evaluate(flatFrame(13, 100, bullishLevels()))
	assert.NotContains(t, eval.Checks, "touch")
	assert.NotContains(t, eval.Checks, "touch_repeat")
	assert.Equal(t, 3.0, eval.Score)
}

func TestAvoidWhenStructureBearish(t *testing.T) {
	s := newTestScorer()

	levels := bullishLevels()
	levels["sma50"] = 85
	levels["sma200"] = 90

	eval := s.Evaluate(flatFrame(8, 100, levels))
	assert.Equal(t, core.ActionAvoid, eval.Action)
	assert.Equal(t, "market structure not bullish", eval.Reason)
}

func TestAvoidBelowTrendFloor(t *testing.T) {
	s := newTestScorer()

	levels := map[string]float64{
		"ema21": 125, "sma50": 125, "sma200": 120,
		"rsi14": 60, "vol_ratio": 1.5, "low21": 99,
	}

	eval := s.Evaluate(flatFrame(8, 100, levels))
	assert.Equal(t, core.ActionAvoid, eval.Action)
	assert.Contains(t, eval.Reason, "floor")
}

func TestActionLadder(t *testing.T) {
	tests := []struct {
		name   string
		levels map[string]float64
		want   core.Action
	}{
		{
			name: "score 3 watches",
			levels: map[string]float64{
				"ema21": 120, "sma50": 110, "sma200": 90,
				"rsi14": 60, "vol_ratio": 1.5, "low21": 99,
			},
			want: core.ActionWatch,
		},
		{
			name: "score 2 waits",
			levels: map[string]float64{
				"ema21": 120, "sma50": 110, "sma200": 90,
				"rsi14": 60, "vol_ratio": 1.5, "low21": 90,
			},
			want: core.ActionWait,
		},
		{
			name: "no components avoids",
			levels: map[string]float64{
				"ema21": 120, "sma50": 110, "sma200": 90,
				"rsi14": 40, "vol_ratio": 0.5, "low21": 90,
			},
			want: core.ActionAvoid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScorer()
			eval := s.Evaluate(flatFrame(8, 100, tt.levels))
			assert.Equal(t, tt.want, eval.Action)
		})
	}
}

func TestNarrowingConsolidationIsNotStalling(t *testing.T) {
	s := newTestScorer()

	// a dead-flat tape passes the 8-bar tightness test, but the last 3
	// bars are tight under the same threshold, so the exemption holds
	df := flatFrame(8, 100, bullishLevels())
	assert.False(t, s.isStalling(df))

	// a wide 8-bar range is never stalling
	df = flatFrame(8, 110, bullishLevels())
	assert.False(t, s.isStalling(df))

	// not enough bars
	df = flatFrame(5, 100, bullishLevels())
	assert.False(t, s.isStalling(df))
}

func risingFrame(bars int, growth float64) *core.Dataframe {
	df := core.NewDataframe("TEST")
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := 0; i < bars; i++ {
		next := price * (1 + growth)
		df.Append(core.Candle{
			Symbol: "TEST", Time: start.AddDate(0, 0, i),
			Open: price, High: next, Low: price, Close: next,
			Volume: 1000, Complete: true,
		})
		price = next
	}
	return df
}

func TestMultiTimeframeConfirmation(t *testing.T) {
	s := newTestScorer()

	up := risingFrame(400, 0.001)
	weeklyOK, monthlyOK := s.MultiTimeframeConfirmation(up)
	assert.True(t, weeklyOK)
	assert.True(t, monthlyOK)

	down := risingFrame(400, -0.001)
	weeklyOK, monthlyOK = s.MultiTimeframeConfirmation(down)
	assert.False(t, weeklyOK)
	assert.False(t, monthlyOK)
}

func TestEvaluateAtWarmupLengthWithoutFullSMA200(t *testing.T) {
	s := newTestScorer()

	// 50 bars: enough to evaluate, far short of the SMA200 window
	df := risingFrame(50, 0.001)
	s.Indicators(df)

	require.Contains(t, df.Metadata, "sma200")
	assert.Zero(t, df.Metadata["sma200"].Last(0))

	eval := s.Evaluate(df)
	assert.NotEmpty(t, eval.Reason)
}

func TestSteadyUptrendNearEMA21ScoresBuySetup(t *testing.T) {
	s := newTestScorer()

	df := risingFrame(400, 0.001)
	s.Indicators(df)
	require.Contains(t, df.Metadata, "ema21")

	eval := s.Evaluate(df)
	assert.Equal(t, core.ActionBuySetup, eval.Action)
	assert.GreaterOrEqual(t, eval.Score, 4.0)
	assert.Equal(t, TouchEMA21, eval.Touch)
}
