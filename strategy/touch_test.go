package strategy

import (
	"testing"
	"time"

	"swingline/core"

	"github.com/stretchr/testify/assert"
)

func frameWithLevels(closes []float64, ema21, sma50, sma200 []float64) *core.Dataframe {
	df := core.NewDataframe("TEST")
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i, close := range closes {
		df.Append(core.Candle{
			Symbol: "TEST",
			Time:   start.AddDate(0, 0, i),
			Open:   close, High: close, Low: close, Close: close,
			Complete: true,
		})
	}
	df.Metadata["ema21"] = ema21
	df.Metadata["sma50"] = sma50
	df.Metadata["sma200"] = sma200
	return df
}

func TestFirstApproachCountsOnce(t *testing.T) {
	tracker := NewTouchTracker(0.025)

	df := frameWithLevels([]float64{100}, []float64{100}, []float64{90}, []float64{80})
	state, touch := tracker.Update("TEST", df)
	assert.Equal(t, TouchEMA21, touch)
	assert.Equal(t, 1, state.EMA21Count)

	// hovering inside the band is still the same approach
	df = frameWithLevels([]float64{100, 100.5}, []float64{100, 100}, []float64{90, 90}, []float64{80, 80})
	state, touch = tracker.Update("TEST", df)
	assert.Equal(t, TouchNone, touch)
	assert.Equal(t, 1, state.EMA21Count)
}

func TestReenteringBandCountsAgain(t *testing.T) {
	tracker := NewTouchTracker(0.025)

	df := frameWithLevels([]float64{100}, []float64{100}, []float64{90}, []float64{80})
	_, touch := tracker.Update("TEST", df)
	assert.Equal(t, TouchEMA21, touch)

	// leave the band
	df = frameWithLevels([]float64{100, 110}, []float64{100, 100}, []float64{90, 90}, []float64{80, 80})
	_, touch = tracker.Update("TEST", df)
	assert.Equal(t, TouchNone, touch)

	// come back: second approach
	df = frameWithLevels([]float64{100, 110, 101}, []float64{100, 100, 100}, []float64{90, 90, 90}, []float64{80, 80, 80})
	state, touch := tracker.Update("TEST", df)
	assert.Equal(t, TouchEMA21, touch)
	assert.Equal(t, 2, state.EMA21Count)
}

func TestSMA50TouchWhenEMA21IsFar(t *testing.T) {
	tracker := NewTouchTracker(0.025)

	df := frameWithLevels([]float64{100}, []float64{120}, []float64{100}, []float64{80})
	state, touch := tracker.Update("TEST", df)
	assert.Equal(t, TouchSMA50, touch)
	assert.Equal(t, 1, state.SMA50Count)
	assert.Equal(t, 0, state.EMA21Count)
}

func TestEMA21TakesPrecedenceOverSMA50(t *testing.T) {
	tracker := NewTouchTracker(0.025)

	// both averages inside the band: only the EMA21 approach is counted
	df := frameWithLevels([]float64{100}, []float64{101}, []float64{99}, []float64{80})
	state, touch := tracker.Update("TEST", df)
	assert.Equal(t, TouchEMA21, touch)
	assert.Equal(t, 1, state.EMA21Count)
	assert.Equal(t, 0, state.SMA50Count)
}

func TestHoverNearBothAveragesCountsOnce(t *testing.T) {
	tracker := NewTouchTracker(0.025)

	df := frameWithLevels([]float64{100}, []float64{100}, []float64{99}, []float64{80})
	state, touch := tracker.Update("TEST", df)
	assert.Equal(t, TouchEMA21, touch)
	assert.Equal(t, 1, state.EMA21Count)

	// still inside both bands: the hover must not be re-attributed to
	// SMA50 as a fresh approach
	df = frameWithLevels([]float64{100, 100.5}, []float64{100, 100}, []float64{99, 99}, []float64{80, 80})
	state, touch = tracker.Update("TEST", df)
	assert.Equal(t, TouchNone, touch)
	assert.Equal(t, 1, state.EMA21Count)
	assert.Equal(t, 0, state.SMA50Count)

	df = frameWithLevels([]float64{100, 100.5, 100}, []float64{100, 100, 100}, []float64{99, 99, 99}, []float64{80, 80, 80})
	state, touch = tracker.Update("TEST", df)
	assert.Equal(t, TouchNone, touch)
	assert.Equal(t, 1, state.EMA21Count)
	assert.Equal(t, 0, state.SMA50Count)
}

func TestGoldenCrossResetsCounts(t *testing.T) {
	tracker := NewTouchTracker(0.025)

	df := frameWithLevels([]float64{100}, []float64{100}, []float64{90}, []float64{80})
	state, _ := tracker.Update("TEST", df)
	assert.Equal(t, 1, state.EMA21Count)
	assert.False(t, state.NewTrend)

	// SMA50 crosses above SMA200: the structural trend restarts
	df = frameWithLevels([]float64{100, 150}, []float64{100, 100}, []float64{79, 85}, []float64{80, 80})
	state, touch := tracker.Update("TEST", df)
	assert.Equal(t, TouchNone, touch)
	assert.Equal(t, 0, state.EMA21Count)
	assert.True(t, state.NewTrend)
}

func TestUnknownSymbolStartsFresh(t *testing.T) {
	tracker := NewTouchTracker(0.025)
	state := tracker.State("NEW")
	assert.True(t, state.NewTrend)
	assert.Zero(t, state.EMA21Count)
}
