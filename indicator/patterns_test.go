package indicator

import (
	"testing"

	"swingline/core"

	"github.com/stretchr/testify/assert"
)

func candle(open, high, low, close float64) core.Candle {
	return core.Candle{Symbol: "TEST", Open: open, High: high, Low: low, Close: close}
}

func TestDetectPattern(t *testing.T) {
	tests := []struct {
		name    string
		candles []core.Candle
		want    Pattern
	}{
		{
			name: "bullish engulfing",
			candles: []core.Candle{
				candle(10, 10.1, 8.9, 9),
				candle(8.9, 10.3, 8.8, 10.2),
			},
			want: PatternEngulfing,
		},
		{
			name: "piercing line",
			candles: []core.Candle{
				candle(10, 10.1, 8.7, 9),
				candle(8.8, 9.7, 8.6, 9.6),
			},
			want: PatternPiercing,
		},
		{
			name: "tweezer bottom",
			candles: []core.Candle{
				candle(9.2, 9.6, 9.0, 9.5),
				candle(9.1, 9.5, 9.01, 9.4),
			},
			want: PatternTweezer,
		},
		{
			name: "morning star",
			candles: []core.Candle{
				candle(100, 101, 89, 90),
				candle(89.5, 90.5, 88.5, 90),
				candle(91, 96.5, 90.5, 96),
			},
			want: PatternMorningStar,
		},
		{
			name: "uptrend without reversal shape",
			candles: []core.Candle{
				candle(9, 9.6, 8.9, 9.5),
				candle(9.5, 10.2, 9.45, 10.1),
			},
			want: PatternNone,
		},
		{
			name:    "single candle is never a pattern",
			candles: []core.Candle{candle(10, 11, 9, 10.5)},
			want:    PatternNone,
		},
		{
			name:    "no candles",
			candles: nil,
			want:    PatternNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectPattern(tt.candles))
		})
	}
}

func TestEngulfingTakesPriorityOverTweezer(t *testing.T) {
	// matching lows AND a full engulfing body: the first check wins
	candles := []core.Candle{
		candle(10, 10.1, 9.0, 9.2),
		candle(9.1, 10.4, 9.0, 10.3),
	}
	assert.Equal(t, PatternEngulfing, DetectPattern(candles))
}

func TestPiercingMustStayBelowPreviousOpen(t *testing.T) {
	// closes above the previous open: that is an engulfing, not a piercing
	candles := []core.Candle{
		candle(10, 10.1, 8.7, 9),
		candle(8.8, 10.6, 8.6, 10.5),
	}
	assert.Equal(t, PatternEngulfing, DetectPattern(candles))
}
