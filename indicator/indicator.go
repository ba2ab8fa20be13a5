// Package indicator provides the moving average, oscillator and range
// calculations used by the signal scorer.
package indicator

import (
	"math"

	"github.com/markcheno/go-talib"
)

// EMA calculates the exponential moving average. Inputs shorter than the
// period yield a zero-filled series: not enough history means no value,
// never an error.
func EMA(input []float64, period int) []float64 {
	if len(input) < period {
		return make([]float64, len(input))
	}
	return talib.Ema(input, period)
}

// SMA calculates the simple moving average, zero-filled on short input
// like EMA.
func SMA(input []float64, period int) []float64 {
	if len(input) < period {
		return make([]float64, len(input))
	}
	return talib.Sma(input, period)
}

// RSI calculates the relative strength index using simple rolling means of
// gains and losses over the window. Note this intentionally differs from
// Wilder-smoothed RSI: the rule set is defined on the rolling-mean variant.
func RSI(input []float64, period int) []float64 {
	out := make([]float64, len(input))
	if len(input) <= period {
		return out
	}

	for i := period; i < len(input); i++ {
		var gains, losses float64
		for j := i - period + 1; j <= i; j++ {
			delta := input[j] - input[j-1]
			if delta > 0 {
				gains += delta
			} else {
				losses -= delta
			}
		}

		avgGain := gains / float64(period)
		avgLoss := losses / float64(period)

		if avgLoss == 0 {
			out[i] = 100
			continue
		}
		out[i] = 100 - 100/(1+avgGain/avgLoss)
	}

	return out
}

// TrueRange computes the per-bar true range:
// max(high-low, |high-prevClose|, |low-prevClose|).
func TrueRange(high, low, close []float64) []float64 {
	out := make([]float64, len(close))
	for i := range close {
		if i == 0 {
			out[i] = high[i] - low[i]
			continue
		}
		tr := high[i] - low[i]
		tr = math.Max(tr, math.Abs(high[i]-close[i-1]))
		tr = math.Max(tr, math.Abs(low[i]-close[i-1]))
		out[i] = tr
	}
	return out
}

// ATR calculates the average true range as a simple rolling mean of the
// true range, again the rolling-mean variant rather than Wilder smoothing.
func ATR(high, low, close []float64, period int) []float64 {
	return SMA(TrueRange(high, low, close), period)
}

// VolumeRatio divides each volume by the rolling mean volume over period.
func VolumeRatio(volume []float64, period int) []float64 {
	avg := SMA(volume, period)
	out := make([]float64, len(volume))
	for i := range volume {
		if avg[i] > 0 {
			out[i] = volume[i] / avg[i]
		}
	}
	return out
}

// RollingLow returns the minimum over the trailing window at each bar.
func RollingLow(input []float64, period int) []float64 {
	out := make([]float64, len(input))
	for i := range input {
		start := i - period + 1
		if start < 0 {
			start = 0
		}
		low := input[start]
		for j := start + 1; j <= i; j++ {
			if input[j] < low {
				low = input[j]
			}
		}
		out[i] = low
	}
	return out
}

