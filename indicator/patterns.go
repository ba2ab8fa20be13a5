package indicator

import (
	"math"

	"swingline/core"
)

// Pattern is a bullish reversal candle pattern.
type Pattern string

const (
	PatternNone        Pattern = ""
	PatternEngulfing   Pattern = "Engulfing"
	PatternPiercing    Pattern = "Piercing"
	PatternTweezer     Pattern = "Tweezer"
	PatternMorningStar Pattern = "MorningStar"
)

const tweezerTolerance = 0.003 // lows within 0.3% of each other

// DetectPattern classifies the latest 1-3 candles as a bullish reversal
// pattern. Checks run in priority order and the first match wins; at most
// one pattern is ever reported.
func DetectPattern(candles []core.Candle) Pattern {
	if len(candles) < 2 {
		return PatternNone
	}

	current := candles[len(candles)-1]
	previous := candles[len(candles)-2]

	if isEngulfing(current, previous) {
		return PatternEngulfing
	}
	if isPiercing(current, previous) {
		return PatternPiercing
	}
	if isTweezerBottom(current, previous) {
		return PatternTweezer
	}
	if len(candles) >= 3 && isMorningStar(current, previous, candles[len(candles)-3]) {
		return PatternMorningStar
	}

	return PatternNone
}

// isEngulfing: a green candle whose body spans the previous red body.
func isEngulfing(current, previous core.Candle) bool {
	return current.IsBullish() &&
		previous.IsBearish() &&
		current.Open <= previous.Close &&
		current.Close >= previous.Open
}

// isPiercing: a green candle opening below the previous red close and
// closing above the previous body midpoint, but not above its open.
func isPiercing(current, previous core.Candle) bool {
	return current.IsBullish() &&
		previous.IsBearish() &&
		current.Open < previous.Close &&
		current.Close > previous.BodyMidpoint() &&
		current.Close < previous.Open
}

// isTweezerBottom: matching lows with a green confirmation candle.
func isTweezerBottom(current, previous core.Candle) bool {
	if previous.Low == 0 {
		return false
	}
	return current.IsBullish() &&
		math.Abs(current.Low-previous.Low)/previous.Low < tweezerTolerance
}

// isMorningStar: large red body, small indecision bar, then a green candle
// closing above the midpoint of the first bar.
func isMorningStar(current, middle, first core.Candle) bool {
	if first.Range() == 0 {
		return false
	}

	largeRedBody := first.IsBearish() && first.Body() >= 0.60*first.Range()
	smallMiddle := middle.Body() < 0.40*first.Body()
	greenRecovery := current.IsBullish() && current.Close > first.BodyMidpoint()

	return largeRedBody && smallMiddle && greenRecovery
}
