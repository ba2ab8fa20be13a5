package core

import "time"

// Candle represents one daily price bar with OHLCV data.
// Candles are immutable once produced by a data source.
type Candle struct {
	Symbol   string
	Time     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Complete bool

	// Additional columns from CSV inputs
	Metadata map[string]float64
}

// IsBullish returns true when the candle closed above its open.
func (c Candle) IsBullish() bool { return c.Close > c.Open }

// IsBearish returns true when the candle closed below its open.
func (c Candle) IsBearish() bool { return c.Close < c.Open }

// Body returns the absolute size of the candle body.
func (c Candle) Body() float64 {
	if c.Close > c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range returns the high-low span of the candle.
func (c Candle) Range() float64 { return c.High - c.Low }

// BodyMidpoint returns the midpoint between open and close.
func (c Candle) BodyMidpoint() float64 { return (c.Open + c.Close) / 2 }

