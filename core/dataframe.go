package core

import (
	"time"
)

// Dataframe is a time series container for OHLCV and derived indicator data.
type Dataframe struct {
	Symbol string

	Close  Series[float64]
	Open   Series[float64]
	High   Series[float64]
	Low    Series[float64]
	Volume Series[float64]

	Time       []time.Time
	LastUpdate time.Time

	// Derived indicator series, keyed by name
	Metadata map[string]Series[float64]
}

// NewDataframe creates an empty dataframe for a symbol.
func NewDataframe(symbol string) *Dataframe {
	return &Dataframe{
		Symbol:   symbol,
		Metadata: make(map[string]Series[float64]),
	}
}

// Len returns the number of bars in the dataframe.
func (df *Dataframe) Len() int {
	return len(df.Time)
}

// Append adds one candle to the end of the dataframe.
func (df *Dataframe) Append(c Candle) {
	df.Open = append(df.Open, c.Open)
	df.High = append(df.High, c.High)
	df.Low = append(df.Low, c.Low)
	df.Close = append(df.Close, c.Close)
	df.Volume = append(df.Volume, c.Volume)
	df.Time = append(df.Time, c.Time)
	df.LastUpdate = c.Time
}

// LastCandle rebuilds a recent candle from the series.
// Position 0 is the last bar.
func (df *Dataframe) LastCandle(position int) Candle {
	i := len(df.Time) - 1 - position
	return Candle{
		Symbol:   df.Symbol,
		Time:     df.Time[i],
		Open:     df.Open[i],
		High:     df.High[i],
		Low:      df.Low[i],
		Close:    df.Close[i],
		Volume:   df.Volume[i],
		Complete: true,
	}
}

