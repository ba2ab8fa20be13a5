package core

import (
	"context"
	"time"
)

// Exchange combines market data access and order placement.
type Exchange interface {
	Broker
	Feeder
}

// Feeder supplies candle data for watched symbols.
type Feeder interface {
	Candles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]Candle, error)
	CandlesByLimit(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)
	LastCandle(ctx context.Context, symbol, timeframe string) (Candle, error)
}

// Broker is the minimal order-placement capability set. Live adapters and
// the paper broker test double implement the same interface.
type Broker interface {
	Account(ctx context.Context) (Account, error)
	OpenQuantities(ctx context.Context) (map[string]float64, error)
	SubmitOrder(ctx context.Context, side DecisionSide, symbol string, qty float64) (string, error)
}

// Notifier receives human-facing event notifications.
type Notifier interface {
	Notify(message string)
	OnDecision(decision Decision)
	OnError(err error)
}

// NotifierWithStart is a notifier that runs its own receive loop.
type NotifierWithStart interface {
	Notifier
	Start()
}
