package exchange

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"swingline/core"

	"github.com/adshao/go-binance/v2"
)

// Binance implements core.Exchange against the Binance spot API. Equity
// is expressed in the configured quote currency; only quote cash and the
// bot's own holdings count toward it.
type Binance struct {
	client *binance.Client
	quote  string
}

// NewBinance creates a spot exchange adapter.
func NewBinance(apiKey, apiSecret, quote string) *Binance {
	return &Binance{
		client: binance.NewClient(apiKey, apiSecret),
		quote:  strings.ToUpper(quote),
	}
}

// Candles fetches daily klines within [start, end].
func (b *Binance) Candles(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]core.Candle, error) {
	data, err := b.client.NewKlinesService().
		Symbol(symbol).
		Interval(timeframe).
		StartTime(start.UnixMilli()).
		EndTime(end.UnixMilli()).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch klines: %w", err)
	}

	candles := make([]core.Candle, 0, len(data))
	for _, k := range data {
		candles = append(candles, convertKlineToCandle(symbol, *k))
	}
	return candles, nil
}

// CandlesByLimit fetches the most recent complete bars. One extra kline
// is requested and the last one dropped because it is still forming.
func (b *Binance) CandlesByLimit(ctx context.Context, symbol, timeframe string, limit int) ([]core.Candle, error) {
	data, err := b.client.NewKlinesService().
		Symbol(symbol).
		Interval(timeframe).
		Limit(limit + 1).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch klines: %w", err)
	}
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: %s", core.ErrInsufficientData, symbol)
	}

	data = data[:len(data)-1]
	candles := make([]core.Candle, 0, len(data))
	for _, k := range data {
		candles = append(candles, convertKlineToCandle(symbol, *k))
	}
	return candles, nil
}

// LastCandle returns the most recent complete bar.
func (b *Binance) LastCandle(ctx context.Context, symbol, timeframe string) (core.Candle, error) {
	candles, err := b.CandlesByLimit(ctx, symbol, timeframe, 1)
	if err != nil {
		return core.Candle{}, err
	}
	return candles[len(candles)-1], nil
}

// Account returns the quote-currency cash position. Held base assets are
// tracked through the position store, so equity beyond quote cash is
// reconstructed by the caller from open positions.
func (b *Binance) Account(ctx context.Context) (core.Account, error) {
	acc, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return core.Account{}, fmt.Errorf("failed to fetch account: %w", err)
	}

	for _, balance := range acc.Balances {
		if !strings.EqualFold(balance.Asset, b.quote) {
			continue
		}
		free, err := strconv.ParseFloat(balance.Free, 64)
		if err != nil {
			return core.Account{}, err
		}
		locked, err := strconv.ParseFloat(balance.Locked, 64)
		if err != nil {
			return core.Account{}, err
		}
		return core.Account{Equity: free + locked, Cash: free, BuyingPower: free}, nil
	}

	return core.Account{}, fmt.Errorf("no %s balance", b.quote)
}

// OpenQuantities returns the non-zero base asset balances keyed by the
// symbol they trade against the quote currency.
func (b *Binance) OpenQuantities(ctx context.Context) (map[string]float64, error) {
	acc, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account: %w", err)
	}

	held := make(map[string]float64)
	for _, balance := range acc.Balances {
		if strings.EqualFold(balance.Asset, b.quote) {
			continue
		}
		free, err := strconv.ParseFloat(balance.Free, 64)
		if err != nil {
			return nil, err
		}
		locked, err := strconv.ParseFloat(balance.Locked, 64)
		if err != nil {
			return nil, err
		}
		if free+locked > 0 {
			held[strings.ToUpper(balance.Asset)+b.quote] = free + locked
		}
	}
	return held, nil
}

// SubmitOrder places a market order and returns the exchange order ID.
func (b *Binance) SubmitOrder(ctx context.Context, side core.DecisionSide, symbol string, qty float64) (string, error) {
	binanceSide := binance.SideTypeBuy
	if side == core.DecisionSell {
		binanceSide = binance.SideTypeSell
	}

	order, err := b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(binanceSide).
		Type(binance.OrderTypeMarket).
		Quantity(strconv.FormatFloat(qty, 'f', -1, 64)).
		Do(ctx)
	if err != nil {
		return "", fmt.Errorf("order submission failed: %w", err)
	}

	return strconv.FormatInt(order.OrderID, 10), nil
}

func convertKlineToCandle(symbol string, k binance.Kline) core.Candle {
	candle := core.Candle{
		Symbol:   symbol,
		Time:     time.Unix(0, k.OpenTime*int64(time.Millisecond)).UTC(),
		Complete: true,
	}
	candle.Open, _ = strconv.ParseFloat(k.Open, 64)
	candle.Close, _ = strconv.ParseFloat(k.Close, 64)
	candle.High, _ = strconv.ParseFloat(k.High, 64)
	candle.Low, _ = strconv.ParseFloat(k.Low, 64)
	candle.Volume, _ = strconv.ParseFloat(k.Volume, 64)
	return candle
}
