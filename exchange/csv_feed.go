// Package exchange provides the market data feeds and brokers: CSV files
// for backtests, Binance spot for live trading and a paper broker.
package exchange

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"swingline/core"

	"github.com/samber/lo"
)

// defaultHeaderMap is the column layout assumed for headerless files.
var defaultHeaderMap = map[string]int{
	"time": 0, "open": 1, "close": 2, "low": 3, "high": 4, "volume": 5,
}

// SymbolFeed binds one symbol to its CSV file of daily bars.
type SymbolFeed struct {
	Symbol string
	File   string
}

// CSVFeed serves daily candles loaded from CSV files. It implements
// core.Feeder for the backtest and for offline live-loop dry runs.
type CSVFeed struct {
	candles map[string][]core.Candle
	cursor  map[string]int
}

// NewCSVFeed loads all feeds. Bars are sorted by time and duplicate
// timestamps are dropped so a replay is deterministic regardless of the
// input file ordering.
func NewCSVFeed(feeds ...SymbolFeed) (*CSVFeed, error) {
	feed := &CSVFeed{
		candles: make(map[string][]core.Candle),
		cursor:  make(map[string]int),
	}

	for _, f := range feeds {
		candles, err := readCandlesFromCSV(f)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", f.File, err)
		}

		sort.SliceStable(candles, func(i, j int) bool {
			return candles[i].Time.Before(candles[j].Time)
		})
		candles = lo.UniqBy(candles, func(c core.Candle) int64 {
			return c.Time.Unix()
		})

		feed.candles[f.Symbol] = candles
	}

	return feed, nil
}

func readCandlesFromCSV(feed SymbolFeed) ([]core.Candle, error) {
	csvFile, err := os.Open(feed.File)
	if err != nil {
		return nil, err
	}
	defer csvFile.Close()

	csvLines, err := csv.NewReader(csvFile).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(csvLines) == 0 {
		return nil, fmt.Errorf("%w: empty file", core.ErrInsufficientData)
	}

	headerMap, extraHeaders, hasHeaders := parseHeaders(csvLines[0])
	if hasHeaders {
		csvLines = csvLines[1:]
	}

	candles := make([]core.Candle, 0, len(csvLines))
	for _, line := range csvLines {
		candle, err := parseCandleFromLine(line, headerMap, extraHeaders, feed.Symbol)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}

	return candles, nil
}

// parseHeaders detects a header row and maps column names to indexes.
// Columns beyond the OHLCV set are preserved as candle metadata.
func parseHeaders(headers []string) (headerMap map[string]int, extra []string, hasHeaders bool) {
	if _, err := strconv.Atoi(headers[0]); err == nil {
		return defaultHeaderMap, nil, false
	}

	headerMap = make(map[string]int)
	for index, header := range headers {
		headerMap[header] = index
		if _, known := defaultHeaderMap[header]; !known {
			extra = append(extra, header)
		}
	}
	return headerMap, extra, true
}

func parseCandleFromLine(line []string, headerMap map[string]int, extraHeaders []string, symbol string) (core.Candle, error) {
	timestamp, err := strconv.ParseInt(line[headerMap["time"]], 10, 64)
	if err != nil {
		return core.Candle{}, err
	}

	candle := core.Candle{
		Symbol:   symbol,
		Time:     time.Unix(timestamp, 0).UTC(),
		Complete: true,
	}

	if candle.Open, err = strconv.ParseFloat(line[headerMap["open"]], 64); err != nil {
		return core.Candle{}, err
	}
	if candle.Close, err = strconv.ParseFloat(line[headerMap["close"]], 64); err != nil {
		return core.Candle{}, err
	}
	if candle.Low, err = strconv.ParseFloat(line[headerMap["low"]], 64); err != nil {
		return core.Candle{}, err
	}
	if candle.High, err = strconv.ParseFloat(line[headerMap["high"]], 64); err != nil {
		return core.Candle{}, err
	}
	if candle.Volume, err = strconv.ParseFloat(line[headerMap["volume"]], 64); err != nil {
		return core.Candle{}, err
	}

	if len(extraHeaders) > 0 {
		candle.Metadata = make(map[string]float64, len(extraHeaders))
		for _, header := range extraHeaders {
			value, err := strconv.ParseFloat(line[headerMap[header]], 64)
			if err != nil {
				return core.Candle{}, err
			}
			candle.Metadata[header] = value
		}
	}

	return candle, nil
}

// Limit drops bars older than duration before each symbol's last bar.
func (c *CSVFeed) Limit(duration time.Duration) *CSVFeed {
	for symbol, candles := range c.candles {
		if len(candles) == 0 {
			continue
		}
		start := candles[len(candles)-1].Time.Add(-duration)
		c.candles[symbol] = lo.Filter(candles, func(candle core.Candle, _ int) bool {
			return candle.Time.After(start)
		})
	}
	return c
}

// Symbols returns the loaded symbols in deterministic order.
func (c *CSVFeed) Symbols() []string {
	symbols := lo.Keys(c.candles)
	sort.Strings(symbols)
	return symbols
}

// AllCandles returns every bar of a symbol for a full replay.
func (c *CSVFeed) AllCandles(symbol string) []core.Candle {
	return c.candles[symbol]
}

// Candles returns the bars within [start, end].
func (c *CSVFeed) Candles(_ context.Context, symbol, _ string, start, end time.Time) ([]core.Candle, error) {
	result := make([]core.Candle, 0)
	for _, candle := range c.candles[symbol] {
		if candle.Time.Before(start) || candle.Time.After(end) {
			continue
		}
		result = append(result, candle)
	}
	return result, nil
}

// CandlesByLimit serves the next window of limit bars and advances the
// feed cursor, so repeated live-loop cycles walk forward through the file.
func (c *CSVFeed) CandlesByLimit(_ context.Context, symbol, _ string, limit int) ([]core.Candle, error) {
	candles := c.candles[symbol]
	end := c.cursor[symbol] + limit
	if end > len(candles) {
		return nil, fmt.Errorf("%w: %s", core.ErrInsufficientData, symbol)
	}

	result := candles[c.cursor[symbol]:end]
	c.cursor[symbol]++
	return result, nil
}

// LastCandle returns the most recent bar of a symbol.
func (c *CSVFeed) LastCandle(_ context.Context, symbol, _ string) (core.Candle, error) {
	candles := c.candles[symbol]
	if len(candles) == 0 {
		return core.Candle{}, fmt.Errorf("%w: %s", core.ErrInsufficientData, symbol)
	}
	return candles[len(candles)-1], nil
}
