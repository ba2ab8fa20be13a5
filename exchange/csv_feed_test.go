package exchange

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVFeedHeaderless(t *testing.T) {
	path := writeCSV(t, "TEST.csv",
		"1672617600,100,101,99,102,1000\n"+
			"1672704000,101,103,100,104,1100\n")

	feed, err := NewCSVFeed(SymbolFeed{Symbol: "TEST", File: path})
	require.NoError(t, err)

	candles := feed.AllCandles("TEST")
	require.Len(t, candles, 2)
	assert.Equal(t, "TEST", candles[0].Symbol)
	assert.Equal(t, 100.0, candles[0].Open)
	assert.Equal(t, 101.0, candles[0].Close)
	assert.Equal(t, 99.0, candles[0].Low)
	assert.Equal(t, 102.0, candles[0].High)
	assert.True(t, candles[0].Complete)
}

func TestCSVFeedCustomHeadersKeepExtras(t *testing.T) {
	path := writeCSV(t, "TEST.csv",
		"time,open,close,low,high,volume,shortable\n"+
			"1672617600,100,101,99,102,1000,1\n")

	feed, err := NewCSVFeed(SymbolFeed{Symbol: "TEST", File: path})
	require.NoError(t, err)

	candles := feed.AllCandles("TEST")
	require.Len(t, candles, 1)
	assert.Equal(t, 1.0, candles[0].Metadata["shortable"])
}

func TestCSVFeedSortsAndDeduplicates(t *testing.T) {
	path := writeCSV(t, "TEST.csv",
		"1672704000,101,103,100,104,1100\n"+
			"1672617600,100,101,99,102,1000\n"+
			"1672617600,100,101,99,102,1000\n")

	feed, err := NewCSVFeed(SymbolFeed{Symbol: "TEST", File: path})
	require.NoError(t, err)

	candles := feed.AllCandles("TEST")
	require.Len(t, candles, 2)
	assert.True(t, candles[0].Time.Before(candles[1].Time))
}

func TestCSVFeedLimit(t *testing.T) {
	path := writeCSV(t, "TEST.csv",
		"1672617600,100,101,99,102,1000\n"+
			"1672704000,101,103,100,104,1100\n"+
			"1672790400,103,105,102,106,1200\n")

	feed, err := NewCSVFeed(SymbolFeed{Symbol: "TEST", File: path})
	require.NoError(t, err)

	feed.Limit(24 * time.Hour)
	assert.Len(t, feed.AllCandles("TEST"), 1)
}

func TestCandlesByLimitWalksForward(t *testing.T) {
	path := writeCSV(t, "TEST.csv",
		"1672617600,100,101,99,102,1000\n"+
			"1672704000,101,103,100,104,1100\n"+
			"1672790400,103,105,102,106,1200\n")

	feed, err := NewCSVFeed(SymbolFeed{Symbol: "TEST", File: path})
	require.NoError(t, err)

	ctx := context.Background()
	window, err := feed.CandlesByLimit(ctx, "TEST", "1d", 2)
	require.NoError(t, err)
	assert.Equal(t, 101.0, window[0].Close)

	// next cycle sees the window advanced by one bar
	window, err = feed.CandlesByLimit(ctx, "TEST", "1d", 2)
	require.NoError(t, err)
	assert.Equal(t, 103.0, window[0].Close)

	_, err = feed.CandlesByLimit(ctx, "TEST", "1d", 3)
	assert.Error(t, err)
}

func TestPaperBrokerRoundTrip(t *testing.T) {
	ctx := context.Background()
	broker := NewPaperBroker(10_000)
	broker.MarkPrice("TEST", 100)

	_, err := broker.SubmitOrder(ctx, "BUY", "TEST", 50)
	require.NoError(t, err)

	account, err := broker.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5_000.0, account.Cash)
	assert.Equal(t, 10_000.0, account.Equity)

	broker.MarkPrice("TEST", 110)
	account, err = broker.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10_500.0, account.Equity)

	_, err = broker.SubmitOrder(ctx, "SELL", "TEST", 50)
	require.NoError(t, err)
	account, err = broker.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10_500.0, account.Cash)
}

func TestPaperBrokerRejectsOverdraft(t *testing.T) {
	ctx := context.Background()
	broker := NewPaperBroker(1_000)
	broker.MarkPrice("TEST", 100)

	_, err := broker.SubmitOrder(ctx, "BUY", "TEST", 50)
	assert.Error(t, err)

	_, err = broker.SubmitOrder(ctx, "SELL", "TEST", 1)
	assert.Error(t, err) // nothing held
}

func TestPaperBrokerFailureInjection(t *testing.T) {
	ctx := context.Background()
	broker := NewPaperBroker(10_000)
	broker.MarkPrice("TEST", 100)
	broker.FailSubmissions(1)

	_, err := broker.SubmitOrder(ctx, "BUY", "TEST", 10)
	require.Error(t, err)

	_, err = broker.SubmitOrder(ctx, "BUY", "TEST", 10)
	assert.NoError(t, err)
	assert.Equal(t, 1, broker.OrderCount())
}
