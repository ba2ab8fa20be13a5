package order

import (
	"testing"
	"time"

	"swingline/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedDispatchesToConsumers(t *testing.T) {
	feed := NewFeed()

	decisions := make(chan core.Decision, 1)
	errs := make(chan error, 1)
	feed.OnDecision(func(d core.Decision) { decisions <- d })
	feed.OnError(func(err error) { errs <- err })

	feed.Start()
	defer feed.Stop()

	feed.PublishDecision(core.Decision{Side: core.DecisionBuy, Symbol: "TEST", Quantity: 9})
	feed.PublishError(core.ErrExitFailed)

	select {
	case d := <-decisions:
		assert.Equal(t, "TEST", d.Symbol)
		assert.Equal(t, core.DecisionBuy, d.Side)
	case <-time.After(time.Second):
		t.Fatal("decision not dispatched")
	}

	select {
	case err := <-errs:
		require.ErrorIs(t, err, core.ErrExitFailed)
	case <-time.After(time.Second):
		t.Fatal("error not dispatched")
	}
}

func TestFeedPublishNeverBlocksWithoutConsumers(t *testing.T) {
	feed := NewFeed()

	// no Start, no consumers: publishing must still return immediately
	for i := 0; i < 1000; i++ {
		feed.PublishDecision(core.Decision{Symbol: "TEST"})
		feed.PublishSignal(core.SignalRecord{Symbol: "TEST"})
		feed.PublishError(core.ErrInsufficientData)
	}
}
