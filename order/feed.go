package order

import (
	"sync"

	"swingline/core"
)

// DecisionConsumer processes trade decision events.
type DecisionConsumer func(decision core.Decision)

// SignalConsumer processes signal records.
type SignalConsumer func(record core.SignalRecord)

// ErrorConsumer processes engine errors (e.g. failed exits).
type ErrorConsumer func(err error)

// Feed fans out signal records and trade decision events to monitoring
// and order-placement consumers. Publishing never blocks the decision
// path: events are dropped when a consumer channel is full.
type Feed struct {
	mu sync.RWMutex

	decisions chan core.Decision
	signals   chan core.SignalRecord
	errs      chan error

	decisionConsumers []DecisionConsumer
	signalConsumers   []SignalConsumer
	errorConsumers    []ErrorConsumer

	done chan struct{}
}

// NewFeed creates a decision feed.
func NewFeed() *Feed {
	return &Feed{
		decisions: make(chan core.Decision, 128),
		signals:   make(chan core.SignalRecord, 512),
		errs:      make(chan error, 32),
		done:      make(chan struct{}),
	}
}

// OnDecision registers a decision consumer.
func (f *Feed) OnDecision(consumer DecisionConsumer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisionConsumers = append(f.decisionConsumers, consumer)
}

// OnSignal registers a signal record consumer.
func (f *Feed) OnSignal(consumer SignalConsumer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signalConsumers = append(f.signalConsumers, consumer)
}

// OnError registers an error consumer.
func (f *Feed) OnError(consumer ErrorConsumer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errorConsumers = append(f.errorConsumers, consumer)
}

// PublishDecision emits a trade decision event.
func (f *Feed) PublishDecision(decision core.Decision) {
	select {
	case f.decisions <- decision:
	default:
	}
}

// PublishSignal emits a signal record.
func (f *Feed) PublishSignal(record core.SignalRecord) {
	select {
	case f.signals <- record:
	default:
	}
}

// PublishError emits an engine error.
func (f *Feed) PublishError(err error) {
	select {
	case f.errs <- err:
	default:
	}
}

// Start begins dispatching events to registered consumers.
func (f *Feed) Start() {
	go f.dispatch()
}

// Stop shuts down dispatching.
func (f *Feed) Stop() {
	close(f.done)
}

func (f *Feed) dispatch() {
	for {
		select {
		case decision := <-f.decisions:
			f.mu.RLock()
			consumers := f.decisionConsumers
			f.mu.RUnlock()
			for _, consumer := range consumers {
				consumer(decision)
			}
		case record := <-f.signals:
			f.mu.RLock()
			consumers := f.signalConsumers
			f.mu.RUnlock()
			for _, consumer := range consumers {
				consumer(record)
			}
		case err := <-f.errs:
			f.mu.RLock()
			consumers := f.errorConsumers
			f.mu.RUnlock()
			for _, consumer := range consumers {
				consumer(err)
			}
		case <-f.done:
			return
		}
	}
}
