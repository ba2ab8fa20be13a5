package exchange

import (
	"context"
	"fmt"
	"sync"

	"swingline/core"

	"github.com/google/uuid"
)

// PaperBroker is an in-memory broker used by backtests and dry runs.
// Fills are assumed at the marked price; there is no slippage model.
type PaperBroker struct {
	mu sync.Mutex

	cash     float64
	holdings map[string]float64
	marks    map[string]float64

	// failures forces the next N submissions to fail, for exercising the
	// exit retry path.
	failures int
	orders   int
}

// NewPaperBroker creates a paper broker with starting cash.
func NewPaperBroker(cash float64) *PaperBroker {
	return &PaperBroker{
		cash:     cash,
		holdings: make(map[string]float64),
		marks:    make(map[string]float64),
	}
}

// MarkPrice sets the valuation price for a symbol. The backtest marks
// every symbol at each bar close before asking for the account.
func (p *PaperBroker) MarkPrice(symbol string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.marks[symbol] = price
}

// FailSubmissions makes the next n submissions return an error.
func (p *PaperBroker) FailSubmissions(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = n
}

// Account returns cash plus holdings valued at their marked prices.
func (p *PaperBroker) Account(_ context.Context) (core.Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	equity := p.cash
	for symbol, qty := range p.holdings {
		equity += qty * p.marks[symbol]
	}
	return core.Account{Equity: equity, Cash: p.cash, BuyingPower: p.cash}, nil
}

// OpenQuantities returns the held quantity per symbol.
func (p *PaperBroker) OpenQuantities(_ context.Context) (map[string]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	held := make(map[string]float64, len(p.holdings))
	for symbol, qty := range p.holdings {
		if qty > 0 {
			held[symbol] = qty
		}
	}
	return held, nil
}

// SubmitOrder fills a market order at the marked price.
func (p *PaperBroker) SubmitOrder(_ context.Context, side core.DecisionSide, symbol string, qty float64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failures > 0 {
		p.failures--
		return "", fmt.Errorf("order rejected: %s %s", side, symbol)
	}
	if qty <= 0 {
		return "", core.ErrInvalidQuantity
	}

	price, ok := p.marks[symbol]
	if !ok {
		return "", fmt.Errorf("no mark price for %s", symbol)
	}

	switch side {
	case core.DecisionBuy:
		cost := qty * price
		if cost > p.cash {
			return "", fmt.Errorf("insufficient cash: need %.2f have %.2f", cost, p.cash)
		}
		p.cash -= cost
		p.holdings[symbol] += qty
	case core.DecisionSell:
		if p.holdings[symbol] < qty {
			return "", fmt.Errorf("insufficient holdings: %s", symbol)
		}
		p.cash += qty * price
		p.holdings[symbol] -= qty
	default:
		return "", fmt.Errorf("unknown side: %s", side)
	}

	p.orders++
	return uuid.NewString(), nil
}

// OrderCount returns the number of accepted orders.
func (p *PaperBroker) OrderCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.orders
}
