package backtest

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"swingline/core"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// Result aggregates the outcome of one replay.
type Result struct {
	StartCapital float64
	FinalEquity  float64

	Positions []*core.Position
	Signals   []core.SignalRecord
}

// NewResult builds a result from the replayed positions and signals.
func NewResult(startCapital, finalEquity float64, positions []*core.Position, signals []core.SignalRecord) *Result {
	return &Result{
		StartCapital: startCapital,
		FinalEquity:  finalEquity,
		Positions:    positions,
		Signals:      signals,
	}
}

// Closed returns the closed trades in exit order.
func (r *Result) Closed() []*core.Position {
	closed := lo.Filter(r.Positions, func(p *core.Position, _ int) bool {
		return p.Status == core.StatusClosed
	})
	sort.SliceStable(closed, func(i, j int) bool {
		return closed[i].ExitDate.Before(closed[j].ExitDate)
	})
	return closed
}

// Returns lists the weighted percentage return of each closed trade.
func (r *Result) Returns() []float64 {
	return lo.Map(r.Closed(), func(p *core.Position, _ int) float64 {
		return p.RealizedPnL()
	})
}

// WinRate returns the fraction of closed trades with a positive return.
func (r *Result) WinRate() float64 {
	returns := r.Returns()
	if len(returns) == 0 {
		return 0
	}
	wins := lo.CountBy(returns, func(v float64) bool { return v > 0 })
	return float64(wins) / float64(len(returns))
}

// TargetHitRates returns the fraction of closed trades that reached each
// of the three targets.
func (r *Result) TargetHitRates() [3]float64 {
	closed := r.Closed()
	var rates [3]float64
	if len(closed) == 0 {
		return rates
	}
	for _, p := range closed {
		for i, filled := range p.TargetFilled {
			if filled {
				rates[i]++
			}
		}
	}
	for i := range rates {
		rates[i] /= float64(len(closed))
	}
	return rates
}

// EquityCurve compounds the per-trade returns in exit order, each trade
// risking the per-trade fraction of running equity.
func (r *Result) EquityCurve(perTradePct float64) []float64 {
	curve := []float64{r.StartCapital}
	equity := r.StartCapital
	for _, ret := range r.Returns() {
		equity += equity * perTradePct * ret
		curve = append(curve, equity)
	}
	return curve
}

// String renders the replay summary as a text table.
func (r *Result) String() string {
	closed := r.Closed()
	returns := r.Returns()
	open := len(r.Positions) - len(closed)

	var avg, best, worst, stdev float64
	if len(returns) > 0 {
		avg = stat.Mean(returns, nil)
		stdev = stat.StdDev(returns, nil)
		best = lo.Max(returns)
		worst = lo.Min(returns)
	}

	exitCounts := lo.CountValuesBy(closed, func(p *core.Position) core.ExitReason {
		return p.ExitReason
	})
	hitRates := r.TargetHitRates()

	builder := &strings.Builder{}
	table := tablewriter.NewWriter(builder)

	data := [][]string{
		{"Trades", strconv.Itoa(len(closed))},
		{"Still Open", strconv.Itoa(open)},
		{"Win Rate", fmt.Sprintf("%.1f%%", r.WinRate()*100)},
		{"Avg Return", fmt.Sprintf("%.2f%%", avg*100)},
		{"Std Dev", fmt.Sprintf("%.2f%%", stdev*100)},
		{"Best", fmt.Sprintf("%.2f%%", best*100)},
		{"Worst", fmt.Sprintf("%.2f%%", worst*100)},
		{"T1 Hit", fmt.Sprintf("%.1f%%", hitRates[0]*100)},
		{"T2 Hit", fmt.Sprintf("%.1f%%", hitRates[1]*100)},
		{"T3 Hit", fmt.Sprintf("%.1f%%", hitRates[2]*100)},
		{"Stop Exits", strconv.Itoa(exitCounts[core.ExitStopLoss])},
		{"Time Exits", strconv.Itoa(exitCounts[core.ExitTimeLimit])},
		{"Start Capital", fmt.Sprintf("%.2f", r.StartCapital)},
		{"Final Equity", fmt.Sprintf("%.2f", r.FinalEquity)},
	}

	table.AppendBulk(data)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})
	table.Render()

	return builder.String()
}

// PrintTrades renders the closed trade list as a table.
func (r *Result) PrintTrades() {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Symbol", "Tier", "Entry", "Exit", "Qty", "Reason", "Bars", "PnL %"})

	for _, p := range r.Closed() {
		table.Append([]string{
			p.Symbol,
			string(p.Tier),
			fmt.Sprintf("%s @ %.2f", p.EntryDate.Format("2006-01-02"), p.EntryPrice),
			fmt.Sprintf("%s @ %.2f", p.ExitDate.Format("2006-01-02"), p.ExitPrice),
			fmt.Sprintf("%.0f", p.Quantity),
			string(p.ExitReason),
			strconv.Itoa(p.BarsHeld),
			fmt.Sprintf("%.2f", p.RealizedPnL()*100),
		})
	}
	table.Render()
}

// PrintHistogram renders the distribution of trade returns.
func (r *Result) PrintHistogram() {
	returns := r.Returns()
	if len(returns) == 0 {
		return
	}

	percents := lo.Map(returns, func(v float64, _ int) float64 { return v * 100 })
	hist := histogram.Hist(15, percents)
	if err := histogram.Fprint(os.Stdout, hist, histogram.Linear(10)); err != nil {
		fmt.Fprintf(os.Stderr, "failed to render histogram: %v\n", err)
	}
}
