// Package evolution tracks a bounded trade-history window and derives a
// fitness score (Sharpe, win rate, PnL, drawdown) consumed by the
// firewall's post-mutation check.
package evolution

import "math"

// TradeRecord is one closed-trade observation fed into the tracker.
type TradeRecord struct {
	TimestampUnix int64
	Asset         string
	EntryPrice    float64
	ExitPrice     float64
	Size          float64
	PnL           float64
}

// Tracker holds a bounded FIFO of trade records and running drawdown
// stats.
type Tracker struct {
	history        []TradeRecord
	maxHistorySize int
	peakEquity     float64
	maxDrawdown    float64
	returns        []float64
}

// New builds a Tracker with the given history capacity.
func New(maxHistorySize int) *Tracker {
	if maxHistorySize <= 0 {
		maxHistorySize = 1000
	}
	return &Tracker{maxHistorySize: maxHistorySize}
}

// RecordTrade appends trade, evicting the oldest entry once over
// capacity, and updates drawdown/return bookkeeping.
func (t *Tracker) RecordTrade(trade TradeRecord) {
	t.history = append(t.history, trade)
	if len(t.history) > t.maxHistorySize {
		t.history = t.history[1:]
	}

	cum := t.cumulativePnL()
	if cum > t.peakEquity {
		t.peakEquity = cum
	}
	drawdown := t.peakEquity - cum
	if drawdown > t.maxDrawdown {
		t.maxDrawdown = drawdown
	}

	if len(t.history) >= 2 {
		prev := t.history[len(t.history)-2]
		denom := math.Max(math.Abs(prev.PnL), 1.0)
		t.returns = append(t.returns, trade.PnL/denom*100.0)
	}
}

func (t *Tracker) cumulativePnL() float64 {
	var sum float64
	for _, r := range t.history {
		sum += r.PnL
	}
	return sum
}

// WinRate returns the percentage of winning trades (0-100). Ties count
// as a loss (see DESIGN.md).
func (t *Tracker) WinRate() float64 {
	if len(t.history) == 0 {
		return 0
	}
	wins := 0
	for _, r := range t.history {
		if r.PnL > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(t.history)) * 100.0
}

// SharpeRatio is mean(returns) / stdev(returns), sample variance (n-1).
// Fewer than two samples returns 0.
func (t *Tracker) SharpeRatio() float64 {
	n := len(t.returns)
	if n < 2 {
		return 0
	}
	var mean float64
	for _, r := range t.returns {
		mean += r
	}
	mean /= float64(n)

	var variance float64
	for _, r := range t.returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(n - 1)

	stdev := math.Sqrt(variance)
	if stdev == 0 {
		return 0
	}
	return mean / stdev
}

// TotalPnL sums PnL across the current (windowed) history, not an
// all-time cumulative total.
func (t *Tracker) TotalPnL() float64 {
	return t.cumulativePnL()
}

// MaxDrawdown returns the largest peak-to-trough equity drop observed.
func (t *Tracker) MaxDrawdown() float64 {
	return t.maxDrawdown
}

// FitnessScore combines Sharpe, win rate, PnL, and drawdown into a
// 0-100 scalar: 40% Sharpe, 30% win rate, 20% PnL, 10% drawdown.
func (t *Tracker) FitnessScore() float64 {
	sharpeScore := clamp(t.SharpeRatio()/3.0, 0, 1) * 40.0
	winRateScore := (t.WinRate() / 100.0) * 30.0
	pnlScore := clamp(t.TotalPnL()/10000.0, 0, 1) * 20.0
	drawdownScore := (1.0 - math.Min(t.maxDrawdown/5000.0, 1.0)) * 10.0

	fitness := sharpeScore + winRateScore + pnlScore + drawdownScore
	return clamp(fitness, 0, 100)
}

// Reset discards all tracked history and statistics.
func (t *Tracker) Reset() {
	t.history = nil
	t.peakEquity = 0
	t.maxDrawdown = 0
	t.returns = nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
