package trading

import "sync"

// PnLTracker accumulates realized/unrealized profit-and-loss and win
// rate across the lifetime of a running agent.
type PnLTracker struct {
	mu            sync.Mutex
	realizedPnl   float64
	unrealizedPnl float64
	winCount      uint64
	lossCount     uint64
	totalTrades   uint64
}

// NewPnLTracker returns a zeroed tracker.
func NewPnLTracker() *PnLTracker {
	return &PnLTracker{}
}

// RecordTrade folds a closed trade's realized pnl into the running
// totals. A trade counts as a win only when pnl is strictly positive;
// zero or negative counts as a loss.
func (t *PnLTracker) RecordTrade(pnl float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.realizedPnl += pnl
	t.totalTrades++
	if pnl > 0 {
		t.winCount++
	} else {
		t.lossCount++
	}
}

// UpdateUnrealized replaces the current unrealized pnl estimate.
func (t *PnLTracker) UpdateUnrealized(pnl float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.unrealizedPnl = pnl
}

// TotalPnl returns realized plus unrealized pnl.
func (t *PnLTracker) TotalPnl() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.realizedPnl + t.unrealizedPnl
}

// RealizedPnl returns the realized-only total.
func (t *PnLTracker) RealizedPnl() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.realizedPnl
}

// UnrealizedPnl returns the current unrealized estimate.
func (t *PnLTracker) UnrealizedPnl() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unrealizedPnl
}

// WinRate returns the fraction of closed trades that were wins, or 0
// when no trades have been recorded.
func (t *PnLTracker) WinRate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.totalTrades == 0 {
		return 0
	}
	return float64(t.winCount) / float64(t.totalTrades)
}

// TotalTrades returns the number of trades recorded so far.
func (t *PnLTracker) TotalTrades() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalTrades
}

// WinCount returns the number of winning trades recorded so far.
func (t *PnLTracker) WinCount() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.winCount
}

// LossCount returns the number of losing trades recorded so far.
func (t *PnLTracker) LossCount() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lossCount
}
