package trading

import "testing"

func TestPnLTrackerRecordTradeWin(t *testing.T) {
	tr := NewPnLTracker()
	tr.RecordTrade(10.5)
	if got := tr.WinCount(); got != 1 {
		t.Fatalf("WinCount() = %d, want 1", got)
	}
	if got := tr.RealizedPnl(); got != 10.5 {
		t.Fatalf("RealizedPnl() = %v, want 10.5", got)
	}
}

func TestPnLTrackerZeroPnlCountsAsLoss(t *testing.T) {
	tr := NewPnLTracker()
	tr.RecordTrade(0)
	if got := tr.LossCount(); got != 1 {
		t.Fatalf("LossCount() = %d, want 1", got)
	}
	if got := tr.WinCount(); got != 0 {
		t.Fatalf("WinCount() = %d, want 0", got)
	}
}

func TestPnLTrackerNegativePnlIsLoss(t *testing.T) {
	tr := NewPnLTracker()
	tr.RecordTrade(-5)
	if got := tr.LossCount(); got != 1 {
		t.Fatalf("LossCount() = %d, want 1", got)
	}
}

func TestPnLTrackerWinRateMixed(t *testing.T) {
	tr := NewPnLTracker()
	tr.RecordTrade(10)
	tr.RecordTrade(20)
	tr.RecordTrade(-5)
	tr.RecordTrade(-1)
	if got := tr.WinRate(); got != 0.5 {
		t.Fatalf("WinRate() = %v, want 0.5", got)
	}
}

func TestPnLTrackerWinRateNoTrades(t *testing.T) {
	tr := NewPnLTracker()
	if got := tr.WinRate(); got != 0 {
		t.Fatalf("WinRate() = %v, want 0", got)
	}
}

func TestPnLTrackerTotalPnlCombinesRealizedAndUnrealized(t *testing.T) {
	tr := NewPnLTracker()
	tr.RecordTrade(100)
	tr.UpdateUnrealized(25)
	if got := tr.TotalPnl(); got != 125 {
		t.Fatalf("TotalPnl() = %v, want 125", got)
	}
}

func TestPnLTrackerTotalTradesCounts(t *testing.T) {
	tr := NewPnLTracker()
	tr.RecordTrade(1)
	tr.RecordTrade(-1)
	tr.RecordTrade(2)
	if got := tr.TotalTrades(); got != 3 {
		t.Fatalf("TotalTrades() = %d, want 3", got)
	}
}
