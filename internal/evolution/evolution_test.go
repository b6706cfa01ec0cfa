package evolution

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFitnessSaturatesAndNeverNegative(t *testing.T) {
	tr := New(1000)
	for i := 0; i < 20; i++ {
		tr.RecordTrade(TradeRecord{Asset: "BTC", EntryPrice: 100, ExitPrice: 200, Size: 1, PnL: 1000})
	}
	require.LessOrEqual(t, tr.FitnessScore(), 100.0)

	tr2 := New(1000)
	for i := 0; i < 20; i++ {
		tr2.RecordTrade(TradeRecord{Asset: "BTC", EntryPrice: 200, ExitPrice: 100, Size: 1, PnL: -1000})
	}
	require.GreaterOrEqual(t, tr2.FitnessScore(), 0.0)
}

func TestBoundedHistoryEvictsOldest(t *testing.T) {
	tr := New(3)
	for i := 0; i < 5; i++ {
		tr.RecordTrade(TradeRecord{Asset: "BTC", PnL: float64(i)})
	}
	require.Len(t, tr.history, 3)
}

func TestWinRate(t *testing.T) {
	tr := New(1000)
	tr.RecordTrade(TradeRecord{PnL: 10})
	tr.RecordTrade(TradeRecord{PnL: -10})
	tr.RecordTrade(TradeRecord{PnL: 0}) // tie counts as loss
	require.InDelta(t, 100.0/3.0, tr.WinRate(), 1e-6)
}

func TestSharpeRequiresTwoReturns(t *testing.T) {
	tr := New(1000)
	tr.RecordTrade(TradeRecord{PnL: 10})
	require.Equal(t, 0.0, tr.SharpeRatio())
}

func TestReset(t *testing.T) {
	tr := New(1000)
	tr.RecordTrade(TradeRecord{PnL: 10})
	tr.Reset()
	require.Equal(t, 0.0, tr.TotalPnL())
	// An empty history scores only the full drawdown term (zero drawdown).
	require.Equal(t, 10.0, tr.FitnessScore())
}
