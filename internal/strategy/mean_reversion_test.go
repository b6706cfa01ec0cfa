package strategy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMeanReversionBuysAtSupport(t *testing.T) {
	s := NewMeanReversion(MeanReversionConfig{SupportLevel: 100, ResistanceLevel: 200, PositionSizeUSD: 50})
	signals := s.Evaluate(Snapshot{Prices: map[string]float64{"BTC": 95}})
	require.Len(t, signals, 1)
	require.Equal(t, Buy, signals[0].Kind)
}

func TestMeanReversionSellsAtResistance(t *testing.T) {
	s := NewMeanReversion(MeanReversionConfig{SupportLevel: 100, ResistanceLevel: 200, PositionSizeUSD: 50})
	signals := s.Evaluate(Snapshot{Prices: map[string]float64{"BTC": 205}})
	require.Len(t, signals, 1)
	require.Equal(t, Sell, signals[0].Kind)
}

func TestMeanReversionHoldsBetweenLevels(t *testing.T) {
	s := NewMeanReversion(MeanReversionConfig{SupportLevel: 100, ResistanceLevel: 200, PositionSizeUSD: 50})
	signals := s.Evaluate(Snapshot{Prices: map[string]float64{"BTC": 150}})
	require.Empty(t, signals)
}

func TestMeanReversionIsStatelessAcrossRepeatedSignals(t *testing.T) {
	s := NewMeanReversion(MeanReversionConfig{SupportLevel: 100, ResistanceLevel: 200, PositionSizeUSD: 50})
	snap := Snapshot{Prices: map[string]float64{"BTC": 95}}
	first := s.Evaluate(snap)
	second := s.Evaluate(snap)
	require.Len(t, first, 1)
	require.Len(t, second, 1, "unlike funding arbitrage, mean reversion re-emits every qualifying tick")
}

func TestMeanReversionHistoryBoundedByLookback(t *testing.T) {
	s := NewMeanReversion(MeanReversionConfig{SupportLevel: 0, ResistanceLevel: 1_000_000, PositionSizeUSD: 50, LookbackPeriods: 3})
	for i := 0; i < 10; i++ {
		s.Evaluate(Snapshot{Prices: map[string]float64{"BTC": float64(100 + i)}})
	}
	require.Len(t, s.priceHistory["BTC"], 3)
}

func TestMeanReversionDefaultLookbackIsTwenty(t *testing.T) {
	s := NewMeanReversion(MeanReversionConfig{SupportLevel: 100, ResistanceLevel: 200, PositionSizeUSD: 50})
	require.Equal(t, 20, s.lookbackPeriods)
}

func TestMeanReversionUpdateParams(t *testing.T) {
	s := NewMeanReversion(MeanReversionConfig{SupportLevel: 100, ResistanceLevel: 200, PositionSizeUSD: 50})
	err := s.UpdateParams(map[string]interface{}{"support_level": 90.0, "lookback_periods": float64(10)})
	require.NoError(t, err)
	params := s.GetParams()
	require.Equal(t, 90.0, params["support_level"])
	require.Equal(t, 10, params["lookback_periods"])
}

func TestMeanReversionResetClearsHistory(t *testing.T) {
	s := NewMeanReversion(MeanReversionConfig{SupportLevel: 100, ResistanceLevel: 200, PositionSizeUSD: 50})
	s.Evaluate(Snapshot{Prices: map[string]float64{"BTC": 95}})
	s.Reset()
	require.Empty(t, s.priceHistory)
}
