package strategy

import "sync"

// MeanReversion buys at or below support and sells at or above
// resistance. It records a bounded rolling price history per asset, but
// signals compare each price with the two fixed levels only and do not
// read that history. It tracks no open-position
// state of its own: it emits a signal on every qualifying snapshot,
// leaving position sizing/deduplication to the caller.
type MeanReversion struct {
	mu sync.Mutex

	supportLevel    float64
	resistanceLevel float64
	positionSizeUSD float64
	lookbackPeriods int
	priceHistory    map[string][]float64
}

// MeanReversionConfig configures a new MeanReversion strategy.
type MeanReversionConfig struct {
	SupportLevel    float64
	ResistanceLevel float64
	PositionSizeUSD float64
	LookbackPeriods int
}

// NewMeanReversion builds the strategy with cfg, defaulting
// LookbackPeriods to 20 when unset.
func NewMeanReversion(cfg MeanReversionConfig) *MeanReversion {
	if cfg.LookbackPeriods <= 0 {
		cfg.LookbackPeriods = 20
	}
	return &MeanReversion{
		supportLevel:    cfg.SupportLevel,
		resistanceLevel: cfg.ResistanceLevel,
		positionSizeUSD: cfg.PositionSizeUSD,
		lookbackPeriods: cfg.LookbackPeriods,
		priceHistory:    make(map[string][]float64),
	}
}

// Name implements Strategy.
func (s *MeanReversion) Name() string { return "mean_reversion" }

// Evaluate implements Strategy.
func (s *MeanReversion) Evaluate(snapshot Snapshot) []Signal {
	s.mu.Lock()
	defer s.mu.Unlock()

	var signals []Signal
	for asset, price := range snapshot.Prices {
		hist := append(s.priceHistory[asset], price)
		if len(hist) > s.lookbackPeriods {
			hist = hist[len(hist)-s.lookbackPeriods:]
		}
		s.priceHistory[asset] = hist

		switch {
		case price <= s.supportLevel:
			signals = append(signals, Signal{
				Kind:   Buy,
				Asset:  asset,
				Price:  price,
				Size:   s.positionSizeUSD,
				Reason: "price at or below support level",
			})
		case price >= s.resistanceLevel:
			signals = append(signals, Signal{
				Kind:   Sell,
				Asset:  asset,
				Price:  price,
				Size:   s.positionSizeUSD,
				Reason: "price at or above resistance level",
			})
		}
	}
	return signals
}

// GetParams implements Strategy.
func (s *MeanReversion) GetParams() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]interface{}{
		"support_level":    s.supportLevel,
		"resistance_level": s.resistanceLevel,
		"position_size_usd": s.positionSizeUSD,
		"lookback_periods": s.lookbackPeriods,
	}
}

// UpdateParams implements Strategy. Unrecognized keys are ignored.
func (s *MeanReversion) UpdateParams(params map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := params["support_level"].(float64); ok {
		s.supportLevel = v
	}
	if v, ok := params["resistance_level"].(float64); ok {
		s.resistanceLevel = v
	}
	if v, ok := params["position_size_usd"].(float64); ok {
		s.positionSizeUSD = v
	}
	if v, ok := params["lookback_periods"].(float64); ok && v > 0 {
		s.lookbackPeriods = int(v)
	}
	return nil
}

// Reset implements Strategy, discarding all rolling price history.
func (s *MeanReversion) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.priceHistory = make(map[string][]float64)
}
