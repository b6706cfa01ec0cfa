package strategy

import "sync"

// FundingArbitrage enters a position when an asset's funding rate crosses
// funding_threshold and exits once it recovers past exit_funding. It is
// stateful: it tracks which assets it currently holds a position in so
// repeated snapshots don't re-emit entry or exit signals.
type FundingArbitrage struct {
	mu sync.Mutex

	fundingThreshold float64
	exitFunding      float64
	positionSizeUSD  float64
	maxPositions     int
	activePositions  []string
}

// FundingArbitrageConfig configures a new FundingArbitrage strategy.
type FundingArbitrageConfig struct {
	FundingThreshold float64
	ExitFunding      float64
	PositionSizeUSD  float64
	MaxPositions     int
}

// NewFundingArbitrage builds the strategy with cfg, defaulting
// MaxPositions to 3 when unset.
func NewFundingArbitrage(cfg FundingArbitrageConfig) *FundingArbitrage {
	if cfg.MaxPositions <= 0 {
		cfg.MaxPositions = 3
	}
	return &FundingArbitrage{
		fundingThreshold: cfg.FundingThreshold,
		exitFunding:      cfg.ExitFunding,
		positionSizeUSD:  cfg.PositionSizeUSD,
		maxPositions:     cfg.MaxPositions,
	}
}

// Name implements Strategy.
func (s *FundingArbitrage) Name() string { return "funding_arbitrage" }

// Evaluate implements Strategy.
func (s *FundingArbitrage) Evaluate(snapshot Snapshot) []Signal {
	s.mu.Lock()
	defer s.mu.Unlock()

	var signals []Signal
	for asset, rate := range snapshot.FundingRates {
		price, ok := snapshot.Prices[asset]
		if !ok {
			continue
		}
		held := s.holdsLocked(asset)

		switch {
		case !held && rate < s.fundingThreshold && len(s.activePositions) < s.maxPositions:
			s.activePositions = append(s.activePositions, asset)
			signals = append(signals, Signal{
				Kind:   Buy,
				Asset:  asset,
				Price:  price,
				Size:   s.positionSizeUSD,
				Reason: "funding rate below threshold",
			})
		case held && rate > s.exitFunding:
			s.removeLocked(asset)
			signals = append(signals, Signal{
				Kind:   Sell,
				Asset:  asset,
				Price:  price,
				Size:   s.positionSizeUSD,
				Reason: "funding rate recovered past exit threshold",
			})
		}
	}
	return signals
}

func (s *FundingArbitrage) holdsLocked(asset string) bool {
	for _, a := range s.activePositions {
		if a == asset {
			return true
		}
	}
	return false
}

func (s *FundingArbitrage) removeLocked(asset string) {
	for i, a := range s.activePositions {
		if a == asset {
			s.activePositions = append(s.activePositions[:i], s.activePositions[i+1:]...)
			return
		}
	}
}

// GetParams implements Strategy.
func (s *FundingArbitrage) GetParams() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]interface{}{
		"funding_threshold": s.fundingThreshold,
		"exit_funding":      s.exitFunding,
		"position_size_usd": s.positionSizeUSD,
		"max_positions":     s.maxPositions,
	}
}

// UpdateParams implements Strategy. Unrecognized keys are ignored.
func (s *FundingArbitrage) UpdateParams(params map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := params["funding_threshold"].(float64); ok {
		s.fundingThreshold = v
	}
	if v, ok := params["exit_funding"].(float64); ok {
		s.exitFunding = v
	}
	if v, ok := params["position_size_usd"].(float64); ok {
		s.positionSizeUSD = v
	}
	if v, ok := params["max_positions"].(float64); ok && v > 0 {
		s.maxPositions = int(v)
	}
	return nil
}

// Reset implements Strategy, clearing all tracked positions.
func (s *FundingArbitrage) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activePositions = nil
}
