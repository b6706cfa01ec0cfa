// Package strategy defines the pluggable signal-generator contract and
// two canonical implementations: funding-rate arbitrage and mean
// reversion.
package strategy

import "fmt"

// SignalKind tags a Signal's variant.
type SignalKind int

const (
	Buy SignalKind = iota
	Sell
	Hold
)

// Signal is one strategy's output for a single market snapshot.
type Signal struct {
	Kind   SignalKind
	Asset  string
	Price  float64
	Size   float64
	Reason string
}

// Snapshot is the market data a Strategy evaluates against.
type Snapshot struct {
	Prices        map[string]float64
	FundingRates  map[string]float64
	TimestampUnix int64
}

// Strategy is the pluggable signal-generator contract. Implementations
// may be stateful (tracking open positions across calls) or stateless.
type Strategy interface {
	Evaluate(snapshot Snapshot) []Signal
	GetParams() map[string]interface{}
	UpdateParams(params map[string]interface{}) error
	Name() string
	Reset()
}

// Engine aggregates registered strategies and concatenates their output
// in registration order.
type Engine struct {
	strategies []Strategy
}

// NewEngine builds an empty Engine.
func NewEngine() *Engine { return &Engine{} }

// AddStrategy registers s.
func (e *Engine) AddStrategy(s Strategy) { e.strategies = append(e.strategies, s) }

// EvaluateAll runs every registered strategy against snapshot, in
// registration order, concatenating their signals.
func (e *Engine) EvaluateAll(snapshot Snapshot) []Signal {
	var out []Signal
	for _, s := range e.strategies {
		out = append(out, s.Evaluate(snapshot)...)
	}
	return out
}

// GetAllParams returns every strategy's params keyed by name.
func (e *Engine) GetAllParams() map[string]map[string]interface{} {
	out := make(map[string]map[string]interface{}, len(e.strategies))
	for _, s := range e.strategies {
		out[s.Name()] = s.GetParams()
	}
	return out
}

// UpdateStrategyParams updates the named strategy's params, erroring if
// no strategy with that name is registered.
func (e *Engine) UpdateStrategyParams(name string, params map[string]interface{}) error {
	for _, s := range e.strategies {
		if s.Name() == name {
			return s.UpdateParams(params)
		}
	}
	return fmt.Errorf("strategy: no strategy named %q", name)
}

// ResetAll resets every registered strategy.
func (e *Engine) ResetAll() {
	for _, s := range e.strategies {
		s.Reset()
	}
}

// StrategyCount returns the number of registered strategies.
func (e *Engine) StrategyCount() int { return len(e.strategies) }
