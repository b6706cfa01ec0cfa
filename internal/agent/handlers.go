package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alejandrodnm/evoclaw/internal/errkind"
	"github.com/alejandrodnm/evoclaw/internal/evolution"
	"github.com/alejandrodnm/evoclaw/internal/store/archive"
	"github.com/alejandrodnm/evoclaw/internal/store/wal"
	"github.com/alejandrodnm/evoclaw/internal/strategy"
	"github.com/alejandrodnm/evoclaw/internal/trading"
	"github.com/alejandrodnm/evoclaw/internal/wire"
)

// paramFloat reads a float64 param out of a decoded JSON params map,
// falling back to def when absent or of the wrong type.
func paramFloat(params map[string]interface{}, key string, def float64) float64 {
	if v, ok := params[key].(float64); ok {
		return v
	}
	return def
}

// dispatch routes a decoded command to its handler, converting every
// failure into a classified *errkind.Error so the caller can turn it
// into exactly one report.
func (a *Agent) dispatch(ctx context.Context, cmd wire.Command) (interface{}, error) {
	switch cmd.Command {
	case "ping":
		return map[string]bool{"pong": true}, nil
	case "execute":
		return a.handleExecute(ctx, cmd.Payload)
	case "update_strategy":
		return a.handleUpdateStrategy(cmd.Payload)
	case "get_metrics":
		return a.handleGetMetrics(), nil
	default:
		if out, err := a.skills.HandleCommand(ctx, cmd.Command, "status", cmd.Payload); err == nil {
			var decoded interface{}
			_ = json.Unmarshal(out, &decoded)
			return decoded, nil
		}
		return nil, errkind.Validationf("dispatch", fmt.Errorf("unknown command: %s", cmd.Command))
	}
}

type executePayload struct {
	Action     string   `json:"action"`
	Asset      uint32   `json:"asset"`
	Coin       string   `json:"coin"`
	IsBuy      bool     `json:"is_buy"`
	Price      float64  `json:"price"`
	Size       float64  `json:"size"`
	Coin2      *string  `json:"coin2,omitempty"`
}

// handleExecute dispatches the trader/monitor execute sub-actions named
// in the external-interfaces contract: get_prices, get_positions,
// place_order, monitor_positions, plus the monitor agent's
// add_price_alert/status/reset_alerts/clear_alerts, routed to the
// price_monitor skill.
func (a *Agent) handleExecute(ctx context.Context, payload json.RawMessage) (interface{}, error) {
	var p executePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, errkind.Validationf("handleExecute", err)
	}

	switch p.Action {
	case "get_prices":
		return a.executeGetPrices(ctx)
	case "get_positions":
		return a.executeGetPositions(ctx)
	case "place_order":
		return a.executePlaceOrder(ctx, p)
	case "monitor_positions":
		return a.executeMonitorPositions(ctx)
	case "add_price_alert", "status", "reset_alerts", "clear_alerts":
		return a.executeSkillCommand(ctx, "price_monitor", monitorCommandName(p.Action), payload)
	default:
		return nil, errkind.Validationf("handleExecute", fmt.Errorf("unknown execute action: %s", p.Action))
	}
}

func monitorCommandName(action string) string {
	switch action {
	case "add_price_alert":
		return "alert"
	case "reset_alerts", "clear_alerts":
		return "clear_alerts"
	default:
		return action
	}
}

func (a *Agent) executeSkillCommand(ctx context.Context, skillName, command string, payload json.RawMessage) (interface{}, error) {
	out, err := a.skills.HandleCommand(ctx, skillName, command, payload)
	if err != nil {
		return nil, errkind.Validationf("executeSkillCommand", err)
	}
	var decoded interface{}
	if err := json.Unmarshal(out, &decoded); err != nil {
		return nil, errkind.StateInvariantf("executeSkillCommand", err)
	}
	return decoded, nil
}

func (a *Agent) executeGetPrices(ctx context.Context) (interface{}, error) {
	if a.trading == nil {
		return nil, errkind.Validationf("executeGetPrices", fmt.Errorf("trading client not configured"))
	}
	prices, err := a.trading.GetPrices(ctx)
	if err != nil {
		return nil, errkind.Transportf("executeGetPrices", err)
	}
	return prices, nil
}

func (a *Agent) executeGetPositions(ctx context.Context) (interface{}, error) {
	if a.trading == nil {
		return nil, errkind.Validationf("executeGetPositions", fmt.Errorf("trading client not configured"))
	}
	positions, err := a.trading.GetPositions(ctx)
	if err != nil {
		return nil, errkind.Transportf("executeGetPositions", err)
	}
	return positions, nil
}

// executePlaceOrder runs the order through the risk gate and firewall
// before touching the trading client, matching the pre-mutation
// check ordering the command handlers are specified to follow.
func (a *Agent) executePlaceOrder(ctx context.Context, p executePayload) (interface{}, error) {
	sizeUSD := p.Price * p.Size
	decision := a.risk.CheckOrder(sizeUSD, true)
	if !decision.IsAllowed() {
		return nil, errkind.Policyf("executePlaceOrder", fmt.Errorf("risk gate rejected order: %s", decision.Reason))
	}

	if ok, reason := a.firewall.PreMutationCheck(a.AgentID); !ok {
		return nil, errkind.Policyf("executePlaceOrder", fmt.Errorf("firewall rejected order: %s", reason))
	}

	if a.trading == nil {
		return nil, errkind.Validationf("executePlaceOrder", fmt.Errorf("trading client not configured"))
	}

	walIndex := a.appendWAL(wal.StateChange, p)

	resp, err := a.trading.PlaceOrder(ctx, trading.PlaceOrderRequest{
		Coin:  p.Coin,
		IsBuy: p.IsBuy,
		Price: trading.FormatPrice(p.Price),
		Size:  trading.FormatSize(p.Size, 4),
		TIF:   trading.GTC,
	})
	if err != nil {
		return nil, errkind.Remotef("executePlaceOrder", err)
	}
	a.markWALApplied(walIndex)
	return resp, nil
}

// appendWAL records payload as a pending WAL entry before a mutation is
// attempted, returning the index to mark applied once it lands. Returns
// -1 when no WAL is configured or the entry fails to encode/persist.
func (a *Agent) appendWAL(action wal.ActionType, payload interface{}) int {
	if a.wal == nil {
		return -1
	}
	data, err := json.Marshal(payload)
	if err != nil {
		a.log.Warn("agent: wal payload encode failed", "error", err)
		return -1
	}
	if err := a.wal.Append(a.AgentID, action, data); err != nil {
		a.log.Warn("agent: wal append failed", "error", err)
		return -1
	}
	return a.wal.LastIndex()
}

func (a *Agent) markWALApplied(index int) {
	if a.wal == nil || index < 0 {
		return
	}
	if err := a.wal.MarkApplied(index); err != nil {
		a.log.Warn("agent: wal mark-applied failed", "error", err)
	}
}

// executeMonitorPositions refreshes unrealized PnL on the paper book
// against current mids, lets any qualifying orders fill, and folds
// every new fill into the evolution tracker, risk gate, and firewall
// before reporting the resulting book.
func (a *Agent) executeMonitorPositions(ctx context.Context) (interface{}, error) {
	if a.trading != nil {
		prices, err := a.trading.GetPrices(ctx)
		if err == nil {
			a.paper.UpdateUnrealized(prices)
			before := a.paper.FillCount()
			a.paper.CheckFills(prices)
			a.recordNewFills(before)
		}
	}
	return map[string]interface{}{
		"positions":   a.paper.GetPositions(),
		"open_orders": a.paper.GetOpenOrders(),
		"total_pnl":   a.paper.TotalPnL(),
	}, nil
}

// recordNewFills folds every fill produced since the last check into
// the evolution tracker and risk gate, then runs the firewall's
// post-mutation fitness check against the resulting score.
func (a *Agent) recordNewFills(sinceCount int) {
	fills := a.paper.GetFills()
	if sinceCount >= len(fills) {
		return
	}

	oldFitness := a.evo.FitnessScore()
	for _, fill := range fills[sinceCount:] {
		a.evo.RecordTrade(evolution.TradeRecord{
			TimestampUnix: fill.TimestampMs / 1000,
			Asset:         fill.Coin,
			ExitPrice:     fill.Price,
			Size:          fill.Size,
			PnL:           fill.PnL,
		})
		a.risk.RecordTrade(fill.PnL)
		if a.archive != nil {
			if err := a.archive.RecordFill(context.Background(), a.AgentID, archive.Fill{
				TimestampMs: fill.TimestampMs,
				Coin:        fill.Coin,
				IsBuy:       fill.IsBuy,
				Price:       fill.Price,
				Size:        fill.Size,
				PnL:         fill.PnL,
			}); err != nil {
				a.log.Warn("agent: archive record fill failed", "error", err)
			}
		}
	}
	a.risk.SetOpenPositions(len(a.paper.GetPositions()))
	newFitness := a.evo.FitnessScore()
	a.firewall.PostMutationCheck(a.AgentID, oldFitness, newFitness)
}

type updateStrategyPayload struct {
	Action   string                 `json:"action"`
	Strategy string                 `json:"strategy"`
	Params   map[string]interface{} `json:"params"`
}

// handleUpdateStrategy dispatches the strategy-plane sub-actions. Every
// mutating sub-action (add_*, update_params, reset) passes through the
// firewall's pre-mutation check first.
func (a *Agent) handleUpdateStrategy(payload json.RawMessage) (interface{}, error) {
	var p updateStrategyPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, errkind.Validationf("handleUpdateStrategy", err)
	}

	switch p.Action {
	case "get_params":
		return a.strategy.GetAllParams(), nil
	case "update_params", "add_funding_arbitrage", "add_mean_reversion", "reset":
		if ok, reason := a.firewall.PreMutationCheck(a.AgentID); !ok {
			return nil, errkind.Policyf("handleUpdateStrategy", fmt.Errorf("firewall rejected mutation: %s", reason))
		}
		return a.applyStrategyMutation(p)
	default:
		return nil, errkind.Validationf("handleUpdateStrategy", fmt.Errorf("unknown update_strategy action: %s", p.Action))
	}
}

// applyStrategyMutation applies the requested change to the strategy
// plane. The firewall's fitness-drop check only has something to
// compare once new trades land under the new parameters, so it runs
// from recordNewFills, not here.
func (a *Agent) applyStrategyMutation(p updateStrategyPayload) (interface{}, error) {
	walIndex := a.appendWAL(wal.Decision, p)

	switch p.Action {
	case "update_params":
		if err := a.strategy.UpdateStrategyParams(p.Strategy, p.Params); err != nil {
			return nil, errkind.Validationf("applyStrategyMutation", err)
		}
	case "reset":
		a.strategy.ResetAll()
	case "add_funding_arbitrage":
		a.strategy.AddStrategy(strategy.NewFundingArbitrage(strategy.FundingArbitrageConfig{
			FundingThreshold: paramFloat(p.Params, "funding_threshold", 0),
			ExitFunding:      paramFloat(p.Params, "exit_funding", 0),
			PositionSizeUSD:  paramFloat(p.Params, "position_size_usd", 0),
			MaxPositions:     int(paramFloat(p.Params, "max_positions", 0)),
		}))
	case "add_mean_reversion":
		a.strategy.AddStrategy(strategy.NewMeanReversion(strategy.MeanReversionConfig{
			SupportLevel:    paramFloat(p.Params, "support_level", 0),
			ResistanceLevel: paramFloat(p.Params, "resistance_level", 0),
			PositionSizeUSD: paramFloat(p.Params, "position_size_usd", 0),
			LookbackPeriods: int(paramFloat(p.Params, "lookback_periods", 0)),
		}))
	}

	a.markWALApplied(walIndex)
	return map[string]interface{}{"status": "applied"}, nil
}

func (a *Agent) handleGetMetrics() interface{} {
	return map[string]interface{}{
		"metrics":  a.metrics.Snapshot(),
		"risk":     a.risk.Status(),
		"firewall": a.firewall.StatusFor(a.AgentID),
		"evolution": map[string]interface{}{
			"fitness_score": a.evo.FitnessScore(),
			"win_rate":      a.evo.WinRate(),
			"total_pnl":     a.evo.TotalPnL(),
			"max_drawdown":  a.evo.MaxDrawdown(),
		},
	}
}
