package agent

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alejandrodnm/evoclaw/internal/bus"
	"github.com/alejandrodnm/evoclaw/internal/evolution"
	"github.com/alejandrodnm/evoclaw/internal/firewall"
	"github.com/alejandrodnm/evoclaw/internal/metrics"
	"github.com/alejandrodnm/evoclaw/internal/paper"
	"github.com/alejandrodnm/evoclaw/internal/risk"
	"github.com/alejandrodnm/evoclaw/internal/skills"
	"github.com/alejandrodnm/evoclaw/internal/store/wal"
	"github.com/alejandrodnm/evoclaw/internal/strategy"
	"github.com/alejandrodnm/evoclaw/internal/wire"
	"github.com/stretchr/testify/require"
)

type fakeBus struct {
	mu        sync.Mutex
	published []wire.Report
}

func (f *fakeBus) Publish(ctx context.Context, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var r wire.Report
	if err := json.Unmarshal(payload, &r); err != nil {
		return err
	}
	f.published = append(f.published, r)
	return nil
}

func (f *fakeBus) last() wire.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.published) == 0 {
		return wire.Report{}
	}
	return f.published[len(f.published)-1]
}

func (f *fakeBus) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func newTestAgent(t *testing.T) (*Agent, *fakeBus, chan bus.Message) {
	t.Helper()
	incoming := make(chan bus.Message, 8)
	fb := &fakeBus{}
	w, err := wal.Open(t.TempDir())
	require.NoError(t, err)
	a := New(Deps{
		AgentID:   "agent-1",
		AgentType: "trader",
		Bus:       fb,
		Incoming:  incoming,
		Paper:     paper.New(10000, ""),
		Risk:      risk.New(risk.Config{MaxPositionSizeUSD: 100000}),
		Firewall:  firewall.New(firewall.Config{Enabled: true, MaxMutationsPerHour: 10, FitnessDropThreshold: 0.3, Cooldown: time.Hour}),
		Strategy:  strategy.NewEngine(),
		Skills:    skills.NewRegistry(nil, func() int64 { return 0 }),
		Evolution: evolution.New(100),
		Metrics:   metrics.New(),
		WAL:       w,
	})
	return a, fb, incoming
}

func sendCommand(t *testing.T, incoming chan bus.Message, command, requestID string, payload interface{}) {
	t.Helper()
	p, _ := json.Marshal(payload)
	cmd := map[string]interface{}{"command": command, "payload": json.RawMessage(p), "request_id": requestID}
	data, _ := json.Marshal(cmd)
	incoming <- bus.Message{Topic: "evoclaw/agents/agent-1/commands", Payload: data}
}

func TestAgentDispatchPingPublishesResultReport(t *testing.T) {
	a, fb, incoming := newTestAgent(t)
	ctx := context.Background()

	sendCommand(t, incoming, "ping", "req-1", nil)
	msg := <-incoming
	stop := a.handleMessage(ctx, msg)
	require.False(t, stop)

	require.Equal(t, 1, fb.count())
	report := fb.last()
	require.Equal(t, wire.ReportResult, report.ReportType)

	data, ok := report.Payload.(map[string]interface{})
	require.True(t, ok)
	result, ok := data["data"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, true, result["pong"])
}

func TestAgentUnknownCommandPublishesErrorReport(t *testing.T) {
	a, fb, incoming := newTestAgent(t)
	ctx := context.Background()

	sendCommand(t, incoming, "bogus", "req-2", nil)
	msg := <-incoming
	stop := a.handleMessage(ctx, msg)
	require.False(t, stop)

	require.Equal(t, wire.ReportError, fb.last().ReportType)
}

func TestAgentShutdownCommandStopsLoop(t *testing.T) {
	a, fb, incoming := newTestAgent(t)
	ctx := context.Background()

	sendCommand(t, incoming, "shutdown", "req-3", nil)
	msg := <-incoming
	stop := a.handleMessage(ctx, msg)
	require.True(t, stop)
	require.Equal(t, wire.ReportResult, fb.last().ReportType)
}

func TestAgentGetMetricsReturnsSnapshot(t *testing.T) {
	a, fb, incoming := newTestAgent(t)
	ctx := context.Background()

	sendCommand(t, incoming, "get_metrics", "req-4", nil)
	msg := <-incoming
	a.handleMessage(ctx, msg)

	report := fb.last()
	require.Equal(t, wire.ReportResult, report.ReportType)
}

func TestAgentPlaceOrderRejectedByRiskGateReturnsErrorReport(t *testing.T) {
	incoming := make(chan bus.Message, 8)
	fb := &fakeBus{}
	a := New(Deps{
		AgentID:   "agent-1",
		AgentType: "trader",
		Bus:       fb,
		Incoming:  incoming,
		Paper:     paper.New(10000, ""),
		Risk:      risk.New(risk.Config{MaxPositionSizeUSD: 1}),
		Firewall:  firewall.New(firewall.Config{Enabled: false}),
		Strategy:  strategy.NewEngine(),
		Skills:    skills.NewRegistry(nil, func() int64 { return 0 }),
		Evolution: evolution.New(100),
		Metrics:   metrics.New(),
	})
	ctx := context.Background()

	sendCommand(t, incoming, "execute", "req-5", map[string]interface{}{
		"action": "place_order", "coin": "BTC", "is_buy": true, "price": 50000.0, "size": 1.0,
	})
	msg := <-incoming
	a.handleMessage(ctx, msg)

	require.Equal(t, wire.ReportError, fb.last().ReportType)
}

func TestAgentUpdateStrategyGetParams(t *testing.T) {
	a, fb, incoming := newTestAgent(t)
	ctx := context.Background()

	sendCommand(t, incoming, "update_strategy", "req-6", map[string]interface{}{"action": "get_params"})
	msg := <-incoming
	a.handleMessage(ctx, msg)

	require.Equal(t, wire.ReportResult, fb.last().ReportType)
}

func TestAgentResetStrategyAppendsAppliedWALEntry(t *testing.T) {
	a, fb, incoming := newTestAgent(t)
	ctx := context.Background()

	sendCommand(t, incoming, "update_strategy", "req-8", map[string]interface{}{"action": "reset"})
	msg := <-incoming
	a.handleMessage(ctx, msg)

	require.Equal(t, wire.ReportResult, fb.last().ReportType)
	require.Empty(t, a.wal.UnappliedForAgent("agent-1"))
}

func TestAgentUpdateParamsUnknownStrategyLeavesWALEntryUnapplied(t *testing.T) {
	a, fb, incoming := newTestAgent(t)
	ctx := context.Background()

	sendCommand(t, incoming, "update_strategy", "req-9", map[string]interface{}{
		"action": "update_params", "strategy": "mean_reversion", "params": map[string]interface{}{"window": 20},
	})
	msg := <-incoming
	a.handleMessage(ctx, msg)

	require.Equal(t, wire.ReportError, fb.last().ReportType)
	require.Len(t, a.wal.UnappliedForAgent("agent-1"), 1)
}

func TestAgentAddFundingArbitrageRegistersStrategy(t *testing.T) {
	a, fb, incoming := newTestAgent(t)
	ctx := context.Background()

	sendCommand(t, incoming, "update_strategy", "req-10", map[string]interface{}{
		"action": "add_funding_arbitrage",
		"params": map[string]interface{}{"funding_threshold": -0.01, "exit_funding": 0.01, "position_size_usd": 500.0, "max_positions": 2.0},
	})
	msg := <-incoming
	a.handleMessage(ctx, msg)

	require.Equal(t, wire.ReportResult, fb.last().ReportType)
	params := a.strategy.GetAllParams()
	fa, ok := params["funding_arbitrage"]
	require.True(t, ok)
	require.Equal(t, -0.01, fa["funding_threshold"])
	require.Equal(t, 2, fa["max_positions"])
}

func TestAgentAddMeanReversionRegistersStrategy(t *testing.T) {
	a, fb, incoming := newTestAgent(t)
	ctx := context.Background()

	sendCommand(t, incoming, "update_strategy", "req-11", map[string]interface{}{
		"action": "add_mean_reversion",
		"params": map[string]interface{}{"support_level": 100.0, "resistance_level": 200.0, "position_size_usd": 250.0},
	})
	msg := <-incoming
	a.handleMessage(ctx, msg)

	require.Equal(t, wire.ReportResult, fb.last().ReportType)
	params := a.strategy.GetAllParams()
	_, ok := params["mean_reversion"]
	require.True(t, ok)
}

func TestAgentMetricsRecordFailureOnError(t *testing.T) {
	a, _, incoming := newTestAgent(t)
	ctx := context.Background()

	sendCommand(t, incoming, "bogus", "req-7", nil)
	msg := <-incoming
	a.handleMessage(ctx, msg)

	snap := a.metrics.Snapshot()
	require.EqualValues(t, 1, snap.ActionsFailed)
	require.EqualValues(t, 1, snap.ActionsTotal)
}
