// Package agent wires every subsystem into one process: a cooperative
// event loop that demultiplexes bus frames, a heartbeat timer, and
// skill-tick scheduling, dispatching decoded commands to handlers that
// consult the risk gate and firewall before touching the trading client
// or paper trader.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/evoclaw/internal/bus"
	"github.com/alejandrodnm/evoclaw/internal/errkind"
	"github.com/alejandrodnm/evoclaw/internal/evolution"
	"github.com/alejandrodnm/evoclaw/internal/firewall"
	"github.com/alejandrodnm/evoclaw/internal/metrics"
	"github.com/alejandrodnm/evoclaw/internal/paper"
	"github.com/alejandrodnm/evoclaw/internal/risk"
	"github.com/alejandrodnm/evoclaw/internal/skills"
	"github.com/alejandrodnm/evoclaw/internal/store/archive"
	"github.com/alejandrodnm/evoclaw/internal/store/session"
	"github.com/alejandrodnm/evoclaw/internal/store/wal"
	"github.com/alejandrodnm/evoclaw/internal/strategy"
	"github.com/alejandrodnm/evoclaw/internal/trading"
	"github.com/alejandrodnm/evoclaw/internal/wire"
)

// Publisher is the subset of bus.Client the agent needs to emit
// reports; narrowed to ease testing with a fake.
type Publisher interface {
	Publish(ctx context.Context, payload []byte) error
}

// Agent couples every subsystem behind one cooperative event loop.
type Agent struct {
	AgentID   string
	AgentType string

	bus       Publisher
	incoming  <-chan bus.Message
	log       *slog.Logger

	trading  *trading.Client
	paper    *paper.Trader
	risk     *risk.Manager
	firewall *firewall.Firewall
	strategy *strategy.Engine
	skills   *skills.Registry
	evo      *evolution.Tracker
	metrics  *metrics.Metrics
	sessions *session.Store
	wal      *wal.WAL
	archive  *archive.Store

	heartbeatInterval time.Duration
	lastSessionID     string
	now               func() time.Time
}

// Deps bundles every subsystem the agent needs; each field is
// constructed by the composition root and handed in here fully formed.
type Deps struct {
	AgentID, AgentType string
	Bus                Publisher
	Incoming           <-chan bus.Message
	Log                *slog.Logger
	Trading            *trading.Client
	Paper              *paper.Trader
	Risk               *risk.Manager
	Firewall           *firewall.Firewall
	Strategy           *strategy.Engine
	Skills             *skills.Registry
	Evolution          *evolution.Tracker
	Metrics            *metrics.Metrics
	Sessions           *session.Store
	WAL                *wal.WAL
	Archive            *archive.Store
	HeartbeatInterval  time.Duration
}

// New assembles an Agent from deps, applying the standard 30s heartbeat
// default when unset.
func New(deps Deps) *Agent {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.HeartbeatInterval <= 0 {
		deps.HeartbeatInterval = 30 * time.Second
	}
	return &Agent{
		AgentID:           deps.AgentID,
		AgentType:         deps.AgentType,
		bus:               deps.Bus,
		incoming:          deps.Incoming,
		log:               deps.Log,
		trading:           deps.Trading,
		paper:             deps.Paper,
		risk:              deps.Risk,
		firewall:          deps.Firewall,
		strategy:          deps.Strategy,
		skills:            deps.Skills,
		evo:               deps.Evolution,
		metrics:           deps.Metrics,
		sessions:          deps.Sessions,
		wal:               deps.WAL,
		archive:           deps.Archive,
		heartbeatInterval: deps.HeartbeatInterval,
		now:               time.Now,
	}
}

// Run demultiplexes bus frames, the heartbeat timer, and skill ticks
// until ctx is canceled or a "shutdown" command is handled. It returns
// nil on a graceful shutdown.
func (a *Agent) Run(ctx context.Context) error {
	heartbeat := time.NewTicker(a.heartbeatInterval)
	defer heartbeat.Stop()
	skillTick := time.NewTicker(time.Second)
	defer skillTick.Stop()

	startedAt := a.now()

	for {
		select {
		case <-ctx.Done():
			a.shutdown(context.Background())
			return nil

		case msg, ok := <-a.incoming:
			if !ok {
				a.shutdown(context.Background())
				return nil
			}
			if shouldStop := a.handleMessage(ctx, msg); shouldStop {
				a.shutdown(context.Background())
				return nil
			}

		case <-heartbeat.C:
			a.metrics.IncrementUptime(uint64(a.heartbeatInterval.Seconds()))
			a.metrics.UpdateMemory()
			a.publishHeartbeat(ctx, startedAt)
			a.archiveFitnessSnapshot(ctx)

		case <-skillTick.C:
			for _, report := range a.skills.TickAll(ctx) {
				a.publishSkillReport(ctx, report)
			}
		}
	}
}

// handleMessage decodes and dispatches one inbound bus frame. It
// returns true when the agent should shut down.
func (a *Agent) handleMessage(ctx context.Context, msg bus.Message) bool {
	cmd, err := wire.ParseCommand(msg.Payload)
	if err != nil {
		a.log.Warn("agent: malformed command payload", "error", err)
		return false
	}

	if cmd.Command == "shutdown" {
		a.publishResult(ctx, cmd.RequestID, map[string]string{"status": "shutting_down"})
		return true
	}

	report, handlerErr := a.dispatch(ctx, cmd)
	a.recordSession(cmd, handlerErr)

	if handlerErr != nil {
		a.metrics.RecordFailure()
		a.publishError(ctx, cmd.RequestID, handlerErr)
		return false
	}
	a.metrics.RecordSuccess()
	a.publishResult(ctx, cmd.RequestID, report)
	return false
}

func (a *Agent) recordSession(cmd wire.Command, handlerErr error) {
	if a.sessions == nil {
		return
	}
	var parent *string
	if a.lastSessionID != "" {
		id := a.lastSessionID
		parent = &id
	}
	content := cmd.Command
	if handlerErr != nil {
		content = fmt.Sprintf("%s: %v", cmd.Command, handlerErr)
	}
	entry := session.Entry{
		ID:       session.NewID(),
		ParentID: parent,
		Role:     "command",
		Content:  content,
		Ts:       a.now().Unix(),
	}
	if err := a.sessions.Append(entry); err != nil {
		a.log.Warn("agent: session append failed", "error", err)
		return
	}
	a.lastSessionID = entry.ID
}

func (a *Agent) publishHeartbeat(ctx context.Context, startedAt time.Time) {
	snap := a.metrics.Snapshot()
	report := wire.NewReport(a.AgentID, a.AgentType, wire.ReportHeartbeat, map[string]interface{}{
		"uptime_sec":     snap.UptimeSec,
		"actions_total":  snap.ActionsTotal,
		"success_rate":   safeDiv(snap.ActionsSuccess, snap.ActionsTotal),
		"memory_bytes":   snap.MemoryBytes,
		"started_at_unix": startedAt.Unix(),
	})
	a.publish(ctx, report)
}

func (a *Agent) publishSkillReport(ctx context.Context, r *skills.Report) {
	reportType := wire.ReportMetric
	if r.Kind == skills.ReportAlert {
		reportType = wire.ReportAlert
	}
	report := wire.NewReport(a.AgentID, a.AgentType, reportType, map[string]interface{}{
		"skill":   r.Skill,
		"payload": json.RawMessage(r.Payload),
	})
	a.publish(ctx, report)
}

func (a *Agent) publishResult(ctx context.Context, requestID string, payload interface{}) {
	report := wire.NewReport(a.AgentID, a.AgentType, wire.ReportResult, map[string]interface{}{
		"request_id": requestID,
		"data":       payload,
	})
	a.publish(ctx, report)
}

func (a *Agent) publishError(ctx context.Context, requestID string, err error) {
	report := wire.NewReport(a.AgentID, a.AgentType, wire.ReportError, map[string]interface{}{
		"request_id": requestID,
		"kind":       errkind.KindOf(err).String(),
		"message":    err.Error(),
	})
	a.publish(ctx, report)
}

func (a *Agent) publish(ctx context.Context, report wire.Report) {
	data, err := wire.Encode(report)
	if err != nil {
		a.log.Error("agent: encode report failed", "error", err)
		return
	}
	if a.bus == nil {
		return
	}
	if err := a.bus.Publish(ctx, data); err != nil {
		a.log.Warn("agent: publish failed", "error", err)
	}
}

// archiveFitnessSnapshot records the current evolution score to the
// archive store, when one is configured, so fitness drift survives
// restarts.
func (a *Agent) archiveFitnessSnapshot(ctx context.Context) {
	if a.archive == nil || a.evo == nil {
		return
	}
	snap := archive.FitnessSnapshot{
		FitnessScore: a.evo.FitnessScore(),
		WinRate:      a.evo.WinRate(),
		TotalPnL:     a.evo.TotalPnL(),
		MaxDrawdown:  a.evo.MaxDrawdown(),
	}
	if err := a.archive.RecordFitnessSnapshot(ctx, a.AgentID, snap); err != nil {
		a.log.Warn("agent: archive fitness snapshot failed", "error", err)
	}
}

func (a *Agent) shutdown(ctx context.Context) {
	a.skills.ShutdownAll(ctx)
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			a.log.Warn("agent: archive close failed", "error", err)
		}
	}
}

func safeDiv(num, den uint64) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
