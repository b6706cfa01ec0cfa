package skills

import (
	"context"
	"encoding/json"
	"fmt"
)

// Completer is the narrow LLM contract the governance skill depends
// on, satisfied by *llm.Client without importing it directly (skills
// stay free of the adapters package's HTTP concerns).
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Configured() bool
}

// Governance asks an LLM for a short recommendation on a clawchain
// proposal or reputation change. It is registered when
// skills.governance.enabled is set, whatever the agent_type, and it
// advises on votes rather than casting them.
type Governance struct {
	llm          Completer
	agentID      string
	tickInterval uint64
	lastAdvice   string
	nowUnix      func() int64
}

// NewGovernance builds the skill. llm may report Configured() == false,
// in which case Handle and Tick return an error/no-op rather than
// trying to reach an unconfigured endpoint.
func NewGovernance(llm Completer, agentID string, tickInterval uint64, now func() int64) *Governance {
	return &Governance{llm: llm, agentID: agentID, tickInterval: tickInterval, nowUnix: now}
}

// Name implements Skill.
func (g *Governance) Name() string { return "governance" }

// Capabilities implements Skill.
func (g *Governance) Capabilities() []string {
	return []string{"governance.advise"}
}

// Init implements Skill. An unconfigured LLM client is not a fatal
// error: the skill just stays idle until configured.
func (g *Governance) Init(ctx context.Context) error { return nil }

// Handle implements Skill. Supported commands: advise, status.
func (g *Governance) Handle(ctx context.Context, command string, payload json.RawMessage) (json.RawMessage, error) {
	switch command {
	case "advise":
		if !g.llm.Configured() {
			return nil, fmt.Errorf("governance: no LLM endpoint configured")
		}
		topic, _ := paramFromPayload(payload, "topic")
		context_, _ := paramFromPayload(payload, "context")
		prompt := fmt.Sprintf("You advise an autonomous trading agent on a clawchain governance proposal.\nTopic: %s\nContext: %s\nGive a one-sentence recommendation.", topic, context_)

		advice, err := g.llm.Complete(ctx, prompt)
		if err != nil {
			return nil, fmt.Errorf("governance: %w", err)
		}
		g.lastAdvice = advice
		return json.Marshal(map[string]interface{}{"topic": topic, "advice": advice})

	case "status":
		return json.Marshal(map[string]interface{}{
			"agent_id": g.agentID, "configured": g.llm.Configured(), "last_advice": g.lastAdvice,
		})

	default:
		return nil, fmt.Errorf("governance: unknown command %q", command)
	}
}

// Tick implements Skill. Governance has no periodic work: advice is
// pulled on demand via Handle, not pushed on a schedule.
func (g *Governance) Tick(ctx context.Context) ([]*Report, error) { return nil, nil }

// TickIntervalSecs implements Skill.
func (g *Governance) TickIntervalSecs() uint64 { return g.tickInterval }

// Shutdown implements Skill.
func (g *Governance) Shutdown(ctx context.Context) {}
