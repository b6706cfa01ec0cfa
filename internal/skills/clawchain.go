package skills

import (
	"context"
	"encoding/json"
	"fmt"
)

// RPCClient performs a single clawchain JSON-RPC call, returning the
// decoded "result" field.
type RPCClient interface {
	Call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error)
}

type clawchainCache struct {
	Reputation    *uint64 `json:"reputation,omitempty"`
	BalanceAtomic *string `json:"balance,omitempty"`
	UpdatedUnix   int64   `json:"updated_unix"`
}

// ClawChain is a thin shim over the clawchain agent registry/reputation
// RPC: it does not implement the registry's consensus or identity
// logic, only the calls an edge agent needs to self-register, vote, and
// read its own standing.
type ClawChain struct {
	client       RPCClient
	agentID      string
	agentDID     string
	nodeURL      string
	tickInterval uint64
	cache        clawchainCache
	nowUnix      func() int64
}

// NewClawChain builds the skill. client may be nil at construction, in
// which case Init returns an error.
func NewClawChain(client RPCClient, agentID, agentDID, nodeURL string, tickInterval uint64, now func() int64) *ClawChain {
	return &ClawChain{client: client, agentID: agentID, agentDID: agentDID, nodeURL: nodeURL, tickInterval: tickInterval, nowUnix: now}
}

// Name implements Skill.
func (c *ClawChain) Name() string { return "clawchain" }

// Capabilities implements Skill.
func (c *ClawChain) Capabilities() []string {
	return []string{
		"clawchain.register", "clawchain.reputation", "clawchain.balance",
		"clawchain.vote", "clawchain.agent_info", "clawchain.proposals",
	}
}

// Init implements Skill.
func (c *ClawChain) Init(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("clawchain: no RPC client configured")
	}
	return nil
}

func paramFromPayload(payload json.RawMessage, key string) (string, bool) {
	var req map[string]interface{}
	if err := json.Unmarshal(payload, &req); err != nil {
		return "", false
	}
	v, ok := req[key].(string)
	return v, ok
}

// Handle implements Skill.
func (c *ClawChain) Handle(ctx context.Context, command string, payload json.RawMessage) (json.RawMessage, error) {
	switch command {
	case "register_agent":
		return c.client.Call(ctx, "clawchain_registerAgent", []interface{}{c.agentID, c.agentDID})

	case "get_reputation":
		did, ok := paramFromPayload(payload, "agent_did")
		if !ok {
			did = c.agentDID
		}
		return c.client.Call(ctx, "clawchain_getReputation", []interface{}{did})

	case "get_balance":
		did, ok := paramFromPayload(payload, "agent_did")
		if !ok {
			did = c.agentDID
		}
		return c.client.Call(ctx, "clawchain_getBalance", []interface{}{did})

	case "vote":
		proposalID, _ := paramFromPayload(payload, "proposal_id")
		choice, _ := paramFromPayload(payload, "choice")
		return c.client.Call(ctx, "clawchain_vote", []interface{}{c.agentDID, proposalID, choice})

	case "get_agent_info":
		did, ok := paramFromPayload(payload, "agent_did")
		if !ok {
			did = c.agentDID
		}
		return c.client.Call(ctx, "clawchain_getAgentInfo", []interface{}{did})

	case "list_proposals":
		var req struct {
			Status string `json:"status"`
			Limit  int    `json:"limit"`
		}
		_ = json.Unmarshal(payload, &req)
		if req.Status == "" {
			req.Status = "active"
		}
		if req.Limit <= 0 {
			req.Limit = 10
		}
		return c.client.Call(ctx, "clawchain_listProposals", []interface{}{req.Status, req.Limit})

	case "status":
		return json.Marshal(map[string]interface{}{
			"agent_id": c.agentID, "agent_did": c.agentDID, "node_url": c.nodeURL,
			"cached_reputation": c.cache.Reputation, "cached_balance": c.cache.BalanceAtomic,
			"cache_updated_at": c.cache.UpdatedUnix,
		})

	default:
		return nil, fmt.Errorf("clawchain: unknown command %q", command)
	}
}

// Tick implements Skill: refreshes the reputation/balance cache. A
// failed call keeps the stale cached value rather than zeroing it.
func (c *ClawChain) Tick(ctx context.Context) ([]*Report, error) {
	if c.agentDID == "" {
		return nil, nil
	}

	if raw, err := c.client.Call(ctx, "clawchain_getReputation", []interface{}{c.agentDID}); err == nil {
		var r struct {
			Score *uint64 `json:"score"`
		}
		if json.Unmarshal(raw, &r) == nil && r.Score != nil {
			c.cache.Reputation = r.Score
		}
	}

	if raw, err := c.client.Call(ctx, "clawchain_getBalance", []interface{}{c.agentDID}); err == nil {
		var b struct {
			Balance *string `json:"balance"`
		}
		if json.Unmarshal(raw, &b) == nil && b.Balance != nil {
			c.cache.BalanceAtomic = b.Balance
		}
	}

	c.cache.UpdatedUnix = c.nowUnix()

	payload, err := json.Marshal(map[string]interface{}{
		"agent_did": c.agentDID, "reputation": c.cache.Reputation,
		"balance": c.cache.BalanceAtomic, "timestamp": c.cache.UpdatedUnix,
	})
	if err != nil {
		return nil, err
	}
	return []*Report{{Skill: c.Name(), Kind: ReportMetric, Payload: payload}}, nil
}

// TickIntervalSecs implements Skill.
func (c *ClawChain) TickIntervalSecs() uint64 { return c.tickInterval }

// Shutdown implements Skill.
func (c *ClawChain) Shutdown(ctx context.Context) {}
