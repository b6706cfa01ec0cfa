package skills

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubRPC struct {
	responses map[string]json.RawMessage
	err       error
	calls     []string
}

func (s *stubRPC) Call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	s.calls = append(s.calls, method)
	if s.err != nil {
		return nil, s.err
	}
	return s.responses[method], nil
}

func TestClawChainInitRequiresClient(t *testing.T) {
	c := NewClawChain(nil, "agent-1", "did:clawchain:agent-1", "http://node", 60, func() int64 { return 0 })
	err := c.Init(context.Background())
	require.Error(t, err)
}

func TestClawChainGetReputationCallsRPC(t *testing.T) {
	rpc := &stubRPC{responses: map[string]json.RawMessage{
		"clawchain_getReputation": json.RawMessage(`{"score":42}`),
	}}
	c := NewClawChain(rpc, "agent-1", "did:clawchain:agent-1", "http://node", 60, func() int64 { return 0 })

	out, err := c.Handle(context.Background(), "get_reputation", nil)
	require.NoError(t, err)
	require.JSONEq(t, `{"score":42}`, string(out))
	require.Contains(t, rpc.calls, "clawchain_getReputation")
}

func TestClawChainTickUpdatesCache(t *testing.T) {
	rpc := &stubRPC{responses: map[string]json.RawMessage{
		"clawchain_getReputation": json.RawMessage(`{"score":77}`),
		"clawchain_getBalance":    json.RawMessage(`{"balance":"1000"}`),
	}}
	c := NewClawChain(rpc, "agent-1", "did:clawchain:agent-1", "http://node", 60, func() int64 { return 500 })

	report, err := c.Tick(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)
	require.NotNil(t, c.cache.Reputation)
	require.Equal(t, uint64(77), *c.cache.Reputation)
	require.Equal(t, "1000", *c.cache.BalanceAtomic)
	require.Equal(t, int64(500), c.cache.UpdatedUnix)
}

func TestClawChainTickWithoutDIDIsNoop(t *testing.T) {
	rpc := &stubRPC{}
	c := NewClawChain(rpc, "agent-1", "", "http://node", 60, func() int64 { return 0 })
	report, err := c.Tick(context.Background())
	require.NoError(t, err)
	require.Nil(t, report)
	require.Empty(t, rpc.calls)
}

func TestClawChainTickKeepsStaleCacheOnRPCFailure(t *testing.T) {
	rpc := &stubRPC{err: require.AnError}
	c := NewClawChain(rpc, "agent-1", "did:clawchain:agent-1", "http://node", 60, func() int64 { return 10 })
	score := uint64(5)
	c.cache.Reputation = &score

	_, err := c.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(5), *c.cache.Reputation)
}

func TestClawChainStatusReturnsCachedState(t *testing.T) {
	c := NewClawChain(&stubRPC{}, "agent-1", "did:clawchain:agent-1", "http://node", 60, func() int64 { return 0 })
	out, err := c.Handle(context.Background(), "status", nil)
	require.NoError(t, err)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &resp))
	require.Equal(t, "agent-1", resp["agent_id"])
}

func TestClawChainUnknownCommandErrors(t *testing.T) {
	c := NewClawChain(&stubRPC{}, "agent-1", "did:clawchain:agent-1", "http://node", 60, func() int64 { return 0 })
	_, err := c.Handle(context.Background(), "bogus", nil)
	require.Error(t, err)
}
