package bus

import (
	"context"
	"testing"

	"github.com/eclipse/paho.golang/paho"
	"github.com/stretchr/testify/require"
)

func TestTopicsForBuildsAgentScopedTopics(t *testing.T) {
	topics := TopicsFor("agent-1")
	require.Equal(t, "evoclaw/agents/agent-1/commands", topics.Commands)
	require.Equal(t, "evoclaw/broadcast", topics.Broadcast)
	require.Equal(t, "evoclaw/agents/agent-1/strategy", topics.Strategy)
	require.Equal(t, "evoclaw/agents/agent-1/reports", topics.Reports)
	require.Equal(t, "evoclaw/rpc/clawchain/agent-1", topics.RPC)
}

func TestClientOnPublishDeliversToIncoming(t *testing.T) {
	c := New("unused:1883", "agent-1", TopicsFor("agent-1"), nil)

	_, err := c.onPublish(paho.PublishReceived{
		Packet: &paho.Publish{Topic: "evoclaw/agents/agent-1/commands", Payload: []byte(`{"command":"ping"}`)},
	})
	require.NoError(t, err)

	msg := <-c.Incoming()
	require.Equal(t, "evoclaw/agents/agent-1/commands", msg.Topic)
	require.Equal(t, []byte(`{"command":"ping"}`), msg.Payload)
}

func TestClientOnPublishDropsWhenChannelFull(t *testing.T) {
	c := New("unused:1883", "agent-1", TopicsFor("agent-1"), nil)
	// Fill the bounded incoming channel beyond capacity without blocking.
	for i := 0; i < cap(c.incoming)+1; i++ {
		_, _ = c.onPublish(paho.PublishReceived{
			Packet: &paho.Publish{Topic: "t", Payload: []byte("x")},
		})
	}
	require.Len(t, c.incoming, cap(c.incoming))
}

func TestClientPublishWithoutConnectErrors(t *testing.T) {
	c := New("unused:1883", "agent-1", TopicsFor("agent-1"), nil)
	err := c.Publish(context.Background(), []byte("{}"))
	require.Error(t, err)
}
