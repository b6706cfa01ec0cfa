// Package bus is the MQTT transport between an agent and the
// orchestrator: subscribe to command/strategy/broadcast topics, publish
// reports, retry the initial broker connection with backoff.
package bus

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/paho"
)

// Topics returns the fixed subscribe/publish topic set for one agent.
type Topics struct {
	Commands  string
	Broadcast string
	Strategy  string
	Reports   string
	RPC       string
}

// TopicsFor builds the standard topic set for an agent id.
func TopicsFor(agentID string) Topics {
	return Topics{
		Commands:  fmt.Sprintf("evoclaw/agents/%s/commands", agentID),
		Broadcast: "evoclaw/broadcast",
		Strategy:  fmt.Sprintf("evoclaw/agents/%s/strategy", agentID),
		Reports:   fmt.Sprintf("evoclaw/agents/%s/reports", agentID),
		RPC:       fmt.Sprintf("evoclaw/rpc/clawchain/%s", agentID),
	}
}

// Message is one inbound publish, stripped down to topic and payload.
type Message struct {
	Topic   string
	Payload []byte
}

// Client maintains a connection to an MQTT broker, subscribes on each
// successful Connect, and exposes a channel of inbound messages. There
// is no outgoing queue: Publish hands each payload to the broker and
// blocks until it is acknowledged or ctx is done. The inbound channel
// holds up to 256 messages; messages arriving while it is full are
// dropped.
type Client struct {
	brokerAddr string
	clientID   string
	topics     Topics
	log        *slog.Logger

	mu     sync.Mutex
	conn   net.Conn
	client *paho.Client

	incoming chan Message
}

// New builds a bus Client. Connect must be called before Publish or
// Incoming produce anything.
func New(brokerAddr, clientID string, topics Topics, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		brokerAddr: brokerAddr,
		clientID:   clientID,
		topics:     topics,
		log:        log,
		incoming:   make(chan Message, 256),
	}
}

// Incoming returns the channel of messages received on subscribed
// topics. Callers should select on it alongside timers in the event
// loop.
func (c *Client) Incoming() <-chan Message {
	return c.incoming
}

// Connect dials the broker, performs the MQTT CONNECT handshake, and
// subscribes to the agent's commands/broadcast/strategy topics.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := net.Dial("tcp", c.brokerAddr)
	if err != nil {
		return fmt.Errorf("bus: dial %s: %w", c.brokerAddr, err)
	}

	pahoClient := paho.NewClient(paho.ClientConfig{
		Conn: conn,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			c.onPublish,
		},
		OnClientError: func(err error) {
			c.log.Warn("bus client error", "error", err)
		},
	})

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	ca, err := pahoClient.Connect(connCtx, &paho.Connect{
		KeepAlive:  30,
		ClientID:   c.clientID,
		CleanStart: true,
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("bus: connect: %w", err)
	}
	if ca.ReasonCode != 0 {
		conn.Close()
		return fmt.Errorf("bus: broker rejected connect, reason %d", ca.ReasonCode)
	}

	c.mu.Lock()
	c.conn = conn
	c.client = pahoClient
	c.mu.Unlock()

	for _, topic := range []string{c.topics.Commands, c.topics.Broadcast, c.topics.Strategy} {
		if _, err := pahoClient.Subscribe(ctx, &paho.Subscribe{
			Subscriptions: []paho.SubscribeOptions{{Topic: topic, QoS: 1}},
		}); err != nil {
			return fmt.Errorf("bus: subscribe %s: %w", topic, err)
		}
	}
	return nil
}

func (c *Client) onPublish(pr paho.PublishReceived) (bool, error) {
	msg := Message{Topic: pr.Packet.Topic, Payload: pr.Packet.Payload}
	select {
	case c.incoming <- msg:
	default:
		c.log.Warn("bus: incoming channel full, dropping message", "topic", msg.Topic)
	}
	return true, nil
}

// Publish sends payload to the agent's reports topic at QoS 1. It
// suspends until the broker acknowledges or ctx is done.
func (c *Client) Publish(ctx context.Context, payload []byte) error {
	return c.publishTo(ctx, c.topics.Reports, payload)
}

// PublishRPC sends payload to the agent's chain-RPC request topic.
func (c *Client) PublishRPC(ctx context.Context, payload []byte) error {
	return c.publishTo(ctx, c.topics.RPC, payload)
}

func (c *Client) publishTo(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	if client == nil {
		return fmt.Errorf("bus: not connected")
	}
	_, err := client.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     1,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("bus: publish %s: %w", topic, err)
	}
	return nil
}

// Disconnect closes the connection to the broker.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	client := c.client
	conn := c.conn
	c.mu.Unlock()
	if client != nil {
		_ = client.Disconnect(&paho.Disconnect{ReasonCode: 0})
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}
