// Package mqttclient connects the service to an MQTT broker: job records go
// out on per-item topics and transcription requests come in on a command
// topic.
package mqttclient

import (
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const (
	statusOnline  = "online"
	statusOffline = "offline"
	qos           = 1
)

// Topics is the topic layout under one prefix:
//
//	<prefix>/status               retained "online" / "offline"
//	<prefix>/jobs/<itemId>        retained job record
//	<prefix>/commands/transcribe  transcription requests
type Topics struct {
	prefix string
}

func NewTopics(prefix string) Topics {
	return Topics{prefix: strings.TrimSuffix(prefix, "/")}
}

func (t Topics) Status() string { return t.prefix + "/status" }

func (t Topics) Job(itemID string) string { return t.prefix + "/jobs/" + itemID }

func (t Topics) Command() string { return t.prefix + "/commands/transcribe" }

type MessageHandler func(topic string, payload []byte)

type Client struct {
	conn      mqtt.Client
	topics    Topics
	commands  bool
	connected atomic.Bool
	handler   atomic.Pointer[MessageHandler]
	log       zerolog.Logger
}

type Options struct {
	BrokerURL   string
	ClientID    string
	TopicPrefix string
	// AcceptCommands subscribes to the command topic on every connect.
	AcceptCommands bool
	Username       string
	Password       string
	Log            zerolog.Logger
}

// Connect dials the broker and blocks until the first connection succeeds.
// The broker publishes "offline" on the status topic if the connection drops
// without Close.
func Connect(opts Options) (*Client, error) {
	c := &Client{
		topics:   NewTopics(opts.TopicPrefix),
		commands: opts.AcceptCommands,
		log:      opts.Log.With().Str("component", "mqtt").Logger(),
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false).
		SetWill(c.topics.Status(), statusOffline, qos, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost).
		SetDefaultPublishHandler(c.onMessage)
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}

	c.conn = mqtt.NewClient(clientOpts)
	token := c.conn.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}
	return c, nil
}

// Topics returns the layout the client publishes and subscribes under.
func (c *Client) Topics() Topics { return c.topics }

// SetMessageHandler routes command messages to h. Messages arriving before a
// handler is set are dropped.
func (c *Client) SetMessageHandler(h MessageHandler) {
	c.handler.Store(&h)
}

func (c *Client) onConnect(client mqtt.Client) {
	c.connected.Store(true)
	client.Publish(c.topics.Status(), qos, true, statusOnline)
	if !c.commands {
		c.log.Info().Msg("mqtt connected")
		return
	}
	topic := c.topics.Command()
	c.log.Info().Str("topic", topic).Msg("mqtt connected, subscribing to commands")
	token := client.Subscribe(topic, qos, nil)
	token.Wait()
	if err := token.Error(); err != nil {
		c.log.Error().Err(err).Str("topic", topic).Msg("mqtt subscribe failed")
	}
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.connected.Store(false)
	c.log.Warn().Err(err).Msg("mqtt connection lost, will auto-reconnect")
}

func (c *Client) onMessage(_ mqtt.Client, msg mqtt.Message) {
	h := c.handler.Load()
	if h == nil {
		c.log.Debug().Str("topic", msg.Topic()).Msg("mqtt message dropped, no handler")
		return
	}
	(*h)(msg.Topic(), msg.Payload())
}

// Publish sends payload and waits up to 5s for the broker acknowledgement.
// Retained messages replace the broker's last value for the topic.
func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	token := c.conn.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return errPublishTimeout
	}
	return token.Error()
}

func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Close marks the service offline and disconnects.
func (c *Client) Close() {
	if err := c.Publish(c.topics.Status(), []byte(statusOffline), true); err != nil {
		c.log.Warn().Err(err).Msg("failed to publish offline status")
	}
	c.log.Info().Msg("disconnecting mqtt client")
	c.conn.Disconnect(1000)
}
