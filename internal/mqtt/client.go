// Package mqtt adapts the Eclipse Paho client to the publish and subscribe
// contract the coordinator consumes.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrNotConnected = errors.New("mqtt client not connected")

// Config holds broker connection settings.
type Config struct {
	Broker         string        `help:"MQTT broker URL" default:"tcp://localhost:1883" env:"BROKER"`
	Username       string        `help:"MQTT username" env:"USERNAME"`
	Password       string        `help:"MQTT password" env:"PASSWORD"`
	ClientIDPrefix string        `help:"Prefix for the generated client id" default:"frts_" env:"CLIENT_ID_PREFIX"`
	QoS            byte          `help:"QoS for publishes and subscriptions" default:"0" env:"QOS"`
	KeepAlive      time.Duration `help:"Keepalive interval" default:"1s" env:"KEEPALIVE"`
	ConnectTimeout time.Duration `help:"Connect timeout" default:"5s" env:"CONNECT_TIMEOUT"`
	CleanSession   bool          `help:"Start with a clean session" default:"false" env:"CLEAN_SESSION"`
}

// Validate checks the settings needed to connect.
func (c Config) Validate() error {
	if c.Broker == "" {
		return errors.New("broker is required")
	}
	if c.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2, got %d", c.QoS)
	}
	if c.ConnectTimeout <= 0 {
		return errors.New("connect timeout must be positive")
	}
	return nil
}

// ClientID returns a unique client id carrying the configured prefix.
func (c Config) ClientID() string {
	return c.ClientIDPrefix + uuid.NewString()
}

// Handler receives inbound messages. It runs on the client's delivery
// goroutine and must not block.
type Handler func(topic string, payload []byte)

// Client is a connected MQTT session. Subscriptions are restored after
// every reconnect.
type Client struct {
	client  paho.Client
	qos     byte
	timeout time.Duration

	mu   sync.Mutex
	subs map[string]Handler
}

// Connect dials the broker and waits up to cfg.ConnectTimeout for the
// session to come up.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mqtt config: %w", err)
	}

	c := &Client{
		qos:     cfg.QoS,
		timeout: cfg.ConnectTimeout,
		subs:    make(map[string]Handler),
	}

	clientID := cfg.ClientID()

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetCleanSession(cfg.CleanSession).
		SetKeepAlive(cfg.KeepAlive).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn().Err(err).Str("broker", cfg.Broker).Msg("MQTT connection lost")
		}).
		SetReconnectingHandler(func(_ paho.Client, _ *paho.ClientOptions) {
			log.Info().Str("broker", cfg.Broker).Msg("MQTT reconnecting")
		}).
		SetOnConnectHandler(func(pc paho.Client) {
			log.Info().Str("broker", cfg.Broker).Str("client_id", clientID).Msg("MQTT connected")
			c.resubscribe(pc)
		})

	c.client = paho.NewClient(opts)

	if err := c.wait(ctx, c.client.Connect()); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Broker, err)
	}

	return c, nil
}

// Publish sends payload to topic, non-retained, at the configured QoS.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	if !c.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	return c.wait(ctx, c.client.Publish(topic, c.qos, false, payload))
}

// Subscribe registers handler for pattern and remembers it for reconnects.
func (c *Client) Subscribe(ctx context.Context, pattern string, handler Handler) error {
	c.mu.Lock()
	c.subs[pattern] = handler
	c.mu.Unlock()

	if err := c.wait(ctx, c.client.Subscribe(pattern, c.qos, messageHandler(handler))); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", pattern, err)
	}

	log.Info().Str("topic", pattern).Msg("MQTT subscribed")
	return nil
}

// Close disconnects, allowing in flight work a short time to complete.
func (c *Client) Close() {
	c.client.Disconnect(250)
}

func (c *Client) resubscribe(pc paho.Client) {
	c.mu.Lock()
	subs := make(map[string]Handler, len(c.subs))
	for pattern, h := range c.subs {
		subs[pattern] = h
	}
	c.mu.Unlock()

	for pattern, h := range subs {
		token := pc.Subscribe(pattern, c.qos, messageHandler(h))
		go func() {
			if !token.WaitTimeout(c.timeout) {
				log.Error().Str("topic", pattern).Msg("MQTT resubscribe timed out")
				return
			}
			if err := token.Error(); err != nil {
				log.Error().Err(err).Str("topic", pattern).Msg("MQTT resubscribe failed")
			}
		}()
	}
}

func (c *Client) wait(ctx context.Context, token paho.Token) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func messageHandler(h Handler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		h(msg.Topic(), msg.Payload())
	}
}
