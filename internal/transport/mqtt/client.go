package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/solar-surv/coldwatch/internal/logger"
)

const (
	// defaultQoS is at-least-once: readings from intermittently-connected
	// sensors should survive a flaky link, duplicates are idempotent upserts.
	defaultQoS byte = 1

	// reconnect backoff ceiling for the paho auto-reconnect loop.
	maxReconnectInterval = 30 * time.Second

	// disconnectQuiesce is how long Close waits for pending operations, in ms.
	disconnectQuiesce uint = 250
)

// MessageHandler is the callback signature for received messages. Handlers
// run on paho goroutines; returned errors are logged, they do not affect
// message acknowledgment.
type MessageHandler func(topic string, payload []byte) error

// Client wraps paho.mqtt.golang with connection management, subscription
// tracking and automatic re-subscription after reconnects. All methods are
// safe for concurrent use.
type Client struct {
	client  pahomqtt.Client
	timeout time.Duration

	// subscriptions tracks active subscriptions for restoration on reconnect.
	subMu         sync.RWMutex
	subscriptions map[string]subscription

	// ctx carries the logger for connection events and handler errors.
	ctx context.Context //nolint:containedctx // Paho callbacks have no context parameter.
}

// subscription holds subscription details for re-subscription on reconnect.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// Connect establishes a connection to the MQTT broker and enables
// auto-reconnect with exponential backoff. It blocks until the initial
// connection succeeds or the timeout elapses.
func Connect(ctx context.Context, brokerURL, clientID string, timeout time.Duration) (*Client, error) {
	c := &Client{
		timeout:       timeout,
		subscriptions: make(map[string]subscription),
		ctx:           ctx,
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(maxReconnectInterval).
		SetConnectTimeout(timeout).
		SetOrderMatters(true)

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		logger.InfoKV(ctx, "Connected to MQTT broker", "broker", brokerURL)
		c.restoreSubscriptions()
	})

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		logger.WarnKV(ctx, "MQTT connection lost, reconnecting", "error", err)
	})

	c.client = pahomqtt.NewClient(opts)

	token := c.client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, timeout)
	}

	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return c, nil
}

// Subscribe registers a handler for messages on the topic (MQTT wildcards
// allowed). The subscription is restored automatically after reconnects.
func (c *Client) Subscribe(topic string, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	if !c.client.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	c.subscriptions[topic] = subscription{
		topic:   topic,
		qos:     defaultQoS,
		handler: handler,
	}
	c.subMu.Unlock()

	token := c.client.Subscribe(topic, defaultQoS, c.wrapHandler(handler))
	if !token.WaitTimeout(c.timeout) {
		c.forgetSubscription(topic)

		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, c.timeout)
	}

	if err := token.Error(); err != nil {
		c.forgetSubscription(topic)

		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	return nil
}

// Unsubscribe stops delivery for the exact topic pattern.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	c.forgetSubscription(topic)

	if !c.client.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Unsubscribe(topic)
	token.WaitTimeout(c.timeout)

	return token.Error()
}

// Publish sends a payload to the topic with the default QoS.
func (c *Client) Publish(topic string, payload []byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	if !c.client.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, defaultQoS, false, payload)
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, c.timeout)
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// IsConnected reports the current connection state.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Close disconnects from the broker after a short quiesce period for pending
// operations.
func (c *Client) Close() {
	c.client.Disconnect(disconnectQuiesce)
}

// restoreSubscriptions re-subscribes to all tracked topics after a reconnect.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, sub := range c.subscriptions {
		c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
	}
}

// forgetSubscription drops a topic from the restoration table.
func (c *Client) forgetSubscription(topic string) {
	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()
}

// wrapHandler adapts a MessageHandler to paho, adding panic recovery and
// error logging so one bad message never kills the receive pipeline.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorKV(c.ctx, "MQTT handler panic recovered",
					"topic", msg.Topic(), "panic", r)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			logger.WarnKV(c.ctx, "MQTT handler returned error",
				"topic", msg.Topic(), "error", err)
		}
	}
}
