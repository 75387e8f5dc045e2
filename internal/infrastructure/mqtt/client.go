package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/homytech-core/internal/infrastructure/config"
)

// State is the broker connection state.
type State string

// Connection states.
const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateFailed       State = "failed"
)

// transport is the part of pahomqtt.Client the Client drives.
type transport interface {
	Connect() pahomqtt.Token
	Disconnect(quiesce uint)
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload any) pahomqtt.Token
	Subscribe(topic string, qos byte, callback pahomqtt.MessageHandler) pahomqtt.Token
}

var _ transport = pahomqtt.Client(nil)

// transportFactory builds the transport from the prepared options.
type transportFactory func(opts *pahomqtt.ClientOptions) transport

func newPahoTransport(opts *pahomqtt.ClientOptions) transport {
	return pahomqtt.NewClient(opts)
}

// Logger defines the logging interface for the MQTT client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MessageHandler is the callback signature for received messages.
//
// Handlers run on paho's receive goroutine and should not block for long.
// A returned error is logged; it does not affect acknowledgement.
type MessageHandler func(topic string, payload []byte) error

// subscription holds subscription details for re-subscription on connect.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// Client manages the connection to the HomyTech broker.
//
// Lifecycle:
//
//	disconnected ──Connect──▶ connecting ──ok──▶ connected
//	                              │                 │ lost
//	                   attempts   ▼                 ▼
//	                  exhausted  failed        disconnected ──auto-reconnect──▶ connecting
//
// Subscriptions registered with Subscribe are (re)issued from the
// on-connect handler, so they survive reconnects. All methods are safe
// for concurrent use.
type Client struct {
	cfg      config.MQTTConfig
	clientID string
	topics   Topics
	logger   Logger

	transport transport

	subscriptions map[string]subscription
	subMu         sync.RWMutex

	state   State
	stateMu sync.RWMutex
	closed  bool

	onConnect     func()
	onDisconnect  func(err error)
	onStateChange func(State)
	callbackMu    sync.RWMutex
}

// New creates an unconnected client. A nil logger discards output.
func New(cfg config.MQTTConfig, logger Logger) *Client {
	return newClient(cfg, logger, newPahoTransport)
}

func newClient(cfg config.MQTTConfig, logger Logger, factory transportFactory) *Client {
	if logger == nil {
		logger = noopLogger{}
	}

	c := &Client{
		cfg:           cfg,
		clientID:      clientID(cfg),
		topics:        NewTopics(cfg.TopicPrefix),
		logger:        logger,
		subscriptions: make(map[string]subscription),
		state:         StateDisconnected,
	}

	opts := buildClientOptions(cfg, c.clientID, c.topics)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleConnectionLost(err)
	})
	opts.SetReconnectingHandler(func(_ pahomqtt.Client, _ *pahomqtt.ClientOptions) {
		c.setState(StateConnecting)
		c.logger.Info("mqtt reconnecting", "broker", brokerURL(c.cfg))
	})

	c.transport = factory(opts)
	return c
}

// Connect creates a client and connects it. See Client.Connect.
func Connect(ctx context.Context, cfg config.MQTTConfig, logger Logger) (*Client, error) {
	c := New(cfg, logger)
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Connect establishes the broker connection.
//
// It makes at most cfg.Reconnect.MaxAttempts attempts (at least one),
// waiting cfg.Reconnect.RetryDelay between them. When every attempt has
// failed the state becomes failed and ErrConnectionFailed is returned,
// wrapping the last transport error. Cancelling ctx aborts the wait
// between attempts. Connect on an already connected client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.stateMu.Lock()
	if c.closed {
		c.stateMu.Unlock()
		return ErrClosed
	}
	if c.state == StateConnected {
		c.stateMu.Unlock()
		return nil
	}
	changed := c.state != StateConnecting
	c.state = StateConnecting
	c.stateMu.Unlock()
	if changed {
		c.notifyState(StateConnecting)
	}

	attempts := max(c.cfg.Reconnect.MaxAttempts, 1)
	delay := c.cfg.Reconnect.RetryDelayDuration()
	broker := brokerURL(c.cfg)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = c.attempt()
		if lastErr == nil {
			c.setState(StateConnected)
			c.logger.Info("mqtt connected", "broker", broker, "client_id", c.clientID, "attempt", attempt)
			return nil
		}

		c.logger.Warn("mqtt connection attempt failed",
			"broker", broker,
			"attempt", attempt,
			"max_attempts", attempts,
			"error", lastErr,
		)

		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			c.setState(StateDisconnected)
			return fmt.Errorf("%w: %w", ErrConnectionFailed, ctx.Err())
		case <-time.After(delay):
		}
	}

	c.setState(StateFailed)
	c.logger.Error("mqtt connection failed", "broker", broker, "attempts", attempts, "error", lastErr)
	return fmt.Errorf("%w after %d attempts: %w", ErrConnectionFailed, attempts, lastErr)
}

// attempt performs one transport connect bounded by the connect timeout.
func (c *Client) attempt() error {
	token := c.transport.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return fmt.Errorf("timeout after %v", defaultConnectTimeout)
	}
	return token.Error()
}

// handleConnect runs on every successful (re)connection.
func (c *Client) handleConnect() {
	c.setState(StateConnected)
	c.restoreSubscriptions()

	c.transport.Publish(c.topics.SystemStatus(), byte(c.cfg.QoS), true, statusPayload(c.clientID, "online", ""))

	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleConnectionLost runs when an established connection drops.
func (c *Client) handleConnectionLost(err error) {
	c.setState(StateDisconnected)
	c.logger.Warn("mqtt connection lost", "error", err, "auto_reconnect", c.cfg.Reconnect.AutoReconnect)

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// restoreSubscriptions issues every tracked subscription.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	subs := make([]subscription, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		subs = append(subs, sub)
	}
	c.subMu.RUnlock()

	for _, sub := range subs {
		token := c.transport.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
		go func(topic string, token pahomqtt.Token) {
			if err := await(token, defaultPublishTimeout); err != nil {
				c.logger.Error("mqtt resubscribe failed", "topic", topic, "error", err)
				return
			}
			c.logger.Debug("mqtt subscribed", "topic", topic)
		}(sub.topic, token)
	}
}

// Close publishes a graceful offline status and disconnects. It is idempotent.
func (c *Client) Close() error {
	c.stateMu.Lock()
	if c.closed {
		c.stateMu.Unlock()
		return nil
	}
	c.closed = true
	wasConnected := c.state == StateConnected
	changed := c.state != StateDisconnected
	c.state = StateDisconnected
	c.stateMu.Unlock()
	if changed {
		c.notifyState(StateDisconnected)
	}

	if c.transport == nil {
		return nil
	}

	if wasConnected && c.transport.IsConnected() {
		token := c.transport.Publish(c.topics.SystemStatus(), byte(c.cfg.QoS), true,
			statusPayload(c.clientID, "offline", "graceful_shutdown"))
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.transport.Disconnect(defaultDisconnectQuiesce)
	c.logger.Info("mqtt disconnected")
	return nil
}

// Stop is an alias for Close.
func (c *Client) Stop() error {
	return c.Close()
}

// HealthCheck reports whether the client is connected.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// State returns the current connection state.
func (c *Client) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// IsConnected reports whether the client is connected and the transport agrees.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected && c.transport.IsConnected()
}

// ClientID returns the client id presented to the broker.
func (c *Client) ClientID() string {
	return c.clientID
}

// Topics returns the topic builder for the configured prefix.
func (c *Client) Topics() Topics {
	return c.topics
}

// SetOnConnect sets a callback invoked after every (re)connection.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the connection is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetOnStateChange sets a callback invoked after every state transition,
// including paho's auto-reconnect moving the client back to connecting.
func (c *Client) SetOnStateChange(callback func(State)) {
	c.callbackMu.Lock()
	c.onStateChange = callback
	c.callbackMu.Unlock()
}

func (c *Client) setState(s State) {
	c.stateMu.Lock()
	if c.closed || c.state == s {
		c.stateMu.Unlock()
		return
	}
	c.state = s
	c.stateMu.Unlock()
	c.notifyState(s)
}

func (c *Client) notifyState(s State) {
	c.callbackMu.RLock()
	callback := c.onStateChange
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(s)
	}
}

// wrapHandler adds panic recovery and error logging to a MessageHandler.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("mqtt handler panic recovered",
					"topic", msg.Topic(),
					"panic", r,
				)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.logger.Warn("mqtt handler returned error",
				"topic", msg.Topic(),
				"error", err,
			)
		}
	}
}
