package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/hearthome/hearth-core/internal/infrastructure/config"
)

// ConnState describes the client's position in the connection lifecycle.
type ConnState string

// Connection states.
const (
	// StateDisconnected means no connection and no reconnect in progress.
	StateDisconnected ConnState = "disconnected"

	// StateConnecting means a connect or reconnect attempt is in progress.
	StateConnecting ConnState = "connecting"

	// StateConnected means the client has an active broker session.
	StateConnected ConnState = "connected"

	// StateReconnectFailed means the attempt ceiling was reached and the
	// client has given up. A manual Reconnect() is required to recover.
	StateReconnectFailed ConnState = "reconnect_failed"
)

// Client wraps paho.mqtt.golang with Hearth-specific functionality.
//
// It provides connection management, message publishing, subscription
// handling, and reconnection with exponential backoff. The reconnect loop
// is owned here rather than delegated to the library: the backoff curve,
// the attempt ceiling, and the reported connection state all come from one
// place, so callers never see the library and the wrapper disagree.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Subscriptions are automatically restored on reconnection.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig

	// subscriptions tracks active subscriptions for re-subscription on reconnect.
	subscriptions map[string]subscription
	subMu         sync.RWMutex

	// state tracks the connection lifecycle.
	state        ConnState
	reconnecting bool
	stateMu      sync.RWMutex

	// closed signals the reconnect loop to stop.
	closed    chan struct{}
	closeOnce sync.Once

	// Callbacks for connection events (optional, set via the Set* methods).
	onConnect         func()
	onDisconnect      func(err error)
	onReconnectFailed func(attempts int)
	callbackMu        sync.RWMutex

	// logger for error/panic logging (optional, set via SetLogger).
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// subscription holds subscription details for re-subscription on reconnect.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// MessageHandler is the callback signature for received messages.
//
// Handlers are invoked in separate goroutines by the paho library.
// They should not block for extended periods.
//
// Parameters:
//   - topic: The topic the message was received on (wildcards expanded)
//   - payload: The raw message payload (typically JSON)
//
// Returns:
//   - error: Logged but does not affect message acknowledgment
type MessageHandler func(topic string, payload []byte) error

// Connect establishes a connection to the MQTT broker.
//
// It performs the following setup:
//  1. Builds connection options from config (broker URL, auth, TLS)
//  2. Configures Last Will and Testament (LWT) for offline detection
//  3. Attempts initial connection with timeout
//  4. Publishes online status to hearth/system/status
//
// Connection loss afterwards triggers the client's reconnect loop, which
// retries with exponential backoff until connected or the configured
// attempt ceiling is reached.
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: If initial connection fails within timeout
func Connect(cfg config.MQTTConfig) (*Client, error) {
	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)

	c := &Client{
		cfg:           cfg,
		options:       opts,
		subscriptions: make(map[string]subscription),
		state:         StateDisconnected,
		closed:        make(chan struct{}),
	}

	// Set up connection callbacks
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.handleConnect()
	})

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleConnectionLost(err)
	})

	// Create and connect
	c.setState(StateConnecting)
	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		c.setState(StateDisconnected)
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		c.setState(StateDisconnected)
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// Set connected state immediately after successful connection.
	// The OnConnectHandler callback runs asynchronously and may not have
	// executed yet, so we set it here to ensure IsConnected() returns true.
	// The callback will handle subscription restoration and status publishing.
	c.setState(StateConnected)

	return c, nil
}

// handleConnect is called when a connection is established.
func (c *Client) handleConnect() {
	c.stateMu.Lock()
	c.state = StateConnected
	c.reconnecting = false
	c.stateMu.Unlock()

	// Restore subscriptions
	c.restoreSubscriptions()

	// Publish online status
	c.publishOnlineStatus()

	// Notify callback if set
	c.callbackMu.RLock()
	callback := c.onConnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback()
	}
}

// handleConnectionLost is called when the connection drops unexpectedly.
// It flips the state and starts the reconnect loop, exactly one at a time.
func (c *Client) handleConnectionLost(err error) {
	c.stateMu.Lock()
	c.state = StateDisconnected
	alreadyReconnecting := c.reconnecting
	c.reconnecting = true
	c.stateMu.Unlock()

	if logger := c.getLogger(); logger != nil {
		logger.Warn("mqtt connection lost", "error", err)
	}

	// Notify callback if set
	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}

	if !alreadyReconnecting {
		go c.reconnectLoop()
	}
}

// reconnectLoop retries the broker connection with exponential backoff.
//
// Attempt n waits reconnectDelay(n) before dialling. When the configured
// attempt ceiling is reached the loop gives up, moves to
// StateReconnectFailed, and fires the OnReconnectFailed callback. A success
// settles the connection state before exiting; subscription restoration
// still happens in handleConnect via the paho OnConnectHandler.
func (c *Client) reconnectLoop() {
	initial := time.Duration(c.cfg.Reconnect.InitialDelay) * time.Second
	max := time.Duration(c.cfg.Reconnect.MaxDelay) * time.Second
	maxAttempts := c.cfg.Reconnect.MaxAttempts

	for attempt := 1; ; attempt++ {
		if maxAttempts > 0 && attempt > maxAttempts {
			c.stateMu.Lock()
			c.state = StateReconnectFailed
			c.reconnecting = false
			c.stateMu.Unlock()

			if logger := c.getLogger(); logger != nil {
				logger.Error("mqtt reconnect attempts exhausted", "attempts", maxAttempts)
			}

			c.callbackMu.RLock()
			callback := c.onReconnectFailed
			c.callbackMu.RUnlock()
			if callback != nil {
				callback(maxAttempts)
			}
			return
		}

		delay := reconnectDelay(attempt, initial, max)
		select {
		case <-c.closed:
			return
		case <-time.After(delay):
		}

		c.setState(StateConnecting)
		token := c.client.Connect()
		if token.WaitTimeout(defaultConnectTimeout) && token.Error() == nil {
			// Settle state here rather than waiting for the async
			// OnConnectHandler: a connection lost before that handler runs
			// must see reconnecting == false or no new loop is ever spawned.
			c.stateMu.Lock()
			c.state = StateConnected
			c.reconnecting = false
			c.stateMu.Unlock()
			return
		}

		if logger := c.getLogger(); logger != nil {
			logger.Warn("mqtt reconnect attempt failed",
				"attempt", attempt,
				"next_delay", reconnectDelay(attempt+1, initial, max),
				"error", token.Error(),
			)
		}
		c.setState(StateDisconnected)
	}
}

// Reconnect restarts the reconnect loop after the attempt ceiling was hit.
// It is a no-op unless the client is in StateReconnectFailed.
func (c *Client) Reconnect() {
	c.stateMu.Lock()
	if c.state != StateReconnectFailed || c.reconnecting {
		c.stateMu.Unlock()
		return
	}
	c.state = StateDisconnected
	c.reconnecting = true
	c.stateMu.Unlock()

	go c.reconnectLoop()
}

// restoreSubscriptions re-subscribes to all tracked topics after reconnect.
func (c *Client) restoreSubscriptions() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, sub := range c.subscriptions {
		// Re-subscribe (ignore errors during reconnection)
		c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
	}
}

// publishOnlineStatus publishes the core's online status to the system status topic.
func (c *Client) publishOnlineStatus() {
	topic := Topics{}.SystemStatus()
	payload := buildOnlinePayload(c.cfg.Broker.ClientID)
	c.client.Publish(topic, byte(c.cfg.QoS), true, payload)
}

// Close gracefully disconnects from the MQTT broker.
//
// It performs:
//  1. Stops any running reconnect loop
//  2. Publishes graceful offline status (different from LWT crash status)
//  3. Waits for pending publish operations
//  4. Disconnects from broker
//
// Returns:
//   - error: If disconnect fails (connection already closed is not an error)
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.closeOnce.Do(func() {
		close(c.closed)
	})

	// Check if connected before trying to publish
	if c.IsConnected() {
		// Publish graceful shutdown status
		topic := Topics{}.SystemStatus()
		payload := buildOfflinePayload(c.cfg.Broker.ClientID)
		token := c.client.Publish(topic, byte(c.cfg.QoS), true, payload)
		token.WaitTimeout(defaultPublishTimeout)
	}

	// Disconnect with quiesce period for pending operations
	c.client.Disconnect(defaultDisconnectQuiesce)

	c.stateMu.Lock()
	c.state = StateDisconnected
	c.reconnecting = false
	c.stateMu.Unlock()

	return nil
}

// HealthCheck verifies the MQTT connection is alive and functioning.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if c.State() == StateReconnectFailed {
		return ErrReconnectFailed
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// State returns the current connection lifecycle state.
func (c *Client) State() ConnState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// setState moves the client to the given state.
func (c *Client) setState(s ConnState) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

// IsConnected returns whether the client has an active broker session.
//
// Note: This reflects the last known state. For reliability,
// use HealthCheck which can perform an active test.
func (c *Client) IsConnected() bool {
	c.stateMu.RLock()
	connected := c.state == StateConnected
	c.stateMu.RUnlock()
	return connected && c.client.IsConnected()
}

// SetOnConnect sets a callback to be invoked when connection is established.
// This is called on initial connect and on every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.callbackMu.Lock()
	c.onConnect = callback
	c.callbackMu.Unlock()
}

// SetOnDisconnect sets a callback to be invoked when connection is lost.
// The error parameter describes why the connection was lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetOnReconnectFailed sets a callback invoked when the reconnect loop
// gives up after exhausting its attempt ceiling.
func (c *Client) SetOnReconnectFailed(callback func(attempts int)) {
	c.callbackMu.Lock()
	c.onReconnectFailed = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for error and panic logging.
// If not set, errors in handlers are silently ignored.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// getLogger returns the current logger (may be nil).
func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// wrapHandler wraps a MessageHandler with panic recovery and optional logging.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}
