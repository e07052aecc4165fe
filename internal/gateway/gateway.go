package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hearthome/hearth-core/internal/device"
	"github.com/hearthome/hearth-core/internal/infrastructure/mqtt"
)

// Transport is the subset of the MQTT client the gateway depends on.
// Satisfied by *mqtt.Client; narrowed for testability.
type Transport interface {
	IsConnected() bool
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Registry is the subset of the device registry the gateway drives.
// Satisfied by *device.Registry.
type Registry interface {
	AddDeviceFromDiscovery(ctx context.Context, rec device.Discovered) (*device.Device, error)
	SetDeviceStatus(ctx context.Context, id string, status device.Status) error
	HandlePropertyEvent(ctx context.Context, deviceID string, p device.Property) error
}

// Logger is the logging interface used by the gateway.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Gateway connects the device registry to the MQTT transport.
//
// Inbound, it subscribes to the device topic namespace, decodes messages
// into typed events, and dispatches them to the registry. Outbound, it
// implements the registry's CommandSender so validated commands reach
// devices, and it runs discovery scans.
//
// The subscription set is fixed at Start and restored automatically by
// the transport on reconnect.
type Gateway struct {
	transport Transport
	registry  Registry
	discovery *collector
	logger    Logger
	qos       byte

	// ctx is the base context for dispatching transport events; handlers
	// run on the transport's goroutines, outside any request scope.
	ctx context.Context
}

// New creates a gateway wiring the transport to the registry.
func New(transport Transport, registry Registry, qos byte, logger Logger) *Gateway {
	return &Gateway{
		transport: transport,
		registry:  registry,
		discovery: newCollector(),
		logger:    logger,
		qos:       qos,
	}
}

// Start subscribes to the device topic namespace and begins dispatching.
//
// The context bounds the lifetime of event dispatch: once it is cancelled,
// received messages are dropped.
func (g *Gateway) Start(ctx context.Context) error {
	g.ctx = ctx

	topics := mqtt.Topics{}
	subscriptions := []string{
		topics.AllDiscovery(),
		topics.AllDeviceStatus(),
		topics.AllDeviceProperties(),
		topics.AllCommandResponses(),
	}

	for _, topic := range subscriptions {
		if err := g.transport.Subscribe(topic, g.qos, g.handleMessage); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
	}

	g.logger.Info("gateway started", "subscriptions", len(subscriptions))
	return nil
}

// handleMessage is the single entry point for all inbound transport traffic.
func (g *Gateway) handleMessage(topic string, payload []byte) error {
	if g.ctx != nil && g.ctx.Err() != nil {
		return nil
	}

	event, known, err := DecodeMessage(topic, payload, time.Now().UTC())
	if !known {
		g.logger.Debug("message on unrecognised topic", "topic", topic)
		return nil
	}
	if err != nil {
		// Malformed payloads are logged and dropped; they never become
		// registry state.
		g.logger.Warn("dropping malformed message", "topic", topic, "error", err)
		return nil
	}

	return g.dispatch(event)
}

// dispatch routes a decoded event to the registry.
func (g *Gateway) dispatch(event Event) error {
	ctx := g.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	switch ev := event.(type) {
	case DiscoveryEvent:
		if _, err := g.registry.AddDeviceFromDiscovery(ctx, ev.Device); err != nil {
			g.logger.Warn("rejecting discovery announcement",
				"device_id", ev.Device.ID, "error", err)
			return nil
		}
		g.discovery.record(ev.Device)
		return nil

	case StatusEvent:
		if err := g.registry.SetDeviceStatus(ctx, ev.DeviceID, ev.Status); err != nil {
			return fmt.Errorf("applying status for %s: %w", ev.DeviceID, err)
		}
		return nil

	case PropertyEvent:
		if err := g.registry.HandlePropertyEvent(ctx, ev.DeviceID, ev.Property); err != nil {
			return fmt.Errorf("applying property for %s: %w", ev.DeviceID, err)
		}
		return nil

	case CommandResponseEvent:
		if ev.Success {
			g.logger.Debug("command acknowledged",
				"device_id", ev.DeviceID, "control", ev.ControlKey)
		} else {
			g.logger.Warn("command rejected by device",
				"device_id", ev.DeviceID, "control", ev.ControlKey, "message", ev.Message)
		}
		// A response proves the device is reachable.
		if err := g.registry.SetDeviceStatus(ctx, ev.DeviceID, device.StatusOnline); err != nil {
			return fmt.Errorf("marking %s online: %w", ev.DeviceID, err)
		}
		return nil
	}

	return fmt.Errorf("unhandled event type %T", event)
}

// IsConnected reports whether the transport has an active broker session.
func (g *Gateway) IsConnected() bool {
	return g.transport.IsConnected()
}

// SendCommand publishes a validated command to a device's command topic.
//
// Together with IsConnected this satisfies the registry's CommandSender:
// the registry decides whether a command goes over the wire, the gateway
// only moves bytes.
func (g *Gateway) SendCommand(deviceID, controlKey string, value any) error {
	payload, err := json.Marshal(commandPayload{
		ControlKey: controlKey,
		Value:      value,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding command: %w", err)
	}

	topic := mqtt.Topics{}.DeviceCommand(deviceID)
	if err := g.transport.Publish(topic, payload, g.qos, false); err != nil {
		return fmt.Errorf("publishing command to %s: %w", topic, err)
	}

	g.logger.Debug("command published", "device_id", deviceID, "control", controlKey)
	return nil
}
