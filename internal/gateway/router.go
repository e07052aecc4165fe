package gateway

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hearthome/hearth-core/internal/device"
	"github.com/hearthome/hearth-core/internal/infrastructure/mqtt"
)

// Event is a decoded transport message, one variant per topic kind.
//
// The variant set is closed: handlers switch on the concrete type and a
// default case indicates a programming error, not an unknown wire format.
type Event interface {
	isEvent()
}

// DiscoveryEvent is a device announcing itself.
type DiscoveryEvent struct {
	Device     device.Discovered
	ReceivedAt time.Time
}

// StatusEvent is a device reporting its availability.
type StatusEvent struct {
	DeviceID   string
	Status     device.Status
	ReceivedAt time.Time
}

// PropertyEvent is a device reporting a property value.
type PropertyEvent struct {
	DeviceID string
	Property device.Property
}

// CommandResponseEvent is a device acknowledging a command.
type CommandResponseEvent struct {
	DeviceID   string
	ControlKey string
	Success    bool
	Message    string
	ReceivedAt time.Time
}

func (DiscoveryEvent) isEvent()       {}
func (StatusEvent) isEvent()          {}
func (PropertyEvent) isEvent()        {}
func (CommandResponseEvent) isEvent() {}

// routeKind classifies a parsed topic.
type routeKind int

const (
	routeUnknown routeKind = iota
	routeDiscovery
	routeStatus
	routeProperty
	routeCommandResponse
)

// route is the structured form of an inbound topic.
type route struct {
	kind        routeKind
	deviceID    string
	propertyKey string
}

// parseTopic classifies an inbound topic against the Hearth namespace.
//
// Recognised shapes:
//
//	hearth/discovery/{id}
//	hearth/device/{id}/status
//	hearth/device/{id}/property/{key}
//	hearth/device/{id}/command/response
//
// Anything else, including hearth/discovery/request (which the core itself
// publishes), returns ok=false.
func parseTopic(topic string) (route, bool) {
	rest, found := strings.CutPrefix(topic, mqtt.TopicPrefix+"/")
	if !found {
		return route{}, false
	}

	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 2 && parts[0] == "discovery":
		if parts[1] == "" || parts[1] == "request" {
			return route{}, false
		}
		return route{kind: routeDiscovery, deviceID: parts[1]}, true

	case len(parts) == 3 && parts[0] == "device" && parts[2] == "status":
		if parts[1] == "" {
			return route{}, false
		}
		return route{kind: routeStatus, deviceID: parts[1]}, true

	case len(parts) == 4 && parts[0] == "device" && parts[2] == "property":
		if parts[1] == "" || parts[3] == "" {
			return route{}, false
		}
		return route{kind: routeProperty, deviceID: parts[1], propertyKey: parts[3]}, true

	case len(parts) == 4 && parts[0] == "device" && parts[2] == "command" && parts[3] == "response":
		if parts[1] == "" {
			return route{}, false
		}
		return route{kind: routeCommandResponse, deviceID: parts[1]}, true
	}

	return route{}, false
}

// decodeEvent turns a classified topic and its payload into a typed event.
//
// Returns an error for malformed JSON or announcements missing required
// fields; callers log and drop those without producing an event.
func decodeEvent(r route, payload []byte, receivedAt time.Time) (Event, error) {
	switch r.kind {
	case routeDiscovery:
		var p discoveryPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("decoding discovery announcement: %w", err)
		}
		if p.Name == "" {
			return nil, fmt.Errorf("discovery announcement for %q missing name", r.deviceID)
		}
		if p.Type == "" {
			return nil, fmt.Errorf("discovery announcement for %q missing type", r.deviceID)
		}
		return DiscoveryEvent{
			Device:     p.toDiscovered(r.deviceID, receivedAt),
			ReceivedAt: receivedAt,
		}, nil

	case routeStatus:
		var p statusPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("decoding status update: %w", err)
		}
		// Anything other than an explicit online report is treated as
		// offline; a garbled availability claim must not mark a device
		// reachable.
		status := device.StatusOffline
		switch device.Status(p.Status) {
		case device.StatusOnline:
			status = device.StatusOnline
		case device.StatusError:
			status = device.StatusError
		}
		return StatusEvent{
			DeviceID:   r.deviceID,
			Status:     status,
			ReceivedAt: receivedAt,
		}, nil

	case routeProperty:
		var p propertyPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("decoding property update: %w", err)
		}
		ts := receivedAt
		if p.Timestamp != nil {
			ts = p.Timestamp.UTC()
		}
		return PropertyEvent{
			DeviceID: r.deviceID,
			Property: device.Property{
				Key:       r.propertyKey,
				Value:     p.Value,
				Unit:      p.Unit,
				Timestamp: ts,
			},
		}, nil

	case routeCommandResponse:
		var p commandResponsePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("decoding command response: %w", err)
		}
		return CommandResponseEvent{
			DeviceID:   r.deviceID,
			ControlKey: p.ControlKey,
			Success:    p.Success,
			Message:    p.Message,
			ReceivedAt: receivedAt,
		}, nil
	}

	return nil, fmt.Errorf("unroutable topic kind %d", r.kind)
}

// DecodeMessage parses and decodes an inbound transport message.
//
// The second return value reports whether the topic belongs to the Hearth
// namespace at all; unrecognised topics are not an error.
func DecodeMessage(topic string, payload []byte, receivedAt time.Time) (Event, bool, error) {
	r, ok := parseTopic(topic)
	if !ok {
		return nil, false, nil
	}
	ev, err := decodeEvent(r, payload, receivedAt)
	if err != nil {
		return nil, true, err
	}
	return ev, true, nil
}
