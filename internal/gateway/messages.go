package gateway

import (
	"time"

	"github.com/hearthome/hearth-core/internal/device"
)

// discoveryPayload is the JSON body a device publishes when announcing
// itself on hearth/discovery/{id}.
type discoveryPayload struct {
	DeviceID     string            `json:"device_id"`
	Name         string            `json:"name"`
	Type         string            `json:"type"`
	Room         string            `json:"room,omitempty"`
	Capabilities []string          `json:"capabilities,omitempty"`
	Properties   []propertyState   `json:"properties,omitempty"`
	Controls     []controlDeclared `json:"controls,omitempty"`
}

// propertyState is a property value inside a discovery announcement.
type propertyState struct {
	Key       string     `json:"key"`
	Value     any        `json:"value"`
	Unit      string     `json:"unit,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// controlDeclared is a control declaration inside a discovery announcement.
type controlDeclared struct {
	Key     string   `json:"key"`
	Type    string   `json:"type"`
	Label   string   `json:"label,omitempty"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Options []string `json:"options,omitempty"`
}

// statusPayload is the JSON body on hearth/device/{id}/status.
type statusPayload struct {
	Status    string     `json:"status"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// propertyPayload is the JSON body on hearth/device/{id}/property/{key}.
type propertyPayload struct {
	Value     any        `json:"value"`
	Unit      string     `json:"unit,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// commandPayload is the JSON body the core publishes on
// hearth/device/{id}/command.
type commandPayload struct {
	ControlKey string    `json:"control_key"`
	Value      any       `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
}

// commandResponsePayload is the JSON body a device publishes on
// hearth/device/{id}/command/response after executing a command.
type commandResponsePayload struct {
	ControlKey string     `json:"control_key"`
	Success    bool       `json:"success"`
	Message    string     `json:"message,omitempty"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

// discoveryRequestPayload is the JSON body the core publishes on
// hearth/discovery/request to trigger a scan.
type discoveryRequestPayload struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// toDiscovered converts an announcement payload into the registry's
// discovery record. The topic-derived ID wins over any ID in the body.
func (p discoveryPayload) toDiscovered(topicID string, receivedAt time.Time) device.Discovered {
	properties := make([]device.Property, 0, len(p.Properties))
	for _, prop := range p.Properties {
		ts := receivedAt
		if prop.Timestamp != nil {
			ts = prop.Timestamp.UTC()
		}
		properties = append(properties, device.Property{
			Key:       prop.Key,
			Value:     prop.Value,
			Unit:      prop.Unit,
			Timestamp: ts,
		})
	}

	controls := make([]device.Control, 0, len(p.Controls))
	for _, c := range p.Controls {
		controls = append(controls, device.Control{
			Key:     c.Key,
			Type:    device.ControlType(c.Type),
			Label:   c.Label,
			Min:     c.Min,
			Max:     c.Max,
			Options: c.Options,
		})
	}

	return device.Discovered{
		ID:           topicID,
		Name:         p.Name,
		Type:         device.DeviceType(p.Type),
		Room:         p.Room,
		Capabilities: p.Capabilities,
		Properties:   properties,
		Controls:     controls,
	}
}
