package device

import "time"

// Device represents a single managed device: the authoritative in-memory
// record the registry keeps for it.
//
// Properties and Controls are ordered-by-insertion with unique keys. A
// property key need not have a matching control (sensors report properties
// with no controls), but a device's controls define the only keys acceptable
// to command processing.
type Device struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// Classification
	Type DeviceType `json:"type"`
	Room string     `json:"room,omitempty"`

	// Current state
	Status   Status    `json:"status"`
	LastSeen time.Time `json:"last_seen"`

	// Observed values, declared inputs, and alerting rules.
	Properties []Property  `json:"properties"`
	Controls   []Control   `json:"controls"`
	Thresholds []Threshold `json:"thresholds,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Property is a timestamped observed value reported by a device.
// Immutable value object; a device's property list replaces-by-key on
// update, never accumulating duplicates per key.
type Property struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"` // bool, float64, or string
	Unit      string    `json:"unit,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Control is a declared, constrained input the system may write to a device.
// Declared once at creation/discovery time and effectively immutable after.
type Control struct {
	Key   string      `json:"key"`
	Type  ControlType `json:"type"`
	Label string      `json:"label,omitempty"`

	// Slider constraints: both required, Min < Max.
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`

	// Select constraint: non-empty options list.
	Options []string `json:"options,omitempty"`
}

// Threshold is an alerting rule over a property's numeric range.
// Carried on the device aggregate for the notification layer; the
// registry itself never evaluates it.
type Threshold struct {
	PropertyKey string   `json:"property_key"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	Enabled     bool     `json:"enabled"`
}

// Registration is the input for locally registering a new device.
// The registry generates the ID and assigns default controls for the type.
type Registration struct {
	Name string     `json:"name"`
	Type DeviceType `json:"type"`
	Room string     `json:"room,omitempty"`
}

// Discovered is a device description announced over the transport.
// The device-supplied ID is used verbatim; declared controls take
// precedence over the type-default template.
type Discovered struct {
	ID           string
	Name         string
	Type         DeviceType
	Room         string
	Capabilities []string
	Properties   []Property
	Controls     []Control
}

// Update carries partial fields to merge over an existing device.
// Nil fields are left unchanged; the device ID is never changed.
type Update struct {
	Name       *string     `json:"name,omitempty"`
	Type       *DeviceType `json:"type,omitempty"`
	Room       *string     `json:"room,omitempty"`
	Thresholds []Threshold `json:"thresholds,omitempty"`
}

// DeviceType represents the kind of device.
type DeviceType string

// DeviceType constants.
const (
	TypeSensor     DeviceType = "sensor"
	TypeSwitch     DeviceType = "switch"
	TypeDimmer     DeviceType = "dimmer"
	TypeThermostat DeviceType = "thermostat"
	TypeCamera     DeviceType = "camera"
	TypeLock       DeviceType = "lock"
)

// AllDeviceTypes returns all valid device type values.
func AllDeviceTypes() []DeviceType {
	return []DeviceType{
		TypeSensor, TypeSwitch, TypeDimmer, TypeThermostat, TypeCamera, TypeLock,
	}
}

// Status represents the connectivity state of a device.
type Status string

// Status constants.
const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusError   Status = "error"
)

// AllStatuses returns all valid status values.
func AllStatuses() []Status {
	return []Status{StatusOnline, StatusOffline, StatusError}
}

// ControlType represents the input shape a control accepts.
type ControlType string

// ControlType constants.
const (
	ControlSwitch ControlType = "switch"
	ControlSlider ControlType = "slider"
	ControlSelect ControlType = "select"
	ControlInput  ControlType = "input"
)

// AllControlTypes returns all valid control type values.
func AllControlTypes() []ControlType {
	return []ControlType{ControlSwitch, ControlSlider, ControlSelect, ControlInput}
}

// DeepCopy creates a complete independent copy of the Device.
// Slice fields are cloned so modifications to the copy do not affect the
// original. This is essential for cache isolation.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d

	if d.Properties != nil {
		cpy.Properties = make([]Property, len(d.Properties))
		copy(cpy.Properties, d.Properties)
	}
	if d.Controls != nil {
		cpy.Controls = make([]Control, len(d.Controls))
		for i, c := range d.Controls {
			cpy.Controls[i] = *c.deepCopy()
		}
	}
	if d.Thresholds != nil {
		cpy.Thresholds = make([]Threshold, len(d.Thresholds))
		for i, t := range d.Thresholds {
			cpy.Thresholds[i] = *t.deepCopy()
		}
	}

	return &cpy
}

func (c *Control) deepCopy() *Control {
	cpy := *c
	if c.Min != nil {
		v := *c.Min
		cpy.Min = &v
	}
	if c.Max != nil {
		v := *c.Max
		cpy.Max = &v
	}
	if c.Options != nil {
		cpy.Options = make([]string, len(c.Options))
		copy(cpy.Options, c.Options)
	}
	return &cpy
}

func (t *Threshold) deepCopy() *Threshold {
	cpy := *t
	if t.Min != nil {
		v := *t.Min
		cpy.Min = &v
	}
	if t.Max != nil {
		v := *t.Max
		cpy.Max = &v
	}
	return &cpy
}

// UpsertProperty replaces the property with the same key, or appends it
// preserving insertion order. When replacing, an empty incoming unit keeps
// the previously recorded unit.
func (d *Device) UpsertProperty(p Property) {
	for i := range d.Properties {
		if d.Properties[i].Key == p.Key {
			if p.Unit == "" {
				p.Unit = d.Properties[i].Unit
			}
			d.Properties[i] = p
			return
		}
	}
	d.Properties = append(d.Properties, p)
}

// FindControl returns the control with the given key, if declared.
func (d *Device) FindControl(key string) (*Control, bool) {
	for i := range d.Controls {
		if d.Controls[i].Key == key {
			return &d.Controls[i], true
		}
	}
	return nil, false
}

// FindProperty returns the property with the given key, if present.
func (d *Device) FindProperty(key string) (*Property, bool) {
	for i := range d.Properties {
		if d.Properties[i].Key == key {
			return &d.Properties[i], true
		}
	}
	return nil, false
}

// float64Ptr is a convenience for building control templates.
func float64Ptr(v float64) *float64 {
	return &v
}

// DefaultControls returns the default control set for a device type.
// Used when a device is registered locally or discovered without any
// declared controls.
func DefaultControls(t DeviceType) []Control {
	switch t {
	case TypeSwitch:
		return []Control{
			{Key: "power", Type: ControlSwitch, Label: "Power"},
		}
	case TypeDimmer:
		return []Control{
			{Key: "power", Type: ControlSwitch, Label: "Power"},
			{Key: "brightness", Type: ControlSlider, Label: "Brightness", Min: float64Ptr(0), Max: float64Ptr(100)},
		}
	case TypeThermostat:
		return []Control{
			{Key: "target_temperature", Type: ControlSlider, Label: "Target temperature", Min: float64Ptr(5), Max: float64Ptr(35)},
			{Key: "mode", Type: ControlSelect, Label: "Mode", Options: []string{"heat", "cool", "auto", "off"}},
		}
	case TypeCamera:
		return []Control{
			{Key: "recording", Type: ControlSwitch, Label: "Recording"},
		}
	case TypeLock:
		return []Control{
			{Key: "locked", Type: ControlSwitch, Label: "Locked"},
		}
	case TypeSensor:
		// Sensors report properties only; nothing to control.
		return nil
	}
	return nil
}
