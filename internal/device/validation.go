package device

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength    = 100
	maxControls      = 50
	maxProperties    = 100
	maxThresholds    = 50
	maxKeyLength     = 64
	maxOptionsLength = 50
)

// Pre-computed validation sets for O(1) lookups.
var (
	validDeviceTypes  map[DeviceType]struct{}
	validStatuses     map[Status]struct{}
	validControlTypes map[ControlType]struct{}
)

func init() {
	validDeviceTypes = make(map[DeviceType]struct{}, len(AllDeviceTypes()))
	for _, t := range AllDeviceTypes() {
		validDeviceTypes[t] = struct{}{}
	}

	validStatuses = make(map[Status]struct{}, len(AllStatuses()))
	for _, s := range AllStatuses() {
		validStatuses[s] = struct{}{}
	}

	validControlTypes = make(map[ControlType]struct{}, len(AllControlTypes()))
	for _, c := range AllControlTypes() {
		validControlTypes[c] = struct{}{}
	}
}

// CommandCheck is the result of validating a proposed command against a
// device's declared controls. Exactly one of the two shapes is produced:
// valid, or invalid with a human-readable reason.
type CommandCheck struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

func invalid(format string, args ...any) CommandCheck {
	return CommandCheck{Valid: false, Reason: fmt.Sprintf(format, args...)}
}

// ValidateCommand checks a proposed (controlKey, value) pair against the
// device's declared controls.
//
// It is pure and total: for any input it returns exactly one CommandCheck
// and never panics. The rules per control type:
//   - switch: value must be a boolean
//   - slider: value must be numeric and within [min, max] inclusive
//   - select: value must be a member of the declared options
//   - input: any value is accepted
func ValidateCommand(d *Device, controlKey string, value any) CommandCheck {
	if d == nil {
		return invalid("device is nil")
	}

	control, ok := d.FindControl(controlKey)
	if !ok {
		return invalid("control %q not found on device", controlKey)
	}

	switch control.Type {
	case ControlSwitch:
		if _, ok := value.(bool); !ok {
			return invalid("control %q requires a boolean value, got %T", controlKey, value)
		}

	case ControlSlider:
		num, ok := toFloat(value)
		if !ok {
			return invalid("control %q requires a numeric value, got %T", controlKey, value)
		}
		if control.Min != nil && num < *control.Min {
			return invalid("value %v is below the minimum %v for control %q", num, *control.Min, controlKey)
		}
		if control.Max != nil && num > *control.Max {
			return invalid("value %v is above the maximum %v for control %q", num, *control.Max, controlKey)
		}

	case ControlSelect:
		s, ok := value.(string)
		if !ok {
			return invalid("control %q requires a string value, got %T", controlKey, value)
		}
		for _, opt := range control.Options {
			if s == opt {
				return CommandCheck{Valid: true}
			}
		}
		return invalid("value %q is not one of the options for control %q", s, controlKey)

	case ControlInput:
		// Free-form input: any value accepted.
	}

	return CommandCheck{Valid: true}
}

// toFloat converts the numeric types that can arrive from JSON decoding or
// direct Go callers into a float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// ValidateDevice performs validation on a device record.
// Returns an error describing the first validation failure found.
func ValidateDevice(d *Device) error {
	if d == nil {
		return ErrInvalidDevice
	}

	if err := ValidateName(d.Name); err != nil {
		return err
	}
	if err := ValidateDeviceType(d.Type); err != nil {
		return err
	}
	if d.Status != "" {
		if err := ValidateStatus(d.Status); err != nil {
			return err
		}
	}

	if len(d.Properties) > maxProperties {
		return fmt.Errorf("%w: too many properties (max %d)", ErrInvalidDevice, maxProperties)
	}
	seen := make(map[string]struct{}, len(d.Properties))
	for _, p := range d.Properties {
		if p.Key == "" || len(p.Key) > maxKeyLength {
			return fmt.Errorf("%w: invalid property key %q", ErrInvalidDevice, p.Key)
		}
		if _, dup := seen[p.Key]; dup {
			return fmt.Errorf("%w: duplicate property key %q", ErrInvalidDevice, p.Key)
		}
		seen[p.Key] = struct{}{}
	}

	if err := ValidateControls(d.Controls); err != nil {
		return err
	}
	if err := ValidateThresholds(d.Thresholds); err != nil {
		return err
	}

	return nil
}

// ValidateName checks if a device name is valid.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	return nil
}

// ValidateDeviceType checks if a device type is valid.
func ValidateDeviceType(t DeviceType) error {
	if _, ok := validDeviceTypes[t]; ok {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidDeviceType, t)
}

// ValidateStatus checks if a status is valid.
func ValidateStatus(s Status) error {
	if _, ok := validStatuses[s]; ok {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// ValidateControls checks control declarations: unique keys, valid type,
// and the type-specific constraints (slider min/max, select options).
func ValidateControls(controls []Control) error {
	if len(controls) > maxControls {
		return fmt.Errorf("%w: too many controls (max %d)", ErrInvalidControl, maxControls)
	}

	seen := make(map[string]struct{}, len(controls))
	for _, c := range controls {
		if c.Key == "" || len(c.Key) > maxKeyLength {
			return fmt.Errorf("%w: invalid control key %q", ErrInvalidControl, c.Key)
		}
		if _, dup := seen[c.Key]; dup {
			return fmt.Errorf("%w: duplicate control key %q", ErrInvalidControl, c.Key)
		}
		seen[c.Key] = struct{}{}

		if _, ok := validControlTypes[c.Type]; !ok {
			return fmt.Errorf("%w: unknown control type %q", ErrInvalidControl, c.Type)
		}

		switch c.Type {
		case ControlSlider:
			if c.Min == nil || c.Max == nil {
				return fmt.Errorf("%w: slider %q requires both min and max", ErrInvalidControl, c.Key)
			}
			if *c.Min >= *c.Max {
				return fmt.Errorf("%w: slider %q requires min < max", ErrInvalidControl, c.Key)
			}
		case ControlSelect:
			if len(c.Options) == 0 {
				return fmt.Errorf("%w: select %q requires a non-empty options list", ErrInvalidControl, c.Key)
			}
			if len(c.Options) > maxOptionsLength {
				return fmt.Errorf("%w: select %q has too many options (max %d)", ErrInvalidControl, c.Key, maxOptionsLength)
			}
		case ControlSwitch, ControlInput:
			// No extra constraints.
		}
	}

	return nil
}

// ValidateThresholds checks threshold declarations: one per property key,
// with at least one bound set.
func ValidateThresholds(thresholds []Threshold) error {
	if len(thresholds) > maxThresholds {
		return fmt.Errorf("%w: too many thresholds (max %d)", ErrInvalidThreshold, maxThresholds)
	}

	seen := make(map[string]struct{}, len(thresholds))
	for _, t := range thresholds {
		if t.PropertyKey == "" {
			return fmt.Errorf("%w: property key is required", ErrInvalidThreshold)
		}
		if _, dup := seen[t.PropertyKey]; dup {
			return fmt.Errorf("%w: duplicate threshold for property %q", ErrInvalidThreshold, t.PropertyKey)
		}
		seen[t.PropertyKey] = struct{}{}

		if t.Min == nil && t.Max == nil {
			return fmt.Errorf("%w: threshold for %q needs min or max", ErrInvalidThreshold, t.PropertyKey)
		}
		if t.Min != nil && t.Max != nil && *t.Min >= *t.Max {
			return fmt.Errorf("%w: threshold for %q requires min < max", ErrInvalidThreshold, t.PropertyKey)
		}
	}

	return nil
}

// GenerateID creates a new unique identifier for a device.
func GenerateID() string {
	return uuid.New().String()
}
