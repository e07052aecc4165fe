package device

import (
	"errors"
	"strings"
	"testing"
)

func floatPtr(f float64) *float64 { return &f }

// commandTestDevice builds a device exercising all four control types.
func commandTestDevice() *Device {
	return &Device{
		ID:     "dev-cmd",
		Name:   "Command Target",
		Type:   TypeThermostat,
		Status: StatusOnline,
		Controls: []Control{
			{Key: "power", Type: ControlSwitch, Label: "Power"},
			{Key: "brightness", Type: ControlSlider, Label: "Brightness", Min: floatPtr(0), Max: floatPtr(100)},
			{Key: "mode", Type: ControlSelect, Label: "Mode", Options: []string{"heat", "cool", "auto", "off"}},
			{Key: "label", Type: ControlInput, Label: "Label"},
		},
	}
}

func TestValidateCommand(t *testing.T) {
	d := commandTestDevice()

	tests := []struct {
		name       string
		controlKey string
		value      any
		wantValid  bool
		wantReason string // substring match, empty for valid results
	}{
		{"switch accepts bool", "power", true, true, ""},
		{"switch rejects string", "power", "on", false, "boolean"},
		{"switch rejects number", "power", 1, false, "boolean"},
		{"slider accepts in-range float", "brightness", 50.0, true, ""},
		{"slider accepts in-range int", "brightness", 50, true, ""},
		{"slider accepts boundary min", "brightness", 0, true, ""},
		{"slider accepts boundary max", "brightness", 100, true, ""},
		{"slider rejects below minimum", "brightness", -1, false, "below the minimum"},
		{"slider rejects above maximum", "brightness", 150, false, "above the maximum"},
		{"slider rejects non-numeric", "brightness", "bright", false, "numeric"},
		{"select accepts member", "mode", "heat", true, ""},
		{"select rejects non-member", "mode", "defrost", false, "not one of the options"},
		{"select rejects non-string", "mode", 3, false, "string"},
		{"input accepts string", "label", "front door", true, ""},
		{"input accepts number", "label", 42, true, ""},
		{"input accepts nil", "label", nil, true, ""},
		{"unknown control", "volume", 10, false, "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := ValidateCommand(d, tt.controlKey, tt.value)
			if check.Valid != tt.wantValid {
				t.Fatalf("Valid = %v, want %v (reason %q)", check.Valid, tt.wantValid, check.Reason)
			}
			if tt.wantValid && check.Reason != "" {
				t.Errorf("Reason = %q, want empty for valid result", check.Reason)
			}
			if !tt.wantValid && !strings.Contains(check.Reason, tt.wantReason) {
				t.Errorf("Reason = %q, want substring %q", check.Reason, tt.wantReason)
			}
		})
	}

	t.Run("nil device", func(t *testing.T) {
		check := ValidateCommand(nil, "power", true)
		if check.Valid {
			t.Error("Valid = true for nil device")
		}
	})
}

func TestValidateDevice(t *testing.T) {
	t.Run("valid device", func(t *testing.T) {
		if err := ValidateDevice(testDevice("dev-ok", "Valid Device")); err != nil {
			t.Errorf("ValidateDevice() error = %v", err)
		}
	})

	t.Run("empty name", func(t *testing.T) {
		d := testDevice("dev-bad", "   ")
		if err := ValidateDevice(d); !errors.Is(err, ErrInvalidName) {
			t.Errorf("error = %v, want ErrInvalidName", err)
		}
	})

	t.Run("name too long", func(t *testing.T) {
		d := testDevice("dev-bad", strings.Repeat("x", maxNameLength+1))
		if err := ValidateDevice(d); !errors.Is(err, ErrInvalidName) {
			t.Errorf("error = %v, want ErrInvalidName", err)
		}
	})

	t.Run("unknown device type", func(t *testing.T) {
		d := testDevice("dev-bad", "Bad Type")
		d.Type = DeviceType("toaster")
		if err := ValidateDevice(d); !errors.Is(err, ErrInvalidDeviceType) {
			t.Errorf("error = %v, want ErrInvalidDeviceType", err)
		}
	})

	t.Run("unknown status", func(t *testing.T) {
		d := testDevice("dev-bad", "Bad Status")
		d.Status = Status("sleeping")
		if err := ValidateDevice(d); !errors.Is(err, ErrInvalidStatus) {
			t.Errorf("error = %v, want ErrInvalidStatus", err)
		}
	})

	t.Run("duplicate property keys", func(t *testing.T) {
		d := testDevice("dev-bad", "Dup Props")
		d.Properties = []Property{
			{Key: "temperature", Value: 1.0},
			{Key: "temperature", Value: 2.0},
		}
		if err := ValidateDevice(d); !errors.Is(err, ErrInvalidDevice) {
			t.Errorf("error = %v, want ErrInvalidDevice", err)
		}
	})
}

func TestValidateControls(t *testing.T) {
	tests := []struct {
		name     string
		controls []Control
		wantErr  bool
	}{
		{
			"valid set",
			commandTestDevice().Controls,
			false,
		},
		{
			"duplicate keys",
			[]Control{
				{Key: "power", Type: ControlSwitch},
				{Key: "power", Type: ControlSwitch},
			},
			true,
		},
		{
			"unknown control type",
			[]Control{{Key: "x", Type: ControlType("dial")}},
			true,
		},
		{
			"slider missing bounds",
			[]Control{{Key: "level", Type: ControlSlider}},
			true,
		},
		{
			"slider min not below max",
			[]Control{{Key: "level", Type: ControlSlider, Min: floatPtr(10), Max: floatPtr(10)}},
			true,
		},
		{
			"select without options",
			[]Control{{Key: "mode", Type: ControlSelect}},
			true,
		},
		{
			"empty key",
			[]Control{{Key: "", Type: ControlSwitch}},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateControls(tt.controls)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateControls() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidControl) {
				t.Errorf("error = %v, want ErrInvalidControl", err)
			}
		})
	}
}

func TestValidateThresholds(t *testing.T) {
	tests := []struct {
		name       string
		thresholds []Threshold
		wantErr    bool
	}{
		{
			"valid bounds",
			[]Threshold{{PropertyKey: "temperature", Min: floatPtr(5), Max: floatPtr(35), Enabled: true}},
			false,
		},
		{
			"min only",
			[]Threshold{{PropertyKey: "humidity", Min: floatPtr(20)}},
			false,
		},
		{
			"no bounds",
			[]Threshold{{PropertyKey: "humidity"}},
			true,
		},
		{
			"min not below max",
			[]Threshold{{PropertyKey: "temperature", Min: floatPtr(35), Max: floatPtr(5)}},
			true,
		},
		{
			"missing property key",
			[]Threshold{{Min: floatPtr(0)}},
			true,
		},
		{
			"duplicate property key",
			[]Threshold{
				{PropertyKey: "temperature", Min: floatPtr(0)},
				{PropertyKey: "temperature", Max: floatPtr(40)},
			},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateThresholds(tt.thresholds)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateThresholds() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGenerateID(t *testing.T) {
	a := GenerateID()
	b := GenerateID()

	if a == "" || b == "" {
		t.Fatal("GenerateID() returned empty string")
	}
	if a == b {
		t.Error("GenerateID() returned duplicate IDs")
	}
}
