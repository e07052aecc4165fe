package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hearthome/hearth-core/internal/device"
	"github.com/hearthome/hearth-core/internal/infrastructure/influxdb"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("HEARTH_CONFIG")
	defer os.Setenv("HEARTH_CONFIG", originalEnv)

	os.Setenv("HEARTH_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDatabasePath verifies run fails when database path is invalid.
func TestRun_MissingDatabasePath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
database:
  path: ""
  wal_mode: true
  busy_timeout: 5

mqtt:
  broker:
    host: "127.0.0.1"
    port: 1883
    client_id: "test-client"
    tls: false
  qos: 1
  reconnect:
    initial_delay: 1
    max_delay: 60
    max_attempts: 10

influxdb:
  enabled: false

logging:
  level: info
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: 8080
  timeouts:
    read: 30
    write: 60
    idle: 120

discovery:
  window: 5
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("HEARTH_CONFIG")
	defer os.Setenv("HEARTH_CONFIG", originalEnv)
	os.Setenv("HEARTH_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("HEARTH_CONFIG")
	defer os.Setenv("HEARTH_CONFIG", originalEnv)

	os.Unsetenv("HEARTH_CONFIG")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("HEARTH_CONFIG")
	defer os.Setenv("HEARTH_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("HEARTH_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// recordingHistory captures RecordProperty calls for telemetryRecorder tests.
type recordingHistory struct {
	recorded []device.Property
	err      error
}

func (r *recordingHistory) RecordProperty(_ context.Context, _ string, p device.Property) error {
	r.recorded = append(r.recorded, p)
	return r.err
}

func (r *recordingHistory) GetHistory(_ context.Context, _, _ string, _ int) ([]device.HistoryEntry, error) {
	return nil, nil
}

// TestTelemetryRecorder_LocalOnly verifies the recorder works without InfluxDB.
func TestTelemetryRecorder_LocalOnly(t *testing.T) {
	history := &recordingHistory{}
	rec := &telemetryRecorder{history: history}

	err := rec.RecordProperty(context.Background(), "dev-1", device.Property{
		Key:   "temperature",
		Value: 21.5,
		Unit:  "C",
	})
	if err != nil {
		t.Fatalf("RecordProperty: %v", err)
	}

	if len(history.recorded) != 1 {
		t.Fatalf("recorded = %d entries, want 1", len(history.recorded))
	}
	if history.recorded[0].Key != "temperature" {
		t.Errorf("key = %q, want temperature", history.recorded[0].Key)
	}
}

// TestTelemetryRecorder_PropagatesError verifies local write errors surface.
func TestTelemetryRecorder_PropagatesError(t *testing.T) {
	history := &recordingHistory{err: os.ErrClosed}
	rec := &telemetryRecorder{history: history}

	err := rec.RecordProperty(context.Background(), "dev-1", device.Property{
		Key:   "humidity",
		Value: 40.0,
	})
	if err == nil {
		t.Fatal("expected error from local history write")
	}
}

// recordingBroadcaster captures broadcast calls for statusMirror tests.
type recordingBroadcaster struct {
	updates  []string
	statuses []device.Status
}

func (b *recordingBroadcaster) BroadcastDeviceUpdate(d *device.Device) {
	b.updates = append(b.updates, d.ID)
}

func (b *recordingBroadcaster) BroadcastDeviceStatus(_ string, status device.Status) {
	b.statuses = append(b.statuses, status)
}

// TestStatusMirror_Delegates verifies both event kinds reach the hub side
// and that a missing InfluxDB client is tolerated.
func TestStatusMirror_Delegates(t *testing.T) {
	next := &recordingBroadcaster{}
	mirror := &statusMirror{next: next}

	mirror.BroadcastDeviceUpdate(&device.Device{ID: "dev-1"})
	mirror.BroadcastDeviceStatus("dev-1", device.StatusOnline)

	if len(next.updates) != 1 || next.updates[0] != "dev-1" {
		t.Errorf("updates = %v, want [dev-1]", next.updates)
	}
	if len(next.statuses) != 1 || next.statuses[0] != device.StatusOnline {
		t.Errorf("statuses = %v, want [online]", next.statuses)
	}
}

// TestStatusMirror_DisconnectedInflux verifies a present but disconnected
// InfluxDB client never blocks the hub broadcast.
func TestStatusMirror_DisconnectedInflux(t *testing.T) {
	next := &recordingBroadcaster{}
	mirror := &statusMirror{next: next, influx: &influxdb.Client{}}

	mirror.BroadcastDeviceStatus("dev-1", device.StatusOffline)

	if len(next.statuses) != 1 {
		t.Fatalf("statuses = %d, want 1", len(next.statuses))
	}
}
