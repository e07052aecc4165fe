package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hearthome/hearth-core/internal/device"
	"github.com/hearthome/hearth-core/internal/infrastructure/config"
	"github.com/hearthome/hearth-core/internal/infrastructure/logging"
)

// testServer creates a Server with a real device registry backed by in-memory SQLite.
func testServer(t *testing.T) (*Server, *device.Registry) {
	t.Helper()

	db := setupTestDB(t)
	repo := device.NewSQLiteRepository(db)
	registry := device.NewRegistry(repo)
	if err := registry.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS: config.WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logger:          log,
		Registry:        registry,
		History:         device.NewSQLiteHistoryRepository(db),
		DiscoveryWindow: 100 * time.Millisecond,
		Version:         "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	// Initialise hub for tests
	srv.hub = NewHub(srv.wsCfg, log)
	go srv.hub.Run(context.Background())

	return srv, registry
}

// setupTestDB creates an in-memory SQLite database with the core schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE devices (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			type        TEXT NOT NULL,
			room        TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL DEFAULT 'offline',
			last_seen   TIMESTAMP,
			properties  TEXT NOT NULL DEFAULT '[]',
			controls    TEXT NOT NULL DEFAULT '[]',
			thresholds  TEXT NOT NULL DEFAULT '[]',
			created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE property_history (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id   TEXT NOT NULL,
			key         TEXT NOT NULL,
			value       TEXT NOT NULL,
			unit        TEXT NOT NULL DEFAULT '',
			recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`

	if _, execErr := db.Exec(schema); execErr != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", execErr)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// fakeSender is a CommandSender stub for command routing tests.
type fakeSender struct {
	connected bool
	sendErr   error
	sent      []string
}

func (f *fakeSender) IsConnected() bool { return f.connected }

func (f *fakeSender) SendCommand(deviceID, controlKey string, _ any) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, deviceID+"/"+controlKey)
	return nil
}

// fakeDiscoverer returns canned discovery results.
type fakeDiscoverer struct {
	results []device.Discovered
	err     error
	window  time.Duration
}

func (f *fakeDiscoverer) RunDiscovery(_ context.Context, window time.Duration) ([]device.Discovered, error) {
	f.window = window
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

// ─── Health Endpoint Tests ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
}

func TestHealth_ContentType(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	ct := w.Header().Get("Content-Type")
	if ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}
}

// ─── Middleware Tests ──────────────────────────────────────────────

func TestRequestID_Generated(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}
}

func TestRequestID_PreservesClient(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "client-123")
	}
}

func TestCORS_Preflight(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q, want %q", got, "http://localhost:3000")
	}
}

func TestNotFound(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Device CRUD Tests ─────────────────────────────────────────────

func TestListDevices_Empty(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if int(resp["count"].(float64)) != 0 {
		t.Errorf("count = %v, want 0", resp["count"])
	}
}

func TestCreateAndGetDevice(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	body := `{"name": "Hallway Lamp", "type": "dimmer", "room": "hallway"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var created device.Device
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal created: %v", err)
	}

	if created.ID == "" {
		t.Error("expected device ID to be auto-generated")
	}
	if len(created.Controls) == 0 {
		t.Error("expected default controls for dimmer")
	}

	// Get device by ID
	req = httptest.NewRequest(http.MethodGet, "/api/v1/devices/"+created.ID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, want %d", w.Code, http.StatusOK)
	}

	var got device.Device
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal got: %v", err)
	}

	if got.Name != "Hallway Lamp" {
		t.Errorf("name = %q, want %q", got.Name, "Hallway Lamp")
	}
	if got.Room != "hallway" {
		t.Errorf("room = %q, want %q", got.Room, "hallway")
	}
}

func TestCreateDevice_InvalidType(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	body := `{"name": "Mystery Box", "type": "teleporter"}`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusBadRequest, w.Body.String())
	}
}

func TestCreateDevice_InvalidJSON(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestGetDevice_NotFound(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/nonexistent-id", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestUpdateDevice(t *testing.T) {
	srv, registry := testServer(t)
	router := srv.buildRouter()

	dev, err := registry.AddDevice(context.Background(), device.Registration{
		Name: "Original", Type: device.TypeSwitch, Room: "study",
	})
	if err != nil {
		t.Fatalf("AddDevice: %v", err)
	}

	body := `{"name": "Renamed", "room": "office"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/devices/"+dev.ID, strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var updated device.Device
	if err := json.Unmarshal(w.Body.Bytes(), &updated); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if updated.Name != "Renamed" {
		t.Errorf("name = %q, want %q", updated.Name, "Renamed")
	}
	if updated.Room != "office" {
		t.Errorf("room = %q, want %q", updated.Room, "office")
	}
	if updated.Type != device.TypeSwitch {
		t.Errorf("type = %q, want unchanged %q", updated.Type, device.TypeSwitch)
	}
}

func TestUpdateDevice_NotFound(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/devices/ghost", strings.NewReader(`{"name": "x"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestDeleteDevice(t *testing.T) {
	srv, registry := testServer(t)
	router := srv.buildRouter()

	dev, err := registry.AddDevice(context.Background(), device.Registration{
		Name: "Doomed", Type: device.TypeSensor,
	})
	if err != nil {
		t.Fatalf("AddDevice: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/devices/"+dev.ID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want %d", w.Code, http.StatusNoContent)
	}

	if _, ok := registry.GetDevice(dev.ID); ok {
		t.Error("device still present after delete")
	}
}

func TestDeleteDevice_NotFound(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/devices/ghost", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestListDevices_RoomFilter(t *testing.T) {
	srv, registry := testServer(t)
	router := srv.buildRouter()

	ctx := context.Background()
	if _, err := registry.AddDevice(ctx, device.Registration{Name: "A", Type: device.TypeSensor, Room: "kitchen"}); err != nil {
		t.Fatalf("AddDevice: %v", err)
	}
	if _, err := registry.AddDevice(ctx, device.Registration{Name: "B", Type: device.TypeSensor, Room: "attic"}); err != nil {
		t.Fatalf("AddDevice: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices?room=kitchen", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if int(resp["count"].(float64)) != 1 {
		t.Errorf("count = %v, want 1", resp["count"])
	}
}

func TestDeviceStats(t *testing.T) {
	srv, registry := testServer(t)
	router := srv.buildRouter()

	ctx := context.Background()
	if _, err := registry.AddDevice(ctx, device.Registration{Name: "A", Type: device.TypeSensor}); err != nil {
		t.Fatalf("AddDevice: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var stats device.Stats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if stats.TotalDevices != 1 {
		t.Errorf("total = %d, want 1", stats.TotalDevices)
	}
}

// ─── Command Tests ─────────────────────────────────────────────────

func TestDeviceCommand_Local(t *testing.T) {
	srv, registry := testServer(t)
	router := srv.buildRouter()

	// No command sender attached: commands apply locally.
	dev, err := registry.AddDevice(context.Background(), device.Registration{
		Name: "Lamp", Type: device.TypeSwitch,
	})
	if err != nil {
		t.Fatalf("AddDevice: %v", err)
	}

	body := `{"control_key": "power", "value": true}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/"+dev.ID+"/command", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var result device.CommandResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !result.Success {
		t.Errorf("success = false, message = %q", result.Message)
	}

	got, ok := registry.GetDevice(dev.ID)
	if !ok {
		t.Fatal("device missing")
	}
	if p, ok := got.FindProperty("power"); !ok || p.Value != true {
		t.Error("expected power property applied locally")
	}
}

func TestDeviceCommand_ViaTransport(t *testing.T) {
	srv, registry := testServer(t)
	router := srv.buildRouter()

	sender := &fakeSender{connected: true}
	registry.SetCommandSender(sender)

	dev, err := registry.AddDevice(context.Background(), device.Registration{
		Name: "Lamp", Type: device.TypeSwitch,
	})
	if err != nil {
		t.Fatalf("AddDevice: %v", err)
	}
	if err := registry.SetDeviceStatus(context.Background(), dev.ID, device.StatusOnline); err != nil {
		t.Fatalf("SetDeviceStatus: %v", err)
	}

	body := `{"control_key": "power", "value": false}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/"+dev.ID+"/command", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent = %d commands, want 1", len(sender.sent))
	}
}

func TestDeviceCommand_ValidationRejected(t *testing.T) {
	srv, registry := testServer(t)
	router := srv.buildRouter()

	dev, err := registry.AddDevice(context.Background(), device.Registration{
		Name: "Dimmer", Type: device.TypeDimmer,
	})
	if err != nil {
		t.Fatalf("AddDevice: %v", err)
	}

	// brightness is a 0-100 slider
	body := `{"control_key": "brightness", "value": 150}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/"+dev.ID+"/command", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusBadRequest, w.Body.String())
	}
}

func TestDeviceCommand_UnknownDevice(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	body := `{"control_key": "power", "value": true}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/ghost/command", strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestDeviceCommand_MissingControlKey(t *testing.T) {
	srv, registry := testServer(t)
	router := srv.buildRouter()

	dev, err := registry.AddDevice(context.Background(), device.Registration{
		Name: "Lamp", Type: device.TypeSwitch,
	})
	if err != nil {
		t.Fatalf("AddDevice: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/"+dev.ID+"/command", strings.NewReader(`{"value": true}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// ─── History Tests ─────────────────────────────────────────────────

func TestDeviceHistory(t *testing.T) {
	srv, registry := testServer(t)
	router := srv.buildRouter()

	ctx := context.Background()
	dev, err := registry.AddDevice(ctx, device.Registration{
		Name: "Thermometer", Type: device.TypeSensor,
	})
	if err != nil {
		t.Fatalf("AddDevice: %v", err)
	}

	if err := srv.history.RecordProperty(ctx, dev.ID, device.Property{
		Key: "temperature", Value: 21.5, Unit: "C", Timestamp: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("RecordProperty: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/"+dev.ID+"/history?key=temperature", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if int(resp["count"].(float64)) != 1 {
		t.Errorf("count = %v, want 1", resp["count"])
	}
}

func TestDeviceHistory_BadLimit(t *testing.T) {
	srv, registry := testServer(t)
	router := srv.buildRouter()

	dev, err := registry.AddDevice(context.Background(), device.Registration{
		Name: "Thermometer", Type: device.TypeSensor,
	})
	if err != nil {
		t.Fatalf("AddDevice: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/"+dev.ID+"/history?limit=banana", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestDeviceHistory_UnknownDevice(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/ghost/history", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Discovery Tests ───────────────────────────────────────────────

func TestRunDiscovery(t *testing.T) {
	srv, _ := testServer(t)

	disc := &fakeDiscoverer{results: []device.Discovered{
		{ID: "plug-1", Name: "Smart Plug", Type: device.TypeSwitch},
	}}
	srv.discoverer = disc
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/discovery", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if int(resp["count"].(float64)) != 1 {
		t.Errorf("count = %v, want 1", resp["count"])
	}
	if disc.window != srv.discoveryWindow {
		t.Errorf("window = %v, want %v", disc.window, srv.discoveryWindow)
	}
}

func TestRunDiscovery_CustomWindow(t *testing.T) {
	srv, _ := testServer(t)

	disc := &fakeDiscoverer{}
	srv.discoverer = disc
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/discovery", strings.NewReader(`{"window_seconds": 2}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if disc.window != 2*time.Second {
		t.Errorf("window = %v, want 2s", disc.window)
	}
}

func TestRunDiscovery_TransportUnavailable(t *testing.T) {
	srv, _ := testServer(t)
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/discovery", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestRunDiscovery_Failure(t *testing.T) {
	srv, _ := testServer(t)

	srv.discoverer = &fakeDiscoverer{err: errors.New("transport down")}
	router := srv.buildRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/discovery", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

// ─── Hub Tests ─────────────────────────────────────────────────────

func TestHub_BroadcastChannels(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	hub := NewHub(config.WebSocketConfig{}, log)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, 4),
		subscriptions: map[string]struct{}{ChannelDeviceUpdated: {}},
	}
	hub.Register(client)

	hub.BroadcastDeviceUpdate(&device.Device{ID: "dev-1", Name: "Lamp"})
	hub.BroadcastDeviceStatus("dev-1", device.StatusOffline)

	// Only the subscribed channel should be delivered.
	select {
	case data := <-client.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.EventType != ChannelDeviceUpdated {
			t.Errorf("event_type = %q, want %q", msg.EventType, ChannelDeviceUpdated)
		}
	default:
		t.Fatal("expected a broadcast message")
	}

	select {
	case data := <-client.send:
		t.Fatalf("unexpected second message: %s", data)
	default:
	}
}

func TestHub_UnregisterTwice(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	hub := NewHub(config.WebSocketConfig{}, log)

	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, 1),
		subscriptions: map[string]struct{}{},
	}
	hub.Register(client)
	hub.Unregister(client)
	hub.Unregister(client) // second call must not panic on a closed channel

	if hub.ClientCount() != 0 {
		t.Errorf("clients = %d, want 0", hub.ClientCount())
	}
}
