package device

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Broadcaster fans out device change events to live subscribers.
// Calls are fire-and-forget; no return value is consumed.
type Broadcaster interface {
	BroadcastDeviceUpdate(d *Device)
	BroadcastDeviceStatus(id string, status Status)
}

// noopBroadcaster drops all events.
type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastDeviceUpdate(*Device)        {}
func (noopBroadcaster) BroadcastDeviceStatus(string, Status) {}

// HistoryRecorder appends observed property values to the history trail.
type HistoryRecorder interface {
	RecordProperty(ctx context.Context, deviceID string, p Property) error
}

// CommandSender dispatches a validated command over the transport.
// IsConnected reflects the transport's current connection state; SendCommand
// returns an error when the publish does not reach the broker.
type CommandSender interface {
	IsConnected() bool
	SendCommand(deviceID, controlKey string, value any) error
}

// Command is a request to write a value to one of a device's controls.
type Command struct {
	DeviceID   string `json:"device_id"`
	ControlKey string `json:"control_key"`
	Value      any    `json:"value"`
}

// CommandResult is the structured outcome of processing a command.
// Expected business conditions (unknown device, failed validation) are
// reported here, never as errors.
type CommandResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Command result messages.
const (
	resultSentViaTransport = "command sent via transport"
	resultExecutedLocally  = "command executed locally"
	resultDeviceNotFound   = "device not found"
)

// Registry is the single source of truth for current known device state.
//
// It owns the in-memory device map and is its sole mutator: transport
// events, API calls, and local edits all funnel through it. Every mutation
// is written to memory first, then persisted to the repository and fanned
// out to the broadcaster, so concurrent readers always observe the fresh
// value during the persistence step.
//
// All public methods are thread-safe.
type Registry struct {
	repo        Repository
	history     HistoryRecorder
	broadcaster Broadcaster
	commands    CommandSender

	devices map[string]*Device
	mu      sync.RWMutex

	logger Logger
}

// NewRegistry creates a new device registry backed by the given repository.
// Collaborators are optional and attached via the Set* methods; without a
// command sender every command executes locally.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:        repo,
		devices:     make(map[string]*Device),
		broadcaster: noopBroadcaster{},
		logger:      noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetBroadcaster sets the realtime broadcaster for device change events.
func (r *Registry) SetBroadcaster(b Broadcaster) {
	if b == nil {
		r.broadcaster = noopBroadcaster{}
		return
	}
	r.broadcaster = b
}

// SetHistoryRecorder sets the property history recorder.
func (r *Registry) SetHistoryRecorder(h HistoryRecorder) {
	r.history = h
}

// SetCommandSender sets the transport command sender.
func (r *Registry) SetCommandSender(s CommandSender) {
	r.commands = s
}

// Initialize bulk-loads all devices from the repository into memory.
//
// It must complete before any command processing: a repository failure here
// is a startup precondition failure and propagates to the caller.
func (r *Registry) Initialize(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.devices = make(map[string]*Device, len(devices))
	for i := range devices {
		d := devices[i]
		r.devices[d.ID] = d.DeepCopy()
	}

	r.logger.Info("device registry initialised", "count", len(devices))
	return nil
}

// AddDevice registers a new local device.
//
// It generates a unique ID, assigns the default control set for the type,
// persists, inserts into memory, and broadcasts. Returns the created device.
func (r *Registry) AddDevice(ctx context.Context, reg Registration) (*Device, error) {
	now := time.Now().UTC()
	d := &Device{
		ID:         GenerateID(),
		Name:       reg.Name,
		Type:       reg.Type,
		Room:       reg.Room,
		Status:     StatusOffline,
		LastSeen:   now,
		Properties: []Property{},
		Controls:   DefaultControls(reg.Type),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := ValidateDevice(d); err != nil {
		return nil, err
	}

	if err := r.repo.Save(ctx, d); err != nil {
		return nil, fmt.Errorf("persisting device: %w", err)
	}

	r.mu.Lock()
	r.devices[d.ID] = d.DeepCopy()
	r.mu.Unlock()

	r.broadcaster.BroadcastDeviceUpdate(d)
	r.logger.Info("device registered", "id", d.ID, "name", d.Name, "type", d.Type)
	return d.DeepCopy(), nil
}

// AddDeviceFromDiscovery registers a device announced over the transport.
//
// The transport-supplied ID is used verbatim, and controls declared in the
// announcement take precedence over the type-default template. An existing
// device with the same ID is overwritten: last discovery wins.
func (r *Registry) AddDeviceFromDiscovery(ctx context.Context, rec Discovered) (*Device, error) {
	now := time.Now().UTC()

	controls := rec.Controls
	if len(controls) == 0 {
		controls = DefaultControls(rec.Type)
	}
	properties := rec.Properties
	if properties == nil {
		properties = []Property{}
	}

	d := &Device{
		ID:         rec.ID,
		Name:       rec.Name,
		Type:       rec.Type,
		Room:       rec.Room,
		Status:     StatusOnline,
		LastSeen:   now,
		Properties: properties,
		Controls:   controls,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := ValidateDevice(d); err != nil {
		return nil, err
	}

	// Preserve the original creation time on re-discovery.
	r.mu.RLock()
	if existing, ok := r.devices[d.ID]; ok {
		d.CreatedAt = existing.CreatedAt
	}
	r.mu.RUnlock()

	if err := r.repo.Save(ctx, d); err != nil {
		return nil, fmt.Errorf("persisting discovered device: %w", err)
	}

	r.mu.Lock()
	r.devices[d.ID] = d.DeepCopy()
	r.mu.Unlock()

	r.broadcaster.BroadcastDeviceUpdate(d)
	r.logger.Info("device discovered", "id", d.ID, "name", d.Name, "type", d.Type)
	return d.DeepCopy(), nil
}

// RemoveDevice deletes a device from storage and memory.
//
// Returns false with no error when the ID is unknown. On success an offline
// status is broadcast so subscribers drop the device.
func (r *Registry) RemoveDevice(ctx context.Context, id string) (bool, error) {
	r.mu.RLock()
	_, ok := r.devices[id]
	r.mu.RUnlock()
	if !ok {
		return false, nil
	}

	// A device present in memory but already gone from storage must still
	// be removable, so not-found from the repository counts as success.
	if err := r.repo.Delete(ctx, id); err != nil && !errors.Is(err, ErrDeviceNotFound) {
		return false, fmt.Errorf("deleting device: %w", err)
	}

	r.mu.Lock()
	delete(r.devices, id)
	r.mu.Unlock()

	r.broadcaster.BroadcastDeviceStatus(id, StatusOffline)
	r.logger.Info("device removed", "id", id)
	return true, nil
}

// UpdateDevice merges partial fields over an existing device.
//
// The ID never changes and lastSeen is forced to now. Returns
// ErrDeviceNotFound when the ID is unknown.
func (r *Registry) UpdateDevice(ctx context.Context, id string, upd Update) (*Device, error) {
	now := time.Now().UTC()

	r.mu.Lock()
	current, ok := r.devices[id]
	if !ok {
		r.mu.Unlock()
		return nil, ErrDeviceNotFound
	}

	merged := current.DeepCopy()
	if upd.Name != nil {
		merged.Name = *upd.Name
	}
	if upd.Type != nil {
		merged.Type = *upd.Type
	}
	if upd.Room != nil {
		merged.Room = *upd.Room
	}
	if upd.Thresholds != nil {
		merged.Thresholds = upd.Thresholds
	}
	merged.ID = id
	merged.LastSeen = now
	merged.UpdatedAt = now

	if err := ValidateDevice(merged); err != nil {
		r.mu.Unlock()
		return nil, err
	}

	r.devices[id] = merged
	r.mu.Unlock()

	if err := r.repo.Save(ctx, merged); err != nil {
		return nil, fmt.Errorf("persisting device update: %w", err)
	}

	r.broadcaster.BroadcastDeviceUpdate(merged)
	r.logger.Info("device updated", "id", id)
	return merged.DeepCopy(), nil
}

// ProcessCommand is the central command state transition.
//
// The flow: lookup, validate, then a per-call dispatch decision. When the
// transport is connected and the device reports online, the command is
// published and NO local mutation occurs; the authoritative update arrives
// later as a property event from the device itself. When the transport is
// unavailable, publish fails, or the device is offline, the command is
// applied locally so the state remains observable.
//
// Unknown devices and validation failures are reported in the result, not
// as errors. Repository failures propagate.
func (r *Registry) ProcessCommand(ctx context.Context, cmd Command) (CommandResult, error) {
	r.mu.RLock()
	current, ok := r.devices[cmd.DeviceID]
	var snapshot *Device
	if ok {
		snapshot = current.DeepCopy()
	}
	r.mu.RUnlock()

	if !ok {
		return CommandResult{Success: false, Message: resultDeviceNotFound}, nil
	}

	check := ValidateCommand(snapshot, cmd.ControlKey, cmd.Value)
	if !check.Valid {
		return CommandResult{Success: false, Message: check.Reason}, nil
	}

	if r.commands != nil && r.commands.IsConnected() && snapshot.Status == StatusOnline {
		err := r.commands.SendCommand(cmd.DeviceID, cmd.ControlKey, cmd.Value)
		if err == nil {
			r.logger.Debug("command dispatched via transport",
				"device_id", cmd.DeviceID, "control", cmd.ControlKey)
			return CommandResult{Success: true, Message: resultSentViaTransport}, nil
		}
		// Publish failures downgrade to the local path; the caller never
		// sees a transport error.
		r.logger.Warn("transport publish failed, applying locally",
			"device_id", cmd.DeviceID, "control", cmd.ControlKey, "error", err)
	}

	applied, err := r.applyProperty(ctx, cmd.DeviceID, Property{
		Key:       cmd.ControlKey,
		Value:     cmd.Value,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return CommandResult{}, err
	}
	if !applied {
		// Removed between the lookup above and the apply.
		return CommandResult{Success: false, Message: resultDeviceNotFound}, nil
	}

	return CommandResult{Success: true, Message: resultExecutedLocally}, nil
}

// HandlePropertyEvent applies a property update reported by the transport.
//
// This is the convergence path for transport-backed devices: upsert by key,
// mark online, bump lastSeen, persist, record history, broadcast. Unknown
// device IDs are a logged no-op.
func (r *Registry) HandlePropertyEvent(ctx context.Context, deviceID string, p Property) error {
	applied, err := r.applyProperty(ctx, deviceID, p)
	if err != nil {
		return err
	}
	if !applied {
		r.logger.Debug("property event for unknown device", "device_id", deviceID, "key", p.Key)
	}
	return nil
}

// applyProperty upserts a property on a device, marks it online, persists,
// records history, and broadcasts. Returns false when the device is unknown.
//
// The in-memory write happens under the lock before any I/O, so concurrent
// reads during persistence already see the new value.
func (r *Registry) applyProperty(ctx context.Context, deviceID string, p Property) (bool, error) {
	now := time.Now().UTC()
	if p.Timestamp.IsZero() {
		p.Timestamp = now
	}

	r.mu.Lock()
	d, ok := r.devices[deviceID]
	if !ok {
		r.mu.Unlock()
		return false, nil
	}
	d.UpsertProperty(p)
	d.Status = StatusOnline
	d.LastSeen = now
	d.UpdatedAt = now
	snapshot := d.DeepCopy()
	r.mu.Unlock()

	if err := r.repo.Save(ctx, snapshot); err != nil {
		return false, fmt.Errorf("persisting property update: %w", err)
	}

	// History is an append-only telemetry trail; a failed append cannot make
	// memory and device storage diverge, so it is logged rather than fatal.
	if r.history != nil {
		if err := r.history.RecordProperty(ctx, deviceID, p); err != nil {
			r.logger.Warn("property history write failed",
				"device_id", deviceID, "key", p.Key, "error", err)
		}
	}

	r.broadcaster.BroadcastDeviceUpdate(snapshot)
	r.logger.Debug("property applied",
		"device_id", deviceID, "key", p.Key, "value", p.Value)
	return true, nil
}

// SetDeviceStatus sets a device's status and lastSeen, persists, and
// broadcasts. Unknown device IDs are a no-op.
func (r *Registry) SetDeviceStatus(ctx context.Context, id string, status Status) error {
	if err := ValidateStatus(status); err != nil {
		return err
	}

	now := time.Now().UTC()

	r.mu.Lock()
	d, ok := r.devices[id]
	if !ok {
		r.mu.Unlock()
		r.logger.Debug("status update for unknown device", "device_id", id)
		return nil
	}
	d.Status = status
	d.LastSeen = now
	d.UpdatedAt = now
	snapshot := d.DeepCopy()
	r.mu.Unlock()

	if err := r.repo.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("persisting status update: %w", err)
	}

	r.broadcaster.BroadcastDeviceStatus(id, status)
	r.logger.Debug("device status updated", "device_id", id, "status", status)
	return nil
}

// GetDevice retrieves a device by ID from memory.
// The returned device is a deep copy; callers can safely modify it.
func (r *Registry) GetDevice(id string) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, false
	}
	return d.DeepCopy(), true
}

// GetAllDevices retrieves all devices from memory, ordered by name.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) GetAllDevices() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	devices := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, *d.DeepCopy())
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Name < devices[j].Name
	})
	return devices
}

// GetDevicesByRoom retrieves all devices in a specific room.
func (r *Registry) GetDevicesByRoom(room string) []Device {
	return r.filter(func(d *Device) bool { return d.Room == room })
}

// GetDevicesByType retrieves all devices of a specific type.
func (r *Registry) GetDevicesByType(t DeviceType) []Device {
	return r.filter(func(d *Device) bool { return d.Type == t })
}

// GetOnlineDevices retrieves all devices currently reporting online.
func (r *Registry) GetOnlineDevices() []Device {
	return r.filter(func(d *Device) bool { return d.Status == StatusOnline })
}

// DeviceCount returns the number of devices in memory.
func (r *Registry) DeviceCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// filter returns deep copies of all devices matching the predicate,
// ordered by name.
func (r *Registry) filter(match func(*Device) bool) []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var devices []Device
	for _, d := range r.devices {
		if match(d) {
			devices = append(devices, *d.DeepCopy())
		}
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Name < devices[j].Name
	})
	return devices
}

// Stats returns registry statistics for monitoring.
type Stats struct {
	TotalDevices int
	ByType       map[DeviceType]int
	ByStatus     map[Status]int
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		TotalDevices: len(r.devices),
		ByType:       make(map[DeviceType]int),
		ByStatus:     make(map[Status]int),
	}
	for _, d := range r.devices {
		stats.ByType[d.Type]++
		stats.ByStatus[d.Status]++
	}
	return stats
}
