// Package device provides the device registry for Hearth Core.
//
// The registry is the single source of truth for current device state. It
// owns the in-memory device map and is its sole mutator: transport events,
// REST calls, and local edits all funnel through it. Every mutation is
// written to memory first, then persisted to SQLite and fanned out to
// realtime subscribers.
//
// # Key Types
//
//   - Device: A controllable or monitorable entity with properties,
//     controls, and thresholds
//   - Registry: Thread-safe in-memory catalogue backed by a Repository
//   - Command: A request to write a value to one of a device's controls
//   - Property: A named value reported by a device (temperature, power, ...)
//   - Control: A writable capability (switch, slider, select, input)
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db)
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//
//	// Load devices into memory on startup
//	if err := registry.Initialize(ctx); err != nil {
//	    return err
//	}
//
//	// Process a command
//	result, err := registry.ProcessCommand(ctx, device.Command{
//	    DeviceID:   "device-uuid",
//	    ControlKey: "brightness",
//	    Value:      75,
//	})
//
// Commands route through the transport when it is connected and the device
// is online; otherwise they are applied locally so state stays observable.
//
// # Thread Safety
//
// The Registry is safe for concurrent use. All operations are protected by
// a read-write mutex, and every device handed out is a deep copy.
package device
