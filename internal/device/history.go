package device

import (
	"context"
	"time"
)

// HistoryEntry represents a single recorded property observation.
//
// Each entry stores a property value as it was observed, providing a local
// trail even when the time-series database is unavailable.
type HistoryEntry struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// DeviceID is the unique identifier of the device.
	DeviceID string `json:"device_id"`

	// Key is the property key the value belongs to.
	Key string `json:"key"`

	// Value is the observed property value.
	Value any `json:"value"`

	// Unit is the property's unit of measurement, if any.
	Unit string `json:"unit,omitempty"`

	// RecordedAt is the timestamp of the observation (UTC).
	RecordedAt time.Time `json:"recorded_at"`
}

// HistoryRepository stores and retrieves device property history.
//
// Implementations must be thread-safe and use UTC timestamps.
type HistoryRepository interface {
	HistoryRecorder

	// GetHistory returns recent property observations for the device.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - deviceID: Unique device identifier
	//   - key: Property key to filter by, or empty for all keys
	//   - limit: Maximum entries to return (implementation may clamp bounds)
	//
	// Returns:
	//   - []HistoryEntry: Ordered newest-first history entries (may be empty)
	//   - error: nil on success, otherwise the underlying query error
	GetHistory(ctx context.Context, deviceID, key string, limit int) ([]HistoryEntry, error)
}
