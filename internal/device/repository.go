package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves all devices.
	List(ctx context.Context) ([]Device, error)

	// Save inserts a device, or replaces the stored row when a device with
	// the same ID already exists.
	Save(ctx context.Context, device *Device) error

	// Delete removes a device by ID.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	query := `
		SELECT id, name, type, room, status, last_seen,
			properties, controls, thresholds, created_at, updated_at
		FROM devices
		WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	device, err := scanDeviceRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return device, nil
}

// List retrieves all devices.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	query := `
		SELECT id, name, type, room, status, last_seen,
			properties, controls, thresholds, created_at, updated_at
		FROM devices
		ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		device, err := scanDeviceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	return devices, nil
}

// Save inserts a device, or replaces the stored row when the ID exists.
func (r *SQLiteRepository) Save(ctx context.Context, device *Device) error {
	propertiesJSON, err := json.Marshal(device.Properties)
	if err != nil {
		return fmt.Errorf("marshalling properties: %w", err)
	}

	controlsJSON, err := json.Marshal(device.Controls)
	if err != nil {
		return fmt.Errorf("marshalling controls: %w", err)
	}

	thresholdsJSON, err := json.Marshal(device.Thresholds)
	if err != nil {
		return fmt.Errorf("marshalling thresholds: %w", err)
	}

	// Set timestamps if not set
	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	if device.UpdatedAt.IsZero() {
		device.UpdatedAt = now
	}

	query := `
		INSERT INTO devices (
			id, name, type, room, status, last_seen,
			properties, controls, thresholds, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			room = excluded.room,
			status = excluded.status,
			last_seen = excluded.last_seen,
			properties = excluded.properties,
			controls = excluded.controls,
			thresholds = excluded.thresholds,
			updated_at = excluded.updated_at`

	_, err = r.db.ExecContext(ctx, query,
		device.ID,
		device.Name,
		string(device.Type),
		device.Room,
		string(device.Status),
		device.LastSeen.UTC().Format(time.RFC3339),
		string(propertiesJSON),
		string(controlsJSON),
		string(thresholdsJSON),
		device.CreatedAt.Format(time.RFC3339),
		device.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving device: %w", err)
	}

	return nil
}

// Delete removes a device by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDeviceRow scans a row or rows result into a Device.
func scanDeviceRow(scanner rowScanner) (*Device, error) {
	var d Device
	var deviceType, status string
	var lastSeen, createdAt, updatedAt string
	var propertiesJSON, controlsJSON, thresholdsJSON string

	err := scanner.Scan(
		&d.ID,
		&d.Name,
		&deviceType,
		&d.Room,
		&status,
		&lastSeen,
		&propertiesJSON,
		&controlsJSON,
		&thresholdsJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Type = DeviceType(deviceType)
	d.Status = Status(status)

	var parseErr error
	d.LastSeen, parseErr = time.Parse(time.RFC3339, lastSeen)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing last_seen: %w", parseErr)
	}
	d.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	d.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	if err := json.Unmarshal([]byte(propertiesJSON), &d.Properties); err != nil {
		return nil, fmt.Errorf("unmarshalling properties: %w", err)
	}
	if err := json.Unmarshal([]byte(controlsJSON), &d.Controls); err != nil {
		return nil, fmt.Errorf("unmarshalling controls: %w", err)
	}
	if err := json.Unmarshal([]byte(thresholdsJSON), &d.Thresholds); err != nil {
		return nil, fmt.Errorf("unmarshalling thresholds: %w", err)
	}

	return &d, nil
}
