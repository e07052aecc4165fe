package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hearthome/hearth-core/internal/device"
)

// handleListDevices returns all devices, with optional query filters.
//
// Query parameters:
//   - room: filter by room name
//   - type: filter by device type (sensor, switch, dimmer, etc.)
//   - online: "true" to return only online devices
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	if room := r.URL.Query().Get("room"); room != "" {
		devices := s.registry.GetDevicesByRoom(room)
		writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
		return
	}

	if typeStr := r.URL.Query().Get("type"); typeStr != "" {
		devices := s.registry.GetDevicesByType(device.DeviceType(typeStr))
		writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
		return
	}

	if r.URL.Query().Get("online") == "true" {
		devices := s.registry.GetOnlineDevices()
		writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
		return
	}

	// No filter: return all devices
	devices := s.registry.GetAllDevices()
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, ok := s.registry.GetDevice(id)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleCreateDevice registers a new device manually.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var reg device.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	dev, err := s.registry.AddDevice(r.Context(), reg)
	if err != nil {
		if isValidationError(err) {
			writeBadRequest(w, err.Error())
			return
		}
		writeInternalError(w, "failed to create device")
		return
	}

	writeJSON(w, http.StatusCreated, dev)
}

// handleUpdateDevice partially updates a device's metadata.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var upd device.Update
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	dev, err := s.registry.UpdateDevice(r.Context(), id, upd)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		if isValidationError(err) {
			writeBadRequest(w, err.Error())
			return
		}
		writeInternalError(w, "failed to update device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleDeleteDevice removes a device by ID.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	removed, err := s.registry.RemoveDevice(r.Context(), id)
	if err != nil {
		writeInternalError(w, "failed to delete device")
		return
	}
	if !removed {
		writeNotFound(w, "device not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleDeviceStats returns device registry statistics.
func (s *Server) handleDeviceStats(w http.ResponseWriter, _ *http.Request) {
	stats := s.registry.GetStats()
	writeJSON(w, http.StatusOK, stats)
}

// CommandRequest is the body of a device command.
type CommandRequest struct {
	ControlKey string `json:"control_key"`
	Value      any    `json:"value"`
}

// handleDeviceCommand validates and routes a command to a device.
// The registry decides delivery: via the transport when the device is
// reachable, applied locally otherwise. Validation failures are reported
// with 400 and the rejection reason.
func (s *Server) handleDeviceCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, ok := s.registry.GetDevice(id); !ok {
		writeNotFound(w, "device not found")
		return
	}

	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.ControlKey == "" {
		writeBadRequest(w, "control_key field is required")
		return
	}

	result, err := s.registry.ProcessCommand(r.Context(), device.Command{
		DeviceID:   id,
		ControlKey: req.ControlKey,
		Value:      req.Value,
	})
	if err != nil {
		writeInternalError(w, "failed to process command")
		return
	}

	if !result.Success {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, result.Message)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// historyDefaultLimit is used when the limit query parameter is absent.
const historyDefaultLimit = 50

// handleDeviceHistory returns recent property observations for a device.
//
// Query parameters:
//   - key: property key to filter by (optional)
//   - limit: maximum entries to return (optional)
func (s *Server) handleDeviceHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if s.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "history storage not available",
		})
		return
	}

	if _, ok := s.registry.GetDevice(id); !ok {
		writeNotFound(w, "device not found")
		return
	}

	key := r.URL.Query().Get("key")
	limit := historyDefaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := s.history.GetHistory(r.Context(), id, key, limit)
	if err != nil {
		writeInternalError(w, "failed to query history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"entries":   entries,
		"count":     len(entries),
	})
}

// isValidationError checks whether an error is a device validation error.
// Validation wraps various sentinel errors (ErrInvalidName, ErrInvalidControl,
// etc.) so we check all of them rather than just ErrInvalidDevice.
func isValidationError(err error) bool {
	return errors.Is(err, device.ErrInvalidDevice) ||
		errors.Is(err, device.ErrInvalidName) ||
		errors.Is(err, device.ErrInvalidDeviceType) ||
		errors.Is(err, device.ErrInvalidStatus) ||
		errors.Is(err, device.ErrInvalidControl) ||
		errors.Is(err, device.ErrInvalidThreshold)
}
