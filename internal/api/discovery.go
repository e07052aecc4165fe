package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// DiscoveryRequest is the optional body of a discovery sweep request.
type DiscoveryRequest struct {
	WindowSeconds int `json:"window_seconds,omitempty"`
}

// maxDiscoveryWindow caps a client-supplied discovery window.
const maxDiscoveryWindow = 60 * time.Second

// handleRunDiscovery triggers a discovery sweep over the transport and
// returns the devices that announced themselves within the window.
// The sweep blocks for the full window; clients should expect the request
// to take that long.
func (s *Server) handleRunDiscovery(w http.ResponseWriter, r *http.Request) {
	if s.discoverer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "transport not available",
		})
		return
	}

	window := s.discoveryWindow
	if r.ContentLength > 0 {
		var req DiscoveryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
		if req.WindowSeconds < 0 {
			writeBadRequest(w, "window_seconds must not be negative")
			return
		}
		if req.WindowSeconds > 0 {
			window = time.Duration(req.WindowSeconds) * time.Second
			if window > maxDiscoveryWindow {
				window = maxDiscoveryWindow
			}
		}
	}

	discovered, err := s.discoverer.RunDiscovery(r.Context(), window)
	if err != nil {
		s.logger.Warn("discovery sweep failed", "error", err)
		writeInternalError(w, "discovery sweep failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"discovered":     discovered,
		"count":          len(discovered),
		"window_seconds": int(window.Seconds()),
	})
}
