package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hearthome/hearth-core/internal/device"
	"github.com/hearthome/hearth-core/internal/infrastructure/mqtt"
)

// collector accumulates discovery announcements during a scan window.
//
// Announcements arriving outside an active scan are still registered by the
// gateway; the collector only decides what a scan reports back. Keyed by
// device ID, so a device announcing twice in one window counts once.
type collector struct {
	mu     sync.Mutex
	active bool
	found  map[string]device.Discovered
}

func newCollector() *collector {
	return &collector{found: make(map[string]device.Discovered)}
}

// begin clears previous results and opens the collection window.
func (c *collector) begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = true
	c.found = make(map[string]device.Discovered)
}

// record stores an announcement if a scan window is open.
func (c *collector) record(d device.Discovered) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return
	}
	c.found[d.ID] = d
}

// finish closes the window and returns the collected announcements
// ordered by device ID.
func (c *collector) finish() []device.Discovered {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = false

	results := make([]device.Discovered, 0, len(c.found))
	for _, d := range c.found {
		results = append(results, d)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].ID < results[j].ID
	})
	return results
}

// RunDiscovery performs a fixed-window discovery scan.
//
// It publishes a request on hearth/discovery/request, collects the
// announcements that arrive during the window, and returns them. Devices
// that announce are also registered immediately on arrival, so a cancelled
// scan loses the report but not the registrations.
//
// Parameters:
//   - ctx: Cancels the wait early; collected results so far are returned
//   - window: How long to collect announcements
//
// Returns:
//   - []device.Discovered: Announcements received during the window
//   - error: If the request could not be published
func (g *Gateway) RunDiscovery(ctx context.Context, window time.Duration) ([]device.Discovered, error) {
	requestID := uuid.New().String()
	payload, err := json.Marshal(discoveryRequestPayload{
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding discovery request: %w", err)
	}

	g.discovery.begin()

	topic := mqtt.Topics{}.DiscoveryRequest()
	if err := g.transport.Publish(topic, payload, g.qos, false); err != nil {
		g.discovery.finish()
		return nil, fmt.Errorf("publishing discovery request: %w", err)
	}

	g.logger.Info("discovery scan started", "request_id", requestID, "window", window)

	select {
	case <-ctx.Done():
	case <-time.After(window):
	}

	results := g.discovery.finish()
	g.logger.Info("discovery scan finished", "request_id", requestID, "found", len(results))
	return results, nil
}
