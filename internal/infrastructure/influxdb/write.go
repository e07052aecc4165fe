package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePropertyMetric writes a single device property observation.
//
// This is the primary method for mirroring numeric device telemetry.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Unique identifier for the device (e.g., "esp-living-dimmer")
//   - key: The property key (e.g., "temperature", "brightness")
//   - value: The numeric value to record
//   - unit: Unit of measurement, empty when unknown
//
// Example:
//
//	client.WritePropertyMetric("thermostat-01", "temperature", 21.5, "celsius")
func (c *Client) WritePropertyMetric(deviceID, key string, value float64, unit string) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{
		"device_id": deviceID,
		"key":       key,
	}
	if unit != "" {
		tags["unit"] = unit
	}

	point := write.NewPoint(
		"device_properties",
		tags,
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDeviceStatus records a device status transition.
//
// Status is written as a field value of 1 (online) or 0 (offline/error) so
// availability can be graphed alongside property metrics.
func (c *Client) WriteDeviceStatus(deviceID, status string) {
	if !c.IsConnected() {
		return
	}

	online := 0
	if status == "online" {
		online = 1
	}

	point := write.NewPoint(
		"device_status",
		map[string]string{
			"device_id": deviceID,
			"status":    status,
		},
		map[string]interface{}{
			"online": online,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
