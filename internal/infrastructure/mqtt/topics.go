package mqtt

import "fmt"

// Topic prefixes for the Hearth MQTT namespace.
//
// Device transport topics use the scheme: hearth/device/{id}/{channel}...
// Discovery and system topics sit alongside under the same root.
const (
	// TopicPrefix is the base for all Hearth topics.
	TopicPrefix = "hearth"

	// TopicPrefixDevice is the base for per-device topics.
	TopicPrefixDevice = "hearth/device"

	// TopicPrefixDiscovery is the base for discovery announcements.
	TopicPrefixDiscovery = "hearth/discovery"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "hearth/system"
)

// Topics provides builders for Hearth MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	cmdTopic := topics.DeviceCommand("esp-living-dimmer")
//	// Returns: "hearth/device/esp-living-dimmer/command"
type Topics struct{}

// Discovery returns the topic a device announces itself on.
//
// Example: hearth/discovery/esp-living-dimmer
func (Topics) Discovery(deviceID string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixDiscovery, deviceID)
}

// DiscoveryRequest returns the topic a discovery scan is requested on.
//
// Example: hearth/discovery/request
func (Topics) DiscoveryRequest() string {
	return TopicPrefixDiscovery + "/request"
}

// AllDiscovery returns the wildcard pattern matching all announcements.
//
// Example: hearth/discovery/+
func (Topics) AllDiscovery() string {
	return TopicPrefixDiscovery + "/+"
}

// DeviceStatus returns the topic for a device's online/offline status.
//
// Example: hearth/device/esp-living-dimmer/status
func (Topics) DeviceStatus(deviceID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixDevice, deviceID)
}

// AllDeviceStatus returns the wildcard pattern matching all status topics.
//
// Example: hearth/device/+/status
func (Topics) AllDeviceStatus() string {
	return TopicPrefixDevice + "/+/status"
}

// DeviceProperty returns the topic a device reports a property value on.
//
// Example: hearth/device/esp-living-dimmer/property/brightness
func (Topics) DeviceProperty(deviceID, key string) string {
	return fmt.Sprintf("%s/%s/property/%s", TopicPrefixDevice, deviceID, key)
}

// AllDeviceProperties returns the wildcard pattern matching all property topics.
//
// Example: hearth/device/+/property/+
func (Topics) AllDeviceProperties() string {
	return TopicPrefixDevice + "/+/property/+"
}

// DeviceCommand returns the topic commands to a device are published on.
//
// Example: hearth/device/esp-living-dimmer/command
func (Topics) DeviceCommand(deviceID string) string {
	return fmt.Sprintf("%s/%s/command", TopicPrefixDevice, deviceID)
}

// DeviceCommandResponse returns the topic a device acknowledges commands on.
//
// Example: hearth/device/esp-living-dimmer/command/response
func (Topics) DeviceCommandResponse(deviceID string) string {
	return fmt.Sprintf("%s/%s/command/response", TopicPrefixDevice, deviceID)
}

// AllCommandResponses returns the wildcard pattern matching all response topics.
//
// Example: hearth/device/+/command/response
func (Topics) AllCommandResponses() string {
	return TopicPrefixDevice + "/+/command/response"
}

// SystemStatus returns the topic for the core's own online/offline status.
//
// Example: hearth/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}
