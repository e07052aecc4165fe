package mqtt

import (
	"fmt"
)

// Payload ceiling. Keeps a misbehaving caller from pushing oversized blobs
// through the broker; typical broker limits sit around this size.
const maxPayloadSize = 1 << 20 // 1MB

// Publish sends a payload to a topic. Fails fast with ErrNotConnected when
// the connection is down rather than queueing.
//
// Retained messages are stored by the broker and delivered to new
// subscribers immediately. Use retained for state topics (device status,
// system status), never for commands.
//
// Example:
//
//	topic := mqtt.Topics{}.DeviceCommand("esp-living-dimmer")
//	err := client.Publish(topic, []byte(`{"control_key":"power","value":true}`), 1, false)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishString publishes a string payload.
func (c *Client) PublishString(topic string, payload string, qos byte, retained bool) error {
	return c.Publish(topic, []byte(payload), qos, retained)
}

// PublishRetained publishes a retained message at the configured default QoS.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}
