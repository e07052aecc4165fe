// Package mqtt provides MQTT client connectivity for Hearth Core.
//
// This package manages:
//   - Connection to the broker with client-owned reconnect policy
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Hearth uses MQTT as the transport between the core and its devices.
// The broker decouples the core from device firmware implementations.
//
//	Hearth Core ↔ MQTT Broker ↔ Devices (ESP firmware, bridges)
//
// # Reconnection
//
// The paho library's auto-reconnect is disabled. The Client runs its own
// reconnect loop with an exponential backoff curve (initial delay doubling
// per attempt, capped at a maximum) and an optional attempt ceiling. When
// the ceiling is reached the client moves to StateReconnectFailed, fires
// the OnReconnectFailed callback, and stays put until Reconnect() is
// called. This gives callers one authoritative connection state instead of
// the library and the wrapper disagreeing mid-retry.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.Subscribe(mqtt.Topics{}.AllDeviceProperties(), 1, handler)
package mqtt
