// Package gateway connects the device registry to the MQTT transport.
//
// It owns the transport-facing half of device state synchronisation:
//
//   - Topic routing: inbound messages on the hearth/ namespace are parsed
//     and decoded into typed events (discovery, status, property, command
//     response). Malformed payloads are logged and dropped, never applied.
//   - Dispatch: decoded events drive the registry, which is the sole
//     mutator of device state.
//   - Commands: the gateway implements the registry's CommandSender,
//     publishing validated commands to per-device command topics.
//   - Discovery: fixed-window request/collect scans over
//     hearth/discovery/request.
//
// The gateway holds no device state of its own; it moves bytes and types
// between the broker and the registry.
package gateway
