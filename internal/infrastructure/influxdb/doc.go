// Package influxdb provides time-series telemetry storage for Hearth Core.
//
// Numeric device property observations are mirrored to InfluxDB for
// long-term trend analysis and dashboarding. SQLite remains the source of
// truth for recent history; the mirror is best-effort and its failures
// never affect the device state path.
//
// Writes are non-blocking and batched by the client library. Async write
// errors surface through the SetOnError callback for logging.
package influxdb
