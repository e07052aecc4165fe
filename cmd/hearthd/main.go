// Hearth Core - Home Automation Device Synchronization
//
// This is the main entry point for the Hearth Core daemon. Hearth keeps an
// in-memory device registry synchronized with physical devices over MQTT,
// persists device state to SQLite, mirrors property telemetry to InfluxDB,
// and serves a REST + WebSocket API for user interfaces.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/hearthome/hearth-core/migrations"

	"github.com/hearthome/hearth-core/internal/api"
	"github.com/hearthome/hearth-core/internal/device"
	"github.com/hearthome/hearth-core/internal/gateway"
	"github.com/hearthome/hearth-core/internal/infrastructure/config"
	"github.com/hearthome/hearth-core/internal/infrastructure/database"
	"github.com/hearthome/hearth-core/internal/infrastructure/influxdb"
	"github.com/hearthome/hearth-core/internal/infrastructure/logging"
	"github.com/hearthome/hearth-core/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Hearth Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Initialise device registry with SQLite persistence and a history
	// trail that mirrors telemetry to InfluxDB when available.
	deviceRepo := device.NewSQLiteRepository(db.DB)
	historyRepo := device.NewSQLiteHistoryRepository(db.DB)
	registry := device.NewRegistry(deviceRepo)
	registry.SetLogger(log)
	registry.SetHistoryRecorder(&telemetryRecorder{
		history: historyRepo,
		influx:  influxClient,
	})

	if initErr := registry.Initialize(ctx); initErr != nil {
		return fmt.Errorf("loading device registry: %w", initErr)
	}
	log.Info("device registry initialised", "devices", registry.DeviceCount())

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT connection established")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	mqttClient.SetOnReconnectFailed(func(attempts int) {
		log.Error("MQTT reconnect attempts exhausted; manual intervention required",
			"attempts", attempts,
		)
	})

	// Start the gateway: routes inbound device traffic into the registry
	// and carries validated commands back out.
	gw := gateway.New(mqttClient, registry, byte(cfg.MQTT.QoS), log)
	if startErr := gw.Start(ctx); startErr != nil {
		return fmt.Errorf("starting gateway: %w", startErr)
	}
	registry.SetCommandSender(gw)
	log.Info("gateway started")

	// Create the API server, then attach the registry broadcaster: device
	// changes stream to WebSocket clients, with status transitions also
	// mirrored to InfluxDB when the telemetry client is configured.
	apiServer, err := api.New(api.Deps{
		Config:          cfg.API,
		WS:              cfg.WebSocket,
		Logger:          log,
		Registry:        registry,
		History:         historyRepo,
		Discoverer:      gw,
		DiscoveryWindow: cfg.GetDiscoveryWindow(),
		Version:         version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	registry.SetBroadcaster(&statusMirror{next: apiServer.Hub(), influx: influxClient})

	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started",
		"address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
	)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient, apiServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. MQTT
	// 3. InfluxDB (if enabled)
	// 4. Database

	log.Info("Hearth Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HEARTH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HEARTH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//   - apiServer: API server to check
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, apiServer *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if err := apiServer.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}

// statusMirror fans registry events out to the WebSocket hub and mirrors
// device status transitions to InfluxDB so availability can be graphed
// alongside property metrics.
type statusMirror struct {
	next   device.Broadcaster
	influx *influxdb.Client
}

// BroadcastDeviceUpdate implements the registry's broadcaster.
func (m *statusMirror) BroadcastDeviceUpdate(d *device.Device) {
	m.next.BroadcastDeviceUpdate(d)
}

// BroadcastDeviceStatus forwards the transition and records it in InfluxDB.
func (m *statusMirror) BroadcastDeviceStatus(deviceID string, status device.Status) {
	m.next.BroadcastDeviceStatus(deviceID, status)
	if m.influx != nil {
		m.influx.WriteDeviceStatus(deviceID, string(status))
	}
}

// telemetryRecorder records property observations to the local SQLite trail
// and mirrors numeric values to InfluxDB when a client is configured.
// The local write is authoritative; the InfluxDB write is fire-and-forget
// through the batching write API.
type telemetryRecorder struct {
	history device.HistoryRepository
	influx  *influxdb.Client
}

// RecordProperty implements the registry's history recorder.
func (t *telemetryRecorder) RecordProperty(ctx context.Context, deviceID string, p device.Property) error {
	err := t.history.RecordProperty(ctx, deviceID, p)

	if t.influx != nil {
		switch v := p.Value.(type) {
		case float64:
			t.influx.WritePropertyMetric(deviceID, p.Key, v, p.Unit)
		case int:
			t.influx.WritePropertyMetric(deviceID, p.Key, float64(v), p.Unit)
		case bool:
			boolVal := 0.0
			if v {
				boolVal = 1.0
			}
			t.influx.WritePropertyMetric(deviceID, p.Key, boolVal, p.Unit)
		}
	}

	return err
}
