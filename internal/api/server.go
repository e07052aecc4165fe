// Package api provides the HTTP REST API and WebSocket server for Hearth Core.
//
// It exposes device registry operations, property history queries, on-demand
// discovery, and real-time update streaming to user interfaces (wall panels,
// mobile apps, web dashboards).
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hearthome/hearth-core/internal/device"
	"github.com/hearthome/hearth-core/internal/infrastructure/config"
	"github.com/hearthome/hearth-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Discoverer runs an on-demand device discovery cycle. The MQTT gateway
// satisfies this; the indirection avoids a package dependency on it.
type Discoverer interface {
	RunDiscovery(ctx context.Context, window time.Duration) ([]device.Discovered, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config          config.APIConfig
	WS              config.WebSocketConfig
	Logger          *logging.Logger
	Registry        *device.Registry
	History         device.HistoryRepository
	Discoverer      Discoverer
	DiscoveryWindow time.Duration
	ExternalHub     *Hub // If set, the server uses this hub instead of creating its own
	Version         string
}

// Server is the HTTP API server for Hearth Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg             config.APIConfig
	wsCfg           config.WebSocketConfig
	logger          *logging.Logger
	registry        *device.Registry
	history         device.HistoryRepository
	discoverer      Discoverer
	discoveryWindow time.Duration
	version         string
	server          *http.Server
	hub             *Hub
	cancel          context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, registry)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	// History and Discoverer are optional; the matching endpoints report
	// unavailability when they are absent.

	s := &Server{
		cfg:             deps.Config,
		wsCfg:           deps.WS,
		logger:          deps.Logger,
		registry:        deps.Registry,
		history:         deps.History,
		discoverer:      deps.Discoverer,
		discoveryWindow: deps.DiscoveryWindow,
		version:         deps.Version,
	}

	// Use an externally-provided hub if available. Needed when the registry
	// broadcaster must exist before the server itself is constructed.
	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, and launches the HTTP
// listener in a background goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	// Create WebSocket hub (unless one was injected externally)
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	go s.hub.Run(srvCtx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	// Start listening in background
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Hub returns the WebSocket hub, creating it on first use.
// Exposed so the registry broadcaster can be wired before Start().
func (s *Server) Hub() *Hub {
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	return s.hub
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub)
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
