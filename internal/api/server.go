// Package api provides the HTTP server for Catwatch.
//
// It exposes the detection ingestion endpoint for camera firmware, the
// dashboard and brightness gate controls for humans, the thermometer
// snapshot API, and static serving of stored frames.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
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

	"catwatch/internal/detection"
	"catwatch/internal/infrastructure/config"
	"catwatch/internal/infrastructure/influxdb"
	"catwatch/internal/infrastructure/logging"
	"catwatch/internal/notify"
	"catwatch/internal/thermo"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// SnapshotProvider supplies reconciled thermometer snapshots. Satisfied
// by *thermo.Reconciler; an interface here keeps handler tests off the
// network.
type SnapshotProvider interface {
	GetHouseReadings(ctx context.Context) (thermo.Snapshot, error)
}

// Deps holds the dependencies required by the API server.
//
// Notifier and Influx are optional; nil disables the corresponding
// side channel. Thermo may be nil when cloud credentials are absent,
// in which case the sensor endpoint reports the missing configuration.
type Deps struct {
	Config     *config.Config
	Logger     *logging.Logger
	Store      *detection.Store
	Gate       *detection.Gate
	Counter    *detection.ImageCounter
	Classifier detection.Classifier
	Thermo     SnapshotProvider
	Notifier   *notify.Notifier
	Influx     *influxdb.Client
	Version    string
}

// Server is the Catwatch HTTP server.
//
// It manages the HTTP listener, routes, and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg        *config.Config
	logger     *logging.Logger
	store      *detection.Store
	gate       *detection.Gate
	counter    *detection.ImageCounter
	classifier detection.Classifier
	thermo     SnapshotProvider
	notifier   *notify.Notifier
	influx     *influxdb.Client
	version    string
	server     *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("detection store is required")
	}
	if deps.Gate == nil {
		return nil, fmt.Errorf("brightness gate is required")
	}
	if deps.Counter == nil {
		return nil, fmt.Errorf("image counter is required")
	}
	if deps.Classifier == nil {
		deps.Classifier = detection.NopClassifier{}
	}

	return &Server{
		cfg:        deps.Config,
		logger:     deps.Logger,
		store:      deps.Store,
		gate:       deps.Gate,
		counter:    deps.Counter,
		classifier: deps.Classifier,
		thermo:     deps.Thermo,
		notifier:   deps.Notifier,
		influx:     deps.Influx,
		version:    deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It builds the router and launches the HTTP listener in a background
// goroutine. The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
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
