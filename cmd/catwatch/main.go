// Catwatch - camera-triggered cat detection service
//
// This is the main entry point for the Catwatch application. It
// ingests frames from an ESP32 camera, decides whether a cat is in
// view, keeps a rolling record of recent detections, and serves a
// reconciled view of the house's cloud thermometers.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	_ "catwatch/migrations"

	"catwatch/internal/api"
	"catwatch/internal/detection"
	"catwatch/internal/infrastructure/config"
	"catwatch/internal/infrastructure/database"
	"catwatch/internal/infrastructure/influxdb"
	"catwatch/internal/infrastructure/logging"
	"catwatch/internal/notify"
	"catwatch/internal/thermo"
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
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Catwatch",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Cloud credentials live in .env alongside the binary; absence is
	// fine, the environment may carry them directly.
	if err := godotenv.Load(); err == nil {
		log.Info("loaded environment from .env")
	}

	// Load configuration. A missing file is not fatal, the defaults
	// plus environment overrides describe a working single-box setup.
	configPath := getConfigPath()
	var (
		cfg *config.Config
		err error
	)
	if _, statErr := os.Stat(configPath); statErr == nil {
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		log.Info("configuration loaded", "path", configPath)
	} else {
		cfg, err = config.LoadDefault()
		if err != nil {
			return fmt.Errorf("loading default config: %w", err)
		}
		log.Info("no config file found, using defaults with environment overrides", "path", configPath)
	}

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Frames directory must exist before the counter scans it
	if err := os.MkdirAll(cfg.Storage.FramesDir, 0o755); err != nil {
		return fmt.Errorf("creating frames directory: %w", err)
	}

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

	// Detection pipeline
	store := detection.NewStore(db.DB)
	counter := detection.NewImageCounter(cfg.Storage.FramesDir)
	gate := detection.NewGate(cfg.Detection.BrightnessThreshold, cfg.Detection.BrightnessGateEnabled)

	var classifier detection.Classifier = detection.NopClassifier{}
	if cfg.Detection.Classifier.URL != "" {
		classifier = detection.NewHTTPClassifier(
			cfg.Detection.Classifier.URL,
			cfg.Detection.Classifier.Model,
			cfg.GetClassifierTimeout(),
		)
		log.Info("classifier configured",
			"url", cfg.Detection.Classifier.URL,
			"model", cfg.Detection.Classifier.Model,
		)
	} else {
		log.Warn("no classifier configured, every frame will record no cat")
	}

	// Thermometer reconciler (requires cloud credentials)
	var snapshots api.SnapshotProvider
	if cfg.Cloud.Username != "" && cfg.Cloud.Password != "" {
		cloudClient := thermo.NewMiCloudClient(
			cfg.Cloud.Username,
			cfg.Cloud.Password,
			cfg.Cloud.Country,
			cfg.GetCloudTimeout(),
		)
		snapshots = thermo.NewReconciler(cloudClient, cfg.Cloud.ModelHints, log.With("component", "thermo"))
		log.Info("thermometer reconciler configured", "country", cfg.Cloud.Country)
	} else {
		log.Info("cloud credentials absent, thermometer endpoint will report missing configuration")
	}

	// Connect to MQTT broker (optional)
	var notifier *notify.Notifier
	if cfg.MQTT.Enabled {
		notifier, err = notify.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := notifier.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"topic", cfg.MQTT.Topic,
		)
	} else {
		log.Info("MQTT disabled")
	}

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
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start HTTP server
	server, err := api.New(api.Deps{
		Config:     cfg,
		Logger:     log,
		Store:      store,
		Gate:       gate,
		Counter:    counter,
		Classifier: classifier,
		Thermo:     snapshots,
		Notifier:   notifier,
		Influx:     influxClient,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started",
		"address", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
	)

	// Verify infrastructure connections are healthy
	if err := healthCheck(ctx, db, notifier, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Database

	log.Info("Catwatch stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses CATWATCH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CATWATCH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the infrastructure connections are healthy.
// Optional components that are disabled pass vacuously.
func healthCheck(ctx context.Context, db *database.DB, notifier *notify.Notifier, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if notifier != nil {
		if err := notifier.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
