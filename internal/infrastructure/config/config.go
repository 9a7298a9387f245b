package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Catwatch.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	Detection DetectionConfig `yaml:"detection"`
	Cloud     CloudConfig     `yaml:"cloud"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
}

// TimeoutConfig contains HTTP timeout settings in seconds.
type TimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// StorageConfig contains frame storage settings.
type StorageConfig struct {
	// FramesDir is the directory where captured frames are written.
	FramesDir string `yaml:"frames_dir"`

	// BaseURL is the URL prefix under which frames are served.
	BaseURL string `yaml:"base_url"`

	// Keep is the rolling window size: the dashboard retains at most
	// this many detection records (and their frames).
	Keep int `yaml:"keep"`
}

// DetectionConfig contains brightness gate and classifier settings.
type DetectionConfig struct {
	// BrightnessThreshold is the mean-luma value (0-255) below which a
	// frame counts as too dark for classification.
	BrightnessThreshold float64 `yaml:"brightness_threshold"`

	// BrightnessGateEnabled sets the initial state of the gate.
	// The gate can be toggled at runtime via the dashboard.
	BrightnessGateEnabled bool `yaml:"brightness_gate_enabled"`

	// Classifier configures the external vision model.
	Classifier ClassifierConfig `yaml:"classifier"`
}

// ClassifierConfig contains settings for the external vision classifier.
type ClassifierConfig struct {
	// URL is the inference endpoint the frame is posted to.
	// Empty disables classification (every frame reports no cat).
	URL string `yaml:"url"`

	// Model is the model name forwarded to the inference service.
	Model string `yaml:"model"`

	// Timeout is the per-request timeout in seconds.
	Timeout int `yaml:"timeout"`
}

// CloudConfig contains smart-home cloud account settings.
// Username and password are environment-only (MIIO_USERNAME, MIIO_PASSWORD).
type CloudConfig struct {
	// Country is the cloud region (e.g. "de", "cn").
	Country string `yaml:"country"`

	// ModelHints are extra model-id substrings treated as thermometers,
	// in addition to the built-in hint set.
	ModelHints []string `yaml:"model_hints"`

	// Timeout is the per-call timeout in seconds for cloud requests.
	Timeout int `yaml:"timeout"`

	// Mock serves canned sample readings instead of querying the cloud.
	Mock bool `yaml:"mock"`

	// Username and Password are populated from environment variables
	// only; they have no YAML representation.
	Username string `yaml:"-"`
	Password string `yaml:"-"`
}

// MQTTConfig contains optional detection-event broker settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	Topic     string              `yaml:"topic"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains optional detection time-series settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: CATWATCH_SECTION_KEY
// For example: CATWATCH_DATABASE_PATH, CATWATCH_SERVER_PORT.
// Cloud credentials use the MIIO_* variables the original deployment
// already ships with (MIIO_USERNAME, MIIO_PASSWORD, MIIO_COUNTRY,
// MIIO_SENSOR_MODELS).
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadDefault returns the default configuration with environment overrides
// applied, for running without a config file.
func LoadDefault() (*Config, error) {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8099,
			Timeouts: TimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/catwatch.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Storage: StorageConfig{
			FramesDir: "./data/frames",
			BaseURL:   "/static",
			Keep:      10,
		},
		Detection: DetectionConfig{
			BrightnessThreshold:   30.0,
			BrightnessGateEnabled: true,
			Classifier: ClassifierConfig{
				Model:   "EfficientNetB0",
				Timeout: 15,
			},
		},
		Cloud: CloudConfig{
			Country: "de",
			Timeout: 10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "catwatch",
			},
			Topic: "catwatch/detections",
			QoS:   1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("CATWATCH_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("CATWATCH_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	// Database / storage
	if v := os.Getenv("CATWATCH_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("CATWATCH_STORAGE_FRAMES_DIR"); v != "" {
		cfg.Storage.FramesDir = v
	}

	// Classifier
	if v := os.Getenv("CATWATCH_CLASSIFIER_URL"); v != "" {
		cfg.Detection.Classifier.URL = v
	}
	if v := os.Getenv("CATWATCH_CLASSIFIER_MODEL"); v != "" {
		cfg.Detection.Classifier.Model = v
	}

	// MQTT
	if v := os.Getenv("CATWATCH_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CATWATCH_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("CATWATCH_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Cloud account - credentials are environment-only, matching the
	// variable names the original deployment uses.
	cfg.Cloud.Username = strings.TrimSpace(os.Getenv("MIIO_USERNAME"))
	cfg.Cloud.Password = strings.TrimSpace(os.Getenv("MIIO_PASSWORD"))
	if v := os.Getenv("MIIO_COUNTRY"); v != "" {
		cfg.Cloud.Country = v
	}
	if v := os.Getenv("MIIO_SENSOR_MODELS"); v != "" {
		for _, hint := range strings.Split(v, ",") {
			if hint = strings.TrimSpace(hint); hint != "" {
				cfg.Cloud.ModelHints = append(cfg.Cloud.ModelHints, hint)
			}
		}
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.Storage.FramesDir == "" {
		errs = append(errs, "storage.frames_dir is required")
	}
	if c.Storage.Keep < 1 {
		errs = append(errs, "storage.keep must be at least 1")
	}

	if c.Detection.BrightnessThreshold < 0 || c.Detection.BrightnessThreshold > 255 {
		errs = append(errs, "detection.brightness_threshold must be between 0 and 255")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the server read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the server write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the server idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Idle) * time.Second
}

// GetCloudTimeout returns the cloud call timeout as a Duration.
func (c *Config) GetCloudTimeout() time.Duration {
	if c.Cloud.Timeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Cloud.Timeout) * time.Second
}

// GetClassifierTimeout returns the classifier call timeout as a Duration.
func (c *Config) GetClassifierTimeout() time.Duration {
	if c.Detection.Classifier.Timeout <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Detection.Classifier.Timeout) * time.Second
}
