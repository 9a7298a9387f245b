package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"catwatch/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for initial connection.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// Event is the detection payload published to the broker.
type Event struct {
	ID         int64   `json:"id"`
	Cat        bool    `json:"cat"`
	TooDark    bool    `json:"too_dark"`
	Brightness float64 `json:"brightness"`
	ImagePath  string  `json:"image_path"`
	Timestamp  string  `json:"ts"`
}

// Notifier wraps paho.mqtt.golang for detection event publishing.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Notifier struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig

	// connected tracks current connection state.
	connected bool
	connMu    sync.RWMutex
}

// Connect establishes a connection to the MQTT broker.
//
// It performs the following setup:
//  1. Builds connection options from config (broker URL, auth, TLS)
//  2. Configures Last Will and Testament (LWT) for offline detection
//  3. Sets up auto-reconnect with exponential backoff
//  4. Attempts initial connection with timeout
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//
// Returns:
//   - *Notifier: Connected notifier ready for use
//   - error: If initial connection fails within timeout
func Connect(cfg config.MQTTConfig) (*Notifier, error) {
	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Topic+"/status", cfg.Broker.ClientID)

	n := &Notifier{
		cfg:     cfg,
		options: opts,
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		n.connMu.Lock()
		n.connected = true
		n.connMu.Unlock()
		n.publishStatus(onlinePayload(cfg.Broker.ClientID))
	})

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, _ error) {
		n.connMu.Lock()
		n.connected = false
		n.connMu.Unlock()
	})

	n.client = pahomqtt.NewClient(opts)
	token := n.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// OnConnectHandler runs asynchronously and may not have fired yet;
	// mark connected here so IsConnected() is immediately accurate.
	n.connMu.Lock()
	n.connected = true
	n.connMu.Unlock()

	return n, nil
}

// PublishDetection publishes a detection event to the configured topic.
//
// The publish waits for broker acknowledgment up to the context
// deadline (capped at the publish timeout). A slow or absent broker
// returns an error; callers log it and move on.
func (n *Notifier) PublishDetection(ctx context.Context, event Event) error {
	if !n.IsConnected() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: encode event: %w", ErrPublishFailed, err)
	}

	timeout := defaultPublishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	token := n.client.Publish(n.cfg.Topic, byte(n.cfg.QoS), false, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: publish to %s", ErrTimeout, n.cfg.Topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Close gracefully disconnects from the MQTT broker.
//
// A graceful offline status is published first so subscribers can tell
// a shutdown from a crash (which triggers the LWT instead).
func (n *Notifier) Close() error {
	if n.client == nil {
		return nil
	}

	if n.IsConnected() {
		n.publishStatus(offlinePayload(n.cfg.Broker.ClientID))
	}

	n.client.Disconnect(defaultDisconnectQuiesce)

	n.connMu.Lock()
	n.connected = false
	n.connMu.Unlock()

	return nil
}

// HealthCheck verifies the broker connection is alive.
func (n *Notifier) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("notify health check: %w", ctx.Err())
	default:
	}

	if !n.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the current connection state.
func (n *Notifier) IsConnected() bool {
	n.connMu.RLock()
	defer n.connMu.RUnlock()
	return n.connected && n.client.IsConnected()
}

// statusTopic is where the notifier announces its own liveness.
func (n *Notifier) statusTopic() string {
	return n.cfg.Topic + "/status"
}

func (n *Notifier) publishStatus(payload string) {
	token := n.client.Publish(n.statusTopic(), byte(n.cfg.QoS), true, payload)
	token.WaitTimeout(defaultPublishTimeout)
}

// buildClientOptions creates paho MQTT options from Catwatch config.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID for identification
//   - Authentication credentials (if provided)
//   - Auto-reconnect with exponential backoff
//   - TLS configuration (if enabled)
//   - Clean session mode
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))

	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// Clean session - start fresh on connect (no persistent session on broker)
	opts.SetCleanSession(true)

	// Auto-reconnect with exponential backoff
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)

	opts.SetConnectTimeout(defaultConnectTimeout)

	// Keepalive - broker sends PINGs to detect dead connections
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	return opts
}

// configureLWT sets up Last Will and Testament for offline detection.
//
// The broker publishes the will if the client disconnects unexpectedly,
// so subscribers can tell a crashed watcher from a quiet one.
func configureLWT(opts *pahomqtt.ClientOptions, topic, clientID string) {
	willPayload := fmt.Sprintf(
		`{"status":"offline","client_id":"%s","reason":"unexpected_disconnect","timestamp":"%s"}`,
		clientID,
		time.Now().UTC().Format(time.RFC3339),
	)
	opts.SetWill(topic, willPayload, 1, true)
}

// onlinePayload creates the JSON payload for online status messages.
func onlinePayload(clientID string) string {
	return fmt.Sprintf(
		`{"status":"online","client_id":"%s","timestamp":"%s"}`,
		clientID,
		time.Now().UTC().Format(time.RFC3339),
	)
}

// offlinePayload creates the JSON payload for graceful offline status.
func offlinePayload(clientID string) string {
	return fmt.Sprintf(
		`{"status":"offline","client_id":"%s","reason":"graceful_shutdown","timestamp":"%s"}`,
		clientID,
		time.Now().UTC().Format(time.RFC3339),
	)
}
