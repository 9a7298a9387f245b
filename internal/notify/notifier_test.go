package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"catwatch/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "catwatch-test",
			TLS:      false,
		},
		Topic: "catwatch/detections",
		QoS:   1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	opts := buildClientOptions(cfg)

	servers := opts.Servers
	if len(servers) != 1 {
		t.Fatalf("servers length = %d, want 1", len(servers))
	}
	if got := servers[0].String(); got != "tcp://127.0.0.1:1883" {
		t.Errorf("broker URL = %q, want tcp://127.0.0.1:1883", got)
	}
	if opts.ClientID != "catwatch-test" {
		t.Errorf("client id = %q, want catwatch-test", opts.ClientID)
	}
}

func TestBuildClientOptionsTLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	opts := buildClientOptions(cfg)

	if got := opts.Servers[0].Scheme; got != "ssl" {
		t.Errorf("broker scheme = %q, want ssl", got)
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig is nil with TLS enabled")
	}
}

func TestEventPayloadShape(t *testing.T) {
	event := Event{
		ID:         42,
		Cat:        true,
		TooDark:    false,
		Brightness: 87.5,
		ImagePath:  "/static/000042.jpg",
		Timestamp:  "2026-03-01T12:00:00Z",
	}

	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal error = %v", err)
	}
	for _, key := range []string{"id", "cat", "too_dark", "brightness", "image_path", "ts"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("payload missing key %q", key)
		}
	}
}

func TestStatusPayloads(t *testing.T) {
	online := onlinePayload("catwatch-test")
	if !strings.Contains(online, `"status":"online"`) {
		t.Errorf("online payload = %s, missing online status", online)
	}

	offline := offlinePayload("catwatch-test")
	if !strings.Contains(offline, `"status":"offline"`) {
		t.Errorf("offline payload = %s, missing offline status", offline)
	}
	if !strings.Contains(offline, `"reason":"graceful_shutdown"`) {
		t.Errorf("offline payload = %s, missing shutdown reason", offline)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(online), &decoded); err != nil {
		t.Errorf("online payload is not valid JSON: %v", err)
	}
}

func TestCloseNil(t *testing.T) {
	n := &Notifier{}
	if err := n.Close(); err != nil {
		t.Errorf("Close() on zero notifier error = %v, want nil", err)
	}
}

func TestPublishDetectionNotConnected(t *testing.T) {
	n := &Notifier{cfg: testConfig()}

	err := n.PublishDetection(context.Background(), Event{ID: 1})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("PublishDetection() error = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheckNotConnected(t *testing.T) {
	n := &Notifier{cfg: testConfig()}

	if err := n.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheckCancelledContext(t *testing.T) {
	n := &Notifier{cfg: testConfig()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := n.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}
