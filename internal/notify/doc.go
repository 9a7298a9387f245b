// Package notify publishes detection events to an MQTT broker.
//
// Publishing is optional and fire-and-forget: home automation can react
// to a cat at the door, but a broker outage never blocks or fails the
// detection pipeline. The client auto-reconnects with exponential
// backoff and announces its own liveness on a status topic, with a
// Last Will covering unexpected disconnects.
package notify
