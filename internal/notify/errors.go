package notify

import "errors"

// Domain-specific errors for notifier operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when attempting operations on a disconnected client.
	ErrNotConnected = errors.New("notify: client not connected")

	// ErrConnectionFailed is returned when the initial connection attempt fails.
	ErrConnectionFailed = errors.New("notify: connection failed")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("notify: publish failed")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("notify: operation timed out")
)
