package mqtt

import "errors"

// Sentinel errors. Wrapped causes are preserved, so match with errors.Is.
var (
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed wraps the last transport error once Connect has
	// used up its attempts, or the context error if it was cancelled.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	ErrPublishFailed   = errors.New("mqtt: publish failed")
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")
	ErrInvalidQoS      = errors.New("mqtt: qos must be 0, 1 or 2")
	ErrInvalidTopic    = errors.New("mqtt: empty topic")

	// ErrClosed is returned by Connect after Close.
	ErrClosed = errors.New("mqtt: client closed")
)
