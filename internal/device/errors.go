package device

import "errors"

// Domain errors for the device package. Check with errors.Is.
var (
	// ErrUnknownChannel is returned for a channel name that is not one of AllChannels.
	ErrUnknownChannel = errors.New("device: unknown channel")

	// ErrInvalidAction is returned when an action is not accepted by the device.
	ErrInvalidAction = errors.New("device: invalid action")

	// ErrInvalidMode is returned for a clothesline mode other than manual or auto.
	ErrInvalidMode = errors.New("device: invalid mode")

	// ErrUnknownLight is returned when a light id is not configured.
	ErrUnknownLight = errors.New("device: unknown light")

	// ErrInvalidTimestamp is returned when a timestamp cannot be parsed.
	ErrInvalidTimestamp = errors.New("device: invalid timestamp")
)
