package fanout

import "github.com/nerrad567/homytech-core/internal/device"

// Logger defines the logging interface used by the loop and broadcasters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Observer receives fan-out counters. Refused is called on the handing-off
// goroutine; the others on the loop goroutine.
type Observer interface {
	Subscribers(ch device.Channel, n int)
	Delivered(ch device.Channel, n int)
	Pruned(ch device.Channel, expected bool)
	Refused(reason error)
}

type noopObserver struct{}

func (noopObserver) Subscribers(device.Channel, int) {}
func (noopObserver) Delivered(device.Channel, int)   {}
func (noopObserver) Pruned(device.Channel, bool)     {}
func (noopObserver) Refused(error)                   {}
