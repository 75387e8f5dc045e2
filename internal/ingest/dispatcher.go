package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/homytech-core/internal/device"
	"github.com/nerrad567/homytech-core/internal/infrastructure/mqtt"
)

// defaultAppendTimeout bounds one log write from the broker goroutine.
const defaultAppendTimeout = 5 * time.Second

// missingAction is logged when a device message carries no action.
const missingAction = "-"

var errNotObject = errors.New("payload is not a JSON object")

// LogStore persists device events.
type LogStore interface {
	Append(ctx context.Context, ev *device.Event) error
}

// Bridge hands payloads to the broadcast loop without blocking.
type Bridge interface {
	Handoff(ch device.Channel, payload any) error
}

// Telemetry mirrors accepted events to a time-series store. Writes must
// not block and failures are the sink's own concern.
type Telemetry interface {
	WriteEvent(ev device.Event)
}

// Recorder counts inbound messages by topic and result.
type Recorder interface {
	MessageHandled(topic, result string)
}

// Logger defines the logging interface for the dispatcher.
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

// Options configures a Dispatcher. Log and Bridge are required; a zero
// Topics uses the default prefix.
type Options struct {
	Topics    mqtt.Topics
	Log       LogStore
	Bridge    Bridge
	Telemetry Telemetry
	Recorder  Recorder
	Logger    Logger

	// Now is the clock stamped on inbound events. Default time.Now.
	Now func() time.Time

	// AppendTimeout bounds each log write. Default 5s.
	AppendTimeout time.Duration
}

// Dispatcher decodes broker messages into device events, records them
// and forwards them to the broadcast loop.
//
// HandleMessage runs on paho's receive goroutines; it never touches
// broadcaster state directly.
type Dispatcher struct {
	topics        mqtt.Topics
	log           LogStore
	bridge        Bridge
	telemetry     Telemetry
	recorder      Recorder
	logger        Logger
	now           func() time.Time
	appendTimeout time.Duration
}

// New creates a Dispatcher.
func New(opts Options) (*Dispatcher, error) {
	if opts.Log == nil {
		return nil, fmt.Errorf("ingest: log store is required")
	}
	if opts.Bridge == nil {
		return nil, fmt.Errorf("ingest: bridge is required")
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AppendTimeout <= 0 {
		opts.AppendTimeout = defaultAppendTimeout
	}

	return &Dispatcher{
		topics:        opts.Topics,
		log:           opts.Log,
		bridge:        opts.Bridge,
		telemetry:     opts.Telemetry,
		recorder:      opts.Recorder,
		logger:        opts.Logger,
		now:           opts.Now,
		appendTimeout: opts.AppendTimeout,
	}, nil
}

// Topics returns the inbound topics this dispatcher understands.
func (d *Dispatcher) Topics() []string {
	return d.topics.Inbound()
}

// HandleMessage processes one inbound broker message.
//
// It always returns nil: malformed payloads and unknown topics are logged
// and dropped, and broker messages are never redelivered by this service.
// The signature matches mqtt.MessageHandler.
func (d *Dispatcher) HandleMessage(topic string, payload []byte) error {
	var result string
	switch topic {
	case d.topics.DoorState():
		result = d.handleDoor(topic, payload)
	case d.topics.ClotheslineState():
		result = d.handleClothesline(topic, payload)
	case d.topics.AlertState():
		result = d.handleAlert(topic, payload)
	default:
		d.logger.Debug("ignoring message on unhandled topic", "topic", topic)
		result = ResultUnknownTopic
	}

	if d.recorder != nil {
		d.recorder.MessageHandled(topic, result)
	}
	return nil
}

func (d *Dispatcher) handleDoor(topic string, payload []byte) string {
	var msg doorMessage
	if !d.decode(topic, payload, &msg) {
		return ResultDecodeError
	}

	ev := device.Event{
		Channel:   device.ChannelDoor,
		Action:    orDefault(msg.Action, missingAction),
		Actor:     orDefault(msg.actor(), device.ActorUnspecified),
		Source:    device.SourceRFID,
		Timestamp: d.now().UTC(),
	}
	d.record(&ev)
	d.forward(device.ChannelDoor, ev)
	return ResultAccepted
}

func (d *Dispatcher) handleClothesline(topic string, payload []byte) string {
	var msg clotheslineMessage
	if !d.decode(topic, payload, &msg) {
		return ResultDecodeError
	}

	ev := device.Event{
		Channel:   device.ChannelClothesline,
		Action:    orDefault(msg.Action, missingAction),
		Actor:     device.ActorSystem,
		Source:    device.SourceRainSensor,
		Timestamp: d.now().UTC(),
	}
	d.record(&ev)
	d.forward(device.ChannelClothesline, ev)
	return ResultAccepted
}

// handleAlert records the attempt in the door log and pushes the raw
// alert on the alert channel. Door subscribers do not see it.
func (d *Dispatcher) handleAlert(topic string, payload []byte) string {
	var msg alertMessage
	if !d.decode(topic, payload, &msg) {
		return ResultDecodeError
	}

	attempted := "access"
	if msg.Action != nil && *msg.Action != "" {
		attempted = *msg.Action
	}

	now := d.now().UTC()
	ev := device.Event{
		Channel:   device.ChannelDoor,
		Action:    fmt.Sprintf("Tried to %s door", attempted),
		Actor:     device.ActorUnknown,
		Source:    device.SourceAlertSystem,
		Timestamp: now,
	}
	d.record(&ev)
	d.forward(device.ChannelAlert, device.Alert{Action: msg.Action, Timestamp: now})
	return ResultAccepted
}

// decode unmarshals a JSON object payload into v. Anything else, null
// included, is logged here and dropped by the caller.
func (d *Dispatcher) decode(topic string, payload []byte, v any) bool {
	err := errNotObject
	if trimmed := bytes.TrimSpace(payload); len(trimmed) > 0 && trimmed[0] == '{' {
		err = json.Unmarshal(trimmed, v)
	}
	if err != nil {
		d.logger.Warn("dropping malformed message",
			"topic", topic,
			"bytes", len(payload),
			"error", err,
		)
		return false
	}
	return true
}

// record writes ev to the log store before it is forwarded. A failed
// write is logged; the event is still forwarded.
func (d *Dispatcher) record(ev *device.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.appendTimeout)
	defer cancel()

	if err := d.log.Append(ctx, ev); err != nil {
		d.logger.Error("failed to append device event",
			"channel", ev.Channel,
			"action", ev.Action,
			"error", err,
		)
	}

	if d.telemetry != nil {
		d.telemetry.WriteEvent(*ev)
	}
}

func (d *Dispatcher) forward(ch device.Channel, payload any) {
	if err := d.bridge.Handoff(ch, payload); err != nil {
		d.logger.Warn("broadcast handoff refused", "channel", ch, "error", err)
		return
	}
	d.logger.Debug("event forwarded", "channel", ch)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
