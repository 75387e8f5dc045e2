package control

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/homytech-core/internal/device"
	"github.com/nerrad567/homytech-core/internal/eventlog"
	"github.com/nerrad567/homytech-core/internal/infrastructure/mqtt"
)

// ErrPublishFailed is returned when the broker did not accept a command.
var ErrPublishFailed = errors.New("control: command not accepted by broker")

// Publisher sends one command payload on a topic.
type Publisher interface {
	Publish(topic string, message any) error
}

// Store is the part of the event log the control path uses.
type Store interface {
	Append(ctx context.Context, ev *device.Event) error
	Latest(ctx context.Context, filter eventlog.Filter) (*device.Event, error)
	LatestPerDevice(ctx context.Context, ch device.Channel) ([]device.Event, error)
}

// Bridge hands payloads to the broadcast loop without blocking.
type Bridge interface {
	Handoff(ch device.Channel, payload any) error
}

// Telemetry mirrors logged commands to a time-series store.
type Telemetry interface {
	WriteEvent(ev device.Event)
}

// Logger defines the logging interface for the control service.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// actionCommand is the payload of light, door and clothesline commands.
type actionCommand struct {
	Action string `json:"action"`
}

// modeCommand is the payload of the clothesline mode command.
type modeCommand struct {
	Mode string `json:"mode"`
}

// Options configures a Service. Publisher, Store and Bridge are required.
type Options struct {
	Publisher Publisher
	Store     Store
	Bridge    Bridge
	Telemetry Telemetry
	Topics    mqtt.Topics
	Lights    []int
	Logger    Logger
	Now       func() time.Time
}

// Service turns user commands into broker publishes, log entries and
// broadcasts.
//
// Each command is validated, then published. Only a publish the broker
// accepted is logged and broadcast; the broadcast does not wait for the
// device to confirm.
type Service struct {
	publisher Publisher
	store     Store
	bridge    Bridge
	telemetry Telemetry
	topics    mqtt.Topics
	lights    []int
	logger    Logger
	now       func() time.Time
}

// NewService creates a Service.
func NewService(opts Options) (*Service, error) {
	switch {
	case opts.Publisher == nil:
		return nil, fmt.Errorf("control: publisher is required")
	case opts.Store == nil:
		return nil, fmt.Errorf("control: store is required")
	case opts.Bridge == nil:
		return nil, fmt.Errorf("control: bridge is required")
	}
	if len(opts.Lights) == 0 {
		opts.Lights = []int{1, 2, 3}
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		publisher: opts.Publisher,
		store:     opts.Store,
		bridge:    opts.Bridge,
		telemetry: opts.Telemetry,
		topics:    opts.Topics,
		lights:    opts.Lights,
		logger:    opts.Logger,
		now:       opts.Now,
	}, nil
}

// SetLight switches light id on or off.
func (s *Service) SetLight(ctx context.Context, id int, action, actor string) (device.Event, error) {
	if err := device.ValidateLight(id, s.lights); err != nil {
		return device.Event{}, err
	}
	action, err := device.NormalizeAction(device.ChannelLight, action)
	if err != nil {
		return device.Event{}, err
	}

	ev := device.Event{
		Channel:  device.ChannelLight,
		DeviceID: device.LightID(id),
		Action:   action,
		Actor:    actor,
		Source:   device.SourceWeb,
	}
	return s.command(ctx, s.topics.LightCommand(id), ev)
}

// SetDoor opens or closes the door.
func (s *Service) SetDoor(ctx context.Context, action, actor string) (device.Event, error) {
	action, err := device.NormalizeAction(device.ChannelDoor, action)
	if err != nil {
		return device.Event{}, err
	}

	ev := device.Event{
		Channel: device.ChannelDoor,
		Action:  action,
		Actor:   actor,
		Source:  device.SourceWeb,
	}
	return s.command(ctx, s.topics.DoorCommand(), ev)
}

// SetClothesline retracts or extends the clothesline.
func (s *Service) SetClothesline(ctx context.Context, action, actor string) (device.Event, error) {
	action, err := device.NormalizeAction(device.ChannelClothesline, action)
	if err != nil {
		return device.Event{}, err
	}

	ev := device.Event{
		Channel: device.ChannelClothesline,
		Action:  action,
		Actor:   actor,
		Source:  device.SourceWeb,
	}
	return s.command(ctx, s.topics.ClotheslineCommand(), ev)
}

// SetClotheslineMode switches the rain sensor between manual and auto.
// Mode changes are not logged or broadcast.
func (s *Service) SetClotheslineMode(_ context.Context, mode string) (string, error) {
	mode, err := device.NormalizeMode(mode)
	if err != nil {
		return "", err
	}
	if err := s.publish(s.topics.ClotheslineModeCommand(), modeCommand{Mode: mode}); err != nil {
		return "", err
	}
	s.logger.Info("clothesline mode set", "mode", mode)
	return mode, nil
}

// command publishes ev's action, then logs and broadcasts it.
func (s *Service) command(ctx context.Context, topic string, ev device.Event) (device.Event, error) {
	if err := s.publish(topic, actionCommand{Action: ev.Action}); err != nil {
		return device.Event{}, err
	}

	ev.Timestamp = s.now().UTC()
	if err := s.store.Append(ctx, &ev); err != nil {
		s.logger.Error("failed to log command",
			"channel", ev.Channel,
			"action", ev.Action,
			"error", err,
		)
	}
	if s.telemetry != nil {
		s.telemetry.WriteEvent(ev)
	}

	if err := s.bridge.Handoff(ev.Channel, ev); err != nil {
		s.logger.Warn("broadcast handoff refused", "channel", ev.Channel, "error", err)
	}

	s.logger.Info("command sent",
		"channel", ev.Channel,
		"action", ev.Action,
		"actor", ev.Actor,
		"topic", topic,
	)
	return ev, nil
}

func (s *Service) publish(topic string, message any) error {
	if err := s.publisher.Publish(topic, message); err != nil {
		s.logger.Warn("command publish failed", "topic", topic, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}

// SyncResult reports what SyncState republished.
type SyncResult struct {
	Published int `json:"published"`
	Failed    int `json:"failed"`
}

// SyncState republishes the last known state of every device so
// controllers that restarted catch up.
//
// Lights, door and clothesline get their newest logged action; intrusion
// attempts recorded on the door log are skipped. The clothesline mode is
// reset to auto. Publish failures are counted and returned together as
// ErrPublishFailed after every publish was tried.
func (s *Service) SyncState(ctx context.Context) (SyncResult, error) {
	var result SyncResult
	var errs []error

	send := func(topic string, message any) {
		if err := s.publish(topic, message); err != nil {
			result.Failed++
			errs = append(errs, err)
			return
		}
		result.Published++
	}

	lights, err := s.store.LatestPerDevice(ctx, device.ChannelLight)
	if err != nil {
		return result, fmt.Errorf("loading light state: %w", err)
	}
	for _, ev := range lights {
		send(s.topics.LightCommand(*ev.DeviceID), actionCommand{Action: ev.Action})
	}

	door, err := s.latest(ctx, eventlog.Filter{Channel: device.ChannelDoor, ExcludeActor: device.ActorUnknown})
	if err != nil {
		return result, fmt.Errorf("loading door state: %w", err)
	}
	if door != nil {
		send(s.topics.DoorCommand(), actionCommand{Action: door.Action})
	}

	line, err := s.latest(ctx, eventlog.Filter{Channel: device.ChannelClothesline})
	if err != nil {
		return result, fmt.Errorf("loading clothesline state: %w", err)
	}
	if line != nil {
		send(s.topics.ClotheslineCommand(), actionCommand{Action: line.Action})
	}

	send(s.topics.ClotheslineModeCommand(), modeCommand{Mode: device.ModeAuto})

	s.logger.Info("device state synchronised", "published", result.Published, "failed", result.Failed)
	return result, errors.Join(errs...)
}

// latest returns nil without error when nothing was logged yet.
func (s *Service) latest(ctx context.Context, filter eventlog.Filter) (*device.Event, error) {
	ev, err := s.store.Latest(ctx, filter)
	if errors.Is(err, eventlog.ErrNotFound) {
		return nil, nil
	}
	return ev, err
}
