package fanout

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/homytech-core/internal/device"
)

// Hub holds one broadcaster per channel and is the crossing point from
// producer goroutines into the loop.
type Hub struct {
	loop     *Loop
	loc      *time.Location
	logger   Logger
	observer Observer

	Light       *Broadcaster[device.Event]
	Door        *Broadcaster[device.Event]
	Clothesline *Broadcaster[device.Event]
	Alert       *Broadcaster[device.Alert]
}

// HubOptions configures NewHub. Zero values pick defaults.
type HubOptions struct {
	// Location is applied to payload timestamps before delivery. Default UTC.
	Location *time.Location
	Logger   Logger
	Observer Observer
}

// NewHub creates the four channel broadcasters on loop.
func NewHub(loop *Loop, opts HubOptions) *Hub {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}

	h := &Hub{
		loop:     loop,
		loc:      opts.Location,
		logger:   opts.Logger,
		observer: opts.Observer,
	}
	h.Light = newBroadcaster[device.Event](device.ChannelLight, loop, opts.Logger, opts.Observer)
	h.Door = newBroadcaster[device.Event](device.ChannelDoor, loop, opts.Logger, opts.Observer)
	h.Clothesline = newBroadcaster[device.Event](device.ChannelClothesline, loop, opts.Logger, opts.Observer)
	h.Alert = newBroadcaster[device.Alert](device.ChannelAlert, loop, opts.Logger, opts.Observer)
	return h
}

// Handoff hands payload to the broadcaster for ch and returns without
// waiting for delivery.
//
// Light, door and clothesline take a device.Event; alert takes a
// device.Alert. Handoffs from one goroutine are delivered in call order.
func (h *Hub) Handoff(ch device.Channel, payload any) error {
	var err error
	switch ch {
	case device.ChannelLight, device.ChannelDoor, device.ChannelClothesline:
		ev, ok := payload.(device.Event)
		if !ok {
			return fmt.Errorf("%w: %s wants device.Event, got %T", ErrPayloadType, ch, payload)
		}
		b, _ := h.events(ch) //nolint:errcheck // ch checked above
		err = b.Broadcast(ev.InZone(h.loc))
	case device.ChannelAlert:
		a, ok := payload.(device.Alert)
		if !ok {
			return fmt.Errorf("%w: alert wants device.Alert, got %T", ErrPayloadType, payload)
		}
		err = h.Alert.Broadcast(a.InZone(h.loc))
	default:
		return fmt.Errorf("%w: %q", device.ErrUnknownChannel, ch)
	}

	if err != nil {
		h.observer.Refused(err)
		return fmt.Errorf("handing off %s payload: %w", ch, err)
	}
	return nil
}

// Register adds sub to the broadcaster for ch.
func (h *Hub) Register(ch device.Channel, sub Subscriber) error {
	if ch == device.ChannelAlert {
		return h.Alert.Register(sub)
	}
	b, err := h.events(ch)
	if err != nil {
		return err
	}
	return b.Register(sub)
}

// Unregister removes sub from the broadcaster for ch.
func (h *Hub) Unregister(ch device.Channel, sub Subscriber) error {
	if ch == device.ChannelAlert {
		return h.Alert.Unregister(sub)
	}
	b, err := h.events(ch)
	if err != nil {
		return err
	}
	return b.Unregister(sub)
}

// Counts returns the subscriber count per channel.
func (h *Hub) Counts(ctx context.Context) (map[device.Channel]int, error) {
	counts := make(map[device.Channel]int, len(device.AllChannels))
	err := h.loop.Do(ctx, func() {
		counts[device.ChannelLight] = len(h.Light.members)
		counts[device.ChannelDoor] = len(h.Door.members)
		counts[device.ChannelClothesline] = len(h.Clothesline.members)
		counts[device.ChannelAlert] = len(h.Alert.members)
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (h *Hub) events(ch device.Channel) (*Broadcaster[device.Event], error) {
	switch ch {
	case device.ChannelLight:
		return h.Light, nil
	case device.ChannelDoor:
		return h.Door, nil
	case device.ChannelClothesline:
		return h.Clothesline, nil
	default:
		return nil, fmt.Errorf("%w: %q", device.ErrUnknownChannel, ch)
	}
}
