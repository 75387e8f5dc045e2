package fanout

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/nerrad567/homytech-core/internal/device"
)

// Subscriber is one live consumer of a channel.
//
// Send must not block the loop; implementations queue the data and write
// it from their own goroutine. Close must be safe to call more than once.
type Subscriber interface {
	Send(data []byte) error
	Close() error
}

// Broadcaster fans payloads of type T out to the subscribers of one channel.
//
// Its member list is only read or written on the loop goroutine.
type Broadcaster[T any] struct {
	channel  device.Channel
	loop     *Loop
	logger   Logger
	observer Observer

	members []Subscriber
}

func newBroadcaster[T any](ch device.Channel, loop *Loop, logger Logger, observer Observer) *Broadcaster[T] {
	return &Broadcaster[T]{
		channel:  ch,
		loop:     loop,
		logger:   logger,
		observer: observer,
	}
}

// Channel returns the channel this broadcaster serves.
func (b *Broadcaster[T]) Channel() device.Channel {
	return b.channel
}

// Register schedules sub to be added. Adding the same subscriber twice is a no-op.
func (b *Broadcaster[T]) Register(sub Subscriber) error {
	return b.loop.Submit(func() {
		if b.indexOf(sub) >= 0 {
			return
		}
		b.members = append(b.members, sub)
		b.observer.Subscribers(b.channel, len(b.members))
		b.logger.Debug("subscriber registered", "channel", b.channel, "subscribers", len(b.members))
	})
}

// Unregister schedules sub to be removed. Removing an absent subscriber is a no-op.
func (b *Broadcaster[T]) Unregister(sub Subscriber) error {
	return b.loop.Submit(func() {
		if b.remove(sub) {
			b.observer.Subscribers(b.channel, len(b.members))
			b.logger.Debug("subscriber unregistered", "channel", b.channel, "subscribers", len(b.members))
		}
	})
}

// Broadcast schedules payload for delivery to every current member.
//
// Delivery failures are handled on the loop and never reach the caller;
// the only errors returned are the loop's submission errors.
func (b *Broadcaster[T]) Broadcast(payload T) error {
	return b.loop.Submit(func() {
		b.deliver(payload)
	})
}

// Count returns the number of members, read on the loop.
func (b *Broadcaster[T]) Count(ctx context.Context) (int, error) {
	var n int
	err := b.loop.Do(ctx, func() { n = len(b.members) })
	return n, err
}

type failedDelivery struct {
	sub Subscriber
	err error
}

// deliver runs on the loop. Members that fail are removed after the pass,
// so a failure never disturbs delivery to the rest.
func (b *Broadcaster[T]) deliver(payload T) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("encoding broadcast payload", "channel", b.channel, "error", err)
		return
	}

	var failed []failedDelivery
	for _, sub := range b.members {
		if err := sub.Send(data); err != nil {
			failed = append(failed, failedDelivery{sub: sub, err: err})
		}
	}
	b.observer.Delivered(b.channel, len(b.members)-len(failed))

	for _, f := range failed {
		b.remove(f.sub)
		_ = f.sub.Close() //nolint:errcheck // Subscriber is already gone

		expected := errors.Is(f.err, ErrSubscriberClosed)
		b.observer.Pruned(b.channel, expected)
		if expected {
			b.logger.Debug("pruned closed subscriber", "channel", b.channel)
		} else {
			b.logger.Warn("pruned failing subscriber", "channel", b.channel, "error", f.err)
		}
	}
	if len(failed) > 0 {
		b.observer.Subscribers(b.channel, len(b.members))
	}
}

func (b *Broadcaster[T]) indexOf(sub Subscriber) int {
	for i, m := range b.members {
		if m == sub {
			return i
		}
	}
	return -1
}

func (b *Broadcaster[T]) remove(sub Subscriber) bool {
	i := b.indexOf(sub)
	if i < 0 {
		return false
	}
	b.members = append(b.members[:i], b.members[i+1:]...)
	return true
}
