package fanout

import "errors"

var (
	// ErrLoopSaturated is returned when the loop queue is full.
	ErrLoopSaturated = errors.New("fanout: event loop saturated")

	// ErrLoopStopped is returned for tasks submitted after the loop exited.
	ErrLoopStopped = errors.New("fanout: event loop stopped")

	// ErrPayloadType is returned by Hub.Handoff when the payload does not
	// match the channel's payload type.
	ErrPayloadType = errors.New("fanout: payload type does not match channel")

	// ErrSubscriberClosed is returned by Subscriber.Send once the
	// subscriber's connection is gone.
	ErrSubscriberClosed = errors.New("fanout: subscriber closed")

	// ErrSubscriberBacklogged is returned by Subscriber.Send when the
	// subscriber cannot accept more messages.
	ErrSubscriberBacklogged = errors.New("fanout: subscriber backlogged")
)
