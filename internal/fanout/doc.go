// Package fanout delivers device events to live subscribers, one
// broadcaster per channel.
//
// All subscriber sets are owned by a single Loop goroutine. Producers on
// other goroutines (the MQTT receive path, HTTP handlers) never touch a
// broadcaster directly: every Register, Unregister and Broadcast is
// submitted to the loop as a task and runs there in FIFO order.
//
//	MQTT callback ──Handoff──▶ Loop queue ──▶ Broadcaster[T].deliver ──▶ Subscriber.Send
//
// Submit never blocks. When the queue is full the task is refused with
// ErrLoopSaturated and the caller logs it.
//
// A delivery pass sends to a snapshot of the members, collects the ones
// whose Send failed, and removes them after the pass. ErrSubscriberClosed
// is the expected way for a subscriber to leave and is pruned quietly;
// any other error is pruned with a warning.
package fanout
