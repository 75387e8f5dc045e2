// Package ingest turns inbound broker messages into device events.
//
// The Dispatcher is registered as the handler for every inbound topic. For
// each message it decodes the JSON payload, builds the event for the topic,
// writes it to the log store and hands it to the broadcast loop:
//
//	broker ─▶ mqtt.Client ─▶ Dispatcher ─┬─▶ eventlog (synchronous)
//	                                     └─▶ fanout.Hub.Handoff ─▶ subscribers
//
// Malformed payloads are logged and dropped. A failed log write does not
// stop the broadcast.
package ingest
