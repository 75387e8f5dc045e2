// Package device defines the HomyTech device vocabulary: channels,
// the events that flow through them, and the actions each device accepts.
//
// # Channels
//
// There are four push channels. Three carry DeviceEvent values and are
// also persisted in the event log:
//
//   - light       three switchable lights, identified by DeviceID
//   - door        the front door (RFID reader, web control, alerts)
//   - clothesline the rain-sensing clothesline
//
// The fourth, alert, carries Alert values and is never stored on its own;
// an alert is logged as a door event with actor "Unknown".
//
// # Time
//
// Event timestamps are kept in UTC. Values arriving without a zone are read
// as UTC. FormatTimestamp produces the fixed-width text stored in SQLite
// so lexical ordering matches time ordering.
package device
