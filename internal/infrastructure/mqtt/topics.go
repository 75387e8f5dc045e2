package mqtt

import "fmt"

// DefaultTopicPrefix is the root of every HomyTech topic.
const DefaultTopicPrefix = "homytech"

// Topics builds HomyTech MQTT topics under a prefix.
//
// Device controllers publish observed state on {prefix}/{device}/iot and
// listen for commands on {prefix}/{device}/web:
//
//	topics := mqtt.NewTopics("homytech")
//	topics.LightCommand(2) // "homytech/light/2/web"
//	topics.DoorState()     // "homytech/door/iot"
type Topics struct {
	prefix string
}

// NewTopics returns a builder for prefix, or DefaultTopicPrefix when empty.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic root.
func (t Topics) Prefix() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

// =============================================================================
// Inbound (device -> core)
// =============================================================================

// DoorState is where the RFID reader reports door actions.
func (t Topics) DoorState() string {
	return t.Prefix() + "/door/iot"
}

// ClotheslineState is where the rain sensor reports clothesline moves.
func (t Topics) ClotheslineState() string {
	return t.Prefix() + "/clothesline/iot"
}

// AlertState is where the door controller reports intrusion alerts.
func (t Topics) AlertState() string {
	return t.Prefix() + "/alert/iot"
}

// Inbound lists every topic the core subscribes to.
//
// Lights have no inbound topic: their state only changes through commands.
func (t Topics) Inbound() []string {
	return []string{t.DoorState(), t.ClotheslineState(), t.AlertState()}
}

// =============================================================================
// Outbound (core -> device)
// =============================================================================

// LightCommand returns the command topic for one light.
func (t Topics) LightCommand(id int) string {
	return fmt.Sprintf("%s/light/%d/web", t.Prefix(), id)
}

// DoorCommand returns the door command topic.
func (t Topics) DoorCommand() string {
	return t.Prefix() + "/door/web"
}

// ClotheslineCommand returns the clothesline command topic.
func (t Topics) ClotheslineCommand() string {
	return t.Prefix() + "/clothesline/web"
}

// ClotheslineModeCommand returns the clothesline mode topic.
func (t Topics) ClotheslineModeCommand() string {
	return t.Prefix() + "/clothesline-mode/web"
}

// SystemStatus carries the core's retained online/offline status and LWT.
func (t Topics) SystemStatus() string {
	return t.Prefix() + "/system/status"
}
