package device

import (
	"fmt"
	"time"
)

// Channel names a push channel and, for device events, the log partition.
type Channel string

// Channel values.
const (
	ChannelLight       Channel = "light"
	ChannelDoor        Channel = "door"
	ChannelClothesline Channel = "clothesline"
	ChannelAlert       Channel = "alert"
)

// AllChannels lists every push channel in a stable order.
var AllChannels = []Channel{ChannelLight, ChannelDoor, ChannelClothesline, ChannelAlert}

// ParseChannel converts a string to a Channel.
func ParseChannel(s string) (Channel, error) {
	switch c := Channel(s); c {
	case ChannelLight, ChannelDoor, ChannelClothesline, ChannelAlert:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownChannel, s)
	}
}

// Logged reports whether events on this channel are persisted.
func (c Channel) Logged() bool {
	return c == ChannelLight || c == ChannelDoor || c == ChannelClothesline
}

// Actions accepted per device.
const (
	ActionOn      = "on"
	ActionOff     = "off"
	ActionOpen    = "open"
	ActionClose   = "close"
	ActionRetract = "retract"
	ActionExtend  = "extend"
)

// Clothesline operating modes.
const (
	ModeManual = "manual"
	ModeAuto   = "auto"
)

// Event sources.
const (
	SourceWeb         = "web"
	SourceRFID        = "RFID"
	SourceRainSensor  = "Rain Sensor"
	SourceAlertSystem = "Alert System"
)

// Actors used when a message carries none.
const (
	ActorUnspecified = "-"
	ActorSystem      = "System"
	ActorUnknown     = "Unknown"
)

// Event is one observed or commanded device state change.
//
// Events are immutable once emitted. DeviceID is set only for lights.
type Event struct {
	ID        int64     `json:"id,omitempty"`
	Channel   Channel   `json:"-"`
	DeviceID  *int      `json:"light_id,omitempty"`
	Action    string    `json:"action"`
	Actor     string    `json:"user"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// Alert is the payload of the alert push channel. Action is nil, and
// encodes as null, when the controller did not name one.
type Alert struct {
	Action    *string   `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// LightID returns a pointer to id, for use as Event.DeviceID.
func LightID(id int) *int {
	return &id
}

// InZone returns a copy of e with its timestamp rendered in loc.
func (e Event) InZone(loc *time.Location) Event {
	e.Timestamp = e.Timestamp.In(loc)
	return e
}

// InZone returns a copy of a with its timestamp rendered in loc.
func (a Alert) InZone(loc *time.Location) Alert {
	a.Timestamp = a.Timestamp.In(loc)
	return a
}
