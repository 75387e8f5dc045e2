package ingest

// doorMessage is published by the RFID reader on {prefix}/door/iot.
//
// Older reader firmware sends the card holder as "user"; newer firmware
// uses "actor". Both are accepted.
type doorMessage struct {
	Action string `json:"action"`
	User   string `json:"user"`
	Actor  string `json:"actor"`
}

func (m doorMessage) actor() string {
	if m.User != "" {
		return m.User
	}
	return m.Actor
}

// clotheslineMessage is published by the rain sensor on {prefix}/clothesline/iot.
type clotheslineMessage struct {
	Action string `json:"action"`
}

// alertMessage is published by the door controller on {prefix}/alert/iot
// when someone tries to operate the door without authorisation.
type alertMessage struct {
	Action *string `json:"action"`
}

// Message results recorded per topic.
const (
	ResultAccepted     = "accepted"
	ResultDecodeError  = "decode_error"
	ResultUnknownTopic = "unknown_topic"
)
