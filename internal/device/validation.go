package device

import (
	"fmt"
	"slices"
	"strings"
)

// allowedActions maps each controllable channel to the actions it accepts.
var allowedActions = map[Channel][]string{
	ChannelLight:       {ActionOn, ActionOff},
	ChannelDoor:        {ActionOpen, ActionClose},
	ChannelClothesline: {ActionRetract, ActionExtend},
}

// NormalizeAction lower-cases action and checks it against the channel's
// accepted actions. The alert channel accepts no commands.
func NormalizeAction(ch Channel, action string) (string, error) {
	allowed, ok := allowedActions[ch]
	if !ok {
		return "", fmt.Errorf("%w: channel %s is not controllable", ErrInvalidAction, ch)
	}

	a := strings.ToLower(strings.TrimSpace(action))
	if !slices.Contains(allowed, a) {
		return "", fmt.Errorf("%w: %q for %s (use %s)", ErrInvalidAction, action, ch, strings.Join(allowed, " or "))
	}
	return a, nil
}

// NormalizeMode lower-cases mode and checks it is manual or auto.
func NormalizeMode(mode string) (string, error) {
	m := strings.ToLower(strings.TrimSpace(mode))
	if m != ModeManual && m != ModeAuto {
		return "", fmt.Errorf("%w: %q (use manual or auto)", ErrInvalidMode, mode)
	}
	return m, nil
}

// ValidateLight checks id is one of the configured light ids.
func ValidateLight(id int, configured []int) error {
	if !slices.Contains(configured, id) {
		return fmt.Errorf("%w: %d", ErrUnknownLight, id)
	}
	return nil
}
