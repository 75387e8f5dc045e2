package mqtt

import (
	"encoding/json"
	"fmt"
)

const maxPayloadSize = 1 << 20

// Publish sends message on topic with the configured QoS, not retained.
//
// []byte and string messages are sent as is; anything else is JSON-encoded.
// A nil error means the broker accepted the publish at the configured QoS;
// it says nothing about delivery to device controllers.
//
//	err := client.Publish(client.Topics().LightCommand(2), map[string]string{"action": "on"})
func (c *Client) Publish(topic string, message any) error {
	payload, err := encodeMessage(message)
	if err != nil {
		return err
	}
	return c.PublishRaw(topic, payload, byte(c.cfg.QoS), false)
}

// PublishRaw sends payload on topic with explicit QoS and retain flag.
func (c *Client) PublishRaw(topic string, payload []byte, qos byte, retained bool) error {
	if err := validate(topic, qos); err != nil {
		return err
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	if err := await(c.transport.Publish(topic, qos, retained, payload), defaultPublishTimeout); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}

	c.logger.Debug("mqtt published", "topic", topic, "bytes", len(payload))
	return nil
}

func encodeMessage(message any) ([]byte, error) {
	switch m := message.(type) {
	case []byte:
		return m, nil
	case string:
		return []byte(m), nil
	default:
		data, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding message: %w", ErrPublishFailed, err)
		}
		return data, nil
	}
}
