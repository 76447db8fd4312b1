package mqtt

import (
	"encoding/json"
	"fmt"
)

// maxPayloadSize caps message bodies at 1MB.
const maxPayloadSize = 1 << 20

// Publish sends payload to topic.
//
// Parameters:
//   - topic: Destination topic, see Topics
//   - payload: Message body, at most 1MB
//   - qos: 0, 1 or 2
//   - retained: Whether the broker keeps the message for new subscribers.
//     Use for state (status, online), not for events.
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected or ErrPublishFailed
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishJSON marshals v and publishes it with the configured QoS.
func (c *Client) PublishJSON(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encoding payload: %w", ErrPublishFailed, err)
	}
	return c.Publish(topic, payload, byte(c.cfg.QoS), retained)
}

// PublishStatus publishes a retained status snapshot.
func (c *Client) PublishStatus(status any) error {
	return c.PublishJSON(c.topics.Status(), status, true)
}

// PublishEvent publishes a non-retained event of the given kind.
func (c *Client) PublishEvent(kind string, payload any) error {
	return c.PublishJSON(c.topics.Event(kind), payload, false)
}
