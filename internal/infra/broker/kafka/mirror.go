package kafka

import (
	"context"
	"log/slog"

	"parley/internal/app/policies"
	"parley/internal/infra/bus"
)

// Mirror decorates a publisher so every event is also produced to a Kafka
// topic, keyed by channel. The live bus stays fire-and-forget; the mirror
// gives operators a durable trail of what was (attempted to be) delivered.
// Kafka failures are logged and never surface to the publishing operation.
type Mirror struct {
	Inner    policies.Publisher
	Producer *Producer
	Topic    string
	Logger   *slog.Logger
}

func (m Mirror) Publish(ctx context.Context, channel, event string, payload any) error {
	err := m.Inner.Publish(ctx, channel, event, payload)
	if m.Producer != nil {
		ev, mErr := bus.Envelope(channel, event, payload)
		if mErr == nil {
			mErr = m.Producer.Produce(m.Topic, ev)
		}
		if mErr != nil && m.Logger != nil {
			m.Logger.Warn("kafka event mirror failed", "topic", m.Topic, "channel", channel, "error", mErr)
		}
	}
	return err
}
