package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Publisher provides typed methods for publishing relay events to
// JetStream. A nil *Publisher is valid and publishes nothing, so the
// relay runs unchanged when NATS is not configured.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a new Publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// PublishTurnProcessed publishes a pipeline-completion event.
func (p *Publisher) PublishTurnProcessed(ctx context.Context, event TurnProcessedEvent) error {
	if p == nil {
		return nil
	}
	return p.publish(ctx, SubjectTurnProcessed, event)
}

// PublishToolExecuted publishes a tool dispatch event.
func (p *Publisher) PublishToolExecuted(ctx context.Context, event ToolExecutedEvent) error {
	if p == nil {
		return nil
	}
	return p.publish(ctx, SubjectToolExecuted, event)
}

func (p *Publisher) publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	if _, err := p.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}
