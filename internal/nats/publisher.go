package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// EventPublisher is what the rest of the API depends on, so that a missing
// NATS server degrades to NopPublisher instead of failing requests.
type EventPublisher interface {
	PublishUsageEvent(ctx context.Context, event UsageEvent) error
	PublishAuditEvent(ctx context.Context, event AuditEvent) error
}

// Publisher provides typed methods for publishing events to NATS JetStream.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a new Publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// PublishUsageEvent publishes the outcome of one AI gateway call.
func (p *Publisher) PublishUsageEvent(ctx context.Context, event UsageEvent) error {
	return p.publish(ctx, SubjectUsageEvent, event)
}

// PublishAuditEvent publishes an audit event.
func (p *Publisher) PublishAuditEvent(ctx context.Context, event AuditEvent) error {
	return p.publish(ctx, SubjectAuditEvent, event)
}

func (p *Publisher) publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	_, err = p.js.Publish(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishUsageEvent(context.Context, UsageEvent) error { return nil }
func (NopPublisher) PublishAuditEvent(context.Context, AuditEvent) error { return nil }
