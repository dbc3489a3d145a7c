package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	inats "github.com/treinoia/treinoia/internal/nats"
)

// Store persists audit rows. *Repository implements it.
type Store interface {
	Insert(ctx context.Context, log *AuditLog) error
}

// Consumer listens on the audit event NATS subject and persists entries to the database.
type Consumer struct {
	store       Store
	consumerMgr *inats.ConsumerManager
}

func NewConsumer(store Store, consumerMgr *inats.ConsumerManager) *Consumer {
	return &Consumer{
		store:       store,
		consumerMgr: consumerMgr,
	}
}

const consumerName = "audit-persister"

// eventNamespace seeds the row id derived from a message body, so a
// redelivered event maps onto the row it already wrote.
var eventNamespace = uuid.MustParse("6f1c2a3e-8d4b-4f7a-9c55-2b1e0d7a9f10")

// Start begins the consume loop. Blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	consumer, err := c.consumerMgr.EnsureConsumer(ctx, inats.StreamEvents, consumerName, inats.SubjectAuditEvent)
	if err != nil {
		return err
	}

	slog.Info("audit consumer started", "consumer", consumerName)
	inats.Consume(ctx, consumer, consumerName, c.handle)
	return nil
}

func (c *Consumer) handle(ctx context.Context, data []byte) error {
	var event inats.AuditEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("%w: %v", inats.ErrPoison, err)
	}

	log := FromEvent(event)
	log.ID = uuid.NewSHA1(eventNamespace, data)
	if err := c.store.Insert(ctx, log); err != nil {
		return fmt.Errorf("persisting %s: %w", event.EventType, err)
	}

	slog.Debug("audit consumer: persisted event",
		"event_type", event.EventType,
		"owner", event.OwnerUserID,
		"resource_id", event.ResourceID,
	)
	return nil
}
