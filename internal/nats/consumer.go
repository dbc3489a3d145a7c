package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

const (
	fetchBatch = 10
	maxDeliver = 5
	ackWait    = 30 * time.Second
)

// ErrPoison marks a message that can never be processed. Consume terminates
// it instead of asking for redelivery.
var ErrPoison = errors.New("unprocessable event")

// ConsumerManager handles durable consumer creation and retrieval.
type ConsumerManager struct {
	js jetstream.JetStream
}

func NewConsumerManager(js jetstream.JetStream) *ConsumerManager {
	return &ConsumerManager{js: js}
}

// EnsureConsumer creates or updates a durable pull consumer. Redelivery is
// bounded so one failing event cannot stall the subject forever.
func (cm *ConsumerManager) EnsureConsumer(ctx context.Context, stream, name, filterSubject string) (jetstream.Consumer, error) {
	cfg := jetstream.ConsumerConfig{
		Durable:       name,
		FilterSubject: filterSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       ackWait,
		MaxDeliver:    maxDeliver,
	}

	consumer, err := cm.js.CreateOrUpdateConsumer(ctx, stream, cfg)
	if err != nil {
		return nil, fmt.Errorf("ensuring consumer %s on %s: %w", name, stream, err)
	}
	return consumer, nil
}

// Handler processes one message payload.
type Handler func(ctx context.Context, data []byte) error

// Consume pulls batches from consumer until ctx is cancelled. A nil error
// acks, ErrPoison terminates, anything else naks for redelivery.
func Consume(ctx context.Context, consumer jetstream.Consumer, name string, handle Handler) {
	for {
		if ctx.Err() != nil {
			return
		}

		batch, err := consumer.Fetch(fetchBatch, jetstream.FetchMaxWait(FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Debug("nats: fetch failed", "consumer", name, "error", err)
			continue
		}

		for msg := range batch.Messages() {
			settle(msg, name, handle(ctx, msg.Data()))
		}
		if err := batch.Error(); err != nil && !errors.Is(err, jetstream.ErrNoMessages) && ctx.Err() == nil {
			slog.Debug("nats: batch ended with error", "consumer", name, "error", err)
		}
	}
}

// message is the part of jetstream.Msg that settle needs.
type message interface {
	Ack() error
	Nak() error
	Term() error
}

func settle(msg message, name string, err error) {
	var ackErr error
	switch {
	case err == nil:
		ackErr = msg.Ack()
	case errors.Is(err, ErrPoison):
		slog.Error("nats: dropping unprocessable event", "consumer", name, "error", err)
		ackErr = msg.Term()
	default:
		slog.Warn("nats: handler failed, will redeliver", "consumer", name, "error", err)
		ackErr = msg.Nak()
	}
	if ackErr != nil {
		slog.Warn("nats: settling message", "consumer", name, "error", ackErr)
	}
}
