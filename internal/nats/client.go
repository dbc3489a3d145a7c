package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/treinoia/treinoia/internal/config"
)

const connectTimeout = 5 * time.Second

// Client wraps a NATS connection with JetStream support.
type Client struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// eventStream keeps a week of usage and audit events. Usage events are high
// volume, so the stream is also capped by size.
func eventStream() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:       StreamEvents,
		Subjects:   []string{SubjectUsageEvent, SubjectAuditEvent},
		Retention:  jetstream.LimitsPolicy,
		Storage:    jetstream.FileStorage,
		MaxAge:     7 * 24 * time.Hour,
		MaxBytes:   1 << 30,
		Discard:    jetstream.DiscardOld,
		Duplicates: 2 * time.Minute,
	}
}

// NewClient connects to NATS and ensures the event stream exists. The
// connection keeps reconnecting in the background after a drop.
func NewClient(ctx context.Context, cfg config.NATSConfig) (*Client, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("treinoia-api"),
		nats.Timeout(connectTimeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	streamCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if _, err := js.CreateOrUpdateStream(streamCtx, eventStream()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensuring stream %s: %w", StreamEvents, err)
	}

	slog.Info("connected to NATS", "url", nc.ConnectedUrl(), "stream", StreamEvents)
	return &Client{conn: nc, js: js}, nil
}

func (c *Client) JetStream() jetstream.JetStream {
	return c.js
}

// Healthy reports whether the connection is currently up.
func (c *Client) Healthy() bool {
	return c != nil && c.conn != nil && c.conn.IsConnected()
}

// Close drains pending publishes before closing.
func (c *Client) Close() {
	if c == nil || c.conn == nil {
		return
	}
	if err := c.conn.Drain(); err != nil {
		slog.Warn("draining NATS connection", "error", err)
	}
}
