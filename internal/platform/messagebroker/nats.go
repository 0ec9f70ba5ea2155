package messagebroker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Message is the broker-neutral view of a consumed message handed to
// subscription handlers.
type Message struct {
	Subject string
	Data    []byte
}

// Client is the messaging boundary used by services. Implemented by the
// NATS client below; tests substitute mocks.
type Client interface {
	Publish(ctx context.Context, subject string, data []byte) error
	// SubscribeWithQueue subscribes with a queue group and blocks until ctx
	// is cancelled; handler is invoked once per delivered message.
	SubscribeWithQueue(ctx context.Context, subject, queueGroup string, handler func(Message)) error
	Close()
}

// NATSClient wraps a core NATS connection.
type NATSClient struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewNATSClient connects to NATS with reconnect handling.
// natsURL example: "nats://localhost:4222".
func NewNATSClient(natsURL string, logger *slog.Logger, appName string) (*NATSClient, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name(appName),
		nats.Timeout(5*time.Second),
		nats.PingInterval(20*time.Second),
		nats.MaxPingsOutstanding(3),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Error("NATS connection closed", "error", nc.LastError())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSClient{conn: nc, logger: logger}, nil
}

// Publish publishes data to subject. The context is accepted for interface
// symmetry; core NATS publishes are fire-and-forget.
func (c *NATSClient) Publish(ctx context.Context, subject string, data []byte) error {
	if err := c.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %q: %w", subject, err)
	}
	return nil
}

// SubscribeWithQueue subscribes to subject within queueGroup and blocks
// until ctx is cancelled, then drains the subscription.
func (c *NATSClient) SubscribeWithQueue(ctx context.Context, subject, queueGroup string, handler func(Message)) error {
	sub, err := c.conn.QueueSubscribe(subject, queueGroup, func(msg *nats.Msg) {
		handler(Message{Subject: msg.Subject, Data: msg.Data})
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %q: %w", subject, err)
	}
	c.logger.Info("NATS queue subscription active", "subject", subject, "queue_group", queueGroup)

	<-ctx.Done()

	if err := sub.Drain(); err != nil {
		c.logger.Warn("Failed to drain NATS subscription", "error", err, "subject", subject)
	}
	return nil
}

// Close drains and closes the underlying connection.
func (c *NATSClient) Close() {
	if c.conn != nil && !c.conn.IsClosed() {
		_ = c.conn.Drain()
		c.conn.Close()
	}
}
