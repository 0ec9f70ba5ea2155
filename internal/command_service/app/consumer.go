package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/logistimo/sms-command-gateway/internal/command_service/domain"
	"github.com/logistimo/sms-command-gateway/internal/platform/messagebroker"
)

// InboundConsumer consumes inbound message events from the broker and
// forwards them to the processing stage through a channel.
type InboundConsumer struct {
	broker     messagebroker.Client
	logger     *slog.Logger
	outputChan chan<- domain.InboundMessage
}

func NewInboundConsumer(broker messagebroker.Client, logger *slog.Logger, outputChan chan<- domain.InboundMessage) *InboundConsumer {
	return &InboundConsumer{
		broker:     broker,
		logger:     logger.With("component", "inbound_consumer"),
		outputChan: outputChan,
	}
}

// StartConsuming subscribes to subject within queueGroup and blocks until
// ctx is cancelled.
func (c *InboundConsumer) StartConsuming(ctx context.Context, subject, queueGroup string) error {
	handler := func(msg messagebroker.Message) {
		inboundReceivedCounter.WithLabelValues(subject).Inc()

		var inbound domain.InboundMessage
		if err := json.Unmarshal(msg.Data, &inbound); err != nil {
			c.logger.ErrorContext(ctx, "Failed to deserialize inbound message event",
				"error", err, "subject", msg.Subject, "data", string(msg.Data))
			return
		}
		if inbound.WireType == "" {
			inbound.WireType = domain.WireTypeSMS
		}

		c.logger.DebugContext(ctx, "Deserialized inbound message",
			"address", inbound.Address, "received_at", inbound.ReceivedAt)

		sendCtx, cancelSend := context.WithTimeout(ctx, 5*time.Second)
		defer cancelSend()

		select {
		case c.outputChan <- inbound:
		case <-sendCtx.Done():
			c.logger.ErrorContext(sendCtx, "Timed out handing inbound message to processing channel",
				"error", sendCtx.Err(), "address", inbound.Address)
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Context cancelled, dropping inbound message", "address", inbound.Address)
		}
	}

	c.logger.InfoContext(ctx, "Starting inbound message subscription", "subject", subject, "queue_group", queueGroup)
	if err := c.broker.SubscribeWithQueue(ctx, subject, queueGroup, handler); err != nil {
		c.logger.ErrorContext(ctx, "Inbound message subscription failed", "error", err, "subject", subject)
		return err
	}
	c.logger.InfoContext(ctx, "Inbound message subscription ended", "subject", subject)
	return nil
}
