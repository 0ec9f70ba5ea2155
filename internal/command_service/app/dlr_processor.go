package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/logistimo/sms-command-gateway/internal/command_service/domain"
	"github.com/logistimo/sms-command-gateway/internal/platform/messagebroker"
)

// Provider-side delivery status codes carried in DeliveryStatusUpdate.
const (
	dlrCodeDelivered = 1
	dlrCodeFailed    = 2
)

// DeliveryStatusProcessor applies asynchronous delivery status updates to
// dispatched replies. Correlation is by the provider's own message id,
// fully decoupled from the fingerprint-based dedup state.
type DeliveryStatusProcessor struct {
	outboxRepo domain.OutboxRepository
	broker     messagebroker.Client
	logger     *slog.Logger
}

func NewDeliveryStatusProcessor(outboxRepo domain.OutboxRepository, broker messagebroker.Client, logger *slog.Logger) *DeliveryStatusProcessor {
	return &DeliveryStatusProcessor{
		outboxRepo: outboxRepo,
		broker:     broker,
		logger:     logger.With("component", "delivery_status_processor"),
	}
}

// ProcessUpdate applies one status update. Unknown provider message ids and
// unknown status codes are logged and dropped; there is nothing to retry.
func (p *DeliveryStatusProcessor) ProcessUpdate(ctx context.Context, upd domain.DeliveryStatusUpdate) error {
	var status domain.DeliveryStatus
	switch upd.StatusCode {
	case dlrCodeDelivered:
		status = domain.StatusDelivered
	case dlrCodeFailed:
		status = domain.StatusFailed
	default:
		p.logger.WarnContext(ctx, "Unknown delivery status code, dropping update",
			"status_code", upd.StatusCode, "external_message_id", upd.ExternalMessageID)
		deliveryStatusCounter.WithLabelValues("unknown_code").Inc()
		return nil
	}

	err := p.outboxRepo.UpdateStatusByProviderMessageID(ctx, upd.ExternalMessageID, status, upd.Timestamp)
	if err != nil {
		if errors.Is(err, domain.ErrOutboxMessageNotFound) {
			p.logger.WarnContext(ctx, "Delivery status update for unknown provider message id",
				"external_message_id", upd.ExternalMessageID, "status", status.String())
			deliveryStatusCounter.WithLabelValues("unmatched").Inc()
			return nil
		}
		p.logger.ErrorContext(ctx, "Failed to apply delivery status update",
			"error", err, "external_message_id", upd.ExternalMessageID)
		deliveryStatusCounter.WithLabelValues("error").Inc()
		return err
	}

	p.logger.InfoContext(ctx, "Applied delivery status update",
		"external_message_id", upd.ExternalMessageID, "status", status.String())
	deliveryStatusCounter.WithLabelValues(status.String()).Inc()
	return nil
}

// StartConsuming subscribes to the delivery status subject and applies
// updates until ctx is cancelled.
func (p *DeliveryStatusProcessor) StartConsuming(ctx context.Context, subject, queueGroup string) error {
	handler := func(msg messagebroker.Message) {
		var upd domain.DeliveryStatusUpdate
		if err := json.Unmarshal(msg.Data, &upd); err != nil {
			p.logger.ErrorContext(ctx, "Failed to deserialize delivery status update",
				"error", err, "subject", msg.Subject, "data", string(msg.Data))
			return
		}
		if err := p.ProcessUpdate(ctx, upd); err != nil {
			p.logger.ErrorContext(ctx, "Delivery status update processing failed",
				"error", err, "external_message_id", upd.ExternalMessageID)
		}
	}

	p.logger.InfoContext(ctx, "Starting delivery status subscription", "subject", subject, "queue_group", queueGroup)
	return p.broker.SubscribeWithQueue(ctx, subject, queueGroup, handler)
}
