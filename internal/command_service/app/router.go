package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/logistimo/sms-command-gateway/internal/command_service/adapters/smsprovider"
	"github.com/logistimo/sms-command-gateway/internal/command_service/domain"
	"github.com/logistimo/sms-command-gateway/internal/platform/messagebroker"
)

// DevRouteSuffix is the reserved trailing token that diverts a message to
// the non-production sink. It must be separated from the command text by a
// space and is stripped before anything else sees the text.
const DevRouteSuffix = "#DEV"

// NATS subjects used by the pipeline.
const (
	SubjectInboundReceived = "sms.command.received"
	SubjectDeliveryStatus  = "sms.command.dlr"
	SubjectDevSink         = "sms.command.dev"
)

// PipelineState tracks a message through the router/dispatcher state
// machine: RECEIVED -> {ROUTED_DEV, ROUTED_PROD} -> DISPATCHED.
type PipelineState int

const (
	StateReceived PipelineState = iota
	StateRoutedDev
	StateRoutedProd
	StateDispatched
)

func (s PipelineState) String() string {
	switch s {
	case StateReceived:
		return "RECEIVED"
	case StateRoutedDev:
		return "ROUTED_DEV"
	case StateRoutedProd:
		return "ROUTED_PROD"
	case StateDispatched:
		return "DISPATCHED"
	default:
		return "UNKNOWN"
	}
}

// DecideRoute derives the routing decision deterministically from the raw
// text. Only a trailing, space-separated DevRouteSuffix selects the dev
// path; the suffix anywhere else is ordinary text.
func DecideRoute(rawText string) domain.RoutingDecision {
	trimmed := strings.TrimRight(rawText, " ")
	if trimmed == DevRouteSuffix {
		return domain.RoutingDecision{Target: domain.RouteTargetDev, StrippedText: ""}
	}
	if strings.HasSuffix(trimmed, " "+DevRouteSuffix) {
		stripped := strings.TrimRight(strings.TrimSuffix(trimmed, DevRouteSuffix), " ")
		return domain.RoutingDecision{Target: domain.RouteTargetDev, StrippedText: stripped}
	}
	return domain.RoutingDecision{Target: domain.RouteTargetProd, StrippedText: rawText}
}

// DevSink is the non-production sink for dev-routed messages.
type DevSink interface {
	Forward(ctx context.Context, msg domain.InboundMessage, strippedText string) error
}

// NATSDevSink forwards dev-routed messages to a broker subject, text
// verbatim minus the routing suffix. No business logic runs on this path.
type NATSDevSink struct {
	broker  messagebroker.Client
	subject string
	logger  *slog.Logger
}

func NewNATSDevSink(broker messagebroker.Client, subject string, logger *slog.Logger) *NATSDevSink {
	return &NATSDevSink{
		broker:  broker,
		subject: subject,
		logger:  logger.With("component", "dev_sink"),
	}
}

type devForwardPayload struct {
	Address    string    `json:"address"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

func (s *NATSDevSink) Forward(ctx context.Context, msg domain.InboundMessage, strippedText string) error {
	payload, err := json.Marshal(devForwardPayload{
		Address:    msg.Address,
		Text:       strippedText,
		ReceivedAt: msg.ReceivedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal dev forward payload: %w", err)
	}
	if err := s.broker.Publish(ctx, s.subject, payload); err != nil {
		return fmt.Errorf("failed to forward to dev sink: %w", err)
	}
	s.logger.InfoContext(ctx, "Forwarded message to dev sink", "subject", s.subject, "address", msg.Address)
	return nil
}

// Dispatcher hands replies (and dev forwards) to the outbound transport and
// records dispatched replies in the outbox for later DLR correlation.
// Transport delivery failures are logged, never retried here; the inbound
// gateway's redelivery plus the dedup coordinator cover retries.
type Dispatcher struct {
	provider   smsprovider.Adapter
	outboxRepo domain.OutboxRepository
	devSink    DevSink
	logger     *slog.Logger
}

func NewDispatcher(provider smsprovider.Adapter, outboxRepo domain.OutboxRepository, devSink DevSink, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		provider:   provider,
		outboxRepo: outboxRepo,
		devSink:    devSink,
		logger:     logger.With("component", "dispatcher"),
	}
}

// SendReply records the reply in the outbox and submits it to the provider.
func (d *Dispatcher) SendReply(ctx context.Context, reply domain.ReplyMessage) error {
	now := time.Now().UTC()
	outboxMsg := &domain.OutboxMessage{
		ID:           uuid.New(),
		Recipient:    reply.Address,
		Content:      reply.Text,
		Status:       domain.StatusDispatched,
		ProviderName: d.provider.GetName(),
		CreatedAt:    now,
	}

	// An outbox write failure only costs DLR correlation; the reply itself
	// still goes out.
	recorded := true
	if err := d.outboxRepo.Create(ctx, outboxMsg); err != nil {
		recorded = false
		d.logger.ErrorContext(ctx, "Failed to record reply in outbox, sending without DLR correlation",
			"error", err, "recipient", reply.Address)
	}

	resp, err := d.provider.Send(ctx, smsprovider.SMSRequestData{
		InternalMessageID: outboxMsg.ID.String(),
		Recipient:         reply.Address,
		Content:           reply.Text,
	})
	sentAt := time.Now().UTC()

	if err != nil || resp == nil || !resp.Success {
		errMsg := "provider send failed"
		providerStatus := ""
		if err != nil {
			errMsg = err.Error()
		} else if resp != nil {
			errMsg = resp.ErrorMessage
			providerStatus = resp.ProviderStatus
		}
		d.logger.ErrorContext(ctx, "Failed to send reply via provider",
			"error", errMsg, "provider", d.provider.GetName(), "outbox_message_id", outboxMsg.ID)
		if recorded {
			if updErr := d.outboxRepo.UpdatePostSendInfo(ctx, outboxMsg.ID, domain.StatusFailed,
				sql.NullString{}, nullString(providerStatus), sentAt, nullString(errMsg)); updErr != nil {
				d.logger.ErrorContext(ctx, "Failed to update outbox after send failure", "error", updErr, "outbox_message_id", outboxMsg.ID)
			}
		}
		return fmt.Errorf("reply dispatch failed: %s", errMsg)
	}

	d.logger.InfoContext(ctx, "Reply submitted to provider",
		"provider", d.provider.GetName(),
		"provider_message_id", resp.ProviderMessageID,
		"outbox_message_id", outboxMsg.ID)

	if recorded {
		if updErr := d.outboxRepo.UpdatePostSendInfo(ctx, outboxMsg.ID, domain.StatusSentToProvider,
			nullString(resp.ProviderMessageID), nullString(resp.ProviderStatus), sentAt, sql.NullString{}); updErr != nil {
			d.logger.ErrorContext(ctx, "Failed to update outbox after provider submission", "error", updErr, "outbox_message_id", outboxMsg.ID)
		}
	}
	return nil
}

// ForwardDev sends a dev-routed message to the non-production sink.
func (d *Dispatcher) ForwardDev(ctx context.Context, msg domain.InboundMessage, strippedText string) error {
	return d.devSink.Forward(ctx, msg, strippedText)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
