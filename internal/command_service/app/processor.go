package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/logistimo/sms-command-gateway/internal/command_service/auth"
	"github.com/logistimo/sms-command-gateway/internal/command_service/dedup"
	"github.com/logistimo/sms-command-gateway/internal/command_service/domain"
	"github.com/logistimo/sms-command-gateway/internal/command_service/executor"
	"github.com/logistimo/sms-command-gateway/internal/command_service/parser"
)

// CommandProcessor runs the inbound pipeline for one message at a time:
// route, parse, authenticate, coordinate idempotency, execute, build the
// reply and dispatch it. Each message is an independent unit of work; the
// coordinator is the only shared state between concurrent units.
type CommandProcessor struct {
	authenticator *auth.Authenticator
	coordinator   *dedup.Coordinator
	executor      executor.Executor
	dispatcher    *Dispatcher
	logger        *slog.Logger
}

func NewCommandProcessor(
	authenticator *auth.Authenticator,
	coordinator *dedup.Coordinator,
	exec executor.Executor,
	dispatcher *Dispatcher,
	logger *slog.Logger,
) *CommandProcessor {
	return &CommandProcessor{
		authenticator: authenticator,
		coordinator:   coordinator,
		executor:      exec,
		dispatcher:    dispatcher,
		logger:        logger.With("component", "command_processor"),
	}
}

// Process handles one inbound message end to end. The returned error is for
// logging only; the gateway's own redelivery is the retry mechanism.
func (p *CommandProcessor) Process(ctx context.Context, msg domain.InboundMessage) error {
	start := time.Now()
	decision := DecideRoute(msg.RawText)
	routingDecisionCounter.WithLabelValues(string(decision.Target)).Inc()
	defer func() {
		commandProcessingDurationHist.WithLabelValues(string(decision.Target)).Observe(time.Since(start).Seconds())
	}()

	p.logger.DebugContext(ctx, "Routed inbound message",
		"state", StateReceived.String(), "target", decision.Target, "address", msg.Address)

	if decision.Target == domain.RouteTargetDev {
		return p.processDev(ctx, msg, decision.StrippedText)
	}
	return p.processProd(ctx, msg, decision.StrippedText)
}

// processDev forwards the stripped text to the non-production sink. No
// parsing, auth, execution or coordinator activity happens on this path.
func (p *CommandProcessor) processDev(ctx context.Context, msg domain.InboundMessage, strippedText string) error {
	if err := p.dispatcher.ForwardDev(ctx, msg, strippedText); err != nil {
		p.logger.ErrorContext(ctx, "Dev sink forward failed", "error", err, "address", msg.Address)
		commandProcessedCounter.WithLabelValues("dev_forward_error").Inc()
		return err
	}
	commandProcessedCounter.WithLabelValues("dev_forwarded").Inc()
	p.logger.InfoContext(ctx, "Dev-routed message dispatched", "state", StateDispatched.String(), "address", msg.Address)
	return nil
}

func (p *CommandProcessor) processProd(ctx context.Context, msg domain.InboundMessage, strippedText string) error {
	cmd, err := parser.Parse(strippedText)
	if err != nil {
		var perr *domain.ParseError
		if errors.As(err, &perr) {
			p.logger.WarnContext(ctx, "Failed to parse inbound command",
				"kind", perr.Kind, "detail", perr.Detail, "address", msg.Address)
			commandProcessedCounter.WithLabelValues("parse_error").Inc()
			return p.reply(ctx, BuildReply(msg.Address, nil, nil, domain.ReplyCodeMalformed), msg.Address)
		}
		return err
	}

	account, err := p.authenticator.Authenticate(ctx, cmd, msg.Address)
	if err != nil {
		var aerr *domain.AuthError
		if errors.As(err, &aerr) {
			p.logger.WarnContext(ctx, "Command failed authentication",
				"kind", aerr.Kind, "user_id", cmd.UserID, "address", msg.Address)
			commandProcessedCounter.WithLabelValues("auth_error").Inc()
			return p.reply(ctx, BuildReply(msg.Address, cmd, nil, domain.ReplyCodeUnauthorized), msg.Address)
		}
		// Account store failure: not an identity verdict, fail generically.
		p.logger.ErrorContext(ctx, "Account lookup failed during authentication", "error", err, "user_id", cmd.UserID)
		commandProcessedCounter.WithLabelValues("auth_store_error").Inc()
		return p.reply(ctx, BuildReply(msg.Address, cmd, nil, domain.ReplyCodeFailure), msg.Address)
	}

	fp := domain.FingerprintOf(cmd)
	dec, err := p.coordinator.Begin(ctx, fp)
	if err != nil {
		// Fails closed: a coordinator outage must never let a duplicate
		// execute twice.
		p.logger.ErrorContext(ctx, "Idempotency coordinator unavailable, rejecting request",
			"error", err, "user_id", cmd.UserID, "partial_id", cmd.PartialID)
		commandProcessedCounter.WithLabelValues("coordinator_error").Inc()
		return p.reply(ctx, BuildReply(msg.Address, cmd, nil, domain.ReplyCodeFailure), msg.Address)
	}
	dedupDecisionCounter.WithLabelValues(dec.Kind.String()).Inc()

	switch dec.Kind {
	case dedup.Replay:
		p.logger.InfoContext(ctx, "Duplicate of a completed request, replaying acknowledgment",
			"user_id", cmd.UserID, "partial_id", cmd.PartialID)
		commandProcessedCounter.WithLabelValues("replay").Inc()
		return p.reply(ctx, BuildReply(msg.Address, cmd, nil, ""), msg.Address)

	case dedup.RejectInProgress:
		p.logger.InfoContext(ctx, "Duplicate of an in-progress request, rejecting as transient",
			"user_id", cmd.UserID, "partial_id", cmd.PartialID)
		commandProcessedCounter.WithLabelValues("reject_in_progress").Inc()
		return p.reply(ctx, BuildReply(msg.Address, cmd, nil, domain.ReplyCodeDuplicateInProgress), msg.Address)
	}

	// This unit of work won the claim and owns execution.
	outcome, execErr := p.executor.Execute(ctx, cmd.UserID, account.DomainID, cmd.Lines)
	if execErr != nil {
		p.logger.ErrorContext(ctx, "Transaction execution failed, abandoning fingerprint",
			"error", execErr, "user_id", cmd.UserID, "partial_id", cmd.PartialID)
		if abandonErr := p.coordinator.Abandon(ctx, fp, dec.AttemptToken); abandonErr != nil {
			// The staleness timeout will reclaim the record.
			p.logger.ErrorContext(ctx, "Failed to abandon fingerprint after execution failure",
				"error", abandonErr, "user_id", cmd.UserID)
		}
		commandProcessedCounter.WithLabelValues("execution_error").Inc()
		return p.reply(ctx, BuildReply(msg.Address, cmd, nil, domain.ReplyCodeFailure), msg.Address)
	}

	replyMsg := BuildReply(msg.Address, cmd, outcome, "")

	// Commit before dispatch: once committed, any redelivery replays
	// instead of re-executing. A commit failure leaves the record
	// IN_PROGRESS for the staleness timeout; the reply still goes out.
	if err := p.coordinator.Commit(ctx, fp, dec.AttemptToken, replyMsg.Text); err != nil {
		p.logger.ErrorContext(ctx, "Failed to commit completed request",
			"error", err, "user_id", cmd.UserID, "partial_id", cmd.PartialID)
	}

	commandProcessedCounter.WithLabelValues("success").Inc()
	return p.reply(ctx, replyMsg, msg.Address)
}

// reply dispatches the synthesized reply. When the transport supplied no
// originating address there is nowhere to send it and the unit of work ends
// silently.
func (p *CommandProcessor) reply(ctx context.Context, reply domain.ReplyMessage, address string) error {
	if address == "" {
		p.logger.WarnContext(ctx, "No originating address, dropping reply", "text", reply.Text)
		commandProcessedCounter.WithLabelValues("dropped_no_address").Inc()
		return nil
	}
	if err := p.dispatcher.SendReply(ctx, reply); err != nil {
		p.logger.ErrorContext(ctx, "Failed to dispatch reply", "error", err, "address", address)
		return err
	}
	p.logger.InfoContext(ctx, "Reply dispatched", "state", StateDispatched.String(), "address", address)
	return nil
}
