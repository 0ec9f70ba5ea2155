package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/logistimo/sms-command-gateway/internal/command_service/domain"
	"github.com/logistimo/sms-command-gateway/internal/platform/messagebroker"
)

// Subjects the gateway publishes to. The command processor consumes them on
// the other side of the broker.
const (
	subjectInboundReceived = "sms.command.received"
	subjectDeliveryStatus  = "sms.command.dlr"
)

// IngestHandler accepts provider callbacks, validates them and hands them to
// the broker. No command semantics live here; the gateway's only job is to
// get the message onto the queue and acknowledge fast.
type IngestHandler struct {
	broker   messagebroker.Client
	logger   *slog.Logger
	validate *validator.Validate
}

func NewIngestHandler(broker messagebroker.Client, logger *slog.Logger, validate *validator.Validate) *IngestHandler {
	return &IngestHandler{
		broker:   broker,
		logger:   logger.With("handler", "ingest"),
		validate: validate,
	}
}

// HandleInboundSMS handles incoming SMS callbacks from providers.
func (h *IngestHandler) HandleInboundSMS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	providerName := chi.URLParam(r, "provider_name")
	if providerName == "" {
		logger.WarnContext(ctx, "Provider name missing in inbound SMS callback URL")
		http.Error(w, "Provider name is required", http.StatusBadRequest)
		return
	}
	logger = logger.With("provider_name", providerName)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read request body for inbound SMS", "error", err)
		http.Error(w, "Failed to read request body", http.StatusInternalServerError)
		return
	}
	defer r.Body.Close()

	var req ProviderInboundSMSRequest
	if err := json.Unmarshal(body, &req); err != nil {
		logger.ErrorContext(ctx, "Failed to decode inbound SMS request JSON", "error", err, "body", string(body))
		http.Error(w, "Invalid JSON format: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.validate.StructCtx(ctx, req); err != nil {
		logger.ErrorContext(ctx, "Failed to validate inbound SMS request", "error", err)
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	receivedAt := req.Timestamp
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	inbound := domain.InboundMessage{
		WireType:   domain.WireTypeSMS,
		RawText:    req.Text,
		Address:    req.From,
		ReceivedAt: receivedAt,
	}
	payload, err := json.Marshal(inbound)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to marshal inbound message for broker", "error", err)
		http.Error(w, "Internal server error preparing data for queue", http.StatusInternalServerError)
		return
	}

	if err := h.broker.Publish(ctx, subjectInboundReceived, payload); err != nil {
		logger.ErrorContext(ctx, "Failed to publish inbound SMS to broker", "error", err, "subject", subjectInboundReceived)
		http.Error(w, "Failed to queue inbound SMS for processing", http.StatusInternalServerError)
		return
	}
	ingestAcceptedCounter.WithLabelValues("inbound_sms").Inc()

	logger.InfoContext(ctx, "Inbound SMS queued for processing",
		"subject", subjectInboundReceived, "address", req.From, "provider_message_id", req.MessageID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "inbound SMS queued for processing"})
}

// HandleDLRCallback handles delivery report callbacks from providers.
func (h *IngestHandler) HandleDLRCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	providerName := chi.URLParam(r, "provider_name")
	if providerName == "" {
		logger.WarnContext(ctx, "Provider name missing in DLR callback URL")
		http.Error(w, "Provider name is required", http.StatusBadRequest)
		return
	}
	logger = logger.With("provider_name", providerName)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read request body for DLR", "error", err)
		http.Error(w, "Failed to read request body", http.StatusInternalServerError)
		return
	}
	defer r.Body.Close()

	var req ProviderDLRCallbackRequest
	if err := json.Unmarshal(body, &req); err != nil {
		logger.ErrorContext(ctx, "Failed to decode DLR request JSON", "error", err, "body", string(body))
		http.Error(w, "Invalid JSON format: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.validate.StructCtx(ctx, req); err != nil {
		logger.ErrorContext(ctx, "Failed to validate DLR request", "error", err)
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	upd := domain.DeliveryStatusUpdate{
		ExternalMessageID: req.MessageID,
		StatusCode:        req.StatusCode,
		Timestamp:         req.Timestamp,
	}
	payload, err := json.Marshal(upd)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to marshal delivery status update for broker", "error", err)
		http.Error(w, "Internal server error preparing data for queue", http.StatusInternalServerError)
		return
	}

	if err := h.broker.Publish(ctx, subjectDeliveryStatus, payload); err != nil {
		logger.ErrorContext(ctx, "Failed to publish DLR to broker", "error", err, "subject", subjectDeliveryStatus)
		http.Error(w, "Failed to queue DLR for processing", http.StatusInternalServerError)
		return
	}
	ingestAcceptedCounter.WithLabelValues("dlr").Inc()

	logger.InfoContext(ctx, "DLR queued for processing",
		"subject", subjectDeliveryStatus, "provider_message_id", req.MessageID, "status_code", req.StatusCode)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "DLR queued for processing"})
}
