package domain

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus is the normalized delivery state of a dispatched reply.
type DeliveryStatus int

const (
	StatusDispatched DeliveryStatus = iota
	StatusSentToProvider
	StatusDelivered
	StatusFailed
)

func (s DeliveryStatus) String() string {
	switch s {
	case StatusDispatched:
		return "DISPATCHED"
	case StatusSentToProvider:
		return "SENT_TO_PROVIDER"
	case StatusDelivered:
		return "DELIVERED"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// OutboxMessage records one dispatched reply so later delivery reports can
// be correlated by the provider's message id.
type OutboxMessage struct {
	ID                uuid.UUID
	Recipient         string
	Content           string
	Status            DeliveryStatus
	ProviderName      string
	ProviderMessageID sql.NullString
	ProviderStatus    sql.NullString
	ErrorDescription  sql.NullString
	CreatedAt         time.Time
	SentAt            sql.NullTime
	DeliveredAt       sql.NullTime
}

// OutboxRepository persists dispatched replies and applies delivery status
// updates.
type OutboxRepository interface {
	Create(ctx context.Context, msg *OutboxMessage) error

	// UpdatePostSendInfo records the provider submission outcome for msg id.
	UpdatePostSendInfo(ctx context.Context, id uuid.UUID, status DeliveryStatus, providerMessageID, providerStatus sql.NullString, sentAt time.Time, errorDescription sql.NullString) error

	// UpdateStatusByProviderMessageID applies an asynchronous delivery
	// status update, correlated by the provider's own message id. Returns
	// ErrOutboxMessageNotFound when no dispatched reply matches.
	UpdateStatusByProviderMessageID(ctx context.Context, providerMessageID string, status DeliveryStatus, at time.Time) error
}
