package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/logistimo/sms-command-gateway/internal/command_service/domain"
)

type pgOutboxRepository struct {
	db *pgxpool.Pool
}

func NewPgOutboxRepository(db *pgxpool.Pool) domain.OutboxRepository {
	return &pgOutboxRepository{db: db}
}

func (r *pgOutboxRepository) Create(ctx context.Context, msg *domain.OutboxMessage) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO sms_command_outbox (
			id, recipient, content, status, provider_name,
			provider_message_id, provider_status, error_description,
			created_at, sent_at, delivered_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		msg.ID, msg.Recipient, msg.Content, msg.Status.String(), msg.ProviderName,
		msg.ProviderMessageID, msg.ProviderStatus, msg.ErrorDescription,
		msg.CreatedAt, msg.SentAt, msg.DeliveredAt,
	)
	return err
}

func (r *pgOutboxRepository) UpdatePostSendInfo(ctx context.Context, id uuid.UUID, status domain.DeliveryStatus, providerMessageID, providerStatus sql.NullString, sentAt time.Time, errorDescription sql.NullString) error {
	query := `
		UPDATE sms_command_outbox
		SET status = $2,
		    provider_message_id = COALESCE($3, provider_message_id),
		    provider_status = COALESCE($4, provider_status),
		    sent_at = $5,
		    error_description = COALESCE($6, error_description)
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query, id, status.String(), providerMessageID, providerStatus, sentAt, errorDescription)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOutboxMessageNotFound
	}
	return nil
}

func (r *pgOutboxRepository) UpdateStatusByProviderMessageID(ctx context.Context, providerMessageID string, status domain.DeliveryStatus, at time.Time) error {
	query := `
		UPDATE sms_command_outbox
		SET status = $2,
		    delivered_at = CASE WHEN $2 = $3 THEN $4 ELSE delivered_at END
		WHERE provider_message_id = $1
	`
	tag, err := r.db.Exec(ctx, query,
		providerMessageID, status.String(), domain.StatusDelivered.String(), at,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOutboxMessageNotFound
	}
	return nil
}
