package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/logistimo/sms-command-gateway/internal/command_service/domain"
)

// pgRecordStore implements domain.RecordStore on the sms_command_dedup
// table. The claim is a single INSERT ... ON CONFLICT statement so that
// concurrent claims for one fingerprint serialize on the row; no advisory
// locks or transactions are needed.
type pgRecordStore struct {
	db *pgxpool.Pool
}

func NewPgRecordStore(db *pgxpool.Pool) domain.RecordStore {
	return &pgRecordStore{db: db}
}

func (r *pgRecordStore) Claim(ctx context.Context, fingerprint, attemptToken string, now, staleBefore time.Time) (bool, *domain.IdempotencyRecord, error) {
	// The ON CONFLICT update fires only when the existing row is reclaimable:
	// IN_PROGRESS but stale, or COMPLETED but expired. Otherwise zero rows
	// are affected and the caller reads the blocking row.
	query := `
		INSERT INTO sms_command_dedup (fingerprint, state, attempt_token, outcome, started_at, expires_at)
		VALUES ($1, $2, $3, NULL, $4, NULL)
		ON CONFLICT (fingerprint) DO UPDATE
		SET state = EXCLUDED.state,
		    attempt_token = EXCLUDED.attempt_token,
		    outcome = NULL,
		    started_at = EXCLUDED.started_at,
		    expires_at = NULL
		WHERE (sms_command_dedup.state = $2 AND sms_command_dedup.started_at < $5)
		   OR (sms_command_dedup.state = $6 AND sms_command_dedup.expires_at <= $4)
	`
	tag, err := r.db.Exec(ctx, query,
		fingerprint, domain.IdempotencyInProgress, attemptToken, now, staleBefore, domain.IdempotencyCompleted,
	)
	if err != nil {
		return false, nil, err
	}
	if tag.RowsAffected() > 0 {
		return true, nil, nil
	}

	existing, err := r.getByFingerprint(ctx, fingerprint)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost to a concurrent release; report no snapshot.
			return false, nil, nil
		}
		return false, nil, err
	}
	return false, existing, nil
}

func (r *pgRecordStore) getByFingerprint(ctx context.Context, fingerprint string) (*domain.IdempotencyRecord, error) {
	rec := &domain.IdempotencyRecord{}
	var outcome *string
	var expiresAt *time.Time

	query := `
		SELECT fingerprint, state, attempt_token, outcome, started_at, expires_at
		FROM sms_command_dedup WHERE fingerprint = $1
	`
	err := r.db.QueryRow(ctx, query, fingerprint).Scan(
		&rec.Fingerprint, &rec.State, &rec.AttemptToken, &outcome, &rec.StartedAt, &expiresAt,
	)
	if err != nil {
		return nil, err
	}
	if outcome != nil {
		rec.Outcome = *outcome
	}
	if expiresAt != nil {
		rec.ExpiresAt = *expiresAt
	}
	return rec, nil
}

func (r *pgRecordStore) Complete(ctx context.Context, fingerprint, attemptToken, outcome string, expiresAt time.Time) error {
	query := `
		UPDATE sms_command_dedup
		SET state = $3, outcome = $4, expires_at = $5
		WHERE fingerprint = $1 AND attempt_token = $2 AND state = $6
	`
	tag, err := r.db.Exec(ctx, query,
		fingerprint, attemptToken, domain.IdempotencyCompleted, outcome, expiresAt, domain.IdempotencyInProgress,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotAttemptOwner
	}
	return nil
}

func (r *pgRecordStore) Release(ctx context.Context, fingerprint, attemptToken string) error {
	query := `
		DELETE FROM sms_command_dedup
		WHERE fingerprint = $1 AND attempt_token = $2 AND state = $3
	`
	_, err := r.db.Exec(ctx, query, fingerprint, attemptToken, domain.IdempotencyInProgress)
	return err
}

func (r *pgRecordStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM sms_command_dedup
		WHERE state = $1 AND expires_at <= $2
	`
	tag, err := r.db.Exec(ctx, query, domain.IdempotencyCompleted, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
