package domain

import (
	"context"
	"time"
)

// IdempotencyState is the lifecycle state of a fingerprint's record.
type IdempotencyState string

const (
	IdempotencyInProgress IdempotencyState = "IN_PROGRESS"
	IdempotencyCompleted  IdempotencyState = "COMPLETED"
)

// IdempotencyRecord tracks one logical request. It is written at most twice
// per fingerprint: the claim that creates it IN_PROGRESS and the completion
// that caches the outcome. Completed records expire at ExpiresAt.
type IdempotencyRecord struct {
	Fingerprint  string
	State        IdempotencyState
	AttemptToken string
	Outcome      string
	StartedAt    time.Time
	ExpiresAt    time.Time
}

// RecordStore is the injectable key-value store behind the idempotency
// coordinator. Implementations must make Claim a single atomic
// check-and-set: under concurrent Claim calls for one fingerprint, exactly
// one caller may observe claimed=true until the record is completed,
// released, or stale.
type RecordStore interface {
	// Claim atomically creates an IN_PROGRESS record owned by attemptToken,
	// or takes over an existing record that is IN_PROGRESS and started
	// before staleBefore, or COMPLETED and expired at now. It returns
	// claimed=true in those cases. Otherwise it returns claimed=false and a
	// snapshot of the blocking record (which may be nil if the record
	// vanished between the claim attempt and the read).
	Claim(ctx context.Context, fingerprint, attemptToken string, now, staleBefore time.Time) (claimed bool, existing *IdempotencyRecord, err error)

	// Complete transitions the record to COMPLETED with the cached outcome,
	// expiring at expiresAt. Fails with ErrNotAttemptOwner unless the record
	// is IN_PROGRESS and owned by attemptToken.
	Complete(ctx context.Context, fingerprint, attemptToken, outcome string, expiresAt time.Time) error

	// Release deletes the record if it is still IN_PROGRESS and owned by
	// attemptToken, so a later retry can proceed. Releasing a record that is
	// no longer owned is a no-op.
	Release(ctx context.Context, fingerprint, attemptToken string) error

	// PurgeExpired deletes COMPLETED records whose expiry is at or before
	// now and returns how many were removed.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
