// Package dedup enforces at-most-once execution per request fingerprint.
// The coordinator is the only shared mutable state in the pipeline; all
// synchronization lives in the RecordStore's atomic claim.
package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/logistimo/sms-command-gateway/internal/command_service/domain"
)

// DecisionKind is the outcome of Begin for one delivery.
type DecisionKind int

const (
	// Proceed: this caller won the claim and must execute, then Commit or
	// Abandon.
	Proceed DecisionKind = iota
	// RejectInProgress: another delivery of the same fingerprint is still
	// executing.
	RejectInProgress
	// Replay: the fingerprint already completed within the retention
	// window; answer from the cached outcome without re-executing.
	Replay
)

func (k DecisionKind) String() string {
	switch k {
	case Proceed:
		return "PROCEED"
	case RejectInProgress:
		return "REJECT_IN_PROGRESS"
	case Replay:
		return "REPLAY"
	default:
		return "UNKNOWN"
	}
}

// Decision is returned by Begin. AttemptToken is set only for Proceed and
// must be presented to Commit/Abandon; CachedOutcome is set only for Replay.
type Decision struct {
	Kind          DecisionKind
	AttemptToken  string
	CachedOutcome string
}

// Coordinator maps fingerprints to their lifecycle state through an
// injectable RecordStore.
type Coordinator struct {
	store      domain.RecordStore
	staleAfter time.Duration
	retention  time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

func NewCoordinator(store domain.RecordStore, staleAfter, retention time.Duration, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:      store,
		staleAfter: staleAfter,
		retention:  retention,
		logger:     logger.With("component", "idempotency_coordinator"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Begin is the single authoritative transition point into IN_PROGRESS. For
// any number of concurrent calls sharing a fingerprint, exactly one gets
// Proceed; the rest observe RejectInProgress or Replay. If the store is
// unreachable, Begin fails closed with ErrRecordStoreUnavailable wrapped:
// a storage outage must never let a duplicate through.
func (c *Coordinator) Begin(ctx context.Context, fp domain.Fingerprint) (Decision, error) {
	key := fp.Key()
	token := uuid.NewString()
	now := c.now()

	claimed, existing, err := c.store.Claim(ctx, key, token, now, now.Add(-c.staleAfter))
	if err != nil {
		c.logger.ErrorContext(ctx, "Record store claim failed, rejecting request",
			"error", err, "fingerprint", key)
		return Decision{}, fmt.Errorf("%w: %w", domain.ErrRecordStoreUnavailable, err)
	}

	if claimed {
		return Decision{Kind: Proceed, AttemptToken: token}, nil
	}

	// The blocking record can vanish between the claim attempt and the
	// read; treating that as a transient duplicate is always safe.
	if existing == nil || existing.State == domain.IdempotencyInProgress {
		return Decision{Kind: RejectInProgress}, nil
	}

	return Decision{Kind: Replay, CachedOutcome: existing.Outcome}, nil
}

// Commit transitions the record owned by attemptToken to COMPLETED and
// caches outcome for replay until the retention window lapses.
func (c *Coordinator) Commit(ctx context.Context, fp domain.Fingerprint, attemptToken, outcome string) error {
	expiresAt := c.now().Add(c.retention)
	if err := c.store.Complete(ctx, fp.Key(), attemptToken, outcome, expiresAt); err != nil {
		return fmt.Errorf("failed to commit idempotency record: %w", err)
	}
	return nil
}

// Abandon releases the record owned by attemptToken after an irrecoverable
// execution failure so a later retry can proceed. A crashed worker that
// never abandons is covered by the staleness timeout.
func (c *Coordinator) Abandon(ctx context.Context, fp domain.Fingerprint, attemptToken string) error {
	if err := c.store.Release(ctx, fp.Key(), attemptToken); err != nil {
		return fmt.Errorf("failed to abandon idempotency record: %w", err)
	}
	return nil
}

// RunPurgeLoop deletes expired completed records every interval until ctx
// is cancelled. Expired fingerprints behave as brand-new requests.
func (c *Coordinator) RunPurgeLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			purged, err := c.store.PurgeExpired(ctx, c.now())
			if err != nil {
				c.logger.ErrorContext(ctx, "Failed to purge expired idempotency records", "error", err)
				continue
			}
			if purged > 0 {
				c.logger.InfoContext(ctx, "Purged expired idempotency records", "count", purged)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
