package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/logistimo/sms-command-gateway/internal/command_service/domain"
)

// MemStore is a mutex-guarded in-memory RecordStore. It backs tests and
// single-process runs; production deployments use the PostgreSQL store.
type MemStore struct {
	mu      sync.Mutex
	records map[string]*domain.IdempotencyRecord
}

func NewMemStore() *MemStore {
	return &MemStore{records: make(map[string]*domain.IdempotencyRecord)}
}

func (s *MemStore) Claim(ctx context.Context, fingerprint, attemptToken string, now, staleBefore time.Time) (bool, *domain.IdempotencyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[fingerprint]
	if ok {
		stale := rec.State == domain.IdempotencyInProgress && rec.StartedAt.Before(staleBefore)
		expired := rec.State == domain.IdempotencyCompleted && !rec.ExpiresAt.After(now)
		if !stale && !expired {
			snapshot := *rec
			return false, &snapshot, nil
		}
	}

	s.records[fingerprint] = &domain.IdempotencyRecord{
		Fingerprint:  fingerprint,
		State:        domain.IdempotencyInProgress,
		AttemptToken: attemptToken,
		StartedAt:    now,
	}
	return true, nil, nil
}

func (s *MemStore) Complete(ctx context.Context, fingerprint, attemptToken, outcome string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[fingerprint]
	if !ok || rec.State != domain.IdempotencyInProgress || rec.AttemptToken != attemptToken {
		return domain.ErrNotAttemptOwner
	}

	rec.State = domain.IdempotencyCompleted
	rec.Outcome = outcome
	rec.ExpiresAt = expiresAt
	return nil
}

func (s *MemStore) Release(ctx context.Context, fingerprint, attemptToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[fingerprint]
	if ok && rec.State == domain.IdempotencyInProgress && rec.AttemptToken == attemptToken {
		delete(s.records, fingerprint)
	}
	return nil
}

func (s *MemStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for key, rec := range s.records {
		if rec.State == domain.IdempotencyCompleted && !rec.ExpiresAt.After(now) {
			delete(s.records, key)
			purged++
		}
	}
	return purged, nil
}
