package dedup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/logistimo/sms-command-gateway/internal/command_service/domain"
)

var testFingerprint = domain.Fingerprint{
	SendTime:  1700000000,
	UserID:    "U123",
	KioskID:   "K55",
	PartialID: "P1",
}

func newTestCoordinator(store domain.RecordStore, staleAfter, retention time.Duration) *Coordinator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewCoordinator(store, staleAfter, retention, logger)
}

func TestBegin_FirstDeliveryProceeds(t *testing.T) {
	coord := newTestCoordinator(NewMemStore(), time.Minute, time.Hour)

	dec, err := coord.Begin(context.Background(), testFingerprint)
	require.NoError(t, err)
	assert.Equal(t, Proceed, dec.Kind)
	assert.NotEmpty(t, dec.AttemptToken)
}

func TestBegin_ConcurrentDeliveriesExactlyOneProceeds(t *testing.T) {
	coord := newTestCoordinator(NewMemStore(), time.Minute, time.Hour)

	const workers = 32
	decisions := make([]Decision, workers)
	errs := make([]error, workers)

	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer done.Done()
			start.Wait()
			decisions[i], errs[i] = coord.Begin(context.Background(), testFingerprint)
		}(i)
	}
	start.Done()
	done.Wait()

	var proceeds, rejects int
	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		switch decisions[i].Kind {
		case Proceed:
			proceeds++
		case RejectInProgress:
			rejects++
		default:
			t.Fatalf("unexpected decision %v before any commit", decisions[i].Kind)
		}
	}
	assert.Equal(t, 1, proceeds)
	assert.Equal(t, workers-1, rejects)
}

func TestBegin_AfterCommitReplaysCachedOutcome(t *testing.T) {
	coord := newTestCoordinator(NewMemStore(), time.Minute, time.Hour)
	ctx := context.Background()

	first, err := coord.Begin(ctx, testFingerprint)
	require.NoError(t, err)
	require.Equal(t, Proceed, first.Kind)
	require.NoError(t, coord.Commit(ctx, testFingerprint, first.AttemptToken, "OK M10:5"))

	second, err := coord.Begin(ctx, testFingerprint)
	require.NoError(t, err)
	assert.Equal(t, Replay, second.Kind)
	assert.Equal(t, "OK M10:5", second.CachedOutcome)
}

func TestBegin_WhileInProgressRejects(t *testing.T) {
	coord := newTestCoordinator(NewMemStore(), time.Minute, time.Hour)
	ctx := context.Background()

	first, err := coord.Begin(ctx, testFingerprint)
	require.NoError(t, err)
	require.Equal(t, Proceed, first.Kind)

	second, err := coord.Begin(ctx, testFingerprint)
	require.NoError(t, err)
	assert.Equal(t, RejectInProgress, second.Kind)
}

func TestAbandon_AllowsRetryToProceed(t *testing.T) {
	coord := newTestCoordinator(NewMemStore(), time.Minute, time.Hour)
	ctx := context.Background()

	first, err := coord.Begin(ctx, testFingerprint)
	require.NoError(t, err)
	require.Equal(t, Proceed, first.Kind)
	require.NoError(t, coord.Abandon(ctx, testFingerprint, first.AttemptToken))

	retry, err := coord.Begin(ctx, testFingerprint)
	require.NoError(t, err)
	assert.Equal(t, Proceed, retry.Kind)
	assert.NotEqual(t, first.AttemptToken, retry.AttemptToken)
}

func TestBegin_StaleInProgressIsTakenOver(t *testing.T) {
	store := NewMemStore()
	coord := newTestCoordinator(store, time.Minute, time.Hour)
	ctx := context.Background()

	first, err := coord.Begin(ctx, testFingerprint)
	require.NoError(t, err)
	require.Equal(t, Proceed, first.Kind)

	// A worker that crashed after Proceed never commits or abandons; once
	// the record is older than the staleness timeout a retry claims it.
	coord.now = func() time.Time { return time.Now().UTC().Add(2 * time.Minute) }

	retry, err := coord.Begin(ctx, testFingerprint)
	require.NoError(t, err)
	assert.Equal(t, Proceed, retry.Kind)

	// The original worker lost ownership and can no longer commit.
	err = coord.Commit(ctx, testFingerprint, first.AttemptToken, "late outcome")
	assert.ErrorIs(t, err, domain.ErrNotAttemptOwner)
}

func TestBegin_ExpiredCompletedRecordIsFreshRequest(t *testing.T) {
	coord := newTestCoordinator(NewMemStore(), time.Minute, time.Hour)
	ctx := context.Background()

	first, err := coord.Begin(ctx, testFingerprint)
	require.NoError(t, err)
	require.NoError(t, coord.Commit(ctx, testFingerprint, first.AttemptToken, "OK M10:5"))

	// Beyond the retention window the replay guarantee deliberately lapses.
	coord.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }

	again, err := coord.Begin(ctx, testFingerprint)
	require.NoError(t, err)
	assert.Equal(t, Proceed, again.Kind)
}

func TestPurgeExpired_RemovesOnlyExpiredCompleted(t *testing.T) {
	store := NewMemStore()
	coord := newTestCoordinator(store, time.Minute, time.Hour)
	ctx := context.Background()

	first, err := coord.Begin(ctx, testFingerprint)
	require.NoError(t, err)
	require.NoError(t, coord.Commit(ctx, testFingerprint, first.AttemptToken, "OK"))

	other := testFingerprint
	other.PartialID = "P2"
	_, err = coord.Begin(ctx, other)
	require.NoError(t, err)

	purged, err := store.PurgeExpired(ctx, time.Now().UTC().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	// The in-progress record must survive the purge.
	dec, err := coord.Begin(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, RejectInProgress, dec.Kind)
}

type MockRecordStore struct {
	mock.Mock
}

func (m *MockRecordStore) Claim(ctx context.Context, fingerprint, attemptToken string, now, staleBefore time.Time) (bool, *domain.IdempotencyRecord, error) {
	args := m.Called(ctx, fingerprint, attemptToken, now, staleBefore)
	var rec *domain.IdempotencyRecord
	if args.Get(1) != nil {
		rec = args.Get(1).(*domain.IdempotencyRecord)
	}
	return args.Bool(0), rec, args.Error(2)
}

func (m *MockRecordStore) Complete(ctx context.Context, fingerprint, attemptToken, outcome string, expiresAt time.Time) error {
	args := m.Called(ctx, fingerprint, attemptToken, outcome, expiresAt)
	return args.Error(0)
}

func (m *MockRecordStore) Release(ctx context.Context, fingerprint, attemptToken string) error {
	args := m.Called(ctx, fingerprint, attemptToken)
	return args.Error(0)
}

func (m *MockRecordStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func TestBegin_StoreFailureFailsClosed(t *testing.T) {
	store := new(MockRecordStore)
	store.On("Claim", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(false, nil, errors.New("connection refused")).Once()

	coord := newTestCoordinator(store, time.Minute, time.Hour)
	_, err := coord.Begin(context.Background(), testFingerprint)

	assert.ErrorIs(t, err, domain.ErrRecordStoreUnavailable)
	store.AssertExpectations(t)
}

func TestBegin_VanishedBlockingRecordRejectsAsInProgress(t *testing.T) {
	store := new(MockRecordStore)
	store.On("Claim", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(false, nil, nil).Once()

	coord := newTestCoordinator(store, time.Minute, time.Hour)
	dec, err := coord.Begin(context.Background(), testFingerprint)

	require.NoError(t, err)
	assert.Equal(t, RejectInProgress, dec.Kind)
}
