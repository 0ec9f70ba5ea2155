package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/logistimo/sms-command-gateway/internal/command_service/domain"
)

const testSecret = "test-secret"

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) GetByUserID(ctx context.Context, userID string) (*domain.UserAccount, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UserAccount), args.Error(1)
}

func testAccount() *domain.UserAccount {
	return &domain.UserAccount{
		UserID:       "U123",
		MobileNumber: "+254700000001",
		Country:      "KE",
		DomainID:     "D7",
		Role:         "operator",
		IsActive:     true,
	}
}

func testCommand(token string) *domain.Command {
	return &domain.Command{
		Version:   domain.SupportedVersion,
		UserID:    "U123",
		Token:     token,
		KioskID:   "K55",
		PartialID: "P1",
		SendTime:  time.Unix(1700000000, 0).UTC(),
		Lines:     []domain.MaterialLine{{MaterialID: "M10", Entries: []domain.TransactionEntry{{Type: domain.EntryTypeIssue, Quantity: 5}}}},
	}
}

func setupAuthTest() (*Authenticator, *MockAccountRepository) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := new(MockAccountRepository)
	return NewAuthenticator(repo, testSecret, logger), repo
}

func TestAuthenticate_Success(t *testing.T) {
	authn, repo := setupAuthTest()
	account := testAccount()
	repo.On("GetByUserID", mock.Anything, "U123").Return(account, nil).Once()

	token := DeriveToken(account.UserID, account.MobileNumber, testSecret)
	got, err := authn.Authenticate(context.Background(), testCommand(token), account.MobileNumber)

	require.NoError(t, err)
	assert.Equal(t, account, got)
	repo.AssertExpectations(t)
}

func TestAuthenticate_UnknownUser(t *testing.T) {
	authn, repo := setupAuthTest()
	repo.On("GetByUserID", mock.Anything, "U123").Return(nil, domain.ErrAccountNotFound).Once()

	_, err := authn.Authenticate(context.Background(), testCommand("whatever"), "+254700000001")

	var aerr *domain.AuthError
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, domain.AuthErrUnknownUser, aerr.Kind)
}

func TestAuthenticate_InactiveAccountReportedAsUnknown(t *testing.T) {
	authn, repo := setupAuthTest()
	account := testAccount()
	account.IsActive = false
	repo.On("GetByUserID", mock.Anything, "U123").Return(account, nil).Once()

	token := DeriveToken(account.UserID, account.MobileNumber, testSecret)
	_, err := authn.Authenticate(context.Background(), testCommand(token), account.MobileNumber)

	var aerr *domain.AuthError
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, domain.AuthErrUnknownUser, aerr.Kind)
}

func TestAuthenticate_TokenMismatch(t *testing.T) {
	authn, repo := setupAuthTest()
	account := testAccount()
	repo.On("GetByUserID", mock.Anything, "U123").Return(account, nil).Once()

	_, err := authn.Authenticate(context.Background(), testCommand("TOKWRONG"), account.MobileNumber)

	var aerr *domain.AuthError
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, domain.AuthErrTokenMismatch, aerr.Kind)
}

func TestAuthenticate_AddressMismatch(t *testing.T) {
	authn, repo := setupAuthTest()
	account := testAccount()
	repo.On("GetByUserID", mock.Anything, "U123").Return(account, nil).Once()

	token := DeriveToken(account.UserID, account.MobileNumber, testSecret)
	_, err := authn.Authenticate(context.Background(), testCommand(token), "+254799999999")

	var aerr *domain.AuthError
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, domain.AuthErrAddressMismatch, aerr.Kind)
}

func TestAuthenticate_RepositoryFailurePropagates(t *testing.T) {
	authn, repo := setupAuthTest()
	repoErr := errors.New("connection refused")
	repo.On("GetByUserID", mock.Anything, "U123").Return(nil, repoErr).Once()

	_, err := authn.Authenticate(context.Background(), testCommand("tok"), "+254700000001")

	var aerr *domain.AuthError
	assert.False(t, errors.As(err, &aerr))
	assert.ErrorIs(t, err, repoErr)
}

func TestDeriveToken_StableAndDistinct(t *testing.T) {
	a := DeriveToken("U123", "+254700000001", testSecret)
	b := DeriveToken("U123", "+254700000001", testSecret)
	assert.Equal(t, a, b)
	assert.Len(t, a, tokenLength)

	assert.NotEqual(t, a, DeriveToken("U124", "+254700000001", testSecret))
	assert.NotEqual(t, a, DeriveToken("U123", "+254700000002", testSecret))
	assert.NotEqual(t, a, DeriveToken("U123", "+254700000001", "other-secret"))
}
