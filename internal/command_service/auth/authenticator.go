// Package auth validates the claimed identity of a parsed command against
// the account registry: protocol token and originating address.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"

	"golang.org/x/crypto/sha3"

	"github.com/logistimo/sms-command-gateway/internal/command_service/domain"
)

// tokenLength is the length of the derived token in base64 characters.
const tokenLength = 8

// DeriveToken computes the protocol token for an account: a truncated
// url-safe base64 SHA3-256 over user id, registered mobile number and the
// shared secret, NUL-separated. Clients compute the same value.
func DeriveToken(userID, mobileNumber, secret string) string {
	h := sha3.Sum256([]byte(userID + "\x00" + mobileNumber + "\x00" + secret))
	return base64.RawURLEncoding.EncodeToString(h[:])[:tokenLength]
}

// Authenticator checks a command's token and originating address against
// the registered account.
type Authenticator struct {
	accounts domain.AccountRepository
	secret   string
	logger   *slog.Logger
}

func NewAuthenticator(accounts domain.AccountRepository, secret string, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		accounts: accounts,
		secret:   secret,
		logger:   logger.With("component", "authenticator"),
	}
}

// Authenticate returns the acting account for cmd, or a *domain.AuthError.
// Any other error means the account store itself failed. The returned
// identity is scoped to this unit of work; nothing is kept between calls.
func (a *Authenticator) Authenticate(ctx context.Context, cmd *domain.Command, originatingAddress string) (*domain.UserAccount, error) {
	account, err := a.accounts.GetByUserID(ctx, cmd.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, &domain.AuthError{Kind: domain.AuthErrUnknownUser, UserID: cmd.UserID}
		}
		a.logger.ErrorContext(ctx, "Account lookup failed", "error", err, "user_id", cmd.UserID)
		return nil, err
	}

	// A deactivated account must not be distinguishable from an unknown one.
	if !account.IsActive {
		a.logger.WarnContext(ctx, "Command from inactive account", "user_id", cmd.UserID)
		return nil, &domain.AuthError{Kind: domain.AuthErrUnknownUser, UserID: cmd.UserID}
	}

	expected := DeriveToken(account.UserID, account.MobileNumber, a.secret)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(cmd.Token)) != 1 {
		return nil, &domain.AuthError{Kind: domain.AuthErrTokenMismatch, UserID: cmd.UserID}
	}

	if originatingAddress != account.MobileNumber {
		a.logger.WarnContext(ctx, "Originating address does not match registered number",
			"user_id", cmd.UserID, "address", originatingAddress)
		return nil, &domain.AuthError{Kind: domain.AuthErrAddressMismatch, UserID: cmd.UserID}
	}

	return account, nil
}
