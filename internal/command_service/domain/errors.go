package domain

import (
	"errors"
	"fmt"
)

// Reply codes are part of the user-visible contract and must stay stable.
const (
	ReplyCodeMalformed           = "M001"
	ReplyCodeUnauthorized        = "M002"
	ReplyCodeDuplicateInProgress = "M003"
	ReplyCodeFailure             = "M004"
)

// ParseErrorKind discriminates parser failures.
type ParseErrorKind string

const (
	ParseErrMalformed          ParseErrorKind = "malformed"
	ParseErrUnsupportedVersion ParseErrorKind = "unsupported_version"
)

// ParseError reports why an inbound text could not be decoded.
type ParseError struct {
	Kind   ParseErrorKind
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error (%s): %s", e.Kind, e.Detail)
}

// AuthErrorKind discriminates authentication failures.
type AuthErrorKind string

const (
	AuthErrUnknownUser     AuthErrorKind = "unknown_user"
	AuthErrTokenMismatch   AuthErrorKind = "token_mismatch"
	AuthErrAddressMismatch AuthErrorKind = "address_mismatch"
)

// AuthError reports why a command's claimed identity was rejected.
type AuthError struct {
	Kind   AuthErrorKind
	UserID string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s) for user %q", e.Kind, e.UserID)
}

// ExecutionError wraps a whole-batch failure from the transaction executor.
type ExecutionError struct {
	Cause error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution error: %v", e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// ErrRecordStoreUnavailable signals that the idempotency record store could
// not be reached. The coordinator fails closed on it.
var ErrRecordStoreUnavailable = errors.New("idempotency record store unavailable")

// ErrNotAttemptOwner is returned when a commit or abandon is issued with an
// attempt token that no longer owns the record.
var ErrNotAttemptOwner = errors.New("caller does not own the in-progress record")

// ErrAccountNotFound is returned by AccountRepository lookups for unknown
// user ids.
var ErrAccountNotFound = errors.New("account not found")

// ErrOutboxMessageNotFound is returned when a delivery status update refers
// to a provider message id with no matching outbox row.
var ErrOutboxMessageNotFound = errors.New("outbox message not found")
