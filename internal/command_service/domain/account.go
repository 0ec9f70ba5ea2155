package domain

import "context"

// UserAccount is the registered identity a command authenticates against.
type UserAccount struct {
	UserID       string
	MobileNumber string
	Country      string
	DomainID     string
	Role         string
	IsActive     bool
}

// AccountRepository is the account lookup boundary.
type AccountRepository interface {
	// GetByUserID returns the account for userID or ErrAccountNotFound.
	GetByUserID(ctx context.Context, userID string) (*UserAccount, error)
}
