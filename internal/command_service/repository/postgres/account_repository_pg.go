package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/logistimo/sms-command-gateway/internal/command_service/domain"
)

type pgAccountRepository struct {
	db *pgxpool.Pool
}

func NewPgAccountRepository(db *pgxpool.Pool) domain.AccountRepository {
	return &pgAccountRepository{db: db}
}

func (r *pgAccountRepository) GetByUserID(ctx context.Context, userID string) (*domain.UserAccount, error) {
	account := &domain.UserAccount{}
	query := `
		SELECT user_id, mobile_number, country, domain_id, role, is_active
		FROM user_accounts WHERE user_id = $1
	`
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&account.UserID, &account.MobileNumber, &account.Country, &account.DomainID, &account.Role, &account.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}
