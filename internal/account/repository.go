package account

import (
	"context"

	"github.com/ak-softwares/wa-api-sub002/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AccountRepository interface {
	Register(ctx context.Context, account *model.Account) error
	ByPhoneNumberID(ctx context.Context, phoneNumberID string) (*model.Account, error)
}

type AccountRepo struct {
	db *pgxpool.Pool
}

func NewAccountRepository(db *pgxpool.Pool) *AccountRepo {
	return &AccountRepo{db: db}
}

func (ar *AccountRepo) Register(ctx context.Context, account *model.Account) error {
	_, err := ar.db.Exec(ctx, `
		INSERT INTO accounts (phone_number_id, owner_id, display_number, automation_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (phone_number_id)
		DO UPDATE SET owner_id = $2, display_number = $3, automation_url = $4, updated_at = NOW()`,
		account.PhoneNumberID, account.OwnerID, account.DisplayNumber, account.AutomationURL)
	return err
}

func (ar *AccountRepo) ByPhoneNumberID(ctx context.Context, phoneNumberID string) (*model.Account, error) {
	var a model.Account
	err := ar.db.QueryRow(ctx, `
		SELECT phone_number_id, owner_id, COALESCE(display_number, ''), COALESCE(automation_url, ''), created_at, updated_at
		FROM accounts WHERE phone_number_id = $1`, phoneNumberID).
		Scan(&a.PhoneNumberID, &a.OwnerID, &a.DisplayNumber, &a.AutomationURL, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
