package account

import (
	"context"

	"github.com/ak-softwares/wa-api-sub002/internal/middleware"
	"github.com/ak-softwares/wa-api-sub002/internal/model"
)

type AccountService struct {
	repo AccountRepository
}

func NewAccountService(repo AccountRepository) *AccountService {
	return &AccountService{
		repo: repo,
	}
}

func (as *AccountService) Register(ctx context.Context, account *model.Account) error {
	logger := middleware.GetLogger(ctx)
	logger.Info().Str("phone_number_id", account.PhoneNumberID).Msg("Registering WhatsApp account mapping")
	return as.repo.Register(ctx, account)
}

func (as *AccountService) ByPhoneNumberID(ctx context.Context, phoneNumberID string) (*model.Account, error) {
	return as.repo.ByPhoneNumberID(ctx, phoneNumberID)
}
