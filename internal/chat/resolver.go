package chat

import (
	"context"

	"github.com/ak-softwares/wa-api-sub002/internal/middleware"
	"github.com/ak-softwares/wa-api-sub002/internal/model"
	"github.com/google/uuid"
)

// Resolver provides idempotent get-or-create of conversation identity for a
// participant address.
type Resolver struct {
	repo Repository
}

func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// GetOrCreate returns the single chat for the address, consulting the batch
// cache first. On storage failure it returns nil instead of an error: the
// caller skips that message and the rest of the batch carries on.
func (r *Resolver) GetOrCreate(ctx context.Context, ownerID uuid.UUID, accountID string, participant model.Participant, cache *Cache) *model.Chat {
	logger := middleware.GetLogger(ctx)

	if cache != nil {
		if chat, ok := cache.Get(accountID, participant.Address); ok {
			return chat
		}
	}

	chat, err := r.repo.UpsertSingle(ctx, ownerID, accountID, participant)
	if err != nil {
		logger.Error().Err(err).
			Str("account_id", accountID).
			Str("address", participant.Address).
			Msg("Failed to resolve chat")
		return nil
	}

	if cache != nil {
		cache.Put(accountID, participant.Address, chat)
	}
	return chat
}
