package usagelog

import (
	"context"

	"github.com/ak-softwares/wa-api-sub002/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the append-only audit log of billable attempts. Rows start
// PENDING and are finalized exactly once; finalized rows never change.
type Repository interface {
	Create(ctx context.Context, entry *model.UsageLog) error
	MarkSuccess(ctx context.Context, id uuid.UUID, providerMessageID string) error
	MarkFailed(ctx context.Context, id uuid.UUID, errText string) error
	List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]model.UsageLog, error)
}

type UsageLogRepo struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *UsageLogRepo {
	return &UsageLogRepo{db: db}
}

func (ur *UsageLogRepo) Create(ctx context.Context, entry *model.UsageLog) error {
	entry.Status = model.UsagePending
	return ur.db.QueryRow(ctx, `
		INSERT INTO usage_logs (owner_id, recipient, action, credits, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		entry.OwnerID, entry.Recipient, entry.Action, entry.Credits, entry.Status).
		Scan(&entry.ID)
}

func (ur *UsageLogRepo) MarkSuccess(ctx context.Context, id uuid.UUID, providerMessageID string) error {
	_, err := ur.db.Exec(ctx, `
		UPDATE usage_logs
		SET status = 'success', provider_message_id = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`,
		id, providerMessageID)
	return err
}

func (ur *UsageLogRepo) MarkFailed(ctx context.Context, id uuid.UUID, errText string) error {
	_, err := ur.db.Exec(ctx, `
		UPDATE usage_logs
		SET status = 'failed', error = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`,
		id, errText)
	return err
}

func (ur *UsageLogRepo) List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]model.UsageLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := ur.db.Query(ctx, `
		SELECT id, owner_id, recipient, action, credits, status,
			COALESCE(provider_message_id, ''), COALESCE(error, ''), created_at, updated_at
		FROM usage_logs
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.UsageLog
	for rows.Next() {
		var e model.UsageLog
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.Recipient, &e.Action, &e.Credits,
			&e.Status, &e.ProviderMessageID, &e.Error, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
