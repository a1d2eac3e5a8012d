package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ak-softwares/wa-api-sub002/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	UpsertSingle(ctx context.Context, ownerID uuid.UUID, accountID string, participant model.Participant) (*model.Chat, error)
	CreateBroadcast(ctx context.Context, ownerID uuid.UUID, accountID, name string, participants []model.Participant) (*model.Chat, error)
	TouchLastMessage(ctx context.Context, chatID uuid.UUID, preview string, at time.Time, incrementUnread bool) error
	MarkRead(ctx context.Context, ownerID, chatID uuid.UUID) error
	Get(ctx context.Context, ownerID, chatID uuid.UUID) (*model.Chat, error)
	List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]model.Chat, error)
}

type ChatRepo struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *ChatRepo {
	return &ChatRepo{db: db}
}

const chatColumns = `id, owner_id, account_id, participant_address, participants, name, type,
	COALESCE(last_message, ''), last_message_at, unread_count, is_favourite, created_at, updated_at`

// UpsertSingle finds or creates the one single-type chat for (owner, account,
// address) in a single conditional upsert. The conflict target is the partial
// unique index that excludes broadcast chats, so two concurrent webhook
// deliveries for a brand-new sender still converge on one row.
func (cr *ChatRepo) UpsertSingle(ctx context.Context, ownerID uuid.UUID, accountID string, participant model.Participant) (*model.Chat, error) {
	participants, err := json.Marshal([]model.Participant{participant})
	if err != nil {
		return nil, err
	}

	row := cr.db.QueryRow(ctx, `
		INSERT INTO chats (owner_id, account_id, participant_address, participants, type)
		VALUES ($1, $2, $3, $4, 'single')
		ON CONFLICT (owner_id, account_id, participant_address) WHERE type <> 'broadcast'
		DO UPDATE SET updated_at = NOW()
		RETURNING `+chatColumns,
		ownerID, accountID, participant.Address, participants)

	return scanChat(row)
}

// CreateBroadcast always inserts a new chat; broadcast lists are created
// intentionally and are exempt from address dedupe.
func (cr *ChatRepo) CreateBroadcast(ctx context.Context, ownerID uuid.UUID, accountID, name string, participants []model.Participant) (*model.Chat, error) {
	raw, err := json.Marshal(participants)
	if err != nil {
		return nil, err
	}

	row := cr.db.QueryRow(ctx, `
		INSERT INTO chats (owner_id, account_id, participant_address, participants, name, type)
		VALUES ($1, $2, '', $3, $4, 'broadcast')
		RETURNING `+chatColumns,
		ownerID, accountID, raw, name)

	return scanChat(row)
}

func (cr *ChatRepo) TouchLastMessage(ctx context.Context, chatID uuid.UUID, preview string, at time.Time, incrementUnread bool) error {
	inc := 0
	if incrementUnread {
		inc = 1
	}
	_, err := cr.db.Exec(ctx, `
		UPDATE chats
		SET last_message = $2, last_message_at = $3, unread_count = unread_count + $4, updated_at = NOW()
		WHERE id = $1`,
		chatID, preview, at, inc)
	return err
}

func (cr *ChatRepo) MarkRead(ctx context.Context, ownerID, chatID uuid.UUID) error {
	_, err := cr.db.Exec(ctx, `
		UPDATE chats SET unread_count = 0, updated_at = NOW()
		WHERE id = $1 AND owner_id = $2`,
		chatID, ownerID)
	return err
}

func (cr *ChatRepo) Get(ctx context.Context, ownerID, chatID uuid.UUID) (*model.Chat, error) {
	row := cr.db.QueryRow(ctx, `
		SELECT `+chatColumns+` FROM chats WHERE id = $1 AND owner_id = $2`,
		chatID, ownerID)
	return scanChat(row)
}

func (cr *ChatRepo) List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]model.Chat, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := cr.db.Query(ctx, `
		SELECT `+chatColumns+` FROM chats
		WHERE owner_id = $1
		ORDER BY last_message_at DESC NULLS LAST
		LIMIT $2 OFFSET $3`,
		ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []model.Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, *c)
	}
	return chats, rows.Err()
}

func scanChat(row pgx.Row) (*model.Chat, error) {
	var c model.Chat
	var participants []byte
	err := row.Scan(&c.ID, &c.OwnerID, &c.AccountID, &c.ParticipantAddress, &participants, &c.Name,
		&c.Type, &c.LastMessage, &c.LastMessageAt, &c.UnreadCount, &c.IsFavourite, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(participants) > 0 {
		if err := json.Unmarshal(participants, &c.Participants); err != nil {
			return nil, err
		}
	}
	return &c, nil
}
