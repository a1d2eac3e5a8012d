package dispatch

import (
	"context"
	"encoding/json"

	"github.com/ak-softwares/wa-api-sub002/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MessageRepository persists outbound delivery records. One row per recipient
// attempt plus, for broadcasts, the master row.
type MessageRepository interface {
	Insert(ctx context.Context, msg *model.Message) error
}

type MessageRepo struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{db: db}
}

func (mr *MessageRepo) Insert(ctx context.Context, msg *model.Message) error {
	var media, location, participants []byte
	var err error
	if msg.Media != nil {
		if media, err = json.Marshal(msg.Media); err != nil {
			return err
		}
	}
	if msg.Location != nil {
		if location, err = json.Marshal(msg.Location); err != nil {
			return err
		}
	}
	if len(msg.Participants) > 0 {
		if participants, err = json.Marshal(msg.Participants); err != nil {
			return err
		}
	}

	_, err = mr.db.Exec(ctx, `
		INSERT INTO messages (id, owner_id, chat_id, master_id, from_addr, to_addr, type, body,
			media, location, status, provider_message_id, context_provider_id, context_text,
			participants, tag, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		msg.ID, msg.OwnerID, msg.ChatID, msg.MasterID, msg.From, msg.To, msg.Type, msg.Body,
		media, location, msg.Status, nullable(msg.ProviderMessageID), nullable(msg.ContextProviderID),
		nullable(msg.ContextText), participants, nullable(msg.Tag), nullable(msg.Error))
	return err
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
