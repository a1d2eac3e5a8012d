package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ak-softwares/wa-api-sub002/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists inbound traffic and applies delivery receipts.
type Repository interface {
	FindChatMessageByProviderID(ctx context.Context, ownerID uuid.UUID, chatID uuid.UUID, providerMessageID string) (*model.Message, error)
	SaveInbound(ctx context.Context, msg *model.Message, incrementUnread bool, events []*model.MessageOutbox) error
	ApplyStatusReceipt(ctx context.Context, providerMessageID string, status model.MessageStatus, errText string) (bool, error)
}

type InboundRepo struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *InboundRepo {
	return &InboundRepo{db: db}
}

// FindChatMessageByProviderID resolves a reply context to the quoted message,
// scoped to the chat so a provider id from another conversation never bleeds
// in. Returns nil with no error when nothing matches.
func (ir *InboundRepo) FindChatMessageByProviderID(ctx context.Context, ownerID, chatID uuid.UUID, providerMessageID string) (*model.Message, error) {
	var m model.Message
	err := ir.db.QueryRow(ctx, `
		SELECT id, COALESCE(body, ''), type, status
		FROM messages
		WHERE owner_id = $1 AND chat_id = $2 AND provider_message_id = $3`,
		ownerID, chatID, providerMessageID).
		Scan(&m.ID, &m.Body, &m.Type, &m.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// SaveInbound writes the message row, bumps the chat preview (and unread
// count unless the chat is on screen), and stages the outbox events, all in
// one transaction so the relay never announces a message that was not stored.
func (ir *InboundRepo) SaveInbound(ctx context.Context, msg *model.Message, incrementUnread bool, events []*model.MessageOutbox) error {
	var media, location []byte
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

	tx, err := ir.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO messages (id, owner_id, chat_id, from_addr, to_addr, type, body,
			media, location, status, provider_message_id, context_provider_id, context_text)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		msg.ID, msg.OwnerID, msg.ChatID, msg.From, msg.To, msg.Type, msg.Body,
		media, location, msg.Status, nullable(msg.ProviderMessageID),
		nullable(msg.ContextProviderID), nullable(msg.ContextText))
	if err != nil {
		return err
	}

	inc := 0
	if incrementUnread {
		inc = 1
	}
	_, err = tx.Exec(ctx, `
		UPDATE chats
		SET last_message = $2, last_message_at = $3, unread_count = unread_count + $4, updated_at = NOW()
		WHERE id = $1`,
		msg.ChatID, msg.Body, time.Now().UTC(), inc)
	if err != nil {
		return err
	}

	for _, e := range events {
		_, err = tx.Exec(ctx, `
			INSERT INTO message_outbox (event_type, payload, partition_key, status, correlation_id)
			VALUES ($1, $2, $3, 'pending', $4)`,
			e.EventType, e.Payload, e.PartitionKey, nullable(e.CorrelationID))
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// receiptRank orders delivery states for the out-of-order guard. A receipt
// only applies when its rank exceeds the stored one, so a reordered
// "delivered" can never roll a message back from "read" or "failed".
var receiptRank = []struct {
	status model.MessageStatus
	rank   int
}{
	{model.StatusFailed, 4},
	{model.StatusRead, 3},
	{model.StatusDelivered, 2},
	{model.StatusSent, 1},
}

// rankCase renders receiptRank as a SQL CASE over expr. Both sides of the
// comparison in applyReceiptQuery are generated from the same table so the
// stored and incoming status can never be ranked differently.
func rankCase(expr string) string {
	var b strings.Builder
	b.WriteString("CASE " + expr)
	for _, r := range receiptRank {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", r.status, r.rank)
	}
	b.WriteString(" ELSE 0 END")
	return b.String()
}

var applyReceiptQuery = fmt.Sprintf(`
	UPDATE messages
	SET status = $2, error = COALESCE(NULLIF($3, ''), error), updated_at = NOW()
	WHERE provider_message_id = $1
	  AND %s < %s`, rankCase("status"), rankCase("$2"))

// ApplyStatusReceipt advances the delivery state of the matching outbound
// message. Returns false when no row matched, either because the provider id
// is unknown or the receipt arrived out of order behind a higher state.
func (ir *InboundRepo) ApplyStatusReceipt(ctx context.Context, providerMessageID string, status model.MessageStatus, errText string) (bool, error) {
	tag, err := ir.db.Exec(ctx, applyReceiptQuery, providerMessageID, status, errText)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
