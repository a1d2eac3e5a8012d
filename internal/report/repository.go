package report

import (
	"context"
	"errors"

	"github.com/ak-softwares/wa-api-sub002/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Counts aggregates the delivery states of one broadcast. Delivered is
// cumulative: a read message was necessarily delivered.
type Counts struct {
	Total     int `json:"total"`
	Accepted  int `json:"accepted"`
	Delivered int `json:"delivered"`
	Read      int `json:"read"`
	Failed    int `json:"failed"`
}

// Row is one recipient's line in the broadcast report.
type Row struct {
	MessageID         uuid.UUID           `json:"message_id"`
	Recipient         string              `json:"recipient"`
	Status            model.MessageStatus `json:"status"`
	ProviderMessageID string              `json:"provider_message_id,omitempty"`
	Error             string              `json:"error,omitempty"`
}

type Repository interface {
	Master(ctx context.Context, ownerID, chatID, masterID uuid.UUID) (*model.Message, error)
	Aggregate(ctx context.Context, ownerID, masterID uuid.UUID) (*Counts, error)
	Rows(ctx context.Context, ownerID, masterID uuid.UUID, limit, offset int) ([]Row, error)
}

type ReportRepo struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *ReportRepo {
	return &ReportRepo{db: db}
}

var ErrMasterNotFound = errors.New("broadcast master record not found")

// Master loads the aggregate record, scoped to owner and chat so a report for
// someone else's broadcast cannot be fetched by guessing the id.
func (rr *ReportRepo) Master(ctx context.Context, ownerID, chatID, masterID uuid.UUID) (*model.Message, error) {
	var m model.Message
	err := rr.db.QueryRow(ctx, `
		SELECT id, owner_id, chat_id, type, COALESCE(body, ''), status, COALESCE(tag, ''), created_at
		FROM messages
		WHERE id = $1 AND owner_id = $2 AND chat_id = $3 AND master_id IS NULL`,
		masterID, ownerID, chatID).
		Scan(&m.ID, &m.OwnerID, &m.ChatID, &m.Type, &m.Body, &m.Status, &m.Tag, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMasterNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Aggregate counts the per-recipient rows in one pass. FILTER keeps it a
// single index scan over master_id.
func (rr *ReportRepo) Aggregate(ctx context.Context, ownerID, masterID uuid.UUID) (*Counts, error) {
	var c Counts
	err := rr.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE provider_message_id IS NOT NULL),
		       COUNT(*) FILTER (WHERE status IN ('delivered', 'read')),
		       COUNT(*) FILTER (WHERE status = 'read'),
		       COUNT(*) FILTER (WHERE status = 'failed')
		FROM messages
		WHERE owner_id = $1 AND master_id = $2`,
		ownerID, masterID).
		Scan(&c.Total, &c.Accepted, &c.Delivered, &c.Read, &c.Failed)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (rr *ReportRepo) Rows(ctx context.Context, ownerID, masterID uuid.UUID, limit, offset int) ([]Row, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := rr.db.Query(ctx, `
		SELECT id, to_addr, status, COALESCE(provider_message_id, ''), COALESCE(error, '')
		FROM messages
		WHERE owner_id = $1 AND master_id = $2
		ORDER BY created_at ASC, id ASC
		LIMIT $3 OFFSET $4`,
		ownerID, masterID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.MessageID, &r.Recipient, &r.Status, &r.ProviderMessageID, &r.Error); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
