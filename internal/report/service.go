package report

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BroadcastReport is the full report payload for one broadcast send.
type BroadcastReport struct {
	MasterID  uuid.UUID `json:"master_id"`
	ChatID    uuid.UUID `json:"chat_id"`
	Type      string    `json:"type"`
	Preview   string    `json:"preview"`
	Tag       string    `json:"tag,omitempty"`
	SentAt    time.Time `json:"sent_at"`
	Counts    Counts    `json:"counts"`
	Rows      []Row     `json:"rows"`
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// BroadcastReport assembles the master record, the aggregate counts, and one
// page of per-recipient rows.
func (s *Service) BroadcastReport(ctx context.Context, ownerID, chatID, masterID uuid.UUID, limit, offset int) (*BroadcastReport, error) {
	master, err := s.repo.Master(ctx, ownerID, chatID, masterID)
	if err != nil {
		return nil, err
	}

	counts, err := s.repo.Aggregate(ctx, ownerID, masterID)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.Rows(ctx, ownerID, masterID, limit, offset)
	if err != nil {
		return nil, err
	}

	return &BroadcastReport{
		MasterID: master.ID,
		ChatID:   master.ChatID,
		Type:     string(master.Type),
		Preview:  master.Body,
		Tag:      master.Tag,
		SentAt:   master.CreatedAt,
		Counts:   *counts,
		Rows:     rows,
	}, nil
}
