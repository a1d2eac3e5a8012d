package outbox

import (
	"context"
	"time"

	"github.com/ak-softwares/wa-api-sub002/internal/kafka"
	"github.com/ak-softwares/wa-api-sub002/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Relay drains message_outbox into Kafka. Rows are locked with SKIP LOCKED so
// multiple relay instances can run side by side without double-publishing.
type Relay struct {
	db          *pgxpool.Pool
	kafkaClient *kafka.Producer
	logger      *zerolog.Logger
	batchSize   int
	interval    time.Duration
}

func NewRelay(db *pgxpool.Pool, kafkaClient *kafka.Producer, logger *zerolog.Logger) *Relay {
	return &Relay{
		db:          db,
		kafkaClient: kafkaClient,
		logger:      logger,
		batchSize:   100,
		interval:    5 * time.Second,
	}
}

func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info().Msg("Starting outbox relay")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Stopping outbox relay")
			return nil
		case <-ticker.C:
			if err := r.processBatch(ctx); err != nil {
				r.logger.Error().Err(err).Msg("Failed to process outbox batch")
			}
		}
	}
}

func (r *Relay) processBatch(ctx context.Context) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, event_type, payload, partition_key
		FROM message_outbox
		WHERE status = 'pending'
		ORDER BY id ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, r.batchSize)
	if err != nil {
		return err
	}

	var events []model.MessageOutbox
	for rows.Next() {
		var e model.MessageOutbox
		if err := rows.Scan(&e.ID, &e.EventType, &e.Payload, &e.PartitionKey); err != nil {
			rows.Close()
			return err
		}
		events = append(events, e)
	}
	rows.Close()

	if len(events) == 0 {
		return nil
	}
	r.logger.Info().Int("count", len(events)).Msg("Fetched outbox events")

	var processedIDs []int64
	for _, e := range events {
		topic := r.topicFor(e.EventType)
		if err := r.kafkaClient.Publish(ctx, topic, []byte(e.PartitionKey), e.Payload); err != nil {
			r.logger.Error().Err(err).
				Int64("event_id", e.ID).
				Str("event_type", e.EventType).
				Msg("Failed to publish event to Kafka")
			continue // stays pending for the next tick
		}
		processedIDs = append(processedIDs, e.ID)
	}

	if len(processedIDs) == 0 {
		return nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE message_outbox
		SET status = 'processed', updated_at = NOW()
		WHERE id = ANY($1)
	`, processedIDs)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *Relay) topicFor(eventType string) string {
	switch eventType {
	case kafka.EventAutomationDispatch:
		return kafka.TopicAutomationDispatch
	case kafka.EventChatNotify:
		return kafka.TopicChatNotify
	default:
		return kafka.TopicDLQ
	}
}
