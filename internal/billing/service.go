package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/ak-softwares/wa-api-sub002/internal/middleware"
	"github.com/ak-softwares/wa-api-sub002/internal/model"
	"github.com/ak-softwares/wa-api-sub002/internal/redis"
	"github.com/ak-softwares/wa-api-sub002/pkg/types"
	"github.com/google/uuid"
)

var ErrInvalidSignature = errors.New("webhook signature verification failed")

const idempotencyTTL = 24 * time.Hour

// IdempotencyStore is the best-effort dedupe in front of the database status
// guard. Implemented by the redis client.
type IdempotencyStore interface {
	CheckAndSetIdempotency(ctx context.Context, key string, ttl time.Duration) ([]byte, error)
	MarkIdempotencyComplete(ctx context.Context, key string, response []byte, ttl time.Duration) error
	MarkIdempotencyFailed(ctx context.Context, key string) error
}

type Service struct {
	repo          Repository
	idempotency   IdempotencyStore
	webhookSecret string
}

func NewService(repo Repository, idempotency IdempotencyStore, webhookSecret string) *Service {
	return &Service{
		repo:          repo,
		idempotency:   idempotency,
		webhookSecret: webhookSecret,
	}
}

// VerifySignature checks the HMAC-SHA256 of the raw body against the
// X-Razorpay-Signature header. Must run before the body is parsed.
func (s *Service) VerifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	if _, err := mac.Write(body); err != nil {
		return false
	}
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// CreatePendingTopup records the order before the payment happens so the
// webhook has a row to finalize.
func (s *Service) CreatePendingTopup(ctx context.Context, ownerID uuid.UUID, orderID string, amount, credits int64) (*model.TopupTransaction, error) {
	t := &model.TopupTransaction{
		OwnerID: ownerID,
		OrderID: orderID,
		Amount:  amount,
		Credits: credits,
		Status:  model.TopupPending,
	}
	if err := s.repo.CreatePending(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// HandleEvent applies one verified payment event. The redis key is only a
// cheap front guard; the database status transition is what actually
// guarantees the wallet is credited at most once per order.
func (s *Service) HandleEvent(ctx context.Context, event *types.RazorpayWebhookEvent) error {
	logger := middleware.GetLogger(ctx)
	payment := event.Payload.Payment.Entity

	if s.idempotency != nil {
		cached, err := s.idempotency.CheckAndSetIdempotency(ctx, "razorpay:"+payment.ID, idempotencyTTL)
		if cached != nil {
			logger.Info().
				Str("payment_id", payment.ID).
				Str("outcome", string(cached)).
				Msg("duplicate payment event, replaying cached outcome")
			return nil
		}
		if errors.Is(err, redis.ErrKeyExists) {
			logger.Info().Str("payment_id", payment.ID).Msg("payment event still in flight, skipping")
			return nil
		}
		if err != nil {
			logger.Warn().Err(err).Msg("idempotency store unavailable, relying on database guard")
		}
	}

	switch event.Event {
	case "payment.captured":
		t, err := s.repo.CapturePending(ctx, payment.OrderID, payment.ID)
		if err != nil {
			s.releaseKey(ctx, payment.ID)
			return err
		}
		if t == nil {
			logger.Info().Str("order_id", payment.OrderID).Msg("no pending topup for captured payment, replay or unknown order")
			s.completeKey(ctx, payment.ID, "noop")
			return nil
		}
		logger.Info().
			Str("order_id", t.OrderID).
			Str("owner_id", t.OwnerID.String()).
			Int64("credits", t.Credits).
			Msg("topup captured, wallet credited")
		s.completeKey(ctx, payment.ID, "captured")
		return nil

	case "payment.failed":
		if err := s.repo.FailPending(ctx, payment.OrderID, payment.ErrorDescription); err != nil {
			s.releaseKey(ctx, payment.ID)
			return err
		}
		logger.Info().Str("order_id", payment.OrderID).Msg("topup marked failed")
		s.completeKey(ctx, payment.ID, "failed")
		return nil

	default:
		logger.Info().Str("event", event.Event).Msg("ignoring unhandled payment event")
		s.completeKey(ctx, payment.ID, "ignored")
		return nil
	}
}

// completeKey caches the event outcome so provider retries short-circuit
// without touching the database.
func (s *Service) completeKey(ctx context.Context, paymentID, outcome string) {
	if s.idempotency == nil {
		return
	}
	if err := s.idempotency.MarkIdempotencyComplete(ctx, "razorpay:"+paymentID, []byte(outcome), idempotencyTTL); err != nil {
		middleware.GetLogger(ctx).Warn().Err(err).Msg("failed to cache idempotency outcome")
	}
}

// releaseKey frees the idempotency key after a database error so the
// provider's retry gets another chance.
func (s *Service) releaseKey(ctx context.Context, paymentID string) {
	if s.idempotency == nil {
		return
	}
	if err := s.idempotency.MarkIdempotencyFailed(ctx, "razorpay:"+paymentID); err != nil {
		middleware.GetLogger(ctx).Warn().Err(err).Msg("failed to release idempotency key")
	}
}
