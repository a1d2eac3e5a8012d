package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ak-softwares/wa-api-sub002/internal/chat"
	"github.com/ak-softwares/wa-api-sub002/internal/config"
	"github.com/ak-softwares/wa-api-sub002/internal/ledger"
	"github.com/ak-softwares/wa-api-sub002/internal/middleware"
	"github.com/ak-softwares/wa-api-sub002/internal/model"
	"github.com/ak-softwares/wa-api-sub002/internal/usagelog"
	"github.com/ak-softwares/wa-api-sub002/pkg/types"
	"github.com/google/uuid"
)

var (
	ErrNoRecipients     = errors.New("at least one recipient is required")
	ErrNoContent        = errors.New("message content is required")
	ErrBroadcastChatID  = errors.New("broadcast sends require a chat_id")
	ErrNotBroadcastChat = errors.New("chat_id does not reference a broadcast chat")
	ErrChatResolution   = errors.New("failed to resolve chat for recipient")
	ErrRateLimited      = errors.New("send rate limit exceeded")
)

// Provider is the external messaging API. Implemented by whatsapp.Client.
type Provider interface {
	SendMessage(ctx context.Context, phoneNumberID string, req *types.ProviderSendRequest) (string, error)
}

// CreditLedger is the reservation state machine from the ledger package.
type CreditLedger interface {
	Consume(ctx context.Context, ownerID uuid.UUID, cost int64) (ledger.BillingType, error)
	Commit(ctx context.Context, ownerID uuid.UUID, cost int64, billing ledger.BillingType) error
	Refund(ctx context.Context, ownerID uuid.UUID, cost int64, billing ledger.BillingType) error
}

// ChatStore is the subset of chat storage the dispatcher needs.
type ChatStore interface {
	Get(ctx context.Context, ownerID, chatID uuid.UUID) (*model.Chat, error)
	TouchLastMessage(ctx context.Context, chatID uuid.UUID, preview string, at time.Time, incrementUnread bool) error
}

// RateLimiter guards the loop against provider rate limits. Implemented by
// the redis client's fixed-window limiter.
type RateLimiter interface {
	SimpleRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error)
}

// Request is a validated outbound send. Content is the tagged union of
// message kinds; ChatID is required only for broadcasts.
type Request struct {
	OwnerID           uuid.UUID
	AccountID         string
	Recipients        []model.Participant
	Content           Content
	ChatType          model.ChatType
	ChatID            *uuid.UUID
	ContextProviderID string
	Tag               string
}

// RecipientResult is the per-recipient outcome of one send.
type RecipientResult struct {
	Recipient         model.Participant `json:"recipient"`
	MessageID         uuid.UUID         `json:"message_id"`
	ProviderMessageID string            `json:"provider_message_id,omitempty"`
	Error             string            `json:"error,omitempty"`
}

// Result partitions outcomes and, for broadcasts, carries the master record id.
type Result struct {
	Succeeded []RecipientResult `json:"succeeded"`
	Failed    []RecipientResult `json:"failed"`
	MasterID  *uuid.UUID        `json:"master_id,omitempty"`
}

type Service struct {
	provider Provider
	ledger   CreditLedger
	resolver *chat.Resolver
	chats    ChatStore
	messages MessageRepository
	usage    usagelog.Repository
	limiter  RateLimiter
	billing  config.BillingConfig
}

func NewService(provider Provider, creditLedger CreditLedger, resolver *chat.Resolver, chats ChatStore,
	messages MessageRepository, usage usagelog.Repository, limiter RateLimiter, billing config.BillingConfig) *Service {
	return &Service{
		provider: provider,
		ledger:   creditLedger,
		resolver: resolver,
		chats:    chats,
		messages: messages,
		usage:    usage,
		limiter:  limiter,
		billing:  billing,
	}
}

// Send runs the dispatch loop: per recipient, reserve credits, call the
// provider, finalize the reservation, persist the delivery record.
//
// Recipients are attempted strictly in order and sequentially; the ledger's
// lock/commit/refund pairing depends on it. With exactly one recipient a
// provider error propagates to the caller; with more, a failure is recorded
// and the loop moves to the next recipient.
func (s *Service) Send(ctx context.Context, req *Request) (*Result, error) {
	logger := middleware.GetLogger(ctx)

	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}

	if s.limiter != nil && s.billing.SendRateLimit > 0 {
		allowed, err := s.limiter.SimpleRateLimit(ctx, "send:"+req.OwnerID.String(), s.billing.SendRateLimit, s.billing.SendRateWindow)
		if err != nil {
			logger.Warn().Err(err).Msg("rate limiter unavailable, letting send through")
		} else if !allowed {
			return nil, ErrRateLimited
		}
	}

	cost := s.costFor(KindOf(req.Content))
	broadcast := req.ChatType == model.ChatBroadcast
	cache := chat.NewCache()

	var masterID *uuid.UUID
	if broadcast {
		id := uuid.New()
		masterID = &id
	}

	result := &Result{MasterID: masterID}
	single := len(req.Recipients) == 1

	for _, rcpt := range req.Recipients {
		rr, err := s.sendOne(ctx, req, rcpt, cost, masterID, cache, broadcast)
		if err != nil {
			result.Failed = append(result.Failed, rr)
			if single {
				return result, err
			}
			logger.Warn().Err(err).Str("recipient", rcpt.Address).Msg("broadcast recipient failed, continuing")
			continue
		}
		result.Succeeded = append(result.Succeeded, rr)
	}

	if broadcast {
		if err := s.persistMaster(ctx, req, *masterID, result); err != nil {
			// The per-recipient records survive; the report just loses its
			// aggregate anchor, so this is worth surfacing.
			logger.Error().Err(err).Msg("failed to persist broadcast master record")
			return result, fmt.Errorf("failed to persist broadcast master record: %w", err)
		}
	}

	logger.Info().
		Int("succeeded", len(result.Succeeded)).
		Int("failed", len(result.Failed)).
		Bool("broadcast", broadcast).
		Msg("send completed")

	return result, nil
}

func (s *Service) validate(ctx context.Context, req *Request) error {
	if len(req.Recipients) == 0 {
		return ErrNoRecipients
	}
	if req.Content == nil {
		return ErrNoContent
	}
	if req.ChatType == "" {
		req.ChatType = model.ChatSingle
	}
	if req.ChatType == model.ChatBroadcast {
		if req.ChatID == nil {
			return ErrBroadcastChatID
		}
		c, err := s.chats.Get(ctx, req.OwnerID, *req.ChatID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBroadcastChatID, err)
		}
		if c.Type != model.ChatBroadcast {
			return ErrNotBroadcastChat
		}
	}
	return nil
}

func (s *Service) sendOne(ctx context.Context, req *Request, rcpt model.Participant, cost int64,
	masterID *uuid.UUID, cache *chat.Cache, broadcast bool) (RecipientResult, error) {

	rr := RecipientResult{Recipient: rcpt}

	var chatID uuid.UUID
	if broadcast {
		chatID = *req.ChatID
	} else {
		c := s.resolver.GetOrCreate(ctx, req.OwnerID, req.AccountID, rcpt, cache)
		if c == nil {
			rr.Error = ErrChatResolution.Error()
			return rr, ErrChatResolution
		}
		chatID = c.ID
	}

	entry := &model.UsageLog{
		OwnerID:   req.OwnerID,
		Recipient: rcpt.Address,
		Action:    string(KindOf(req.Content)),
		Credits:   cost,
	}
	if err := s.usage.Create(ctx, entry); err != nil {
		rr.Error = err.Error()
		return rr, fmt.Errorf("failed to create usage log: %w", err)
	}

	billing, err := s.ledger.Consume(ctx, req.OwnerID, cost)
	if err != nil {
		s.finalizeFailure(ctx, req, rr.Recipient, entry.ID, chatID, masterID, &rr, err)
		return rr, err
	}

	wire, err := BuildRequest(rcpt, req.Content, req.ContextProviderID)
	if err != nil {
		s.refundAndFinalize(ctx, req, entry.ID, chatID, masterID, cost, billing, &rr, err)
		return rr, err
	}

	providerMessageID, err := s.provider.SendMessage(ctx, req.AccountID, wire)
	if err != nil {
		s.refundAndFinalize(ctx, req, entry.ID, chatID, masterID, cost, billing, &rr, err)
		return rr, err
	}

	if err := s.ledger.Commit(ctx, req.OwnerID, cost, billing); err != nil {
		// The send went out; a commit failure is a ledger inconsistency to
		// alert on, not a reason to report the recipient as failed.
		middleware.GetLogger(ctx).Error().Err(err).
			Str("owner_id", req.OwnerID.String()).
			Msg("credit commit failed after successful send")
	}
	if err := s.usage.MarkSuccess(ctx, entry.ID, providerMessageID); err != nil {
		middleware.GetLogger(ctx).Error().Err(err).Msg("failed to finalize usage log")
	}

	msg := s.newMessage(req, rcpt, chatID, masterID)
	msg.Status = model.StatusSent
	msg.ProviderMessageID = providerMessageID
	if err := s.messages.Insert(ctx, msg); err != nil {
		middleware.GetLogger(ctx).Error().Err(err).Msg("failed to persist delivery record")
	}

	if !broadcast {
		if err := s.chats.TouchLastMessage(ctx, chatID, Preview(req.Content), time.Now().UTC(), false); err != nil {
			middleware.GetLogger(ctx).Warn().Err(err).Msg("failed to update chat preview")
		}
	}

	rr.MessageID = msg.ID
	rr.ProviderMessageID = providerMessageID
	return rr, nil
}

// finalizeFailure records a failed attempt that never reached the provider.
func (s *Service) finalizeFailure(ctx context.Context, req *Request, rcpt model.Participant, usageID, chatID uuid.UUID,
	masterID *uuid.UUID, rr *RecipientResult, cause error) {

	logger := middleware.GetLogger(ctx)
	if err := s.usage.MarkFailed(ctx, usageID, cause.Error()); err != nil {
		logger.Error().Err(err).Msg("failed to finalize usage log")
	}

	msg := s.newMessage(req, rcpt, chatID, masterID)
	msg.Status = model.StatusFailed
	msg.Error = cause.Error()
	if err := s.messages.Insert(ctx, msg); err != nil {
		logger.Error().Err(err).Msg("failed to persist failed delivery record")
	}

	rr.MessageID = msg.ID
	rr.Error = cause.Error()
}

// refundAndFinalize reverses a reservation after the provider call (or the
// payload build ahead of it) failed. FREE consumption stays consumed.
func (s *Service) refundAndFinalize(ctx context.Context, req *Request, usageID, chatID uuid.UUID,
	masterID *uuid.UUID, cost int64, billing ledger.BillingType, rr *RecipientResult, cause error) {

	if err := s.ledger.Refund(ctx, req.OwnerID, cost, billing); err != nil {
		middleware.GetLogger(ctx).Error().Err(err).
			Str("owner_id", req.OwnerID.String()).
			Msg("credit refund failed, locked balance needs reconciliation")
	}
	s.finalizeFailure(ctx, req, rr.Recipient, usageID, chatID, masterID, rr, cause)
}

func (s *Service) newMessage(req *Request, rcpt model.Participant, chatID uuid.UUID, masterID *uuid.UUID) *model.Message {
	msgType, body, media, location := messageModel(req.Content)
	return &model.Message{
		ID:                uuid.New(),
		OwnerID:           req.OwnerID,
		ChatID:            chatID,
		MasterID:          masterID,
		From:              req.AccountID,
		To:                rcpt.Address,
		Type:              msgType,
		Body:              body,
		Media:             media,
		Location:          location,
		ContextProviderID: req.ContextProviderID,
		Tag:               req.Tag,
	}
}

// persistMaster writes the aggregate record representing the broadcast as a
// whole. It is a reporting anchor, never a deliverable unit.
func (s *Service) persistMaster(ctx context.Context, req *Request, masterID uuid.UUID, result *Result) error {
	msgType, body, media, location := messageModel(req.Content)
	status := model.StatusSent
	if len(result.Succeeded) == 0 {
		status = model.StatusFailed
	}

	master := &model.Message{
		ID:           masterID,
		OwnerID:      req.OwnerID,
		ChatID:       *req.ChatID,
		From:         req.AccountID,
		Type:         msgType,
		Body:         body,
		Media:        media,
		Location:     location,
		Status:       status,
		Participants: req.Recipients,
		Tag:          req.Tag,
	}
	if err := s.messages.Insert(ctx, master); err != nil {
		return err
	}

	if err := s.chats.TouchLastMessage(ctx, *req.ChatID, Preview(req.Content), time.Now().UTC(), false); err != nil {
		middleware.GetLogger(ctx).Warn().Err(err).Msg("failed to update broadcast chat preview")
	}
	return nil
}

func (s *Service) costFor(k Kind) int64 {
	switch k {
	case KindTemplate:
		return s.billing.TemplateCost
	case KindMedia:
		return s.billing.MediaCost
	case KindLocation:
		return s.billing.LocationCost
	default:
		return s.billing.TextCost
	}
}
