package inbound

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ak-softwares/wa-api-sub002/internal/chat"
	"github.com/ak-softwares/wa-api-sub002/internal/kafka"
	"github.com/ak-softwares/wa-api-sub002/internal/middleware"
	"github.com/ak-softwares/wa-api-sub002/internal/model"
	"github.com/ak-softwares/wa-api-sub002/pkg/types"
	"github.com/google/uuid"
)

// AccountLookup maps a provider phone number id to the registered account.
type AccountLookup interface {
	ByPhoneNumberID(ctx context.Context, phoneNumberID string) (*model.Account, error)
}

// Presence answers whether the chat is currently on screen for the owner.
type Presence interface {
	IsChatOpen(ctx context.Context, ownerID, chatID uuid.UUID) bool
}

// Normalizer turns raw webhook change values into stored messages and applied
// delivery receipts.
type Normalizer struct {
	accounts AccountLookup
	resolver *chat.Resolver
	repo     Repository
	presence Presence
}

func NewNormalizer(accounts AccountLookup, resolver *chat.Resolver, repo Repository, presence Presence) *Normalizer {
	return &Normalizer{
		accounts: accounts,
		resolver: resolver,
		repo:     repo,
		presence: presence,
	}
}

// BatchSummary counts the outcomes of one webhook change value.
type BatchSummary struct {
	Stored          int
	Skipped         int
	ReceiptsApplied int
	ReceiptsDropped int
}

// ProcessBatch handles one change value: every messages[] entry is normalized
// and stored, every statuses[] entry is applied to the matching outbound row.
// Failures are per-message; one bad entry never takes down the batch. The
// chat cache is shared across all change values of one webhook delivery so
// repeated senders resolve their chat once.
func (n *Normalizer) ProcessBatch(ctx context.Context, value *types.ChangeValue, cache *chat.Cache) BatchSummary {
	logger := middleware.GetLogger(ctx)
	var summary BatchSummary

	var account *model.Account
	if len(value.Messages) > 0 {
		var err error
		account, err = n.accounts.ByPhoneNumberID(ctx, value.Metadata.PhoneNumberID)
		if err != nil {
			logger.Error().Err(err).
				Str("phone_number_id", value.Metadata.PhoneNumberID).
				Msg("no registered account for webhook, dropping messages")
			summary.Skipped += len(value.Messages)
			account = nil
		}
	}

	if account != nil {
		names := contactNames(value.Contacts)
		for i := range value.Messages {
			if err := n.storeMessage(ctx, account, &value.Messages[i], names, cache); err != nil {
				logger.Error().Err(err).
					Str("provider_message_id", value.Messages[i].ID).
					Msg("failed to store inbound message, skipping")
				summary.Skipped++
				continue
			}
			summary.Stored++
		}
	}

	for i := range value.Statuses {
		applied, err := n.applyReceipt(ctx, &value.Statuses[i])
		if err != nil {
			logger.Error().Err(err).
				Str("provider_message_id", value.Statuses[i].ID).
				Msg("failed to apply status receipt")
			summary.ReceiptsDropped++
			continue
		}
		if applied {
			summary.ReceiptsApplied++
		} else {
			summary.ReceiptsDropped++
		}
	}

	return summary
}

func (n *Normalizer) storeMessage(ctx context.Context, account *model.Account, in *types.InboundMessage,
	names map[string]string, cache *chat.Cache) error {

	logger := middleware.GetLogger(ctx)

	participant := model.Participant{Address: in.From, Name: names[in.From]}
	c := n.resolver.GetOrCreate(ctx, account.OwnerID, account.PhoneNumberID, participant, cache)
	if c == nil {
		return fmt.Errorf("chat resolution failed for %s", in.From)
	}

	msgType, body, media, location := classify(in)

	msg := &model.Message{
		ID:                uuid.New(),
		OwnerID:           account.OwnerID,
		ChatID:            c.ID,
		From:              in.From,
		To:                account.PhoneNumberID,
		Type:              msgType,
		Body:              body,
		Media:             media,
		Location:          location,
		Status:            model.StatusReceived,
		ProviderMessageID: in.ID,
	}

	if in.Context != nil && in.Context.ID != "" {
		msg.ContextProviderID = in.Context.ID
		quoted, err := n.repo.FindChatMessageByProviderID(ctx, account.OwnerID, c.ID, in.Context.ID)
		if err != nil {
			logger.Warn().Err(err).Str("context_id", in.Context.ID).Msg("reply context lookup failed")
		} else if quoted != nil {
			msg.ContextText = quoted.Body
		}
	}

	incrementUnread := !n.presence.IsChatOpen(ctx, account.OwnerID, c.ID)

	events, err := n.buildEvents(account, c, msg, incrementUnread)
	if err != nil {
		return err
	}

	return n.repo.SaveInbound(ctx, msg, incrementUnread, events)
}

func (n *Normalizer) buildEvents(account *model.Account, c *model.Chat, msg *model.Message, incrementUnread bool) ([]*model.MessageOutbox, error) {
	events := make([]*model.MessageOutbox, 0, 2)

	if account.AutomationURL != "" {
		payload, err := json.Marshal(types.AutomationDispatchEvent{
			OwnerID:   account.OwnerID,
			AccountID: account.PhoneNumberID,
			ChatID:    c.ID,
			MessageID: msg.ID,
			From:      msg.From,
			Type:      string(msg.Type),
			Text:      msg.Body,
		})
		if err != nil {
			return nil, err
		}
		events = append(events, &model.MessageOutbox{
			EventType:     kafka.EventAutomationDispatch,
			Payload:       payload,
			PartitionKey:  c.ID.String(),
			CorrelationID: msg.ProviderMessageID,
		})
	}

	unread := c.UnreadCount
	if incrementUnread {
		unread++
	}
	payload, err := json.Marshal(types.ChatNotifyEvent{
		OwnerID:     account.OwnerID,
		ChatID:      c.ID,
		LastMessage: msg.Body,
		UnreadCount: unread,
		Direction:   "in",
	})
	if err != nil {
		return nil, err
	}
	events = append(events, &model.MessageOutbox{
		EventType:     kafka.EventChatNotify,
		Payload:       payload,
		PartitionKey:  c.ID.String(),
		CorrelationID: msg.ProviderMessageID,
	})

	return events, nil
}

func (n *Normalizer) applyReceipt(ctx context.Context, receipt *types.StatusReceipt) (bool, error) {
	status, ok := receiptStatus(receipt.Status)
	if !ok {
		return false, nil
	}
	var errText string
	if len(receipt.Errors) > 0 {
		errText = receipt.Errors[0].Message
	}
	return n.repo.ApplyStatusReceipt(ctx, receipt.ID, status, errText)
}

func receiptStatus(s string) (model.MessageStatus, bool) {
	switch s {
	case "sent":
		return model.StatusSent, true
	case "delivered":
		return model.StatusDelivered, true
	case "read":
		return model.StatusRead, true
	case "failed":
		return model.StatusFailed, true
	default:
		return "", false
	}
}

// classify maps the provider's message type onto the internal model. Unknown
// kinds are stored as text with a placeholder body so nothing silently
// disappears from the conversation.
func classify(in *types.InboundMessage) (model.MessageType, string, *model.MediaDescriptor, *model.LocationDescriptor) {
	switch in.Type {
	case "text":
		if in.Text != nil {
			return model.MessageText, in.Text.Body, nil, nil
		}
		return model.MessageText, "", nil, nil
	case "image":
		return mediaOf("image", in.Image)
	case "video":
		return mediaOf("video", in.Video)
	case "audio":
		return mediaOf("audio", in.Audio)
	case "document":
		return mediaOf("document", in.Document)
	case "sticker":
		return mediaOf("sticker", in.Sticker)
	case "location":
		if in.Location != nil {
			loc := &model.LocationDescriptor{
				Latitude:  in.Location.Latitude,
				Longitude: in.Location.Longitude,
				Name:      in.Location.Name,
				Address:   in.Location.Address,
			}
			return model.MessageLocation, locationBody(loc), nil, loc
		}
		return model.MessageLocation, "[location]", nil, nil
	case "contacts":
		body := "[contact]"
		if len(in.Contacts) > 0 && in.Contacts[0].Name.FormattedName != "" {
			body = "[contact] " + in.Contacts[0].Name.FormattedName
		}
		return model.MessageText, body, nil, nil
	default:
		return model.MessageText, "[unsupported: " + in.Type + "]", nil, nil
	}
}

func mediaOf(kind string, m *types.InboundMedia) (model.MessageType, string, *model.MediaDescriptor, *model.LocationDescriptor) {
	body := "[" + kind + "]"
	desc := &model.MediaDescriptor{Kind: kind}
	if m != nil {
		desc.MediaID = m.ID
		desc.Caption = m.Caption
		desc.Filename = m.Filename
		desc.MimeType = m.MimeType
		if m.Caption != "" {
			body = m.Caption
		}
	}
	return model.MessageMedia, body, desc, nil
}

func locationBody(loc *model.LocationDescriptor) string {
	if loc.Name != "" {
		return "[location] " + loc.Name
	}
	return "[location]"
}

func contactNames(contacts []types.WebhookContact) map[string]string {
	names := make(map[string]string, len(contacts))
	for _, c := range contacts {
		if c.Profile.Name != "" {
			names[c.WaID] = c.Profile.Name
		}
	}
	return names
}
