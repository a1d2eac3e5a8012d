package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Model struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Account maps a WhatsApp Business phone number to the tenant that owns it.
// Inbound webhooks carry only the phone_number_id, so this is how deliveries
// are routed back to an owner.
type Account struct {
	PhoneNumberID string    `json:"phone_number_id" validate:"required"`
	OwnerID       uuid.UUID `json:"owner_id" validate:"required"`
	DisplayNumber string    `json:"display_number,omitempty"`
	AutomationURL string    `json:"automation_url,omitempty" validate:"omitempty,url"`
	Model
}

// Wallet holds prepaid credits. Balance is spendable; LockedBalance is
// reserved for in-flight sends that have not yet been committed or refunded.
// Balance never goes negative: the only debit path is a conditional update
// guarded by balance >= cost.
type Wallet struct {
	ID            uuid.UUID `json:"id"`
	OwnerID       uuid.UUID `json:"owner_id" validate:"required"`
	Balance       int64     `json:"balance" validate:"gte=0"`
	LockedBalance int64     `json:"locked_balance" validate:"gte=0"`
	Model
}

// MonthlyUsage counts free-tier sends per owner and calendar month. The
// counter only grows; a new month means a new row, never a reset in place.
type MonthlyUsage struct {
	OwnerID uuid.UUID `json:"owner_id"`
	Year    int       `json:"year"`
	Month   int       `json:"month"`
	Used    int       `json:"used"`
}

type UsageStatus string

const (
	UsagePending UsageStatus = "pending"
	UsageSuccess UsageStatus = "success"
	UsageFailed  UsageStatus = "failed"
)

// UsageLog is one row per billable send attempt. Created PENDING before the
// provider call and finalized afterwards; immutable once finalized.
type UsageLog struct {
	ID                uuid.UUID   `json:"id"`
	OwnerID           uuid.UUID   `json:"owner_id" validate:"required"`
	Recipient         string      `json:"recipient" validate:"required"`
	Action            string      `json:"action" validate:"required"`
	Credits           int64       `json:"credits" validate:"gte=0"`
	Status            UsageStatus `json:"status"`
	ProviderMessageID string      `json:"provider_message_id,omitempty"`
	Error             string      `json:"error,omitempty"`
	Model
}

type ChatType string

const (
	ChatSingle    ChatType = "single"
	ChatGroup     ChatType = "group"
	ChatBroadcast ChatType = "broadcast"
	ChatCampaign  ChatType = "campaign"
)

type Participant struct {
	Address string `json:"address" validate:"required"`
	Name    string `json:"name,omitempty"`
	Avatar  string `json:"avatar,omitempty"`
}

// Chat is the addressable conversation entity. For non-broadcast chats the
// tuple (owner, account, participant address) maps to at most one row,
// enforced by a partial unique index. Broadcast chats are created on purpose
// each time and are never deduplicated by address.
type Chat struct {
	ID                 uuid.UUID     `json:"id"`
	OwnerID            uuid.UUID     `json:"owner_id" validate:"required"`
	AccountID          string        `json:"account_id" validate:"required"`
	ParticipantAddress string        `json:"participant_address"`
	Participants       []Participant `json:"participants"`
	Name               string        `json:"name,omitempty"`
	Type               ChatType      `json:"type" validate:"required,oneof=single group broadcast campaign"`
	LastMessage        string        `json:"last_message,omitempty"`
	LastMessageAt      *time.Time    `json:"last_message_at,omitempty"`
	UnreadCount        int           `json:"unread_count"`
	IsFavourite        bool          `json:"is_favourite"`
	Model
}

type MessageType string

const (
	MessageText     MessageType = "text"
	MessageMedia    MessageType = "media"
	MessageLocation MessageType = "location"
	MessageTemplate MessageType = "template"
)

type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
	StatusReceived  MessageStatus = "received"
)

// MediaDescriptor identifies a media attachment either by provider media id
// (inbound) or by link (outbound).
type MediaDescriptor struct {
	Kind     string `json:"kind"` // image, video, audio, document, sticker
	Link     string `json:"link,omitempty"`
	MediaID  string `json:"media_id,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

type LocationDescriptor struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// Message is one delivery unit, inbound or outbound. A broadcast produces one
// row per recipient plus a master row carrying the participant list; the
// per-recipient rows point back at the master via MasterID.
type Message struct {
	ID                uuid.UUID           `json:"id"`
	OwnerID           uuid.UUID           `json:"owner_id" validate:"required"`
	ChatID            uuid.UUID           `json:"chat_id"`
	MasterID          *uuid.UUID          `json:"master_id,omitempty"`
	From              string              `json:"from"`
	To                string              `json:"to"`
	Type              MessageType         `json:"type" validate:"required,oneof=text media location template"`
	Body              string              `json:"body,omitempty"`
	Media             *MediaDescriptor    `json:"media,omitempty"`
	Location          *LocationDescriptor `json:"location,omitempty"`
	Status            MessageStatus       `json:"status"`
	ProviderMessageID string              `json:"provider_message_id,omitempty"`
	ContextProviderID string              `json:"context_provider_id,omitempty"`
	ContextText       string              `json:"context_text,omitempty"`
	Participants      []Participant       `json:"participants,omitempty"`
	Tag               string              `json:"tag,omitempty"`
	Error             string              `json:"error,omitempty"`
	Model
}

type TopupStatus string

const (
	TopupPending  TopupStatus = "pending"
	TopupCaptured TopupStatus = "captured"
	TopupFailed   TopupStatus = "failed"
)

// TopupTransaction tracks a wallet top-up from order creation to the payment
// webhook that finalizes it. Finalized rows are never touched again, which is
// what makes webhook replays harmless.
type TopupTransaction struct {
	ID        uuid.UUID   `json:"id"`
	OwnerID   uuid.UUID   `json:"owner_id" validate:"required"`
	OrderID   string      `json:"order_id" validate:"required"`
	PaymentID string      `json:"payment_id,omitempty"`
	Amount    int64       `json:"amount" validate:"required,gt=0"`
	Credits   int64       `json:"credits" validate:"required,gt=0"`
	Status    TopupStatus `json:"status"`
	Model
}

// MessageOutbox rows are written in the same transaction as the state change
// they announce and relayed to Kafka by the outbox relay.
type MessageOutbox struct {
	ID            int64           `json:"id"`
	EventType     string          `json:"event_type" validate:"required"`
	Payload       json.RawMessage `json:"payload" validate:"required"`
	PartitionKey  string          `json:"partition_key" validate:"required"`
	Status        string          `json:"status" validate:"required,oneof=pending processed failed"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	RetryCount    int             `json:"retry_count" validate:"gte=0"`
	LastError     string          `json:"last_error,omitempty"`
	Model
}
