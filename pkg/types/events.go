package types

import "github.com/google/uuid"

// AutomationDispatchEvent is emitted through the outbox after an inbound
// message is persisted. The automation worker relays it to the owner's
// configured endpoint or into the AI responder.
type AutomationDispatchEvent struct {
	OwnerID   uuid.UUID `json:"owner_id"`
	AccountID string    `json:"account_id"`
	ChatID    uuid.UUID `json:"chat_id"`
	MessageID uuid.UUID `json:"message_id"`
	From      string    `json:"from"`
	Type      string    `json:"type"`
	Text      string    `json:"text,omitempty"`
	Tag       string    `json:"tag,omitempty"`
}

// ChatNotifyEvent fans chat metadata updates out to the realtime layer.
type ChatNotifyEvent struct {
	OwnerID     uuid.UUID `json:"owner_id"`
	ChatID      uuid.UUID `json:"chat_id"`
	LastMessage string    `json:"last_message"`
	UnreadCount int       `json:"unread_count,omitempty"`
	Direction   string    `json:"direction"` // in, out
}
