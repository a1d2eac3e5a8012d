package redis

import (
	"context"

	"github.com/google/uuid"
)

// IsChatOpen reports whether a client session currently has the chat on
// screen. The realtime layer sets the key while the chat is open; inbound
// processing reads it to decide whether an unread count bump is warranted.
// Errors degrade to "not open" so a Redis hiccup never blocks a webhook.
func (c *Client) IsChatOpen(ctx context.Context, ownerID, chatID uuid.UUID) bool {
	prefixedKey := c.prefixKey("presence:" + ownerID.String() + ":" + chatID.String())

	n, err := c.rdb.Exists(ctx, prefixedKey).Result()
	if err != nil {
		c.log.Warn().Err(err).Str("chat_id", chatID.String()).Msg("presence check failed, assuming chat closed")
		return false
	}
	return n > 0
}
