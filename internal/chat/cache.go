package chat

import "github.com/ak-softwares/wa-api-sub002/internal/model"

// Cache holds chats already resolved within one logical batch: one webhook
// POST body or one outbound fan-out. It lives on the stack of that batch and
// is never shared across requests, so no locking.
type Cache struct {
	byAddress map[string]*model.Chat
}

func NewCache() *Cache {
	return &Cache{byAddress: make(map[string]*model.Chat)}
}

func (c *Cache) key(accountID, address string) string {
	return accountID + "|" + address
}

func (c *Cache) Get(accountID, address string) (*model.Chat, bool) {
	chat, ok := c.byAddress[c.key(accountID, address)]
	return chat, ok
}

func (c *Cache) Put(accountID, address string, chat *model.Chat) {
	c.byAddress[c.key(accountID, address)] = chat
}
