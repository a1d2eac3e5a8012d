package inbound

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ak-softwares/wa-api-sub002/internal/chat"
	"github.com/ak-softwares/wa-api-sub002/internal/kafka"
	"github.com/ak-softwares/wa-api-sub002/internal/model"
	"github.com/ak-softwares/wa-api-sub002/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccounts struct {
	accounts map[string]*model.Account
}

func (f *fakeAccounts) ByPhoneNumberID(ctx context.Context, phoneNumberID string) (*model.Account, error) {
	a, ok := f.accounts[phoneNumberID]
	if !ok {
		return nil, errors.New("account not found")
	}
	return a, nil
}

type fakeChatRepo struct {
	chats     map[string]*model.Chat
	upserts   int
	upsertErr error
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{chats: make(map[string]*model.Chat)}
}

func (f *fakeChatRepo) UpsertSingle(ctx context.Context, ownerID uuid.UUID, accountID string, participant model.Participant) (*model.Chat, error) {
	f.upserts++
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	key := accountID + "|" + participant.Address
	if c, ok := f.chats[key]; ok {
		return c, nil
	}
	c := &model.Chat{
		ID:                 uuid.New(),
		OwnerID:            ownerID,
		AccountID:          accountID,
		ParticipantAddress: participant.Address,
		Type:               model.ChatSingle,
	}
	f.chats[key] = c
	return c, nil
}

func (f *fakeChatRepo) CreateBroadcast(ctx context.Context, ownerID uuid.UUID, accountID, name string, participants []model.Participant) (*model.Chat, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeChatRepo) TouchLastMessage(ctx context.Context, chatID uuid.UUID, preview string, at time.Time, incrementUnread bool) error {
	return nil
}

func (f *fakeChatRepo) MarkRead(ctx context.Context, ownerID, chatID uuid.UUID) error { return nil }

func (f *fakeChatRepo) Get(ctx context.Context, ownerID, chatID uuid.UUID) (*model.Chat, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeChatRepo) List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]model.Chat, error) {
	return nil, nil
}

type savedInbound struct {
	msg             *model.Message
	incrementUnread bool
	events          []*model.MessageOutbox
}

type fakeInboundRepo struct {
	saved      []savedInbound
	saveErrFor map[string]error
	byProvider map[string]*model.Message
	receipts   map[string]model.MessageStatus
	applied    []string
}

func newFakeInboundRepo() *fakeInboundRepo {
	return &fakeInboundRepo{
		saveErrFor: make(map[string]error),
		byProvider: make(map[string]*model.Message),
		receipts:   make(map[string]model.MessageStatus),
	}
}

func (f *fakeInboundRepo) FindChatMessageByProviderID(ctx context.Context, ownerID, chatID uuid.UUID, providerMessageID string) (*model.Message, error) {
	return f.byProvider[providerMessageID], nil
}

func (f *fakeInboundRepo) SaveInbound(ctx context.Context, msg *model.Message, incrementUnread bool, events []*model.MessageOutbox) error {
	if err, ok := f.saveErrFor[msg.ProviderMessageID]; ok {
		return err
	}
	f.saved = append(f.saved, savedInbound{msg: msg, incrementUnread: incrementUnread, events: events})
	return nil
}

func (f *fakeInboundRepo) ApplyStatusReceipt(ctx context.Context, providerMessageID string, status model.MessageStatus, errText string) (bool, error) {
	current, ok := f.receipts[providerMessageID]
	if !ok {
		return false, nil
	}
	if rank(status) <= rank(current) {
		return false, nil
	}
	f.receipts[providerMessageID] = status
	f.applied = append(f.applied, providerMessageID+":"+string(status))
	return true, nil
}

func rank(s model.MessageStatus) int {
	switch s {
	case model.StatusSent:
		return 1
	case model.StatusDelivered:
		return 2
	case model.StatusRead:
		return 3
	case model.StatusFailed:
		return 4
	default:
		return 0
	}
}

type fakePresence struct {
	open map[uuid.UUID]bool
}

func (f *fakePresence) IsChatOpen(ctx context.Context, ownerID, chatID uuid.UUID) bool {
	return f.open[chatID]
}

func newTestNormalizer() (*Normalizer, *fakeAccounts, *fakeChatRepo, *fakeInboundRepo, *fakePresence, uuid.UUID) {
	owner := uuid.New()
	accounts := &fakeAccounts{accounts: map[string]*model.Account{
		"pn-1": {PhoneNumberID: "pn-1", OwnerID: owner, AutomationURL: "https://bot.example/hook"},
	}}
	chats := newFakeChatRepo()
	repo := newFakeInboundRepo()
	presence := &fakePresence{open: make(map[uuid.UUID]bool)}
	n := NewNormalizer(accounts, chat.NewResolver(chats), repo, presence)
	return n, accounts, chats, repo, presence, owner
}

func textMessage(id, from, body string) types.InboundMessage {
	m := types.InboundMessage{ID: id, From: from, Type: "text"}
	m.Text = &struct {
		Body string `json:"body"`
	}{Body: body}
	return m
}

func TestProcessBatch_TextMessage(t *testing.T) {
	n, _, chats, repo, _, owner := newTestNormalizer()

	value := &types.ChangeValue{
		Metadata: types.ChangeMetadata{PhoneNumberID: "pn-1"},
		Contacts: []types.WebhookContact{{WaID: "15550001111", Profile: struct {
			Name string `json:"name"`
		}{Name: "Asha"}}},
		Messages: []types.InboundMessage{textMessage("wamid.1", "15550001111", "hi there")},
	}

	summary := n.ProcessBatch(context.Background(), value, chat.NewCache())
	assert.Equal(t, 1, summary.Stored)
	assert.Equal(t, 0, summary.Skipped)

	require.Len(t, repo.saved, 1)
	saved := repo.saved[0]
	assert.Equal(t, owner, saved.msg.OwnerID)
	assert.Equal(t, model.MessageText, saved.msg.Type)
	assert.Equal(t, "hi there", saved.msg.Body)
	assert.Equal(t, model.StatusReceived, saved.msg.Status)
	assert.Equal(t, "wamid.1", saved.msg.ProviderMessageID)
	assert.True(t, saved.incrementUnread, "closed chat gets an unread bump")

	// Contact profile name flows into the chat participant
	require.Equal(t, 1, chats.upserts)

	// Automation endpoint configured, so both events are staged
	require.Len(t, saved.events, 2)
	assert.Equal(t, kafka.EventAutomationDispatch, saved.events[0].EventType)
	assert.Equal(t, kafka.EventChatNotify, saved.events[1].EventType)
}

func TestProcessBatch_SharedCacheAcrossChangeValues(t *testing.T) {
	n, _, chats, repo, _, _ := newTestNormalizer()

	first := &types.ChangeValue{
		Metadata: types.ChangeMetadata{PhoneNumberID: "pn-1"},
		Messages: []types.InboundMessage{textMessage("wamid.1", "15550001111", "hi")},
	}
	second := &types.ChangeValue{
		Metadata: types.ChangeMetadata{PhoneNumberID: "pn-1"},
		Messages: []types.InboundMessage{textMessage("wamid.2", "15550001111", "again")},
	}

	// Same sender in two change values of one delivery resolves the chat once
	cache := chat.NewCache()
	n.ProcessBatch(context.Background(), first, cache)
	n.ProcessBatch(context.Background(), second, cache)

	assert.Len(t, repo.saved, 2)
	assert.Equal(t, 1, chats.upserts)
}

func TestProcessBatch_NoAutomationEndpoint(t *testing.T) {
	n, accounts, _, repo, _, _ := newTestNormalizer()
	accounts.accounts["pn-1"].AutomationURL = ""

	value := &types.ChangeValue{
		Metadata: types.ChangeMetadata{PhoneNumberID: "pn-1"},
		Messages: []types.InboundMessage{textMessage("wamid.1", "15550001111", "hi")},
	}

	summary := n.ProcessBatch(context.Background(), value, chat.NewCache())
	assert.Equal(t, 1, summary.Stored)
	require.Len(t, repo.saved, 1)
	require.Len(t, repo.saved[0].events, 1)
	assert.Equal(t, kafka.EventChatNotify, repo.saved[0].events[0].EventType)
}

func TestProcessBatch_UnreadSuppressedWhenChatOpen(t *testing.T) {
	n, _, chats, repo, presence, owner := newTestNormalizer()

	// Pre-create the chat so we know its id before the webhook arrives
	c, err := chats.UpsertSingle(context.Background(), owner, "pn-1", model.Participant{Address: "15550001111"})
	require.NoError(t, err)
	presence.open[c.ID] = true

	value := &types.ChangeValue{
		Metadata: types.ChangeMetadata{PhoneNumberID: "pn-1"},
		Messages: []types.InboundMessage{textMessage("wamid.1", "15550001111", "hi")},
	}

	n.ProcessBatch(context.Background(), value, chat.NewCache())
	require.Len(t, repo.saved, 1)
	assert.False(t, repo.saved[0].incrementUnread)
}

func TestProcessBatch_MediaAndUnsupportedKinds(t *testing.T) {
	n, _, _, repo, _, _ := newTestNormalizer()

	img := types.InboundMessage{ID: "wamid.img", From: "15550001111", Type: "image",
		Image: &types.InboundMedia{ID: "media-9", MimeType: "image/jpeg", Caption: "look"}}
	loc := types.InboundMessage{ID: "wamid.loc", From: "15550001111", Type: "location",
		Location: &types.LocationPayload{Latitude: 1.5, Longitude: 2.5, Name: "Pier"}}
	odd := types.InboundMessage{ID: "wamid.odd", From: "15550001111", Type: "reaction"}

	value := &types.ChangeValue{
		Metadata: types.ChangeMetadata{PhoneNumberID: "pn-1"},
		Messages: []types.InboundMessage{img, loc, odd},
	}

	summary := n.ProcessBatch(context.Background(), value, chat.NewCache())
	assert.Equal(t, 3, summary.Stored, "unsupported kinds are stored, never dropped")
	require.Len(t, repo.saved, 3)

	assert.Equal(t, model.MessageMedia, repo.saved[0].msg.Type)
	assert.Equal(t, "look", repo.saved[0].msg.Body)
	require.NotNil(t, repo.saved[0].msg.Media)
	assert.Equal(t, "media-9", repo.saved[0].msg.Media.MediaID)

	assert.Equal(t, model.MessageLocation, repo.saved[1].msg.Type)
	assert.Equal(t, "[location] Pier", repo.saved[1].msg.Body)
	require.NotNil(t, repo.saved[1].msg.Location)
	assert.Equal(t, 1.5, repo.saved[1].msg.Location.Latitude)

	assert.Equal(t, model.MessageText, repo.saved[2].msg.Type)
	assert.Equal(t, "[unsupported: reaction]", repo.saved[2].msg.Body)
}

func TestProcessBatch_ReplyContext(t *testing.T) {
	n, _, _, repo, _, _ := newTestNormalizer()
	repo.byProvider["wamid.orig"] = &model.Message{ID: uuid.New(), Body: "original text"}

	withCtx := textMessage("wamid.2", "15550001111", "replying")
	withCtx.Context = &types.InboundContext{ID: "wamid.orig"}
	missingCtx := textMessage("wamid.3", "15550001111", "replying to ghost")
	missingCtx.Context = &types.InboundContext{ID: "wamid.gone"}

	value := &types.ChangeValue{
		Metadata: types.ChangeMetadata{PhoneNumberID: "pn-1"},
		Messages: []types.InboundMessage{withCtx, missingCtx},
	}

	summary := n.ProcessBatch(context.Background(), value, chat.NewCache())
	assert.Equal(t, 2, summary.Stored)

	assert.Equal(t, "wamid.orig", repo.saved[0].msg.ContextProviderID)
	assert.Equal(t, "original text", repo.saved[0].msg.ContextText)

	// A missing quoted message is non-fatal: the id is kept, the text is empty
	assert.Equal(t, "wamid.gone", repo.saved[1].msg.ContextProviderID)
	assert.Empty(t, repo.saved[1].msg.ContextText)
}

func TestProcessBatch_StorageFailureSkipsOnlyThatMessage(t *testing.T) {
	n, _, _, repo, _, _ := newTestNormalizer()
	repo.saveErrFor["wamid.bad"] = errors.New("db down")

	value := &types.ChangeValue{
		Metadata: types.ChangeMetadata{PhoneNumberID: "pn-1"},
		Messages: []types.InboundMessage{
			textMessage("wamid.ok1", "A", "one"),
			textMessage("wamid.bad", "B", "two"),
			textMessage("wamid.ok2", "C", "three"),
		},
	}

	summary := n.ProcessBatch(context.Background(), value, chat.NewCache())
	assert.Equal(t, 2, summary.Stored)
	assert.Equal(t, 1, summary.Skipped)
	require.Len(t, repo.saved, 2)
}

func TestProcessBatch_UnknownAccountSkipsAll(t *testing.T) {
	n, _, _, repo, _, _ := newTestNormalizer()

	value := &types.ChangeValue{
		Metadata: types.ChangeMetadata{PhoneNumberID: "pn-unknown"},
		Messages: []types.InboundMessage{textMessage("wamid.1", "A", "x")},
	}

	summary := n.ProcessBatch(context.Background(), value, chat.NewCache())
	assert.Equal(t, 0, summary.Stored)
	assert.Equal(t, 1, summary.Skipped)
	assert.Empty(t, repo.saved)
}

func TestProcessBatch_StatusReceipts(t *testing.T) {
	n, _, _, repo, _, _ := newTestNormalizer()
	repo.receipts["wamid.out1"] = model.StatusSent
	repo.receipts["wamid.out2"] = model.StatusRead

	value := &types.ChangeValue{
		Metadata: types.ChangeMetadata{PhoneNumberID: "pn-1"},
		Statuses: []types.StatusReceipt{
			{ID: "wamid.out1", Status: "delivered"},
			// Out-of-order receipt behind an already-read message
			{ID: "wamid.out2", Status: "delivered"},
			{ID: "wamid.unknown", Status: "delivered"},
			{ID: "wamid.out1", Status: "bogus-state"},
		},
	}

	summary := n.ProcessBatch(context.Background(), value, chat.NewCache())
	assert.Equal(t, 1, summary.ReceiptsApplied)
	assert.Equal(t, 3, summary.ReceiptsDropped)
	assert.Equal(t, model.StatusDelivered, repo.receipts["wamid.out1"])
	assert.Equal(t, model.StatusRead, repo.receipts["wamid.out2"])
}
