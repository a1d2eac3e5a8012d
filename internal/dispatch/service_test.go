package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ak-softwares/wa-api-sub002/internal/chat"
	"github.com/ak-softwares/wa-api-sub002/internal/config"
	"github.com/ak-softwares/wa-api-sub002/internal/ledger"
	"github.com/ak-softwares/wa-api-sub002/internal/model"
	"github.com/ak-softwares/wa-api-sub002/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	failFor map[string]error
	calls   []string
}

func (f *fakeProvider) SendMessage(ctx context.Context, phoneNumberID string, req *types.ProviderSendRequest) (string, error) {
	f.calls = append(f.calls, req.To)
	if err, ok := f.failFor[req.To]; ok {
		return "", err
	}
	return "wamid." + req.To, nil
}

type fakeLedger struct {
	balance  int64
	locked   int64
	billing  ledger.BillingType
	commits  int
	refunds  int
	consumes int
}

func (f *fakeLedger) Consume(ctx context.Context, ownerID uuid.UUID, cost int64) (ledger.BillingType, error) {
	f.consumes++
	if f.billing == ledger.BillingFree {
		return ledger.BillingFree, nil
	}
	if f.balance < cost {
		return "", ledger.ErrInsufficientCredits
	}
	f.balance -= cost
	f.locked += cost
	return ledger.BillingPaid, nil
}

func (f *fakeLedger) Commit(ctx context.Context, ownerID uuid.UUID, cost int64, billing ledger.BillingType) error {
	if billing != ledger.BillingPaid {
		return nil
	}
	f.commits++
	f.locked -= cost
	return nil
}

func (f *fakeLedger) Refund(ctx context.Context, ownerID uuid.UUID, cost int64, billing ledger.BillingType) error {
	if billing != ledger.BillingPaid {
		return nil
	}
	f.refunds++
	f.locked -= cost
	f.balance += cost
	return nil
}

// fakeChats backs both the resolver and the dispatcher's chat store.
type fakeChats struct {
	chats       map[uuid.UUID]*model.Chat
	upsertCalls int
	upsertErr   error
	touched     []uuid.UUID
}

func newFakeChats() *fakeChats {
	return &fakeChats{chats: make(map[uuid.UUID]*model.Chat)}
}

func (f *fakeChats) UpsertSingle(ctx context.Context, ownerID uuid.UUID, accountID string, participant model.Participant) (*model.Chat, error) {
	f.upsertCalls++
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	for _, c := range f.chats {
		if c.Type != model.ChatBroadcast && c.AccountID == accountID && c.ParticipantAddress == participant.Address {
			return c, nil
		}
	}
	c := &model.Chat{
		ID:                 uuid.New(),
		OwnerID:            ownerID,
		AccountID:          accountID,
		ParticipantAddress: participant.Address,
		Type:               model.ChatSingle,
	}
	f.chats[c.ID] = c
	return c, nil
}

func (f *fakeChats) CreateBroadcast(ctx context.Context, ownerID uuid.UUID, accountID, name string, participants []model.Participant) (*model.Chat, error) {
	c := &model.Chat{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		AccountID:    accountID,
		Name:         name,
		Type:         model.ChatBroadcast,
		Participants: participants,
	}
	f.chats[c.ID] = c
	return c, nil
}

func (f *fakeChats) TouchLastMessage(ctx context.Context, chatID uuid.UUID, preview string, at time.Time, incrementUnread bool) error {
	f.touched = append(f.touched, chatID)
	if c, ok := f.chats[chatID]; ok {
		c.LastMessage = preview
		c.LastMessageAt = &at
		if incrementUnread {
			c.UnreadCount++
		}
	}
	return nil
}

func (f *fakeChats) MarkRead(ctx context.Context, ownerID, chatID uuid.UUID) error {
	if c, ok := f.chats[chatID]; ok {
		c.UnreadCount = 0
	}
	return nil
}

func (f *fakeChats) Get(ctx context.Context, ownerID, chatID uuid.UUID) (*model.Chat, error) {
	c, ok := f.chats[chatID]
	if !ok {
		return nil, errors.New("chat not found")
	}
	return c, nil
}

func (f *fakeChats) List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]model.Chat, error) {
	return nil, nil
}

type fakeMessages struct {
	rows []*model.Message
}

func (f *fakeMessages) Insert(ctx context.Context, msg *model.Message) error {
	cp := *msg
	f.rows = append(f.rows, &cp)
	return nil
}

func (f *fakeMessages) byStatus(status model.MessageStatus) []*model.Message {
	var out []*model.Message
	for _, m := range f.rows {
		if m.Status == status {
			out = append(out, m)
		}
	}
	return out
}

type fakeUsage struct {
	entries map[uuid.UUID]*model.UsageLog
}

func newFakeUsage() *fakeUsage {
	return &fakeUsage{entries: make(map[uuid.UUID]*model.UsageLog)}
}

func (f *fakeUsage) Create(ctx context.Context, entry *model.UsageLog) error {
	entry.ID = uuid.New()
	entry.Status = model.UsagePending
	cp := *entry
	f.entries[entry.ID] = &cp
	return nil
}

func (f *fakeUsage) MarkSuccess(ctx context.Context, id uuid.UUID, providerMessageID string) error {
	e := f.entries[id]
	e.Status = model.UsageSuccess
	e.ProviderMessageID = providerMessageID
	return nil
}

func (f *fakeUsage) MarkFailed(ctx context.Context, id uuid.UUID, errText string) error {
	e := f.entries[id]
	e.Status = model.UsageFailed
	e.Error = errText
	return nil
}

func (f *fakeUsage) List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]model.UsageLog, error) {
	return nil, nil
}

type allowAllLimiter struct{}

func (allowAllLimiter) SimpleRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	return true, nil
}

type denyLimiter struct{}

func (denyLimiter) SimpleRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	return false, nil
}

func testBilling() config.BillingConfig {
	return config.BillingConfig{
		FreeMonthlyQuota: 0,
		TextCost:         1,
		TemplateCost:     2,
		MediaCost:        2,
		LocationCost:     1,
		SendRateLimit:    80,
		SendRateWindow:   time.Second,
	}
}

type fixture struct {
	provider *fakeProvider
	ledger   *fakeLedger
	chats    *fakeChats
	messages *fakeMessages
	usage    *fakeUsage
	svc      *Service
}

func newFixture(limiter RateLimiter) *fixture {
	f := &fixture{
		provider: &fakeProvider{failFor: make(map[string]error)},
		ledger:   &fakeLedger{balance: 100, billing: ledger.BillingPaid},
		chats:    newFakeChats(),
		messages: &fakeMessages{},
		usage:    newFakeUsage(),
	}
	f.svc = NewService(f.provider, f.ledger, chat.NewResolver(f.chats), f.chats,
		f.messages, f.usage, limiter, testBilling())
	return f
}

func TestSend_SingleRecipientSuccess(t *testing.T) {
	f := newFixture(allowAllLimiter{})
	owner := uuid.New()

	res, err := f.svc.Send(context.Background(), &Request{
		OwnerID:    owner,
		AccountID:  "pn-1",
		Recipients: []model.Participant{{Address: "15550001111"}},
		Content:    Text{Body: "hello"},
	})
	require.NoError(t, err)
	require.Len(t, res.Succeeded, 1)
	assert.Empty(t, res.Failed)
	assert.Nil(t, res.MasterID)
	assert.Equal(t, "wamid.15550001111", res.Succeeded[0].ProviderMessageID)

	// Balance 100, cost 1: net debit, nothing left locked
	assert.Equal(t, int64(99), f.ledger.balance)
	assert.Equal(t, int64(0), f.ledger.locked)
	assert.Equal(t, 1, f.ledger.commits)
	assert.Equal(t, 0, f.ledger.refunds)

	require.Len(t, f.messages.rows, 1)
	assert.Equal(t, model.StatusSent, f.messages.rows[0].Status)
	assert.Equal(t, "wamid.15550001111", f.messages.rows[0].ProviderMessageID)

	// Chat preview was updated for the single chat
	require.Len(t, f.chats.touched, 1)
}

func TestSend_SingleRecipientProviderFailure(t *testing.T) {
	f := newFixture(allowAllLimiter{})
	owner := uuid.New()
	f.provider.failFor["15550001111"] = errors.New("provider rejected")

	res, err := f.svc.Send(context.Background(), &Request{
		OwnerID:    owner,
		AccountID:  "pn-1",
		Recipients: []model.Participant{{Address: "15550001111"}},
		Content:    Text{Body: "hello"},
	})
	// Single recipient: the error propagates, but the outcome is still recorded
	require.Error(t, err)
	require.NotNil(t, res)
	require.Len(t, res.Failed, 1)
	assert.Empty(t, res.Succeeded)

	// Reservation was refunded in full
	assert.Equal(t, int64(100), f.ledger.balance)
	assert.Equal(t, int64(0), f.ledger.locked)
	assert.Equal(t, 1, f.ledger.refunds)

	// The failed attempt is persisted for the audit trail
	require.Len(t, f.messages.rows, 1)
	assert.Equal(t, model.StatusFailed, f.messages.rows[0].Status)
	assert.Contains(t, f.messages.rows[0].Error, "provider rejected")

	// Usage log finalized as failed
	for _, e := range f.usage.entries {
		assert.Equal(t, model.UsageFailed, e.Status)
	}
}

func TestSend_InsufficientCredits(t *testing.T) {
	f := newFixture(allowAllLimiter{})
	f.ledger.balance = 0

	_, err := f.svc.Send(context.Background(), &Request{
		OwnerID:    uuid.New(),
		AccountID:  "pn-1",
		Recipients: []model.Participant{{Address: "15550001111"}},
		Content:    Text{Body: "hello"},
	})
	assert.ErrorIs(t, err, ledger.ErrInsufficientCredits)
	assert.Empty(t, f.provider.calls)
}

func TestSend_FreeTierNotRefundedOnFailure(t *testing.T) {
	f := newFixture(allowAllLimiter{})
	f.ledger.billing = ledger.BillingFree
	f.provider.failFor["15550001111"] = errors.New("provider rejected")

	_, err := f.svc.Send(context.Background(), &Request{
		OwnerID:    uuid.New(),
		AccountID:  "pn-1",
		Recipients: []model.Participant{{Address: "15550001111"}},
		Content:    Text{Body: "hello"},
	})
	require.Error(t, err)

	// FREE consumption: no wallet movement either way
	assert.Equal(t, 0, f.ledger.refunds)
	assert.Equal(t, 0, f.ledger.commits)
	assert.Equal(t, int64(100), f.ledger.balance)
}

func TestSend_BroadcastPartialFailure(t *testing.T) {
	f := newFixture(allowAllLimiter{})
	owner := uuid.New()

	bc, err := f.chats.CreateBroadcast(context.Background(), owner, "pn-1", "launch", nil)
	require.NoError(t, err)

	f.provider.failFor["B"] = errors.New("unreachable")

	res, err := f.svc.Send(context.Background(), &Request{
		OwnerID:   owner,
		AccountID: "pn-1",
		Recipients: []model.Participant{
			{Address: "A"}, {Address: "B"}, {Address: "C"},
		},
		Content:  Text{Body: "hello all"},
		ChatType: model.ChatBroadcast,
		ChatID:   &bc.ID,
	})
	// Multi-recipient: the loop continues past B and the call succeeds overall
	require.NoError(t, err)
	require.NotNil(t, res.MasterID)

	require.Len(t, res.Succeeded, 2)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "B", res.Failed[0].Recipient.Address)
	assert.Equal(t, []string{"A", "B", "C"}, f.provider.calls)

	// Three per-recipient rows plus the master record
	require.Len(t, f.messages.rows, 4)
	sent := f.messages.byStatus(model.StatusSent)
	failed := f.messages.byStatus(model.StatusFailed)
	assert.Len(t, sent, 3) // A, C, and the master row
	assert.Len(t, failed, 1)

	var master *model.Message
	for _, m := range f.messages.rows {
		if m.ID == *res.MasterID {
			master = m
		}
	}
	require.NotNil(t, master, "master record must be persisted")
	assert.Nil(t, master.MasterID)
	assert.Len(t, master.Participants, 3)
	assert.Equal(t, model.StatusSent, master.Status)

	// Per-recipient rows point back at the master
	for _, m := range f.messages.rows {
		if m.ID != *res.MasterID {
			require.NotNil(t, m.MasterID)
			assert.Equal(t, *res.MasterID, *m.MasterID)
		}
	}

	// Two successes committed, one failure refunded
	assert.Equal(t, 2, f.ledger.commits)
	assert.Equal(t, 1, f.ledger.refunds)
	assert.Equal(t, int64(98), f.ledger.balance)
	assert.Equal(t, int64(0), f.ledger.locked)
}

func TestSend_BroadcastAllFailedMaster(t *testing.T) {
	f := newFixture(allowAllLimiter{})
	owner := uuid.New()

	bc, err := f.chats.CreateBroadcast(context.Background(), owner, "pn-1", "launch", nil)
	require.NoError(t, err)

	f.provider.failFor["A"] = errors.New("down")
	f.provider.failFor["B"] = errors.New("down")

	res, err := f.svc.Send(context.Background(), &Request{
		OwnerID:    owner,
		AccountID:  "pn-1",
		Recipients: []model.Participant{{Address: "A"}, {Address: "B"}},
		Content:    Text{Body: "x"},
		ChatType:   model.ChatBroadcast,
		ChatID:     &bc.ID,
	})
	require.NoError(t, err)
	assert.Len(t, res.Failed, 2)

	var master *model.Message
	for _, m := range f.messages.rows {
		if m.ID == *res.MasterID {
			master = m
		}
	}
	require.NotNil(t, master)
	assert.Equal(t, model.StatusFailed, master.Status)
}

func TestSend_BroadcastRequiresBroadcastChat(t *testing.T) {
	f := newFixture(allowAllLimiter{})
	owner := uuid.New()

	_, err := f.svc.Send(context.Background(), &Request{
		OwnerID:    owner,
		AccountID:  "pn-1",
		Recipients: []model.Participant{{Address: "A"}},
		Content:    Text{Body: "x"},
		ChatType:   model.ChatBroadcast,
	})
	assert.ErrorIs(t, err, ErrBroadcastChatID)

	// A single chat's id is rejected as a broadcast target
	single, err := f.chats.UpsertSingle(context.Background(), owner, "pn-1", model.Participant{Address: "Z"})
	require.NoError(t, err)

	_, err = f.svc.Send(context.Background(), &Request{
		OwnerID:    owner,
		AccountID:  "pn-1",
		Recipients: []model.Participant{{Address: "A"}},
		Content:    Text{Body: "x"},
		ChatType:   model.ChatBroadcast,
		ChatID:     &single.ID,
	})
	assert.ErrorIs(t, err, ErrNotBroadcastChat)
}

func TestSend_Validation(t *testing.T) {
	f := newFixture(allowAllLimiter{})

	_, err := f.svc.Send(context.Background(), &Request{
		OwnerID:   uuid.New(),
		AccountID: "pn-1",
		Content:   Text{Body: "x"},
	})
	assert.ErrorIs(t, err, ErrNoRecipients)

	_, err = f.svc.Send(context.Background(), &Request{
		OwnerID:    uuid.New(),
		AccountID:  "pn-1",
		Recipients: []model.Participant{{Address: "A"}},
	})
	assert.ErrorIs(t, err, ErrNoContent)
}

func TestSend_RateLimited(t *testing.T) {
	f := newFixture(denyLimiter{})

	_, err := f.svc.Send(context.Background(), &Request{
		OwnerID:    uuid.New(),
		AccountID:  "pn-1",
		Recipients: []model.Participant{{Address: "A"}},
		Content:    Text{Body: "x"},
	})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Empty(t, f.provider.calls)
	assert.Equal(t, 0, f.ledger.consumes)
}

func TestSend_ChatResolutionFailureSkipsRecipient(t *testing.T) {
	f := newFixture(allowAllLimiter{})
	f.chats.upsertErr = errors.New("db down")

	res, err := f.svc.Send(context.Background(), &Request{
		OwnerID:    uuid.New(),
		AccountID:  "pn-1",
		Recipients: []model.Participant{{Address: "A"}},
		Content:    Text{Body: "x"},
	})
	assert.ErrorIs(t, err, ErrChatResolution)
	require.Len(t, res.Failed, 1)
	// Nothing was billed for a recipient that never got a chat
	assert.Equal(t, 0, f.ledger.consumes)
}
