package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ak-softwares/wa-api-sub002/internal/kafka"
	"github.com/ak-softwares/wa-api-sub002/internal/model"
	"github.com/ak-softwares/wa-api-sub002/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingResponder struct {
	events []*types.AutomationDispatchEvent
}

func (r *recordingResponder) Respond(ctx context.Context, event *types.AutomationDispatchEvent) error {
	r.events = append(r.events, event)
	return nil
}

type fakeAccountStore struct {
	account *model.Account
}

func (f *fakeAccountStore) ByPhoneNumberID(ctx context.Context, phoneNumberID string) (*model.Account, error) {
	return f.account, nil
}

func TestAutomationHandler_DispatchesToResponder(t *testing.T) {
	log := zerolog.Nop()
	responder := &recordingResponder{}
	handler := automationHandler(responder, &log)

	event := types.AutomationDispatchEvent{
		OwnerID:   uuid.New(),
		AccountID: "pn-1",
		ChatID:    uuid.New(),
		MessageID: uuid.New(),
		From:      "15550001111",
		Type:      "text",
		Text:      "hello",
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	err = handler(context.Background(), &kafka.Message{Topic: kafka.TopicAutomationDispatch, Value: payload})
	require.NoError(t, err)
	require.Len(t, responder.events, 1)
	assert.Equal(t, event.MessageID, responder.events[0].MessageID)
	assert.Equal(t, "hello", responder.events[0].Text)
}

func TestAutomationHandler_BadPayload(t *testing.T) {
	log := zerolog.Nop()
	responder := &recordingResponder{}
	handler := automationHandler(responder, &log)

	err := handler(context.Background(), &kafka.Message{Value: []byte("not json")})
	require.Error(t, err)
	assert.Empty(t, responder.events)
}

func TestWebhookForwarder_PostsToAutomationURL(t *testing.T) {
	var received types.AutomationDispatchEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	log := zerolog.Nop()
	store := &fakeAccountStore{account: &model.Account{PhoneNumberID: "pn-1", AutomationURL: srv.URL}}
	forwarder := newWebhookForwarder(store, &log)

	event := &types.AutomationDispatchEvent{AccountID: "pn-1", ChatID: uuid.New(), MessageID: uuid.New(), Text: "ping"}
	require.NoError(t, forwarder.Respond(context.Background(), event))
	assert.Equal(t, "ping", received.Text)
}

func TestWebhookForwarder_DropsWithoutEndpoint(t *testing.T) {
	log := zerolog.Nop()
	store := &fakeAccountStore{account: &model.Account{PhoneNumberID: "pn-1"}}
	forwarder := newWebhookForwarder(store, &log)

	event := &types.AutomationDispatchEvent{AccountID: "pn-1", MessageID: uuid.New()}
	require.NoError(t, forwarder.Respond(context.Background(), event))
}

func TestWebhookForwarder_EndpointRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	log := zerolog.Nop()
	store := &fakeAccountStore{account: &model.Account{PhoneNumberID: "pn-1", AutomationURL: srv.URL}}
	forwarder := newWebhookForwarder(store, &log)

	err := forwarder.Respond(context.Background(), &types.AutomationDispatchEvent{AccountID: "pn-1", MessageID: uuid.New()})
	require.Error(t, err)
}