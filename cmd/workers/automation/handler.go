package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ak-softwares/wa-api-sub002/internal/kafka"
	"github.com/ak-softwares/wa-api-sub002/internal/model"
	"github.com/ak-softwares/wa-api-sub002/pkg/types"
	"github.com/rs/zerolog"
)

// AccountStore resolves the owner's automation endpoint.
type AccountStore interface {
	ByPhoneNumberID(ctx context.Context, phoneNumberID string) (*model.Account, error)
}

// Responder is the hook for generated replies. Forward is the only
// implementation today; an AI responder plugs in here without touching the
// consume loop.
type Responder interface {
	Respond(ctx context.Context, event *types.AutomationDispatchEvent) error
}

func automationHandler(responder Responder, log *zerolog.Logger) kafka.Handler {
	return func(ctx context.Context, msg *kafka.Message) error {
		log.Info().Str("topic", msg.Topic).Int64("offset", msg.Offset).Msg("Processing automation event")

		var event types.AutomationDispatchEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Error().Err(err).Msg("Failed to unmarshal automation event")
			return err
		}

		return responder.Respond(ctx, &event)
	}
}

// webhookForwarder relays the inbound message to the endpoint the account
// owner registered.
type webhookForwarder struct {
	accounts AccountStore
	client   *http.Client
	log      *zerolog.Logger
}

func newWebhookForwarder(accounts AccountStore, log *zerolog.Logger) *webhookForwarder {
	return &webhookForwarder{
		accounts: accounts,
		client:   &http.Client{Timeout: 15 * time.Second},
		log:      log,
	}
}

func (f *webhookForwarder) Respond(ctx context.Context, event *types.AutomationDispatchEvent) error {
	acct, err := f.accounts.ByPhoneNumberID(ctx, event.AccountID)
	if err != nil {
		f.log.Error().Err(err).Str("account_id", event.AccountID).Msg("Failed to load account")
		return err
	}
	if acct.AutomationURL == "" {
		f.log.Info().Str("account_id", event.AccountID).Msg("Account has no automation endpoint, dropping event")
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, acct.AutomationURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		f.log.Error().Err(err).Str("url", acct.AutomationURL).Msg("Automation endpoint unreachable")
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		f.log.Error().Int("status", resp.StatusCode).Str("url", acct.AutomationURL).Msg("Automation endpoint rejected event")
		return fmt.Errorf("automation endpoint returned %d", resp.StatusCode)
	}

	f.log.Info().
		Str("chat_id", event.ChatID.String()).
		Str("message_id", event.MessageID.String()).
		Msg("Automation event forwarded")
	return nil
}
