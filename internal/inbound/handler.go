package inbound

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/ak-softwares/wa-api-sub002/internal/chat"
	"github.com/ak-softwares/wa-api-sub002/internal/middleware"
	"github.com/ak-softwares/wa-api-sub002/pkg/types"
)

type WebhookHandler struct {
	verifyToken string
	normalizer  *Normalizer
}

func NewWebhookHandler(verifyToken string, normalizer *Normalizer) *WebhookHandler {
	return &WebhookHandler{
		verifyToken: verifyToken,
		normalizer:  normalizer,
	}
}

// Verify answers the provider's subscription handshake: echo hub.challenge
// when the verify token matches, 403 otherwise.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode != "subscribe" || token != h.verifyToken {
		logger.Warn().Str("mode", mode).Msg("webhook verification rejected")
		w.WriteHeader(http.StatusForbidden)
		return
	}

	logger.Info().Msg("webhook verification accepted")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(challenge))
}

// Receive ingests a webhook delivery. The provider retries on non-200, so
// once the payload parses this always acknowledges; per-message failures are
// logged and counted rather than surfaced.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read request body")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var payload types.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		logger.Error().Err(err).Msg("Failed to parse webhook payload")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// One chat cache per delivery: repeated senders across entries resolve
	// their chat with a single storage round trip.
	cache := chat.NewCache()
	total := BatchSummary{}
	for _, entry := range payload.Entry {
		for i := range entry.Changes {
			s := h.normalizer.ProcessBatch(ctx, &entry.Changes[i].Value, cache)
			total.Stored += s.Stored
			total.Skipped += s.Skipped
			total.ReceiptsApplied += s.ReceiptsApplied
			total.ReceiptsDropped += s.ReceiptsDropped
		}
	}

	logger.Info().
		Int("stored", total.Stored).
		Int("skipped", total.Skipped).
		Int("receipts_applied", total.ReceiptsApplied).
		Int("receipts_dropped", total.ReceiptsDropped).
		Msg("webhook batch processed")

	w.WriteHeader(http.StatusOK)
}
