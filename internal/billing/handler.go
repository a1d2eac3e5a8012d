package billing

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/ak-softwares/wa-api-sub002/internal/middleware"
	"github.com/ak-softwares/wa-api-sub002/pkg/types"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type BillingHandler struct {
	Service *Service
}

func NewHandler(service *Service) *BillingHandler {
	return &BillingHandler{Service: service}
}

var validate = validator.New()

type createTopupRequest struct {
	OwnerID uuid.UUID `json:"owner_id" validate:"required"`
	OrderID string    `json:"order_id" validate:"required"`
	Amount  int64     `json:"amount" validate:"required,gt=0"`
	Credits int64     `json:"credits" validate:"required,gt=0"`
}

func (bh *BillingHandler) CreateTopup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	var req createTopupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(&req); err != nil {
		http.Error(w, "Validation error: "+err.Error(), http.StatusBadRequest)
		return
	}

	t, err := bh.Service.CreatePendingTopup(ctx, req.OwnerID, req.OrderID, req.Amount, req.Credits)
	if err != nil {
		logger.Error().Err(err).Str("order_id", req.OrderID).Msg("Failed to create pending topup")
		http.Error(w, "Failed to create topup", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(t)
}

// HandlePaymentWebhook verifies the signature over the raw body before any
// parsing, then applies the event. The provider retries non-200 responses.
func (bh *BillingHandler) HandlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to read request body")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	signature := r.Header.Get("X-Razorpay-Signature")
	if !bh.Service.VerifySignature(body, signature) {
		logger.Error().Msg("Invalid payment webhook signature")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var event types.RazorpayWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		logger.Error().Err(err).Msg("Failed to parse payment webhook payload")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := bh.Service.HandleEvent(ctx, &event); err != nil {
		logger.Error().Err(err).Str("event", event.Event).Msg("Failed to process payment event")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
