package chat

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ak-softwares/wa-api-sub002/internal/middleware"
	"github.com/ak-softwares/wa-api-sub002/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type ChatHandler struct {
	repo Repository
}

func NewHandler(repo Repository) *ChatHandler {
	return &ChatHandler{repo: repo}
}

var validate = validator.New()

type createBroadcastRequest struct {
	OwnerID      uuid.UUID           `json:"owner_id" validate:"required"`
	AccountID    string              `json:"account_id" validate:"required"`
	Name         string              `json:"name" validate:"required,min=1,max=100"`
	Participants []model.Participant `json:"participants" validate:"required,min=1,dive"`
}

// CreateBroadcast makes a new broadcast list. Repeated calls with identical
// participants make new lists on purpose.
func (ch *ChatHandler) CreateBroadcast(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	var req createBroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error().Err(err).Msg("Failed to decode broadcast creation request")
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	if err := validate.Struct(&req); err != nil {
		logger.Error().Err(err).Msg("Validation error on broadcast creation request")
		http.Error(w, "Validation error: "+err.Error(), http.StatusBadRequest)
		return
	}

	chat, err := ch.repo.CreateBroadcast(ctx, req.OwnerID, req.AccountID, req.Name, req.Participants)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create broadcast chat")
		http.Error(w, "Failed to create broadcast chat", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(chat)
	logger.Info().Str("chat_id", chat.ID.String()).Int("participants", len(chat.Participants)).Msg("Broadcast chat created")
}

func (ch *ChatHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	ownerID, err := uuid.Parse(r.URL.Query().Get("owner_id"))
	if err != nil {
		http.Error(w, "Invalid owner id", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	chats, err := ch.repo.List(ctx, ownerID, limit, offset)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list chats")
		http.Error(w, "Failed to list chats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"chats": chats})
}

// MarkRead resets the unread counter when the user opens a chat.
func (ch *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	chatID, err := uuid.Parse(chi.URLParam(r, "chatID"))
	if err != nil {
		http.Error(w, "Invalid chat id", http.StatusBadRequest)
		return
	}
	ownerID, err := uuid.Parse(r.URL.Query().Get("owner_id"))
	if err != nil {
		http.Error(w, "Invalid owner id", http.StatusBadRequest)
		return
	}

	if err := ch.repo.MarkRead(ctx, ownerID, chatID); err != nil {
		logger.Error().Err(err).Msg("Failed to mark chat read")
		http.Error(w, "Failed to mark chat read", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
