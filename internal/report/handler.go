package report

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ak-softwares/wa-api-sub002/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ReportHandler struct {
	Service *Service
}

func NewHandler(service *Service) *ReportHandler {
	return &ReportHandler{Service: service}
}

func (rh *ReportHandler) GetBroadcastReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	ownerID, err := uuid.Parse(r.URL.Query().Get("owner_id"))
	if err != nil {
		http.Error(w, "Invalid owner_id", http.StatusBadRequest)
		return
	}
	chatID, err := uuid.Parse(chi.URLParam(r, "chatID"))
	if err != nil {
		http.Error(w, "Invalid chat id", http.StatusBadRequest)
		return
	}
	masterID, err := uuid.Parse(chi.URLParam(r, "masterID"))
	if err != nil {
		http.Error(w, "Invalid master id", http.StatusBadRequest)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	rep, err := rh.Service.BroadcastReport(ctx, ownerID, chatID, masterID, limit, offset)
	if err != nil {
		if errors.Is(err, ErrMasterNotFound) {
			http.Error(w, "Broadcast not found", http.StatusNotFound)
			return
		}
		logger.Error().Err(err).Msg("Failed to build broadcast report")
		http.Error(w, "Failed to build report", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rep)
}
