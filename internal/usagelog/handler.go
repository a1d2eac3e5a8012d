package usagelog

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ak-softwares/wa-api-sub002/internal/middleware"
	"github.com/google/uuid"
)

type UsageLogHandler struct {
	Repo Repository
}

func NewHandler(repo Repository) *UsageLogHandler {
	return &UsageLogHandler{Repo: repo}
}

// ListUsage returns the owner's billable-attempt history, newest first.
func (uh *UsageLogHandler) ListUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	ownerID, err := uuid.Parse(r.URL.Query().Get("owner_id"))
	if err != nil {
		http.Error(w, "Invalid owner_id", http.StatusBadRequest)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, err := uh.Repo.List(ctx, ownerID, limit, offset)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list usage logs")
		http.Error(w, "Failed to list usage", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"count":   len(entries),
		"entries": entries,
	})
}
