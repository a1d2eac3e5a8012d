package ledger

import (
	"encoding/json"
	"net/http"

	"github.com/ak-softwares/wa-api-sub002/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type LedgerHandler struct {
	Service *Service
}

func NewHandler(service *Service) *LedgerHandler {
	return &LedgerHandler{Service: service}
}

// GetWallet returns the wallet balance plus the current period's free-tier
// usage, which is what the dashboard billing card renders.
func (lh *LedgerHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	ownerID, err := uuid.Parse(chi.URLParam(r, "ownerID"))
	if err != nil {
		http.Error(w, "Invalid owner id", http.StatusBadRequest)
		return
	}

	wallet, err := lh.Service.Balance(ctx, ownerID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load wallet")
		http.Error(w, "Failed to load wallet", http.StatusInternalServerError)
		return
	}

	used, err := lh.Service.PeriodUsage(ctx, ownerID)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load period usage")
		http.Error(w, "Failed to load usage", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"wallet":         wallet,
		"free_used":      used,
		"free_quota":     lh.Service.FreeQuota(),
		"free_remaining": max(lh.Service.FreeQuota()-used, 0),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
