package account

import (
	"encoding/json"
	"net/http"

	"github.com/ak-softwares/wa-api-sub002/internal/middleware"
	"github.com/ak-softwares/wa-api-sub002/internal/model"
	"github.com/go-playground/validator/v10"
)

type AccountHandler struct {
	Service *AccountService
}

func NewAccountHandler(service *AccountService) *AccountHandler {
	return &AccountHandler{
		Service: service,
	}
}

var validate = validator.New()

func (ah *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var account model.Account
	ctx := r.Context()

	logger := middleware.GetLogger(ctx)

	if err := json.NewDecoder(r.Body).Decode(&account); err != nil {
		logger.Error().Err(err).Msg("Failed to decode account registration request")
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	if err := validate.Struct(&account); err != nil {
		logger.Error().Err(err).Msg("Validation error on account registration request")
		http.Error(w, "Validation error: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := ah.Service.Register(ctx, &account); err != nil {
		logger.Error().Err(err).Msg("Failed to register account")
		http.Error(w, "Failed to register account", http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"message":         "Account registered successfully",
		"phone_number_id": account.PhoneNumberID,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
