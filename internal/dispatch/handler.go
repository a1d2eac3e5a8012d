package dispatch

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ak-softwares/wa-api-sub002/internal/ledger"
	"github.com/ak-softwares/wa-api-sub002/internal/middleware"
	"github.com/ak-softwares/wa-api-sub002/internal/model"
	"github.com/ak-softwares/wa-api-sub002/pkg/types"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type DispatchHandler struct {
	Service *Service
}

func NewHandler(service *Service) *DispatchHandler {
	return &DispatchHandler{Service: service}
}

var validate = validator.New()

type sendRequest struct {
	OwnerID          uuid.UUID           `json:"owner_id" validate:"required"`
	AccountID        string              `json:"account_id" validate:"required"`
	ChatType         string              `json:"chat_type" validate:"omitempty,oneof=single broadcast"`
	ChatID           *uuid.UUID          `json:"chat_id,omitempty"`
	Recipients       []model.Participant `json:"recipients" validate:"required,min=1,dive"`
	MessageType      string              `json:"message_type" validate:"required,oneof=text template media location"`
	Text             *textBody           `json:"text,omitempty"`
	Template         *templateBody       `json:"template,omitempty"`
	Media            *mediaBody          `json:"media,omitempty"`
	Location         *locationBody       `json:"location,omitempty"`
	ContextMessageID string              `json:"context_message_id,omitempty"`
	Tag              string              `json:"tag,omitempty"`
}

type textBody struct {
	Body       string `json:"body" validate:"required"`
	PreviewURL bool   `json:"preview_url,omitempty"`
}

type templateBody struct {
	Name         string                    `json:"name" validate:"required"`
	LanguageCode string                    `json:"language_code" validate:"required"`
	Components   []types.TemplateComponent `json:"components,omitempty"`
}

type mediaBody struct {
	Kind     string `json:"kind" validate:"required,oneof=image video audio document sticker"`
	Link     string `json:"link,omitempty"`
	MediaID  string `json:"media_id,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type locationBody struct {
	Latitude  float64 `json:"latitude" validate:"required"`
	Longitude float64 `json:"longitude" validate:"required"`
	Name      string  `json:"name,omitempty"`
	Address   string  `json:"address,omitempty"`
}

// content maps the wire payload onto the closed content union. Exactly one
// kind-specific body must be present, matching message_type.
func (sr *sendRequest) content() (Content, error) {
	switch sr.MessageType {
	case "text":
		if sr.Text == nil {
			return nil, errors.New("text payload is required for message_type=text")
		}
		return Text{Body: sr.Text.Body, PreviewURL: sr.Text.PreviewURL}, nil
	case "template":
		if sr.Template == nil {
			return nil, errors.New("template payload is required for message_type=template")
		}
		return Template{Name: sr.Template.Name, LanguageCode: sr.Template.LanguageCode, Components: sr.Template.Components}, nil
	case "media":
		if sr.Media == nil {
			return nil, errors.New("media payload is required for message_type=media")
		}
		if sr.Media.Link == "" && sr.Media.MediaID == "" {
			return nil, errors.New("media payload needs a link or media_id")
		}
		return Media{MediaKind: sr.Media.Kind, Link: sr.Media.Link, MediaID: sr.Media.MediaID,
			Caption: sr.Media.Caption, Filename: sr.Media.Filename}, nil
	case "location":
		if sr.Location == nil {
			return nil, errors.New("location payload is required for message_type=location")
		}
		return Location{Latitude: sr.Location.Latitude, Longitude: sr.Location.Longitude,
			Name: sr.Location.Name, Address: sr.Location.Address}, nil
	default:
		return nil, errors.New("unsupported message_type: " + sr.MessageType)
	}
}

func (dh *DispatchHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLogger(ctx)

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error().Err(err).Msg("Failed to decode send request")
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}

	if err := validate.Struct(&req); err != nil {
		logger.Error().Err(err).Msg("Validation error on send request")
		http.Error(w, "Validation error: "+err.Error(), http.StatusBadRequest)
		return
	}

	content, err := req.content()
	if err != nil {
		logger.Error().Err(err).Msg("Invalid message content")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := dh.Service.Send(ctx, &Request{
		OwnerID:           req.OwnerID,
		AccountID:         req.AccountID,
		Recipients:        req.Recipients,
		Content:           content,
		ChatType:          model.ChatType(req.ChatType),
		ChatID:            req.ChatID,
		ContextProviderID: req.ContextMessageID,
		Tag:               req.Tag,
	})
	if err != nil {
		status := statusForSendError(err)
		logger.Error().Err(err).Int("status", status).Msg("Send failed")
		// Single-recipient failures still report the persisted outcome so the
		// caller can show the provider's error text next to the message id.
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error":  err.Error(),
			"result": result,
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"succeeded_count": len(result.Succeeded),
		"failed_count":    len(result.Failed),
		"result":          result,
	})
}

func statusForSendError(err error) int {
	switch {
	case errors.Is(err, ErrNoRecipients),
		errors.Is(err, ErrNoContent),
		errors.Is(err, ErrBroadcastChatID),
		errors.Is(err, ErrNotBroadcastChat):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientCredits):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}
