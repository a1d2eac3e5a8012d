package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ak-softwares/wa-api-sub002/internal/config"
	"github.com/ak-softwares/wa-api-sub002/pkg/types"
	"github.com/rs/zerolog/log"
)

// Client talks to the WhatsApp Cloud (Graph) API. One client serves all
// tenant accounts; the phone number id is supplied per call.
type Client struct {
	httpClient  *http.Client
	accessToken string
	baseURL     string
	apiVersion  string
}

func NewClient(cfg *config.WhatsAppConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 50,
				IdleConnTimeout:     90 * time.Second,
				DisableKeepAlives:   false,
			},
		},
		accessToken: cfg.AccessToken,
		baseURL:     cfg.BaseURL,
		apiVersion:  cfg.APIVersion,
	}
}

// SendMessage posts one outbound message and returns the provider message id.
// A response without a message id is treated as a failure even when the HTTP
// status is 200.
func (c *Client) SendMessage(ctx context.Context, phoneNumberID string, req *types.ProviderSendRequest) (string, error) {
	req.MessagingProduct = "whatsapp"

	respBody, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/%s/%s/messages", c.apiVersion, phoneNumberID), req)
	if err != nil {
		return "", err
	}

	var resp types.ProviderSendResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.Error != nil {
		return "", fmt.Errorf("whatsapp error: %s (code %d)", resp.Error.Message, resp.Error.Code)
	}
	if len(resp.Messages) == 0 || resp.Messages[0].ID == "" {
		return "", fmt.Errorf("whatsapp response missing message id")
	}

	return resp.Messages[0].ID, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal request body")
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(jsonBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create HTTP request")
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		log.Error().Err(err).
			Str("method", method).
			Str("url", url).
			Int64("duration_ms", duration).
			Msg("HTTP request failed")
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error().Err(err).
			Str("method", method).
			Str("url", url).
			Int64("duration_ms", duration).
			Msg("Failed to read response body")
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		// Graph errors arrive as {"error": {...}}; surface the message text
		var errResp types.ProviderSendResponse
		if jsonErr := json.Unmarshal(respBody, &errResp); jsonErr == nil && errResp.Error != nil {
			log.Error().
				Int("status", resp.StatusCode).
				Str("method", method).
				Str("url", url).
				Int64("duration_ms", duration).
				Str("graph_error", errResp.Error.Message).
				Msg("WhatsApp API error response")
			return nil, fmt.Errorf("whatsapp error: %s (code %d)", errResp.Error.Message, errResp.Error.Code)
		}
		log.Error().
			Int("status", resp.StatusCode).
			Str("method", method).
			Str("url", url).
			Int64("duration_ms", duration).
			Str("body", string(respBody)).
			Msg("WhatsApp API error response")
		return nil, fmt.Errorf("whatsapp error: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	log.Debug().
		Int("status", resp.StatusCode).
		Str("method", method).
		Str("url", url).
		Int64("duration_ms", duration).
		Msg("WhatsApp API request successful")

	return respBody, nil
}
