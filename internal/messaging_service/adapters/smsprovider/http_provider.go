package smsprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// HTTPProvider sends SMS through a JSON-over-HTTP gateway API.
type HTTPProvider struct {
	logger     *slog.Logger
	httpClient *http.Client
	name       string
	apiURL     string
	apiKey     string
	senderID   string
}

func NewHTTPProvider(logger *slog.Logger, name, apiURL, apiKey, senderID string, httpClient *http.Client) *HTTPProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPProvider{
		logger:     logger.With("provider", name),
		httpClient: httpClient,
		name:       name,
		apiURL:     apiURL,
		apiKey:     apiKey,
		senderID:   senderID,
	}
}

type gatewaySendRequest struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Body      string `json:"body"`
	ClientRef string `json:"client_ref,omitempty"`
}

type gatewaySendResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

func (p *HTTPProvider) GetName() string {
	return p.name
}

func (p *HTTPProvider) Send(ctx context.Context, request SendRequest) (*SendResponse, error) {
	p.logger.InfoContext(ctx, "Dispatching SMS via gateway", "recipient", request.Recipient, "internal_message_id", request.InternalMessageID)

	reqBody := gatewaySendRequest{
		Sender:    p.senderID,
		Recipient: request.Recipient,
		Body:      request.Content,
		ClientRef: request.InternalMessageID,
	}
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewBuffer(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.ErrorContext(ctx, "Gateway HTTP request failed", "error", err, "internal_message_id", request.InternalMessageID)
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	var gatewayResp gatewaySendResponse
	if err := json.Unmarshal(respBytes, &gatewayResp); err != nil {
		p.logger.ErrorContext(ctx, "Failed to decode gateway response", "error", err, "status_code", httpResp.StatusCode, "body", string(respBytes))
		return &SendResponse{
			Success:      false,
			StatusCode:   httpResp.StatusCode,
			ErrorMessage: fmt.Sprintf("undecodable gateway response: %s", string(respBytes)),
			ProviderName: p.name,
		}, nil
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 || gatewayResp.Status != "accepted" {
		p.logger.WarnContext(ctx, "Gateway rejected SMS",
			"status_code", httpResp.StatusCode,
			"gateway_status", gatewayResp.Status,
			"gateway_message", gatewayResp.Message,
			"internal_message_id", request.InternalMessageID,
		)
		return &SendResponse{
			Success:      false,
			StatusCode:   httpResp.StatusCode,
			ErrorMessage: gatewayResp.Message,
			ProviderName: p.name,
		}, nil
	}

	p.logger.InfoContext(ctx, "SMS accepted by gateway", "provider_message_id", gatewayResp.MessageID, "internal_message_id", request.InternalMessageID)
	return &SendResponse{
		Success:           true,
		ProviderMessageID: gatewayResp.MessageID,
		StatusCode:        httpResp.StatusCode,
		ProviderName:      p.name,
	}, nil
}
