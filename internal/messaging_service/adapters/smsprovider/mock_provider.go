package smsprovider

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/google/uuid"
)

// MockProvider is a simulated SMS provider for development and tests.
type MockProvider struct {
	logger   *slog.Logger
	name     string
	failRate float64 // chance to simulate failure (0.0 to 1.0)
}

func NewMockProvider(logger *slog.Logger, name string, failRate float64) Provider {
	if name == "" {
		name = "mock"
	}
	return &MockProvider{
		logger:   logger.With("provider", name),
		name:     name,
		failRate: failRate,
	}
}

func (p *MockProvider) GetName() string {
	return p.name
}

func (p *MockProvider) Send(ctx context.Context, request SendRequest) (*SendResponse, error) {
	if rand.Float64() < p.failRate {
		errMsg := fmt.Sprintf("simulated gateway failure for recipient %s", request.Recipient)
		p.logger.WarnContext(ctx, "MockProvider: send failed", "internal_message_id", request.InternalMessageID, "error", errMsg)
		return &SendResponse{
			Success:      false,
			StatusCode:   500,
			ErrorMessage: errMsg,
			ProviderName: p.name,
		}, nil
	}

	providerMsgID := uuid.NewString()
	p.logger.InfoContext(ctx, "MockProvider: SMS sent (simulated)",
		"internal_message_id", request.InternalMessageID,
		"provider_message_id", providerMsgID,
		"content_len", len(request.Content),
	)
	return &SendResponse{
		Success:           true,
		ProviderMessageID: providerMsgID,
		StatusCode:        200,
		ProviderName:      p.name,
	}, nil
}
