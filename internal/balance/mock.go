package balance

import (
	"context"

	"github.com/mono-ai/aiproxy/internal/models"
)

// DefaultMockBalance is the balance MockProvider reports when none is configured.
const DefaultMockBalance = 10000000.0

// MockProvider reports a fixed balance and charges nothing remotely.
type MockProvider struct {
	Balance float64
}

var _ Provider = MockProvider{}

// NewMockProvider returns a provider with DefaultMockBalance.
func NewMockProvider() MockProvider {
	return MockProvider{Balance: DefaultMockBalance}
}

// GetRemainingBalance implements Provider.
func (p MockProvider) GetRemainingBalance(_ context.Context, group *models.Group) (float64, Consumer, error) {
	if group == nil || group.ID == "" {
		return 0, nil, ErrInvalidGroup
	}
	return p.Balance, mockConsumer{}, nil
}

type mockConsumer struct{}

// PostConsume reports the amount as charged.
func (mockConsumer) PostConsume(_ context.Context, _ string, amount float64) (float64, error) {
	return amount, nil
}
