package llm

import (
	"context"

	"github.com/reelsight/reelsight-engine/pkg/models"
)

// MockClient is a configurable mock for testing retrieval functionality.
// Set the function fields to control behavior in tests.
type MockClient struct {
	// CreateEmbeddingFunc is called when CreateEmbedding is invoked.
	// If nil, returns a zero vector of the fixed dimensionality.
	CreateEmbeddingFunc func(ctx context.Context, input string) ([]float32, error)

	// ChatFunc is called when Chat is invoked.
	// If nil, returns an empty string and nil error.
	ChatFunc func(ctx context.Context, turns []Turn) (string, error)

	// Unavailable makes Available report false.
	Unavailable bool

	// Call tracking for verification
	CreateEmbeddingCalls int
	ChatCalls            int
	LastChatTurns        []Turn
}

// NewMockClient creates a new mock with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// CreateEmbedding implements Client.
func (m *MockClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	m.CreateEmbeddingCalls++
	if m.CreateEmbeddingFunc != nil {
		return m.CreateEmbeddingFunc(ctx, input)
	}
	return make([]float32, models.EmbeddingDimensions), nil
}

// Chat implements Client.
func (m *MockClient) Chat(ctx context.Context, turns []Turn) (string, error) {
	m.ChatCalls++
	m.LastChatTurns = turns
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, turns)
	}
	return "", nil
}

// Available implements Client.
func (m *MockClient) Available() bool {
	return !m.Unavailable
}

var _ Client = (*MockClient)(nil)
