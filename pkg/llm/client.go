package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/reelsight/reelsight-engine/pkg/apperrors"
	"github.com/reelsight/reelsight-engine/pkg/logging"
	"github.com/reelsight/reelsight-engine/pkg/models"
)

// Config holds configuration for creating an LLM client.
type Config struct {
	Endpoint       string        // Base URL, e.g. "https://api.openai.com/v1"
	ChatModel      string        // e.g. "gpt-4o-mini"
	EmbeddingModel string        // e.g. "text-embedding-3-small"
	APIKey         string        // Empty key soft-disables the client
	Timeout        time.Duration // Per-call deadline
}

// OpenAIClient talks to an OpenAI-compatible endpoint. A client built
// without an API key is inert: every call returns ErrUnavailable.
type OpenAIClient struct {
	client         *openai.Client
	chatModel      string
	embeddingModel string
	timeout        time.Duration
	logger         *zap.Logger
}

// NewClient creates an LLM client. Unlike connection failures, a missing
// API key is not an error: the returned client reports unavailable on
// every call so callers degrade softly.
func NewClient(cfg *Config, logger *zap.Logger) *OpenAIClient {
	c := &OpenAIClient{
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
		timeout:        cfg.Timeout,
		logger:         logger.Named("llm"),
	}
	if c.chatModel == "" {
		c.chatModel = openai.GPT4oMini
	}
	if c.embeddingModel == "" {
		c.embeddingModel = string(openai.SmallEmbedding3)
	}
	if c.timeout == 0 {
		c.timeout = 30 * time.Second
	}

	if cfg.APIKey == "" {
		c.logger.Warn("no API key configured, retrieval features disabled")
		return c
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")
	}
	c.client = openai.NewClientWithConfig(clientConfig)
	return c
}

// Available implements Client.
func (c *OpenAIClient) Available() bool {
	return c.client != nil
}

// CreateEmbedding implements Client. The vector dimensionality is pinned
// to models.EmbeddingDimensions to match the stored vector column.
func (c *OpenAIClient) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	if c.client == nil {
		return nil, apperrors.ErrUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(c.embeddingModel),
		Input:      []string{input},
		Dimensions: models.EmbeddingDimensions,
	})
	if err != nil {
		c.logger.Error("embedding request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("%w: embedding request failed", apperrors.ErrUnavailable)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: no embedding in response", apperrors.ErrUnavailable)
	}

	vec := resp.Data[0].Embedding
	if len(vec) != models.EmbeddingDimensions {
		return nil, fmt.Errorf("%w: expected %d dimensions, got %d",
			apperrors.ErrUnavailable, models.EmbeddingDimensions, len(vec))
	}

	c.logger.Debug("embedding created",
		zap.Int("input_len", len(input)),
		zap.Duration("elapsed", time.Since(start)))

	return vec, nil
}

// Chat implements Client.
func (c *OpenAIClient) Chat(ctx context.Context, turns []Turn) (string, error) {
	if c.client == nil {
		return "", apperrors.ErrUnavailable
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, t := range turns {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    t.Role,
			Content: t.Content,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Debug("chat request",
		zap.String("model", c.chatModel),
		zap.Int("turns", len(turns)))

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.chatModel,
		Messages: messages,
	})
	if err != nil {
		c.logger.Error("chat request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.String("error", logging.SanitizeError(err)))
		return "", fmt.Errorf("%w: chat request failed", apperrors.ErrUnavailable)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", apperrors.ErrUnavailable)
	}

	content := resp.Choices[0].Message.Content

	c.logger.Info("chat request completed",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return content, nil
}
