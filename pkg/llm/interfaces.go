// Package llm provides the OpenAI-compatible completion and embedding
// client used for transcript retrieval. Both contracts are narrow and
// treated as untrusted-latency dependencies: every call carries the
// configured timeout and an unconfigured credential soft-disables the
// feature instead of failing the process.
package llm

import (
	"context"
)

// Turn is one role-tagged message of a completion request.
type Turn struct {
	Role    string // "system", "user" or "assistant"
	Content string
}

// Client defines the completion and embedding operations. Use this
// interface for dependency injection to enable mocking in tests.
type Client interface {
	// CreateEmbedding generates the fixed-dimension embedding vector for
	// the input text.
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)

	// Chat sends ordered role-tagged turns and returns the assistant's
	// reply text.
	Chat(ctx context.Context, turns []Turn) (string, error)

	// Available reports whether a credential is configured. When false,
	// every call returns apperrors.ErrUnavailable.
	Available() bool
}

// Ensure OpenAIClient implements Client at compile time.
var _ Client = (*OpenAIClient)(nil)
