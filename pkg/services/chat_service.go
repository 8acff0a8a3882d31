// Package services hosts the orchestration layer: conversational
// retrieval over content transcripts and collection export processing.
// Services coordinate the storage contract, the metrics engine, the
// embedding store and the LLM client; they hold no state of their own.
package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/reelsight/reelsight-engine/pkg/embeddings"
	"github.com/reelsight/reelsight-engine/pkg/llm"
	"github.com/reelsight/reelsight-engine/pkg/models"
	"github.com/reelsight/reelsight-engine/pkg/prompts"
	"github.com/reelsight/reelsight-engine/pkg/storage"
)

// DefaultHistoryWindow is how many recent turns are replayed into each
// completion request. Older turns stay stored and are only read-windowed.
const DefaultHistoryWindow = 10

// Soft replies shown instead of raw failures. The user sees a short
// cause-specific message, never a transport error.
const (
	ReplyNoTranscript = "This video has no transcript yet, so I can't answer questions about it."
	ReplyNoContext    = "I couldn't load the context for this video right now. Please try again later."
	ReplyUnavailable  = "The assistant is unavailable at the moment. Please try again later."
	ReplyNoAnswer     = "I couldn't come up with an answer to that. Try rephrasing your question."
)

// ChatService answers user questions about a single content item. Per
// (user, item) pair it persists the user's turn before any remote call,
// ensures the transcript embedding exists, and replays a bounded history
// window into one completion request.
type ChatService struct {
	store         storage.Store
	embeddings    *embeddings.Store
	client        llm.Client
	logger        *zap.Logger
	historyWindow int
}

// NewChatService creates the conversational retrieval service.
// historyWindow <= 0 selects DefaultHistoryWindow.
func NewChatService(store storage.Store, emb *embeddings.Store, client llm.Client, logger *zap.Logger, historyWindow int) *ChatService {
	if historyWindow <= 0 {
		historyWindow = DefaultHistoryWindow
	}
	return &ChatService{
		store:         store,
		embeddings:    emb,
		client:        client,
		logger:        logger.Named("chat"),
		historyWindow: historyWindow,
	}
}

// Ask processes one question about the item and returns the reply text.
// Soft degradations (no transcript, no embedding context, LLM failure or
// empty output) come back as a reply string with a nil error; only item
// lookup and turn persistence failures are returned as errors, since
// losing the user's input is the one unacceptable outcome.
func (s *ChatService) Ask(ctx context.Context, userPlatformID, itemID int64, question string) (string, error) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return "", fmt.Errorf("failed to load item %d: %w", itemID, err)
	}

	// The user's turn is persisted before any remote call so a later
	// failure never loses their input.
	userTurn := &models.ChatTurn{
		UserPlatformID: userPlatformID,
		ItemID:         itemID,
		Role:           models.ChatRoleUser,
		Content:        question,
	}
	if _, err := s.store.SaveChatTurn(ctx, userTurn); err != nil {
		return "", fmt.Errorf("failed to persist user turn: %w", err)
	}

	if item.Transcript == nil || *item.Transcript == "" {
		return ReplyNoTranscript, nil
	}
	transcript := *item.Transcript

	if _, err := s.embeddings.Ensure(ctx, item); err != nil {
		s.logger.Warn("embedding ensure failed, answering without context",
			zap.Int64("item_id", itemID),
			zap.Error(err))
		return ReplyNoContext, nil
	}

	turns := s.buildTurns(ctx, userPlatformID, itemID, item, transcript, question)

	answer, err := s.client.Chat(ctx, turns)
	if err != nil {
		s.logger.Warn("completion call failed",
			zap.Int64("user_platform_id", userPlatformID),
			zap.Int64("item_id", itemID),
			zap.Error(err))
		return ReplyUnavailable, nil
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return ReplyNoAnswer, nil
	}

	assistantTurn := &models.ChatTurn{
		UserPlatformID: userPlatformID,
		ItemID:         itemID,
		Role:           models.ChatRoleAssistant,
		Content:        answer,
	}
	if _, err := s.store.SaveChatTurn(ctx, assistantTurn); err != nil {
		// The answer was produced; losing the stored copy is logged, not
		// surfaced.
		s.logger.Error("failed to persist assistant turn", zap.Error(err))
	}

	return answer, nil
}

// buildTurns assembles the bounded prompt: one system turn carrying the
// transcript verbatim, the recent history window in chronological order,
// and the new question as the final user turn.
func (s *ChatService) buildTurns(ctx context.Context, userPlatformID, itemID int64, item *models.ContentItem, transcript, question string) []llm.Turn {
	turns := []llm.Turn{{
		Role:    string(models.ChatRoleSystem),
		Content: prompts.BuildContentChatSystemPrompt(item, transcript),
	}}

	history, err := s.store.GetChatHistory(ctx, userPlatformID, itemID, s.historyWindow)
	if err != nil {
		s.logger.Warn("failed to load chat history, continuing without it", zap.Error(err))
		history = nil
	}
	// The question was already persisted, so the window usually ends with
	// it; strip it to avoid sending the same turn twice.
	if n := len(history); n > 0 &&
		history[n-1].Role == models.ChatRoleUser &&
		history[n-1].Content == question {
		history = history[:n-1]
	}
	for _, turn := range history {
		turns = append(turns, llm.Turn{Role: string(turn.Role), Content: turn.Content})
	}

	return append(turns, llm.Turn{Role: string(models.ChatRoleUser), Content: question})
}

// History returns the recent turns for the pair, oldest first.
func (s *ChatService) History(ctx context.Context, userPlatformID, itemID int64, limit int) ([]*models.ChatTurn, error) {
	if limit <= 0 {
		limit = s.historyWindow
	}
	return s.store.GetChatHistory(ctx, userPlatformID, itemID, limit)
}

// Reset clears the stored turn history for the pair. The transcript
// embedding persists; the next question starts a fresh conversation
// without paying the embedding cost again.
func (s *ChatService) Reset(ctx context.Context, userPlatformID, itemID int64) error {
	if err := s.store.ClearChatHistory(ctx, userPlatformID, itemID); err != nil {
		return fmt.Errorf("failed to clear chat history: %w", err)
	}
	s.logger.Info("chat history cleared",
		zap.Int64("user_platform_id", userPlatformID),
		zap.Int64("item_id", itemID))
	return nil
}
