package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/reelsight/reelsight-engine/pkg/models"
)

// SaveChatTurn appends one turn to the (user, item) conversation.
func (s *Store) SaveChatTurn(ctx context.Context, turn *models.ChatTurn) (*models.ChatTurn, error) {
	pool, err := s.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		INSERT INTO rs_chat_turns (user_platform_id, item_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	stored := *turn
	err = pool.QueryRow(ctx, query,
		turn.UserPlatformID, turn.ItemID, string(turn.Role), turn.Content, time.Now().UTC(),
	).Scan(&stored.ID, &stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save chat turn: %w", err)
	}

	return &stored, nil
}

// GetChatHistory returns the most recent turns for the pair in
// chronological order. No stored turns is an empty slice, not an error.
func (s *Store) GetChatHistory(ctx context.Context, userPlatformID, itemID int64, limit int) ([]*models.ChatTurn, error) {
	pool, err := s.conn()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	// Window to the most recent turns, then restore chronological order.
	query := `
		SELECT id, user_platform_id, item_id, role, content, created_at
		FROM rs_chat_turns
		WHERE user_platform_id = $1 AND item_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3`

	rows, err := pool.Query(ctx, query, userPlatformID, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}
	defer rows.Close()

	turns := make([]*models.ChatTurn, 0)
	for rows.Next() {
		var t models.ChatTurn
		var role string
		if err := rows.Scan(&t.ID, &t.UserPlatformID, &t.ItemID, &role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat turn: %w", err)
		}
		t.Role = models.ChatRole(role)
		turns = append(turns, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat turns: %w", err)
	}

	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	return turns, nil
}

// ClearChatHistory physically removes every turn for the pair.
func (s *Store) ClearChatHistory(ctx context.Context, userPlatformID, itemID int64) error {
	pool, err := s.conn()
	if err != nil {
		return err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, err = pool.Exec(ctx,
		`DELETE FROM rs_chat_turns WHERE user_platform_id = $1 AND item_id = $2`,
		userPlatformID, itemID)
	if err != nil {
		return fmt.Errorf("failed to clear chat history: %w", err)
	}
	return nil
}
