package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/reelsight/reelsight-engine/pkg/apperrors"
	"github.com/reelsight/reelsight-engine/pkg/models"
)

// GetNotificationSettings retrieves a user's notification switches.
func (s *Store) GetNotificationSettings(ctx context.Context, userPlatformID int64) (*models.NotificationSettings, error) {
	pool, err := s.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		SELECT user_platform_id, notify_on_complete, notify_on_error, updated_at
		FROM rs_notification_settings
		WHERE user_platform_id = $1`

	var n models.NotificationSettings
	err = pool.QueryRow(ctx, query, userPlatformID).Scan(
		&n.UserPlatformID, &n.NotifyOnComplete, &n.NotifyOnError, &n.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get notification settings: %w", err)
	}

	return &n, nil
}

// SaveNotificationSettings upserts a user's notification switches.
func (s *Store) SaveNotificationSettings(ctx context.Context, settings *models.NotificationSettings) error {
	pool, err := s.conn()
	if err != nil {
		return err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		INSERT INTO rs_notification_settings (user_platform_id, notify_on_complete, notify_on_error, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_platform_id) DO UPDATE
		SET notify_on_complete = EXCLUDED.notify_on_complete,
		    notify_on_error = EXCLUDED.notify_on_error,
		    updated_at = EXCLUDED.updated_at`

	_, err = pool.Exec(ctx, query,
		settings.UserPlatformID, settings.NotifyOnComplete, settings.NotifyOnError, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save notification settings: %w", err)
	}
	return nil
}
