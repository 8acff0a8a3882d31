package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/reelsight/reelsight-engine/pkg/apperrors"
	"github.com/reelsight/reelsight-engine/pkg/models"
)

// GetNotificationSettings retrieves a user's notification switches.
func (s *Store) GetNotificationSettings(ctx context.Context, userPlatformID int64) (*models.NotificationSettings, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		SELECT user_platform_id, notify_on_complete, notify_on_error, updated_at
		FROM rs_notification_settings
		WHERE user_platform_id = ?`

	var n models.NotificationSettings
	var updatedAt string
	err = db.QueryRowContext(ctx, query, userPlatformID).Scan(
		&n.UserPlatformID, &n.NotifyOnComplete, &n.NotifyOnError, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get notification settings: %w", err)
	}
	n.UpdatedAt = s.parseTime(updatedAt)

	return &n, nil
}

// SaveNotificationSettings upserts a user's notification switches.
func (s *Store) SaveNotificationSettings(ctx context.Context, settings *models.NotificationSettings) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		INSERT INTO rs_notification_settings (user_platform_id, notify_on_complete, notify_on_error, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_platform_id) DO UPDATE
		SET notify_on_complete = excluded.notify_on_complete,
		    notify_on_error = excluded.notify_on_error,
		    updated_at = excluded.updated_at`

	_, err = db.ExecContext(ctx, query,
		settings.UserPlatformID, settings.NotifyOnComplete, settings.NotifyOnError, fmtTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save notification settings: %w", err)
	}
	return nil
}
