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

// UpsertUser creates the user on first contact or updates fields in place,
// keyed by platform id.
func (s *Store) UpsertUser(ctx context.Context, user *models.User) (*models.User, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		INSERT INTO rs_users (platform_id, username, first_name, last_name, is_active, created_at)
		VALUES (?, ?, ?, ?, 1, ?)
		ON CONFLICT (platform_id) DO UPDATE
		SET username = excluded.username,
		    first_name = excluded.first_name,
		    last_name = excluded.last_name,
		    is_active = 1`

	_, err = db.ExecContext(ctx, query,
		user.PlatformID, user.Username, user.FirstName, user.LastName, fmtTime(time.Now()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	// Re-read so the caller gets the stored row either way (the surrogate
	// id of the first insert survives later upserts).
	return s.GetUserByPlatformID(ctx, user.PlatformID)
}

// GetUserByPlatformID retrieves a user by platform identity id.
func (s *Store) GetUserByPlatformID(ctx context.Context, platformID int64) (*models.User, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		SELECT id, platform_id, username, first_name, last_name, is_active, created_at
		FROM rs_users
		WHERE platform_id = ?`

	var u models.User
	var createdAt string
	err = db.QueryRowContext(ctx, query, platformID).Scan(
		&u.ID, &u.PlatformID, &u.Username, &u.FirstName, &u.LastName, &u.IsActive, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.CreatedAt = s.parseTime(createdAt)

	return &u, nil
}
