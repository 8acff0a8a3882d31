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

// UpsertUser creates the user on first contact or updates fields in place,
// keyed by platform id. Users are never hard-deleted.
func (s *Store) UpsertUser(ctx context.Context, user *models.User) (*models.User, error) {
	pool, err := s.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		INSERT INTO rs_users (platform_id, username, first_name, last_name, is_active, created_at)
		VALUES ($1, $2, $3, $4, TRUE, $5)
		ON CONFLICT (platform_id) DO UPDATE
		SET username = EXCLUDED.username,
		    first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    is_active = TRUE
		RETURNING id, created_at`

	stored := *user
	err = pool.QueryRow(ctx, query,
		user.PlatformID, user.Username, user.FirstName, user.LastName, time.Now().UTC(),
	).Scan(&stored.ID, &stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	stored.IsActive = true

	return &stored, nil
}

// GetUserByPlatformID retrieves a user by platform identity id.
func (s *Store) GetUserByPlatformID(ctx context.Context, platformID int64) (*models.User, error) {
	pool, err := s.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		SELECT id, platform_id, username, first_name, last_name, is_active, created_at
		FROM rs_users
		WHERE platform_id = $1`

	var u models.User
	err = pool.QueryRow(ctx, query, platformID).Scan(
		&u.ID, &u.PlatformID, &u.Username, &u.FirstName, &u.LastName, &u.IsActive, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &u, nil
}
