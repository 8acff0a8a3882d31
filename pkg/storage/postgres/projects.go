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

// CreateProject inserts a new project owned by a user.
func (s *Store) CreateProject(ctx context.Context, project *models.Project) (*models.Project, error) {
	pool, err := s.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		INSERT INTO rs_projects (user_id, name, description, is_active, created_at)
		VALUES ($1, $2, $3, TRUE, $4)
		RETURNING id, created_at`

	stored := *project
	err = pool.QueryRow(ctx, query,
		project.UserID, project.Name, project.Description, time.Now().UTC(),
	).Scan(&stored.ID, &stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	stored.IsActive = true

	return &stored, nil
}

// GetProject retrieves a project by id.
func (s *Store) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	pool, err := s.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, name, description, is_active, created_at
		FROM rs_projects
		WHERE id = $1`

	var p models.Project
	err = pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.UserID, &p.Name, &p.Description, &p.IsActive, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &p, nil
}

// ListProjects returns a user's active projects, newest first.
func (s *Store) ListProjects(ctx context.Context, userID int64) ([]*models.Project, error) {
	pool, err := s.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, name, description, is_active, created_at
		FROM rs_projects
		WHERE user_id = $1 AND is_active
		ORDER BY created_at DESC`

	rows, err := pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]*models.Project, 0)
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}

	return projects, nil
}

// DeactivateProject flag-deactivates a project. Projects are never purged.
func (s *Store) DeactivateProject(ctx context.Context, id int64) error {
	pool, err := s.conn()
	if err != nil {
		return err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	tag, err := pool.Exec(ctx, `UPDATE rs_projects SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
