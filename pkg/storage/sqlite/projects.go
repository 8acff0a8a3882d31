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

// CreateProject inserts a new project owned by a user.
func (s *Store) CreateProject(ctx context.Context, project *models.Project) (*models.Project, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	now := time.Now().UTC()
	query := `
		INSERT INTO rs_projects (user_id, name, description, is_active, created_at)
		VALUES (?, ?, ?, 1, ?)`

	result, err := db.ExecContext(ctx, query,
		project.UserID, project.Name, project.Description, fmtTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read project id: %w", err)
	}

	stored := *project
	stored.ID = id
	stored.IsActive = true
	stored.CreatedAt = now
	return &stored, nil
}

// GetProject retrieves a project by id.
func (s *Store) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, name, description, is_active, created_at
		FROM rs_projects
		WHERE id = ?`

	var p models.Project
	var createdAt string
	err = db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.UserID, &p.Name, &p.Description, &p.IsActive, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	p.CreatedAt = s.parseTime(createdAt)

	return &p, nil
}

// ListProjects returns a user's active projects, newest first.
func (s *Store) ListProjects(ctx context.Context, userID int64) ([]*models.Project, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, name, description, is_active, created_at
		FROM rs_projects
		WHERE user_id = ? AND is_active = 1
		ORDER BY created_at DESC`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]*models.Project, 0)
	for rows.Next() {
		var p models.Project
		var createdAt string
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.IsActive, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		p.CreatedAt = s.parseTime(createdAt)
		projects = append(projects, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}

	return projects, nil
}

// DeactivateProject flag-deactivates a project.
func (s *Store) DeactivateProject(ctx context.Context, id int64) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	result, err := db.ExecContext(ctx, `UPDATE rs_projects SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate project: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
