package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/reelsight/reelsight-engine/pkg/apperrors"
	"github.com/reelsight/reelsight-engine/pkg/models"
)

// CreateParseRun appends one ingestion audit record.
func (s *Store) CreateParseRun(ctx context.Context, run *models.ParseRun) error {
	pool, err := s.conn()
	if err != nil {
		return err
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = models.RunRunning
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		INSERT INTO rs_parse_runs (id, project_id, target_kind, target_id, status, error,
			started_at, finished_at, found, added, errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = pool.Exec(ctx, query,
		run.ID, run.ProjectID, string(run.TargetKind), run.TargetID, string(run.Status),
		run.Error, run.StartedAt, run.FinishedAt, run.Found, run.Added, run.Errors,
	)
	if err != nil {
		return fmt.Errorf("failed to create parse run: %w", err)
	}
	return nil
}

// UpdateParseRun is the explicit mutation path for long-running runs.
func (s *Store) UpdateParseRun(ctx context.Context, run *models.ParseRun) error {
	pool, err := s.conn()
	if err != nil {
		return err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		UPDATE rs_parse_runs
		SET status = $2, error = $3, finished_at = $4, found = $5, added = $6, errors = $7
		WHERE id = $1`

	tag, err := pool.Exec(ctx, query,
		run.ID, string(run.Status), run.Error, run.FinishedAt, run.Found, run.Added, run.Errors,
	)
	if err != nil {
		return fmt.Errorf("failed to update parse run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ListParseRuns returns a project's most recent runs, newest first.
func (s *Store) ListParseRuns(ctx context.Context, projectID int64, limit int) ([]*models.ParseRun, error) {
	pool, err := s.conn()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		SELECT id, project_id, target_kind, target_id, status, error,
			started_at, finished_at, found, added, errors
		FROM rs_parse_runs
		WHERE project_id = $1
		ORDER BY started_at DESC
		LIMIT $2`

	rows, err := pool.Query(ctx, query, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list parse runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*models.ParseRun, 0)
	for rows.Next() {
		var r models.ParseRun
		var kind, status string
		if err := rows.Scan(&r.ID, &r.ProjectID, &kind, &r.TargetID, &status, &r.Error,
			&r.StartedAt, &r.FinishedAt, &r.Found, &r.Added, &r.Errors); err != nil {
			return nil, fmt.Errorf("failed to scan parse run: %w", err)
		}
		r.TargetKind = models.SourceKind(kind)
		r.Status = models.RunStatus(status)
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parse runs: %w", err)
	}

	return runs, nil
}
