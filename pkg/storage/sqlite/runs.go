package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/reelsight/reelsight-engine/pkg/apperrors"
	"github.com/reelsight/reelsight-engine/pkg/models"
)

// CreateParseRun appends one ingestion audit record.
func (s *Store) CreateParseRun(ctx context.Context, run *models.ParseRun) error {
	db, err := s.conn()
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = db.ExecContext(ctx, query,
		run.ID.String(), run.ProjectID, string(run.TargetKind), run.TargetID, string(run.Status),
		run.Error, fmtTime(run.StartedAt), fmtTimePtr(run.FinishedAt), run.Found, run.Added, run.Errors,
	)
	if err != nil {
		return fmt.Errorf("failed to create parse run: %w", err)
	}
	return nil
}

// UpdateParseRun is the explicit mutation path for long-running runs.
func (s *Store) UpdateParseRun(ctx context.Context, run *models.ParseRun) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		UPDATE rs_parse_runs
		SET status = ?, error = ?, finished_at = ?, found = ?, added = ?, errors = ?
		WHERE id = ?`

	result, err := db.ExecContext(ctx, query,
		string(run.Status), run.Error, fmtTimePtr(run.FinishedAt),
		run.Found, run.Added, run.Errors, run.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update parse run: %w", err)
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

// ListParseRuns returns a project's most recent runs, newest first.
func (s *Store) ListParseRuns(ctx context.Context, projectID int64, limit int) ([]*models.ParseRun, error) {
	db, err := s.conn()
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
		WHERE project_id = ?
		ORDER BY started_at DESC
		LIMIT ?`

	rows, err := db.QueryContext(ctx, query, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list parse runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*models.ParseRun, 0)
	for rows.Next() {
		var r models.ParseRun
		var id, kind, status, startedAt string
		var finishedAt sql.NullString
		if err := rows.Scan(&id, &r.ProjectID, &kind, &r.TargetID, &status, &r.Error,
			&startedAt, &finishedAt, &r.Found, &r.Added, &r.Errors); err != nil {
			return nil, fmt.Errorf("failed to scan parse run: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed run id %q", apperrors.ErrValidation, id)
		}
		r.ID = parsed
		r.TargetKind = models.SourceKind(kind)
		r.Status = models.RunStatus(status)
		r.StartedAt = s.parseTime(startedAt)
		r.FinishedAt = s.parseTimePtr(finishedAt)
		runs = append(runs, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parse runs: %w", err)
	}

	return runs, nil
}
