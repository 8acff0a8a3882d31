package sqlite

import (
	"context"
	"fmt"

	"github.com/reelsight/reelsight-engine/pkg/apperrors"
	"github.com/reelsight/reelsight-engine/pkg/models"
)

// AddCompetitor adds a tracked competitor account under a project.
func (s *Store) AddCompetitor(ctx context.Context, competitor *models.Competitor) (*models.Competitor, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	result, err := db.ExecContext(ctx,
		`INSERT INTO rs_competitors (project_id, username, profile_url, is_active) VALUES (?, ?, ?, 1)`,
		competitor.ProjectID, competitor.Username, competitor.ProfileURL,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add competitor: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read competitor id: %w", err)
	}

	stored := *competitor
	stored.ID = id
	stored.IsActive = true
	return &stored, nil
}

// AddHashtag adds a tracked hashtag under a project.
func (s *Store) AddHashtag(ctx context.Context, hashtag *models.Hashtag) (*models.Hashtag, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	result, err := db.ExecContext(ctx,
		`INSERT INTO rs_hashtags (project_id, tag, is_active) VALUES (?, ?, 1)`,
		hashtag.ProjectID, hashtag.Tag,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to add hashtag: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read hashtag id: %w", err)
	}

	stored := *hashtag
	stored.ID = id
	stored.IsActive = true
	return &stored, nil
}

// ListSources returns every active tracked source of a project.
func (s *Store) ListSources(ctx context.Context, projectID int64) ([]*models.TrackedSource, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		SELECT 'competitor' AS kind, id, project_id, username AS label, is_active
		FROM rs_competitors
		WHERE project_id = ?1 AND is_active = 1
		UNION ALL
		SELECT 'hashtag' AS kind, id, project_id, tag AS label, is_active
		FROM rs_hashtags
		WHERE project_id = ?1 AND is_active = 1
		ORDER BY kind, id`

	rows, err := db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	sources := make([]*models.TrackedSource, 0)
	for rows.Next() {
		var src models.TrackedSource
		var kind string
		if err := rows.Scan(&kind, &src.ID, &src.ProjectID, &src.Label, &src.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		src.Kind = models.SourceKind(kind)
		sources = append(sources, &src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sources: %w", err)
	}

	return sources, nil
}

// DeactivateSource flag-deactivates a tracked source; content items keep
// their denormalized reference.
func (s *Store) DeactivateSource(ctx context.Context, kind models.SourceKind, id int64) error {
	db, err := s.conn()
	if err != nil {
		return err
	}

	var table string
	switch kind {
	case models.SourceCompetitor:
		table = "rs_competitors"
	case models.SourceHashtag:
		table = "rs_hashtags"
	default:
		return fmt.Errorf("%w: unknown source kind %q", apperrors.ErrValidation, kind)
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	result, err := db.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET is_active = 0 WHERE id = ?`, table), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate source: %w", err)
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
