package postgres

import (
	"context"
	"fmt"

	"github.com/reelsight/reelsight-engine/pkg/apperrors"
	"github.com/reelsight/reelsight-engine/pkg/models"
)

// AddCompetitor adds a tracked competitor account under a project.
func (s *Store) AddCompetitor(ctx context.Context, competitor *models.Competitor) (*models.Competitor, error) {
	pool, err := s.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		INSERT INTO rs_competitors (project_id, username, profile_url, is_active)
		VALUES ($1, $2, $3, TRUE)
		RETURNING id`

	stored := *competitor
	err = pool.QueryRow(ctx, query,
		competitor.ProjectID, competitor.Username, competitor.ProfileURL,
	).Scan(&stored.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to add competitor: %w", err)
	}
	stored.IsActive = true

	return &stored, nil
}

// AddHashtag adds a tracked hashtag under a project.
func (s *Store) AddHashtag(ctx context.Context, hashtag *models.Hashtag) (*models.Hashtag, error) {
	pool, err := s.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		INSERT INTO rs_hashtags (project_id, tag, is_active)
		VALUES ($1, $2, TRUE)
		RETURNING id`

	stored := *hashtag
	err = pool.QueryRow(ctx, query, hashtag.ProjectID, hashtag.Tag).Scan(&stored.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to add hashtag: %w", err)
	}
	stored.IsActive = true

	return &stored, nil
}

// ListSources returns every active tracked source of a project as the
// kind-tagged view, competitors first.
func (s *Store) ListSources(ctx context.Context, projectID int64) ([]*models.TrackedSource, error) {
	pool, err := s.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		SELECT 'competitor' AS kind, id, project_id, username AS label, is_active
		FROM rs_competitors
		WHERE project_id = $1 AND is_active
		UNION ALL
		SELECT 'hashtag' AS kind, id, project_id, tag AS label, is_active
		FROM rs_hashtags
		WHERE project_id = $1 AND is_active
		ORDER BY kind, id`

	rows, err := pool.Query(ctx, query, projectID)
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

// DeactivateSource flag-deactivates a tracked source. Content items keep
// their denormalized (kind, id) reference; nothing cascades.
func (s *Store) DeactivateSource(ctx context.Context, kind models.SourceKind, id int64) error {
	pool, err := s.conn()
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

	tag, err := pool.Exec(ctx, fmt.Sprintf(`UPDATE %s SET is_active = FALSE WHERE id = $1`, table), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate source: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
