package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/reelsight/reelsight-engine/pkg/apperrors"
	"github.com/reelsight/reelsight-engine/pkg/filter"
	"github.com/reelsight/reelsight-engine/pkg/logging"
	"github.com/reelsight/reelsight-engine/pkg/models"
	"github.com/reelsight/reelsight-engine/pkg/storage"
)

const itemColumns = `id, project_id, source_kind, source_id, platform_item_id, url, caption,
		author_username, author_id, views, likes, comments, duration_seconds, thumbnail_url,
		published_at, fetched_at, engagement_rate_video, engagement_rate_all, view_to_like_ratio,
		comments_to_likes_ratio, days_since_published, marketing_score,
		transcript, transcript_status, transcript_updated_at`

type itemScanner interface {
	Scan(dest ...any) error
}

func scanItem(row itemScanner) (*models.ContentItem, error) {
	var item models.ContentItem
	var kind, status string
	err := row.Scan(
		&item.ID, &item.ProjectID, &kind, &item.SourceID, &item.PlatformItemID,
		&item.URL, &item.Caption, &item.AuthorUsername, &item.AuthorID,
		&item.Views, &item.Likes, &item.Comments, &item.DurationSeconds, &item.ThumbnailURL,
		&item.PublishedAt, &item.FetchedAt,
		&item.EngagementRateVideo, &item.EngagementRateAll, &item.ViewToLikeRatio,
		&item.CommentsToLikesRatio, &item.DaysSincePublished, &item.MarketingScore,
		&item.Transcript, &status, &item.TranscriptUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.SourceKind = models.SourceKind(kind)
	item.TranscriptStatus = models.TranscriptStatus(status)
	return &item, nil
}

// SaveItems batch-upserts items by platform item id, running each through
// the metrics engine first. Items are attempted independently: a failure is
// logged and skipped, never aborting the rest. The return value is the
// count actually written.
func (s *Store) SaveItems(ctx context.Context, items []*models.ContentItem) (int, error) {
	pool, err := s.conn()
	if err != nil {
		return 0, err
	}

	query := `
		INSERT INTO rs_content_items (
			project_id, source_kind, source_id, platform_item_id, url, caption,
			author_username, author_id, views, likes, comments, duration_seconds,
			thumbnail_url, published_at, fetched_at,
			engagement_rate_video, engagement_rate_all, view_to_like_ratio,
			comments_to_likes_ratio, days_since_published, marketing_score,
			transcript_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (platform_item_id) DO UPDATE
		SET views = EXCLUDED.views,
		    likes = EXCLUDED.likes,
		    comments = EXCLUDED.comments,
		    caption = EXCLUDED.caption,
		    duration_seconds = EXCLUDED.duration_seconds,
		    thumbnail_url = EXCLUDED.thumbnail_url,
		    fetched_at = EXCLUDED.fetched_at,
		    engagement_rate_video = EXCLUDED.engagement_rate_video,
		    engagement_rate_all = EXCLUDED.engagement_rate_all,
		    view_to_like_ratio = EXCLUDED.view_to_like_ratio,
		    comments_to_likes_ratio = EXCLUDED.comments_to_likes_ratio,
		    days_since_published = EXCLUDED.days_since_published,
		    marketing_score = EXCLUDED.marketing_score`

	written := 0
	for _, raw := range items {
		enriched := s.metrics.Enrich(*raw)

		status := enriched.TranscriptStatus
		if status == "" {
			status = models.TranscriptNotStarted
		}
		fetchedAt := enriched.FetchedAt
		if fetchedAt.IsZero() {
			fetchedAt = time.Now().UTC()
		}

		opCtx, cancel := s.opCtx(ctx)
		_, err := pool.Exec(opCtx, query,
			enriched.ProjectID, string(enriched.SourceKind), enriched.SourceID,
			enriched.PlatformItemID, enriched.URL, enriched.Caption,
			enriched.AuthorUsername, enriched.AuthorID,
			enriched.Views, enriched.Likes, enriched.Comments, enriched.DurationSeconds,
			enriched.ThumbnailURL, enriched.PublishedAt, fetchedAt,
			enriched.EngagementRateVideo, enriched.EngagementRateAll, enriched.ViewToLikeRatio,
			enriched.CommentsToLikesRatio, enriched.DaysSincePublished, enriched.MarketingScore,
			string(status),
		)
		cancel()
		if err != nil {
			s.logger.Warn("skipping item in batch",
				zap.String("platform_item_id", raw.PlatformItemID),
				zap.String("error", logging.SanitizeError(err)))
			continue
		}
		written++
	}

	return written, nil
}

// GetItem retrieves a content item by id.
func (s *Store) GetItem(ctx context.Context, id int64) (*models.ContentItem, error) {
	pool, err := s.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM rs_content_items WHERE id = $1`, itemColumns)

	item, err := scanItem(pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// GetItemByPlatformID retrieves a content item by its natural key.
func (s *Store) GetItemByPlatformID(ctx context.Context, platformItemID string) (*models.ContentItem, error) {
	pool, err := s.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM rs_content_items WHERE platform_item_id = $1`, itemColumns)

	item, err := scanItem(pool.QueryRow(ctx, query, platformItemID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// ListItems returns the items matching a declarative filter.
func (s *Store) ListItems(ctx context.Context, f filter.ItemFilter) ([]*models.ContentItem, error) {
	pool, err := s.conn()
	if err != nil {
		return nil, err
	}

	compiled, err := filter.Compile(f)
	if err != nil {
		return nil, err
	}
	tail, args := storage.RenderFilter(compiled, storage.PostgresPlaceholder, 0)

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM rs_content_items%s`, itemColumns, tail)

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := make([]*models.ContentItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}

	return items, nil
}

// CountItems returns the number of items matching a filter, ignoring its
// pagination.
func (s *Store) CountItems(ctx context.Context, f filter.ItemFilter) (int64, error) {
	pool, err := s.conn()
	if err != nil {
		return 0, err
	}

	compiled, err := filter.Compile(f)
	if err != nil {
		return 0, err
	}
	where, args := storage.RenderWhere(compiled, storage.PostgresPlaceholder, 0)

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var count int64
	err = pool.QueryRow(ctx, `SELECT COUNT(*) FROM rs_content_items`+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}

// UpdateTranscript sets an item's transcript text and status together.
func (s *Store) UpdateTranscript(ctx context.Context, itemID int64, transcript string, status models.TranscriptStatus) error {
	pool, err := s.conn()
	if err != nil {
		return err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		UPDATE rs_content_items
		SET transcript = $2, transcript_status = $3, transcript_updated_at = $4
		WHERE id = $1`

	tag, err := pool.Exec(ctx, query, itemID, transcript, string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update transcript: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
