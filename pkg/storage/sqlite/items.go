package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

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

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanItem(row rowScanner) (*models.ContentItem, error) {
	var item models.ContentItem
	var kind, status, fetchedAt string
	var publishedAt, transcriptUpdatedAt sql.NullString
	err := row.Scan(
		&item.ID, &item.ProjectID, &kind, &item.SourceID, &item.PlatformItemID,
		&item.URL, &item.Caption, &item.AuthorUsername, &item.AuthorID,
		&item.Views, &item.Likes, &item.Comments, &item.DurationSeconds, &item.ThumbnailURL,
		&publishedAt, &fetchedAt,
		&item.EngagementRateVideo, &item.EngagementRateAll, &item.ViewToLikeRatio,
		&item.CommentsToLikesRatio, &item.DaysSincePublished, &item.MarketingScore,
		&item.Transcript, &status, &transcriptUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.SourceKind = models.SourceKind(kind)
	item.TranscriptStatus = models.TranscriptStatus(status)
	item.PublishedAt = s.parseTimePtr(publishedAt)
	item.FetchedAt = s.parseTime(fetchedAt)
	item.TranscriptUpdatedAt = s.parseTimePtr(transcriptUpdatedAt)
	return &item, nil
}

// SaveItems batch-upserts items by platform item id, enriching each with
// derived marketing fields first. Items are attempted independently;
// failures are logged and skipped.
func (s *Store) SaveItems(ctx context.Context, items []*models.ContentItem) (int, error) {
	db, err := s.conn()
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
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (platform_item_id) DO UPDATE
		SET views = excluded.views,
		    likes = excluded.likes,
		    comments = excluded.comments,
		    caption = excluded.caption,
		    duration_seconds = excluded.duration_seconds,
		    thumbnail_url = excluded.thumbnail_url,
		    fetched_at = excluded.fetched_at,
		    engagement_rate_video = excluded.engagement_rate_video,
		    engagement_rate_all = excluded.engagement_rate_all,
		    view_to_like_ratio = excluded.view_to_like_ratio,
		    comments_to_likes_ratio = excluded.comments_to_likes_ratio,
		    days_since_published = excluded.days_since_published,
		    marketing_score = excluded.marketing_score`

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
		_, err := db.ExecContext(opCtx, query,
			enriched.ProjectID, string(enriched.SourceKind), enriched.SourceID,
			enriched.PlatformItemID, enriched.URL, enriched.Caption,
			enriched.AuthorUsername, enriched.AuthorID,
			enriched.Views, enriched.Likes, enriched.Comments, enriched.DurationSeconds,
			enriched.ThumbnailURL, fmtTimePtr(enriched.PublishedAt), fmtTime(fetchedAt),
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
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM rs_content_items WHERE id = ?`, itemColumns)

	item, err := s.scanItem(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// GetItemByPlatformID retrieves a content item by its natural key.
func (s *Store) GetItemByPlatformID(ctx context.Context, platformItemID string) (*models.ContentItem, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM rs_content_items WHERE platform_item_id = ?`, itemColumns)

	item, err := s.scanItem(db.QueryRowContext(ctx, query, platformItemID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// ListItems returns the items matching a declarative filter.
func (s *Store) ListItems(ctx context.Context, f filter.ItemFilter) ([]*models.ContentItem, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	compiled, err := filter.Compile(f)
	if err != nil {
		return nil, err
	}
	tail, args := storage.RenderFilter(compiled, storage.QuestionPlaceholder, 0)
	for i, a := range args {
		// Bound times must match the stored text form.
		if t, ok := a.(time.Time); ok {
			args[i] = fmtTime(t)
		}
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM rs_content_items%s`, itemColumns, tail)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := make([]*models.ContentItem, 0)
	for rows.Next() {
		item, err := s.scanItem(rows)
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
	db, err := s.conn()
	if err != nil {
		return 0, err
	}

	compiled, err := filter.Compile(f)
	if err != nil {
		return 0, err
	}
	where, args := storage.RenderWhere(compiled, storage.QuestionPlaceholder, 0)
	for i, a := range args {
		if t, ok := a.(time.Time); ok {
			args[i] = fmtTime(t)
		}
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var count int64
	err = db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rs_content_items`+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}

// UpdateTranscript sets an item's transcript text and status together.
func (s *Store) UpdateTranscript(ctx context.Context, itemID int64, transcript string, status models.TranscriptStatus) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		UPDATE rs_content_items
		SET transcript = ?, transcript_status = ?, transcript_updated_at = ?
		WHERE id = ?`

	result, err := db.ExecContext(ctx, query, transcript, string(status), fmtTime(time.Now()), itemID)
	if err != nil {
		return fmt.Errorf("failed to update transcript: %w", err)
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
