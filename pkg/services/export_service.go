package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/reelsight/reelsight-engine/pkg/apperrors"
	"github.com/reelsight/reelsight-engine/pkg/filter"
	"github.com/reelsight/reelsight-engine/pkg/metrics"
	"github.com/reelsight/reelsight-engine/pkg/models"
	"github.com/reelsight/reelsight-engine/pkg/storage"
)

// ExportService processes content collections: resolves membership,
// enriches every item with derived marketing fields and serializes the
// result into one stored blob. The collection state machine is
// not_processed -> processing -> {completed | failed}; both end states
// are terminal until an explicit Reset.
type ExportService struct {
	store  storage.Store
	engine *metrics.Engine
	logger *zap.Logger
}

// NewExportService creates the collection exporter.
func NewExportService(store storage.Store, engine *metrics.Engine, logger *zap.Logger) *ExportService {
	return &ExportService{
		store:  store,
		engine: engine,
		logger: logger.Named("export"),
	}
}

// Process runs the collection through resolution, enrichment and
// serialization, persists the blob with a terminal status, and returns the
// serialized data. Zero resolved items fails the collection with
// ErrEmptyCollection rather than completing empty. Any resolution or
// serialization failure persists "failed" with the diagnostic; no partial
// blob is ever stored.
func (s *ExportService) Process(ctx context.Context, id int64, format models.ExportFormat) (string, error) {
	if !models.IsValidExportFormat(format) {
		return "", fmt.Errorf("unknown export format %q: %w", format, apperrors.ErrValidation)
	}

	collection, err := s.store.GetCollection(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to load collection %d: %w", id, err)
	}
	if collection.Status != models.CollectionNotProcessed {
		return "", fmt.Errorf("collection %d is %s, reset it before reprocessing: %w",
			id, collection.Status, apperrors.ErrValidation)
	}

	if err := s.store.MarkCollectionProcessing(ctx, id); err != nil {
		return "", fmt.Errorf("failed to mark collection %d processing: %w", id, err)
	}

	items, err := s.resolveMembership(ctx, collection)
	if err != nil {
		return "", s.fail(ctx, id, err)
	}
	if len(items) == 0 {
		return "", s.fail(ctx, id, fmt.Errorf("collection resolved to zero items: %w", apperrors.ErrEmptyCollection))
	}

	enriched := make([]models.ContentItem, 0, len(items))
	for _, item := range items {
		enriched = append(enriched, s.engine.Enrich(*item))
	}

	data, err := serialize(collection, enriched, format)
	if err != nil {
		return "", s.fail(ctx, id, fmt.Errorf("failed to serialize collection: %w", err))
	}

	if err := s.store.CompleteCollection(ctx, id, format, data); err != nil {
		return "", fmt.Errorf("failed to complete collection %d: %w", id, err)
	}

	s.logger.Info("collection processed",
		zap.Int64("collection_id", id),
		zap.String("format", string(format)),
		zap.Int("items", len(enriched)))
	return data, nil
}

// Reset returns a terminal collection to not_processed so it can be
// reprocessed. Resetting a collection that is not in a terminal state is a
// validation error.
func (s *ExportService) Reset(ctx context.Context, id int64) error {
	collection, err := s.store.GetCollection(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load collection %d: %w", id, err)
	}
	if collection.Status != models.CollectionCompleted && collection.Status != models.CollectionFailed {
		return fmt.Errorf("collection %d is %s, only terminal collections reset: %w",
			id, collection.Status, apperrors.ErrValidation)
	}
	return s.store.ResetCollection(ctx, id)
}

// fail persists the terminal failed state with the diagnostic and returns
// the original error.
func (s *ExportService) fail(ctx context.Context, id int64, cause error) error {
	if err := s.store.FailCollection(ctx, id, cause.Error()); err != nil {
		s.logger.Error("failed to persist collection failure",
			zap.Int64("collection_id", id),
			zap.Error(err))
	}
	return cause
}

// resolveMembership picks the item set: explicit ids first, then the
// stored filter, then every item in the project.
func (s *ExportService) resolveMembership(ctx context.Context, collection *models.ContentCollection) ([]*models.ContentItem, error) {
	if len(collection.ItemIDs) > 0 {
		items := make([]*models.ContentItem, 0, len(collection.ItemIDs))
		for _, itemID := range collection.ItemIDs {
			item, err := s.store.GetItem(ctx, itemID)
			if err != nil {
				if errors.Is(err, apperrors.ErrNotFound) {
					s.logger.Warn("collection references missing item, skipping",
						zap.Int64("collection_id", collection.ID),
						zap.Int64("item_id", itemID))
					continue
				}
				return nil, fmt.Errorf("failed to load item %d: %w", itemID, err)
			}
			items = append(items, item)
		}
		return items, nil
	}

	f := filter.ItemFilter{ProjectID: &collection.ProjectID}
	if collection.Filter != nil {
		f = *collection.Filter
		f.ProjectID = &collection.ProjectID
	}
	items, err := s.store.ListItems(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("failed to list collection items: %w", err)
	}
	return items, nil
}

func serialize(collection *models.ContentCollection, items []models.ContentItem, format models.ExportFormat) (string, error) {
	switch format {
	case models.FormatReport:
		return serializeReport(collection, items), nil
	case models.FormatCSV:
		return serializeCSV(items)
	case models.FormatJSON:
		return serializeJSON(items)
	default:
		return "", fmt.Errorf("unknown export format %q: %w", format, apperrors.ErrValidation)
	}
}

// pluralize returns the counted noun, pluralized when count != 1.
func pluralize(count int, noun string) string {
	if count == 1 {
		return noun
	}
	return inflection.Plural(noun)
}

// serializeReport renders the line-oriented human report. Field order and
// formatting are fixed so two runs over identical data diff clean.
func serializeReport(collection *models.ContentCollection, items []models.ContentItem) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Collection: %s\n", collection.Name)
	if collection.Description != nil && *collection.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", *collection.Description)
	}
	fmt.Fprintf(&b, "%d %s\n\n", len(items), pluralize(len(items), "item"))

	for i, item := range items {
		fmt.Fprintf(&b, "%d. @%s\n", i+1, item.AuthorUsername)
		fmt.Fprintf(&b, "   %s\n", item.URL)
		if item.Caption != "" {
			fmt.Fprintf(&b, "   %s\n", item.Caption)
		}
		fmt.Fprintf(&b, "   views=%s likes=%s comments=%s\n",
			fmtCount(item.Views), fmtCount(item.Likes), fmtCount(item.Comments))
		if item.MarketingScore != nil {
			fmt.Fprintf(&b, "   score=%.2f\n", *item.MarketingScore)
		}
		if item.PublishedAt != nil {
			fmt.Fprintf(&b, "   published=%s\n", item.PublishedAt.UTC().Format("2006-01-02"))
		}
		b.WriteString("\n")
	}

	return b.String()
}

var csvHeader = []string{
	"id", "platform_item_id", "author_username", "url", "caption",
	"views", "likes", "comments", "published_at",
	"engagement_rate_video", "engagement_rate_all",
	"view_to_like_ratio", "comments_to_likes_ratio",
	"days_since_published", "marketing_score",
}

func serializeCSV(items []models.ContentItem) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return "", err
	}
	for _, item := range items {
		record := []string{
			strconv.FormatInt(item.ID, 10),
			item.PlatformItemID,
			item.AuthorUsername,
			item.URL,
			item.Caption,
			fmtCount(item.Views),
			fmtCount(item.Likes),
			fmtCount(item.Comments),
			fmtTime(item.PublishedAt),
			fmtRatio(item.EngagementRateVideo),
			fmtRatio(item.EngagementRateAll),
			fmtRatio(item.ViewToLikeRatio),
			fmtRatio(item.CommentsToLikesRatio),
			fmtCount(item.DaysSincePublished),
			fmtRatio(item.MarketingScore),
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func serializeJSON(items []models.ContentItem) (string, error) {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func fmtCount(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func fmtRatio(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 4, 64)
}

func fmtTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
