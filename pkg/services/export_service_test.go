package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reelsight/reelsight-engine/pkg/apperrors"
	"github.com/reelsight/reelsight-engine/pkg/filter"
	"github.com/reelsight/reelsight-engine/pkg/metrics"
	"github.com/reelsight/reelsight-engine/pkg/models"
	"github.com/reelsight/reelsight-engine/pkg/testhelpers"
)

func i64(v int64) *int64 { return &v }

func testItems() []*models.ContentItem {
	published := time.Now().UTC().Add(-10*24*time.Hour + 30*time.Minute)
	return []*models.ContentItem{
		{
			ID: 1, ProjectID: 3, PlatformItemID: "p-1",
			AuthorUsername: "alpha", URL: "https://example.com/1",
			Caption: "first", Views: i64(10000), Likes: i64(1000),
			Comments: i64(100), PublishedAt: &published,
		},
		{
			ID: 2, ProjectID: 3, PlatformItemID: "p-2",
			AuthorUsername: "beta", URL: "https://example.com/2",
			Views: i64(500), Likes: i64(20), PublishedAt: &published,
		},
	}
}

func exportMockStore(collection *models.ContentCollection, items []*models.ContentItem) *testhelpers.MockStore {
	byID := make(map[int64]*models.ContentItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	db := &testhelpers.MockStore{}
	db.GetCollectionFunc = func(ctx context.Context, id int64) (*models.ContentCollection, error) {
		if collection == nil || collection.ID != id {
			return nil, apperrors.ErrNotFound
		}
		c := *collection
		return &c, nil
	}
	db.GetItemFunc = func(ctx context.Context, id int64) (*models.ContentItem, error) {
		if item, ok := byID[id]; ok {
			return item, nil
		}
		return nil, apperrors.ErrNotFound
	}
	db.ListItemsFunc = func(ctx context.Context, f filter.ItemFilter) ([]*models.ContentItem, error) {
		return items, nil
	}
	return db
}

func TestProcess_JSONRoundTrip(t *testing.T) {
	items := testItems()
	coll := &models.ContentCollection{
		ID: 5, ProjectID: 3, Name: "best of",
		ItemIDs: []int64{1, 2},
		Status:  models.CollectionNotProcessed,
	}
	db := exportMockStore(coll, items)
	svc := NewExportService(db, metrics.New(), zap.NewNop())

	data, err := svc.Process(context.Background(), 5, models.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 1, db.CompleteCalls)
	assert.Equal(t, 0, db.FailCalls)

	var decoded []models.ContentItem
	require.NoError(t, json.Unmarshal([]byte(data), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "p-1", decoded[0].PlatformItemID)
	require.NotNil(t, decoded[0].EngagementRateVideo, "items must be enriched before export")
	assert.InDelta(t, 11.0, *decoded[0].EngagementRateVideo, 0.01)
	require.NotNil(t, decoded[0].DaysSincePublished)
	assert.Equal(t, int64(10), *decoded[0].DaysSincePublished)
}

func TestProcess_CSVHasHeaderAndRows(t *testing.T) {
	coll := &models.ContentCollection{
		ID: 5, ProjectID: 3, Name: "best of",
		ItemIDs: []int64{1, 2},
		Status:  models.CollectionNotProcessed,
	}
	db := exportMockStore(coll, testItems())
	svc := NewExportService(db, metrics.New(), zap.NewNop())

	data, err := svc.Process(context.Background(), 5, models.FormatCSV)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(data), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "id,platform_item_id,author_username"))
	assert.Contains(t, lines[1], "alpha")
	assert.Contains(t, lines[2], "beta")
}

func TestProcess_ReportFormat(t *testing.T) {
	coll := &models.ContentCollection{
		ID: 5, ProjectID: 3, Name: "launch week",
		ItemIDs: []int64{1, 2},
		Status:  models.CollectionNotProcessed,
	}
	db := exportMockStore(coll, testItems())
	svc := NewExportService(db, metrics.New(), zap.NewNop())

	data, err := svc.Process(context.Background(), 5, models.FormatReport)
	require.NoError(t, err)
	assert.Contains(t, data, "Collection: launch week")
	assert.Contains(t, data, "2 items")
	assert.Contains(t, data, "1. @alpha")
	assert.Contains(t, data, "2. @beta")
}

func TestProcess_ReportSingularCount(t *testing.T) {
	coll := &models.ContentCollection{
		ID: 5, ProjectID: 3, Name: "solo",
		ItemIDs: []int64{1},
		Status:  models.CollectionNotProcessed,
	}
	db := exportMockStore(coll, testItems())
	svc := NewExportService(db, metrics.New(), zap.NewNop())

	data, err := svc.Process(context.Background(), 5, models.FormatReport)
	require.NoError(t, err)
	assert.Contains(t, data, "1 item\n")
	assert.NotContains(t, data, "1 items")
}

func TestProcess_EmptyCollectionFails(t *testing.T) {
	coll := &models.ContentCollection{
		ID: 5, ProjectID: 3, Name: "empty",
		ItemIDs: []int64{99},
		Status:  models.CollectionNotProcessed,
	}
	db := exportMockStore(coll, nil)
	svc := NewExportService(db, metrics.New(), zap.NewNop())

	_, err := svc.Process(context.Background(), 5, models.FormatJSON)
	assert.ErrorIs(t, err, apperrors.ErrEmptyCollection)
	assert.Equal(t, 1, db.FailCalls)
	assert.Equal(t, 0, db.CompleteCalls)
}

func TestProcess_StoredFilterMembership(t *testing.T) {
	minViews := int64(100)
	coll := &models.ContentCollection{
		ID: 5, ProjectID: 3, Name: "filtered",
		Filter: &filter.ItemFilter{MinViews: &minViews},
		Status: models.CollectionNotProcessed,
	}
	items := testItems()
	db := exportMockStore(coll, items)
	var gotFilter filter.ItemFilter
	db.ListItemsFunc = func(ctx context.Context, f filter.ItemFilter) ([]*models.ContentItem, error) {
		gotFilter = f
		return items, nil
	}
	svc := NewExportService(db, metrics.New(), zap.NewNop())

	_, err := svc.Process(context.Background(), 5, models.FormatJSON)
	require.NoError(t, err)
	require.NotNil(t, gotFilter.ProjectID, "stored filters are always project scoped")
	assert.Equal(t, int64(3), *gotFilter.ProjectID)
	require.NotNil(t, gotFilter.MinViews)
	assert.Equal(t, int64(100), *gotFilter.MinViews)
}

func TestProcess_WholeProjectFallback(t *testing.T) {
	coll := &models.ContentCollection{
		ID: 5, ProjectID: 3, Name: "everything",
		Status: models.CollectionNotProcessed,
	}
	items := testItems()
	db := exportMockStore(coll, items)
	var gotFilter filter.ItemFilter
	db.ListItemsFunc = func(ctx context.Context, f filter.ItemFilter) ([]*models.ContentItem, error) {
		gotFilter = f
		return items, nil
	}
	svc := NewExportService(db, metrics.New(), zap.NewNop())

	_, err := svc.Process(context.Background(), 5, models.FormatJSON)
	require.NoError(t, err)
	require.NotNil(t, gotFilter.ProjectID)
	assert.Equal(t, int64(3), *gotFilter.ProjectID)
}

func TestProcess_InvalidFormat(t *testing.T) {
	db := exportMockStore(nil, nil)
	svc := NewExportService(db, metrics.New(), zap.NewNop())

	_, err := svc.Process(context.Background(), 5, models.ExportFormat("xml"))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestProcess_TerminalStateRequiresReset(t *testing.T) {
	coll := &models.ContentCollection{
		ID: 5, ProjectID: 3, Name: "done",
		Status: models.CollectionCompleted,
	}
	db := exportMockStore(coll, nil)
	svc := NewExportService(db, metrics.New(), zap.NewNop())

	_, err := svc.Process(context.Background(), 5, models.FormatJSON)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestProcess_ConcurrentClaimLoses(t *testing.T) {
	// Another caller claims the collection between the status read and the
	// mark. The guarded update reports the lost race as a validation error
	// and no terminal status is written.
	coll := &models.ContentCollection{
		ID: 5, ProjectID: 3, Name: "contested",
		Status:  models.CollectionNotProcessed,
		ItemIDs: []int64{11},
	}
	db := exportMockStore(coll, []*models.ContentItem{{ID: 11, ProjectID: 3, PlatformItemID: "a"}})
	db.MarkCollectionProcessingFunc = func(ctx context.Context, id int64) error {
		return fmt.Errorf("collection %d is processing, not awaiting processing: %w",
			id, apperrors.ErrValidation)
	}
	svc := NewExportService(db, metrics.New(), zap.NewNop())

	_, err := svc.Process(context.Background(), 5, models.FormatJSON)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Zero(t, db.CompleteCalls)
	assert.Zero(t, db.FailCalls)
}

func TestReset_OnlyTerminalCollections(t *testing.T) {
	coll := &models.ContentCollection{
		ID: 5, ProjectID: 3, Name: "failed one",
		Status: models.CollectionFailed,
	}
	db := exportMockStore(coll, nil)
	svc := NewExportService(db, metrics.New(), zap.NewNop())

	require.NoError(t, svc.Reset(context.Background(), 5))

	coll.Status = models.CollectionProcessing
	err := svc.Reset(context.Background(), 5)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestSerializeDeterminism(t *testing.T) {
	items := testItems()
	engine := metrics.New(metrics.WithClock(func() time.Time {
		return time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	}))
	enriched := make([]models.ContentItem, 0, len(items))
	for _, item := range items {
		enriched = append(enriched, engine.Enrich(*item))
	}
	coll := &models.ContentCollection{ID: 5, ProjectID: 3, Name: "stable"}

	for _, format := range []models.ExportFormat{models.FormatReport, models.FormatCSV, models.FormatJSON} {
		a, err := serialize(coll, enriched, format)
		require.NoError(t, err)
		b, err := serialize(coll, enriched, format)
		require.NoError(t, err)
		assert.Equal(t, a, b, "format %s must serialize deterministically", format)
	}
}
