package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/reelsight/reelsight-engine/pkg/apperrors"
	"github.com/reelsight/reelsight-engine/pkg/filter"
	"github.com/reelsight/reelsight-engine/pkg/metrics"
	"github.com/reelsight/reelsight-engine/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store := New(Config{
		Path: filepath.Join(t.TempDir(), "test.db"),
	}, metrics.New(), zaptest.NewLogger(t))

	ctx := context.Background()
	require.NoError(t, store.Open(ctx))
	require.NoError(t, store.Migrate(filepath.Join("..", "..", "..", "migrations", "sqlite")))
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func seedProject(t *testing.T, store *Store) *models.Project {
	t.Helper()
	ctx := context.Background()

	user, err := store.UpsertUser(ctx, &models.User{PlatformID: 555, Username: "tester"})
	require.NoError(t, err)

	project, err := store.CreateProject(ctx, &models.Project{UserID: user.ID, Name: "campaign"})
	require.NoError(t, err)
	return project
}

func seedItem(projectID int64, platformID string, views, likes int64, published time.Time) *models.ContentItem {
	return &models.ContentItem{
		ProjectID:      projectID,
		SourceKind:     models.SourceCompetitor,
		SourceID:       1,
		PlatformItemID: platformID,
		URL:            "https://example.com/" + platformID,
		AuthorUsername: "author",
		Views:          &views,
		Likes:          &likes,
		PublishedAt:    &published,
	}
}

func TestOperationsBeforeOpen(t *testing.T) {
	store := New(Config{Path: filepath.Join(t.TempDir(), "test.db")}, metrics.New(), zaptest.NewLogger(t))
	ctx := context.Background()

	assert.ErrorIs(t, store.Ping(ctx), apperrors.ErrNotConnected)

	_, err := store.GetItem(ctx, 1)
	assert.ErrorIs(t, err, apperrors.ErrNotConnected)

	_, err = store.Query(ctx, "SELECT 1")
	assert.ErrorIs(t, err, apperrors.ErrNotConnected)

	_, err = store.SaveItems(ctx, []*models.ContentItem{{PlatformItemID: "x"}})
	assert.ErrorIs(t, err, apperrors.ErrNotConnected)
}

func TestOpenCloseLifecycle(t *testing.T) {
	store := New(Config{Path: filepath.Join(t.TempDir(), "test.db")}, metrics.New(), zaptest.NewLogger(t))
	ctx := context.Background()

	// Close before Open is a no-op
	require.NoError(t, store.Close())

	require.NoError(t, store.Open(ctx))
	require.NoError(t, store.Open(ctx), "open must be idempotent")
	require.NoError(t, store.Ping(ctx))

	require.NoError(t, store.Close())
	require.NoError(t, store.Close(), "double close must be safe")
	assert.ErrorIs(t, store.Ping(ctx), apperrors.ErrNotConnected)
}

func TestCapabilities(t *testing.T) {
	store := newTestStore(t)
	assert.False(t, store.Capabilities().VectorSearch)
}

func TestUpsertUserByPlatformID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.UpsertUser(ctx, &models.User{PlatformID: 555, Username: "old_handle"})
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	second, err := store.UpsertUser(ctx, &models.User{PlatformID: 555, Username: "new_handle", FirstName: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "second upsert must reuse the first row")
	assert.Equal(t, "new_handle", second.Username)

	rows, err := store.Query(ctx, "SELECT COUNT(*) AS n FROM rs_users WHERE platform_id = ?", int64(555))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 1, rows[0]["n"])
}

func TestProjectLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	project := seedProject(t, store)

	got, err := store.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, "campaign", got.Name)
	assert.True(t, got.IsActive)

	listed, err := store.ListProjects(ctx, project.UserID)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	require.NoError(t, store.DeactivateProject(ctx, project.ID))

	listed, err = store.ListProjects(ctx, project.UserID)
	require.NoError(t, err)
	assert.Empty(t, listed, "deactivated projects drop out of listings")

	got, err = store.GetProject(ctx, project.ID)
	require.NoError(t, err, "deactivated projects stay fetchable by id")
	assert.False(t, got.IsActive)

	assert.ErrorIs(t, store.DeactivateProject(ctx, 99999), apperrors.ErrNotFound)
}

func TestTrackedSources(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	project := seedProject(t, store)

	competitor, err := store.AddCompetitor(ctx, &models.Competitor{
		ProjectID: project.ID, Username: "rival", ProfileURL: "https://example.com/rival",
	})
	require.NoError(t, err)

	_, err = store.AddHashtag(ctx, &models.Hashtag{ProjectID: project.ID, Tag: "launch"})
	require.NoError(t, err)

	sources, err := store.ListSources(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, models.SourceCompetitor, sources[0].Kind)
	assert.Equal(t, "rival", sources[0].Label)
	assert.Equal(t, models.SourceHashtag, sources[1].Kind)
	assert.Equal(t, "launch", sources[1].Label)

	require.NoError(t, store.DeactivateSource(ctx, models.SourceCompetitor, competitor.ID))

	sources, err = store.ListSources(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, models.SourceHashtag, sources[0].Kind)

	err = store.DeactivateSource(ctx, models.SourceKind("playlist"), 1)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestItemsRemainAfterSourceDeactivation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	project := seedProject(t, store)

	competitor, err := store.AddCompetitor(ctx, &models.Competitor{ProjectID: project.ID, Username: "rival"})
	require.NoError(t, err)

	item := seedItem(project.ID, "keep-1", 100, 10, time.Now().UTC().Add(-time.Hour))
	item.SourceID = competitor.ID
	written, err := store.SaveItems(ctx, []*models.ContentItem{item})
	require.NoError(t, err)
	require.Equal(t, 1, written)

	require.NoError(t, store.DeactivateSource(ctx, models.SourceCompetitor, competitor.ID))

	items, err := store.ListItems(ctx, filter.ItemFilter{ProjectID: &project.ID})
	require.NoError(t, err)
	require.Len(t, items, 1, "content items survive source deactivation")
	assert.Equal(t, competitor.ID, items[0].SourceID)
}

func TestSaveItemsEnrichesAndUpserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	project := seedProject(t, store)

	published := time.Now().UTC().Add(-10*24*time.Hour + 30*time.Minute)
	item := seedItem(project.ID, "item-1", 10000, 1000, published)
	comments := int64(100)
	item.Comments = &comments

	written, err := store.SaveItems(ctx, []*models.ContentItem{item})
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	stored, err := store.GetItemByPlatformID(ctx, "item-1")
	require.NoError(t, err)
	require.NotNil(t, stored.EngagementRateVideo, "derived fields persist with the row")
	assert.InDelta(t, 11.0, *stored.EngagementRateVideo, 0.01)
	require.NotNil(t, stored.ViewToLikeRatio)
	assert.InDelta(t, 10.0, *stored.ViewToLikeRatio, 0.001)
	require.NotNil(t, stored.DaysSincePublished)
	assert.EqualValues(t, 10, *stored.DaysSincePublished)
	assert.Equal(t, models.TranscriptNotStarted, stored.TranscriptStatus)

	// Second save with fresher counters updates in place.
	views := int64(20000)
	item.Views = &views
	written, err = store.SaveItems(ctx, []*models.ContentItem{item})
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	updated, err := store.GetItemByPlatformID(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, stored.ID, updated.ID, "upsert must not mint a new row")
	require.NotNil(t, updated.Views)
	assert.EqualValues(t, 20000, *updated.Views)
}

func TestSaveItemsSkipsFailedRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	project := seedProject(t, store)

	now := time.Now().UTC()
	good1 := seedItem(project.ID, "good-1", 10, 1, now)
	bad := seedItem(99999, "bad-1", 10, 1, now) // violates the project FK
	good2 := seedItem(project.ID, "good-2", 10, 1, now)

	written, err := store.SaveItems(ctx, []*models.ContentItem{good1, bad, good2})
	require.NoError(t, err, "a failing row must not abort the batch")
	assert.Equal(t, 2, written)

	_, err = store.GetItemByPlatformID(ctx, "good-2")
	require.NoError(t, err, "rows after the failure are still written")
	_, err = store.GetItemByPlatformID(ctx, "bad-1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestListItemsDefaultOrderAndCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	project := seedProject(t, store)

	base := time.Now().UTC().Add(-72 * time.Hour)
	batch := []*models.ContentItem{
		seedItem(project.ID, "oldest", 10, 1, base),
		seedItem(project.ID, "newest", 30, 3, base.Add(48*time.Hour)),
		seedItem(project.ID, "middle", 20, 2, base.Add(24*time.Hour)),
	}
	written, err := store.SaveItems(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, 3, written)

	items, err := store.ListItems(ctx, filter.ItemFilter{ProjectID: &project.ID})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "newest", items[0].PlatformItemID)
	assert.Equal(t, "middle", items[1].PlatformItemID)
	assert.Equal(t, "oldest", items[2].PlatformItemID)

	count, err := store.CountItems(ctx, filter.ItemFilter{ProjectID: &project.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)
}

func TestListItemsSubsecondOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	project := seedProject(t, store)

	// Timestamps inside the same second. The text encoding must keep a
	// fixed-width fractional part or byte-wise comparison puts the
	// whole-second row after its sub-second sibling.
	second := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	batch := []*models.ContentItem{
		seedItem(project.ID, "whole-second", 10, 1, second),
		seedItem(project.ID, "half-second", 20, 2, second.Add(500*time.Millisecond)),
	}
	written, err := store.SaveItems(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, 2, written)

	items, err := store.ListItems(ctx, filter.ItemFilter{ProjectID: &project.ID})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "half-second", items[0].PlatformItemID)
	assert.Equal(t, "whole-second", items[1].PlatformItemID)

	// A sub-second range bound must exclude the earlier whole-second row.
	after := second.Add(250 * time.Millisecond)
	items, err = store.ListItems(ctx, filter.ItemFilter{ProjectID: &project.ID, PublishedAfter: &after})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "half-second", items[0].PlatformItemID)
}

func TestListItemsMinViews(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	project := seedProject(t, store)

	now := time.Now().UTC()
	noViews := seedItem(project.ID, "no-views", 0, 0, now)
	noViews.Views = nil
	batch := []*models.ContentItem{
		seedItem(project.ID, "low", 50, 5, now),
		seedItem(project.ID, "high", 500, 50, now),
		noViews,
	}
	_, err := store.SaveItems(ctx, batch)
	require.NoError(t, err)

	minViews := int64(100)
	items, err := store.ListItems(ctx, filter.ItemFilter{ProjectID: &project.ID, MinViews: &minViews})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "high", items[0].PlatformItemID)
}

func TestListItemsUnknownSortField(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sort := "danceability"
	_, err := store.ListItems(ctx, filter.ItemFilter{SortField: &sort})
	assert.ErrorIs(t, err, apperrors.ErrUnknownSortField)
}

func TestUpdateTranscript(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	project := seedProject(t, store)

	_, err := store.SaveItems(ctx, []*models.ContentItem{
		seedItem(project.ID, "item-t", 10, 1, time.Now().UTC()),
	})
	require.NoError(t, err)
	item, err := store.GetItemByPlatformID(ctx, "item-t")
	require.NoError(t, err)

	require.NoError(t, store.UpdateTranscript(ctx, item.ID, "spoken words", models.TranscriptDone))

	updated, err := store.GetItem(ctx, item.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.Transcript)
	assert.Equal(t, "spoken words", *updated.Transcript)
	assert.Equal(t, models.TranscriptDone, updated.TranscriptStatus)
	assert.NotNil(t, updated.TranscriptUpdatedAt)

	err = store.UpdateTranscript(ctx, 99999, "x", models.TranscriptDone)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestChatHistoryWindowAndClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		role := models.ChatRoleUser
		if i%2 == 1 {
			role = models.ChatRoleAssistant
		}
		_, err := store.SaveChatTurn(ctx, &models.ChatTurn{
			UserPlatformID: 555, ItemID: 7, Role: role,
			Content: string(rune('a' + i)),
		})
		require.NoError(t, err)
	}

	// window returns the most recent turns in chronological order
	history, err := store.GetChatHistory(ctx, 555, 7, 4)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "c", history[0].Content)
	assert.Equal(t, "f", history[3].Content)

	// other pairs are unaffected
	other, err := store.GetChatHistory(ctx, 556, 7, 10)
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, store.ClearChatHistory(ctx, 555, 7))
	history, err = store.GetChatHistory(ctx, 555, 7, 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestCollectionStateMachine(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	project := seedProject(t, store)

	created, err := store.CreateCollection(ctx, &models.ContentCollection{
		ProjectID: project.ID,
		Name:      "best of",
		ItemIDs:   []int64{3, 5, 8},
	})
	require.NoError(t, err)
	assert.Equal(t, models.CollectionNotProcessed, created.Status)

	got, err := store.GetCollection(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 5, 8}, got.ItemIDs)

	require.NoError(t, store.MarkCollectionProcessing(ctx, created.ID))

	// The transition is a compare-and-swap: a second claim loses.
	err = store.MarkCollectionProcessing(ctx, created.ID)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	err = store.MarkCollectionProcessing(ctx, created.ID+1000)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, store.CompleteCollection(ctx, created.ID, models.FormatJSON, `[{"id":3}]`))

	got, err = store.GetCollection(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CollectionCompleted, got.Status)
	require.NotNil(t, got.ContentFormat)
	assert.Equal(t, models.FormatJSON, *got.ContentFormat)
	require.NotNil(t, got.ContentData)
	assert.Equal(t, `[{"id":3}]`, *got.ContentData)
	assert.NotNil(t, got.ProcessedAt)

	// fail clears the blob, reset clears everything
	require.NoError(t, store.FailCollection(ctx, created.ID, "serializer exploded"))
	got, err = store.GetCollection(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CollectionFailed, got.Status)
	assert.Nil(t, got.ContentData)
	require.NotNil(t, got.Error)
	assert.Equal(t, "serializer exploded", *got.Error)

	require.NoError(t, store.ResetCollection(ctx, created.ID))
	got, err = store.GetCollection(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CollectionNotProcessed, got.Status)
	assert.Nil(t, got.Error)
	assert.Nil(t, got.ProcessedAt)
}

func TestCollectionStoredFilterRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	project := seedProject(t, store)

	minViews := int64(1000)
	created, err := store.CreateCollection(ctx, &models.ContentCollection{
		ProjectID: project.ID,
		Name:      "filtered",
		Filter:    &filter.ItemFilter{MinViews: &minViews},
	})
	require.NoError(t, err)

	got, err := store.GetCollection(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Filter)
	require.NotNil(t, got.Filter.MinViews)
	assert.EqualValues(t, 1000, *got.Filter.MinViews)
}

func TestCollectionMalformedMembershipDegrades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	project := seedProject(t, store)

	// Out-of-band tooling wrote string ids and one junk element.
	_, err := store.Exec(ctx, `
		INSERT INTO rs_collections (project_id, name, item_ids, status, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		project.ID, "legacy", `["3", 5, "junk"]`,
		string(models.CollectionNotProcessed), time.Now().UTC().Format(time.RFC3339Nano))
	require.NoError(t, err)

	collections, err := store.ListCollections(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, collections, 1)
	assert.Equal(t, []int64{3, 5}, collections[0].ItemIDs, "numeric strings recovered, junk dropped")
}

func TestParseRunLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	project := seedProject(t, store)

	run := &models.ParseRun{
		ProjectID:  project.ID,
		TargetKind: models.SourceHashtag,
		TargetID:   1,
	}
	require.NoError(t, store.CreateParseRun(ctx, run))
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", run.ID.String())

	finished := time.Now().UTC()
	run.Status = models.RunCompleted
	run.FinishedAt = &finished
	run.Found = 12
	run.Added = 9
	require.NoError(t, store.UpdateParseRun(ctx, run))

	runs, err := store.ListParseRuns(ctx, project.ID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, models.RunCompleted, runs[0].Status)
	assert.Equal(t, 12, runs[0].Found)
	assert.Equal(t, 9, runs[0].Added)
	assert.NotNil(t, runs[0].FinishedAt)
}

func TestNotificationSettings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetNotificationSettings(ctx, 555)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	require.NoError(t, store.SaveNotificationSettings(ctx, &models.NotificationSettings{
		UserPlatformID:   555,
		NotifyOnComplete: true,
		NotifyOnError:    false,
	}))

	got, err := store.GetNotificationSettings(ctx, 555)
	require.NoError(t, err)
	assert.True(t, got.NotifyOnComplete)
	assert.False(t, got.NotifyOnError)

	// upsert flips in place
	require.NoError(t, store.SaveNotificationSettings(ctx, &models.NotificationSettings{
		UserPlatformID:   555,
		NotifyOnComplete: false,
		NotifyOnError:    true,
	}))
	got, err = store.GetNotificationSettings(ctx, 555)
	require.NoError(t, err)
	assert.False(t, got.NotifyOnComplete)
	assert.True(t, got.NotifyOnError)
}

func TestRawQueryRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rows, err := store.Query(ctx, "SELECT ? AS answer", int64(42))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 42, rows[0]["answer"])
}
