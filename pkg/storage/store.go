// Package storage defines the capability contract both backend drivers
// implement: typed CRUD over the entity set, filtered listing of content
// items, and a raw parameterized query escape hatch. Connection lifecycle
// is owned per store instance; every call other than Open fails fast with
// apperrors.ErrNotConnected until Open has succeeded.
package storage

import (
	"context"

	"github.com/reelsight/reelsight-engine/pkg/filter"
	"github.com/reelsight/reelsight-engine/pkg/models"
)

// Capabilities flags what a driver can do beyond the shared contract, so
// callers degrade gracefully instead of branching on backend identity.
type Capabilities struct {
	// VectorSearch reports whether the backend hosts the transcript
	// vector column and its nearest-neighbor index.
	VectorSearch bool
}

// Row is one generic result row from the raw-query escape hatch.
type Row map[string]any

// Store is the backend-independent data-access contract. Both drivers
// (Postgres, SQLite) present identical behavior: identical rows in yield
// identical logical rows out, and the error taxonomy is shared regardless
// of native error shapes.
type Store interface {
	// Open establishes the connection or pool. Idempotent.
	Open(ctx context.Context) error
	// Close releases the connection or pool. Idempotent and safe to call
	// before Open.
	Close() error
	// Ping verifies connectivity.
	Ping(ctx context.Context) error
	// Capabilities reports driver capability flags.
	Capabilities() Capabilities

	// Query is the raw parameterized escape hatch. Values are always
	// bound; string parameters are screened for injection patterns as a
	// diagnostic.
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
	// Exec runs a raw parameterized statement and returns affected rows.
	Exec(ctx context.Context, query string, args ...any) (int64, error)

	// UpsertUser creates the user on first contact or updates fields in
	// place, keyed by PlatformID. The stored row is returned either way.
	UpsertUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByPlatformID(ctx context.Context, platformID int64) (*models.User, error)

	CreateProject(ctx context.Context, project *models.Project) (*models.Project, error)
	GetProject(ctx context.Context, id int64) (*models.Project, error)
	ListProjects(ctx context.Context, userID int64) ([]*models.Project, error)
	DeactivateProject(ctx context.Context, id int64) error

	AddCompetitor(ctx context.Context, competitor *models.Competitor) (*models.Competitor, error)
	AddHashtag(ctx context.Context, hashtag *models.Hashtag) (*models.Hashtag, error)
	ListSources(ctx context.Context, projectID int64) ([]*models.TrackedSource, error)
	// DeactivateSource flag-deactivates the source. Content items keep
	// their denormalized (kind, id) reference and remain listable.
	DeactivateSource(ctx context.Context, kind models.SourceKind, id int64) error

	// SaveItems batch-upserts items by platform item id, enriching each
	// with derived marketing fields first, and returns the count actually
	// written. Items are attempted independently: one failure is logged
	// and skipped, never aborting the rest of the batch.
	SaveItems(ctx context.Context, items []*models.ContentItem) (int, error)
	GetItem(ctx context.Context, id int64) (*models.ContentItem, error)
	GetItemByPlatformID(ctx context.Context, platformItemID string) (*models.ContentItem, error)
	ListItems(ctx context.Context, f filter.ItemFilter) ([]*models.ContentItem, error)
	CountItems(ctx context.Context, f filter.ItemFilter) (int64, error)
	UpdateTranscript(ctx context.Context, itemID int64, transcript string, status models.TranscriptStatus) error

	SaveChatTurn(ctx context.Context, turn *models.ChatTurn) (*models.ChatTurn, error)
	// GetChatHistory returns the most recent turns for the pair in
	// chronological order. A pair with no history yields an empty slice.
	GetChatHistory(ctx context.Context, userPlatformID, itemID int64, limit int) ([]*models.ChatTurn, error)
	// ClearChatHistory physically removes every turn for the pair.
	ClearChatHistory(ctx context.Context, userPlatformID, itemID int64) error

	CreateCollection(ctx context.Context, collection *models.ContentCollection) (*models.ContentCollection, error)
	GetCollection(ctx context.Context, id int64) (*models.ContentCollection, error)
	ListCollections(ctx context.Context, projectID int64) ([]*models.ContentCollection, error)
	MarkCollectionProcessing(ctx context.Context, id int64) error
	CompleteCollection(ctx context.Context, id int64, format models.ExportFormat, data string) error
	FailCollection(ctx context.Context, id int64, diagnostic string) error
	// ResetCollection returns a terminal collection to not_processed and
	// clears the stored blob and diagnostic.
	ResetCollection(ctx context.Context, id int64) error

	CreateParseRun(ctx context.Context, run *models.ParseRun) error
	UpdateParseRun(ctx context.Context, run *models.ParseRun) error
	ListParseRuns(ctx context.Context, projectID int64, limit int) ([]*models.ParseRun, error)

	GetNotificationSettings(ctx context.Context, userPlatformID int64) (*models.NotificationSettings, error)
	SaveNotificationSettings(ctx context.Context, settings *models.NotificationSettings) error
}
