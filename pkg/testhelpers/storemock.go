package testhelpers

import (
	"context"

	"github.com/reelsight/reelsight-engine/pkg/apperrors"
	"github.com/reelsight/reelsight-engine/pkg/filter"
	"github.com/reelsight/reelsight-engine/pkg/models"
	"github.com/reelsight/reelsight-engine/pkg/storage"
)

// MockStore implements storage.Store with overridable func fields. Methods
// without an override return zero values (lookups return ErrNotFound), so
// tests only wire what they exercise. Call counters cover the operations
// services care about sequencing.
type MockStore struct {
	Caps storage.Capabilities

	QueryFunc func(ctx context.Context, query string, args ...any) ([]storage.Row, error)
	ExecFunc  func(ctx context.Context, query string, args ...any) (int64, error)

	GetItemFunc   func(ctx context.Context, id int64) (*models.ContentItem, error)
	ListItemsFunc func(ctx context.Context, f filter.ItemFilter) ([]*models.ContentItem, error)
	SaveItemsFunc func(ctx context.Context, items []*models.ContentItem) (int, error)

	SaveChatTurnFunc     func(ctx context.Context, turn *models.ChatTurn) (*models.ChatTurn, error)
	GetChatHistoryFunc   func(ctx context.Context, userPlatformID, itemID int64, limit int) ([]*models.ChatTurn, error)
	ClearChatHistoryFunc func(ctx context.Context, userPlatformID, itemID int64) error

	GetCollectionFunc            func(ctx context.Context, id int64) (*models.ContentCollection, error)
	MarkCollectionProcessingFunc func(ctx context.Context, id int64) error
	CompleteCollectionFunc       func(ctx context.Context, id int64, format models.ExportFormat, data string) error
	FailCollectionFunc           func(ctx context.Context, id int64, diagnostic string) error
	ResetCollectionFunc          func(ctx context.Context, id int64) error

	QueryCalls            int
	ExecCalls             int
	SaveChatTurnCalls     int
	ClearChatHistoryCalls int
	CompleteCalls         int
	FailCalls             int

	// SavedTurns records every turn passed to SaveChatTurn, in order.
	SavedTurns []*models.ChatTurn
}

var _ storage.Store = (*MockStore)(nil)

func (m *MockStore) Open(ctx context.Context) error { return nil }
func (m *MockStore) Close() error                   { return nil }
func (m *MockStore) Ping(ctx context.Context) error { return nil }

func (m *MockStore) Capabilities() storage.Capabilities { return m.Caps }

func (m *MockStore) Query(ctx context.Context, query string, args ...any) ([]storage.Row, error) {
	m.QueryCalls++
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, query, args...)
	}
	return nil, nil
}

func (m *MockStore) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	m.ExecCalls++
	if m.ExecFunc != nil {
		return m.ExecFunc(ctx, query, args...)
	}
	return 0, nil
}

func (m *MockStore) UpsertUser(ctx context.Context, user *models.User) (*models.User, error) {
	return user, nil
}

func (m *MockStore) GetUserByPlatformID(ctx context.Context, platformID int64) (*models.User, error) {
	return nil, apperrors.ErrNotFound
}

func (m *MockStore) CreateProject(ctx context.Context, project *models.Project) (*models.Project, error) {
	return project, nil
}

func (m *MockStore) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	return nil, apperrors.ErrNotFound
}

func (m *MockStore) ListProjects(ctx context.Context, userID int64) ([]*models.Project, error) {
	return nil, nil
}

func (m *MockStore) DeactivateProject(ctx context.Context, id int64) error { return nil }

func (m *MockStore) AddCompetitor(ctx context.Context, competitor *models.Competitor) (*models.Competitor, error) {
	return competitor, nil
}

func (m *MockStore) AddHashtag(ctx context.Context, hashtag *models.Hashtag) (*models.Hashtag, error) {
	return hashtag, nil
}

func (m *MockStore) ListSources(ctx context.Context, projectID int64) ([]*models.TrackedSource, error) {
	return nil, nil
}

func (m *MockStore) DeactivateSource(ctx context.Context, kind models.SourceKind, id int64) error {
	return nil
}

func (m *MockStore) SaveItems(ctx context.Context, items []*models.ContentItem) (int, error) {
	if m.SaveItemsFunc != nil {
		return m.SaveItemsFunc(ctx, items)
	}
	return len(items), nil
}

func (m *MockStore) GetItem(ctx context.Context, id int64) (*models.ContentItem, error) {
	if m.GetItemFunc != nil {
		return m.GetItemFunc(ctx, id)
	}
	return nil, apperrors.ErrNotFound
}

func (m *MockStore) GetItemByPlatformID(ctx context.Context, platformItemID string) (*models.ContentItem, error) {
	return nil, apperrors.ErrNotFound
}

func (m *MockStore) ListItems(ctx context.Context, f filter.ItemFilter) ([]*models.ContentItem, error) {
	if m.ListItemsFunc != nil {
		return m.ListItemsFunc(ctx, f)
	}
	return nil, nil
}

func (m *MockStore) CountItems(ctx context.Context, f filter.ItemFilter) (int64, error) {
	items, err := m.ListItems(ctx, f)
	return int64(len(items)), err
}

func (m *MockStore) UpdateTranscript(ctx context.Context, itemID int64, transcript string, status models.TranscriptStatus) error {
	return nil
}

func (m *MockStore) SaveChatTurn(ctx context.Context, turn *models.ChatTurn) (*models.ChatTurn, error) {
	m.SaveChatTurnCalls++
	m.SavedTurns = append(m.SavedTurns, turn)
	if m.SaveChatTurnFunc != nil {
		return m.SaveChatTurnFunc(ctx, turn)
	}
	return turn, nil
}

func (m *MockStore) GetChatHistory(ctx context.Context, userPlatformID, itemID int64, limit int) ([]*models.ChatTurn, error) {
	if m.GetChatHistoryFunc != nil {
		return m.GetChatHistoryFunc(ctx, userPlatformID, itemID, limit)
	}
	return nil, nil
}

func (m *MockStore) ClearChatHistory(ctx context.Context, userPlatformID, itemID int64) error {
	m.ClearChatHistoryCalls++
	if m.ClearChatHistoryFunc != nil {
		return m.ClearChatHistoryFunc(ctx, userPlatformID, itemID)
	}
	return nil
}

func (m *MockStore) CreateCollection(ctx context.Context, collection *models.ContentCollection) (*models.ContentCollection, error) {
	return collection, nil
}

func (m *MockStore) GetCollection(ctx context.Context, id int64) (*models.ContentCollection, error) {
	if m.GetCollectionFunc != nil {
		return m.GetCollectionFunc(ctx, id)
	}
	return nil, apperrors.ErrNotFound
}

func (m *MockStore) ListCollections(ctx context.Context, projectID int64) ([]*models.ContentCollection, error) {
	return nil, nil
}

func (m *MockStore) MarkCollectionProcessing(ctx context.Context, id int64) error {
	if m.MarkCollectionProcessingFunc != nil {
		return m.MarkCollectionProcessingFunc(ctx, id)
	}
	return nil
}

func (m *MockStore) CompleteCollection(ctx context.Context, id int64, format models.ExportFormat, data string) error {
	m.CompleteCalls++
	if m.CompleteCollectionFunc != nil {
		return m.CompleteCollectionFunc(ctx, id, format, data)
	}
	return nil
}

func (m *MockStore) FailCollection(ctx context.Context, id int64, diagnostic string) error {
	m.FailCalls++
	if m.FailCollectionFunc != nil {
		return m.FailCollectionFunc(ctx, id, diagnostic)
	}
	return nil
}

func (m *MockStore) ResetCollection(ctx context.Context, id int64) error {
	if m.ResetCollectionFunc != nil {
		return m.ResetCollectionFunc(ctx, id)
	}
	return nil
}

func (m *MockStore) CreateParseRun(ctx context.Context, run *models.ParseRun) error { return nil }
func (m *MockStore) UpdateParseRun(ctx context.Context, run *models.ParseRun) error { return nil }

func (m *MockStore) ListParseRuns(ctx context.Context, projectID int64, limit int) ([]*models.ParseRun, error) {
	return nil, nil
}

func (m *MockStore) GetNotificationSettings(ctx context.Context, userPlatformID int64) (*models.NotificationSettings, error) {
	return nil, apperrors.ErrNotFound
}

func (m *MockStore) SaveNotificationSettings(ctx context.Context, settings *models.NotificationSettings) error {
	return nil
}
