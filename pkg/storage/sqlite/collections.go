package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/reelsight/reelsight-engine/pkg/apperrors"
	"github.com/reelsight/reelsight-engine/pkg/filter"
	"github.com/reelsight/reelsight-engine/pkg/jsonutil"
	"github.com/reelsight/reelsight-engine/pkg/models"
)

const collectionColumns = `id, project_id, name, description, item_ids, item_filter,
		status, content_format, content_data, error, created_at, processed_at`

func (s *Store) scanCollection(row rowScanner) (*models.ContentCollection, error) {
	var c models.ContentCollection
	var status, createdAt string
	var format, itemIDs, itemFilter *string
	var processedAt sql.NullString
	err := row.Scan(
		&c.ID, &c.ProjectID, &c.Name, &c.Description, &itemIDs, &itemFilter,
		&status, &format, &c.ContentData, &c.Error, &createdAt, &processedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = models.CollectionStatus(status)
	if format != nil {
		f := models.ExportFormat(*format)
		c.ContentFormat = &f
	}
	c.CreatedAt = s.parseTime(createdAt)
	c.ProcessedAt = s.parseTimePtr(processedAt)

	// Membership columns may be written by out-of-band tooling; decode
	// best-effort and log what gets dropped.
	if itemIDs != nil && *itemIDs != "" {
		ids, dropped := jsonutil.FlexibleInt64Slice(json.RawMessage(*itemIDs))
		if dropped > 0 {
			s.logger.Warn("dropped malformed collection item ids",
				zap.Int64("collection_id", c.ID),
				zap.Int("dropped", dropped))
		}
		c.ItemIDs = ids
	}
	if itemFilter != nil && *itemFilter != "" && *itemFilter != "null" {
		var f filter.ItemFilter
		if err := json.Unmarshal([]byte(*itemFilter), &f); err != nil {
			s.logger.Warn("ignoring malformed collection filter",
				zap.Int64("collection_id", c.ID),
				zap.Error(err))
		} else {
			c.Filter = &f
		}
	}

	return &c, nil
}

// CreateCollection inserts a new collection in the not_processed state.
func (s *Store) CreateCollection(ctx context.Context, collection *models.ContentCollection) (*models.ContentCollection, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var itemIDs, itemFilter *string
	if collection.ItemIDs != nil {
		raw, err := json.Marshal(collection.ItemIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal item ids: %w", err)
		}
		v := string(raw)
		itemIDs = &v
	}
	if collection.Filter != nil {
		raw, err := json.Marshal(collection.Filter)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal filter: %w", err)
		}
		v := string(raw)
		itemFilter = &v
	}

	now := time.Now().UTC()
	result, err := db.ExecContext(ctx,
		`INSERT INTO rs_collections (project_id, name, description, item_ids, item_filter, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		collection.ProjectID, collection.Name, collection.Description,
		itemIDs, itemFilter, string(models.CollectionNotProcessed), fmtTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read collection id: %w", err)
	}

	stored := *collection
	stored.ID = id
	stored.Status = models.CollectionNotProcessed
	stored.CreatedAt = now
	return &stored, nil
}

// GetCollection retrieves a collection by id.
func (s *Store) GetCollection(ctx context.Context, id int64) (*models.ContentCollection, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM rs_collections WHERE id = ?`, collectionColumns)

	c, err := s.scanCollection(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return c, nil
}

// ListCollections returns a project's collections, newest first.
func (s *Store) ListCollections(ctx context.Context, projectID int64) ([]*models.ContentCollection, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM rs_collections WHERE project_id = ? ORDER BY created_at DESC`, collectionColumns)

	rows, err := db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	collections := make([]*models.ContentCollection, 0)
	for rows.Next() {
		c, err := s.scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		collections = append(collections, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating collections: %w", err)
	}

	return collections, nil
}

// MarkCollectionProcessing moves a collection from not_processed into the
// processing state. The status guard on the UPDATE makes the transition a
// compare-and-swap, so concurrent callers cannot both claim the collection.
func (s *Store) MarkCollectionProcessing(ctx context.Context, id int64) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	result, err := db.ExecContext(ctx,
		`UPDATE rs_collections SET status = ?, error = NULL WHERE id = ? AND status = ?`,
		string(models.CollectionProcessing), id, string(models.CollectionNotProcessed))
	if err != nil {
		return fmt.Errorf("failed to update collection: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		var status string
		row := db.QueryRowContext(ctx, `SELECT status FROM rs_collections WHERE id = ?`, id)
		if err := row.Scan(&status); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperrors.ErrNotFound
			}
			return fmt.Errorf("failed to read collection status: %w", err)
		}
		return fmt.Errorf("collection %d is %s, not awaiting processing: %w",
			id, status, apperrors.ErrValidation)
	}
	return nil
}

// CompleteCollection persists the export blob, format tag and terminal
// completed status together.
func (s *Store) CompleteCollection(ctx context.Context, id int64, format models.ExportFormat, data string) error {
	return s.execOnCollection(ctx,
		`UPDATE rs_collections
		 SET status = ?, content_format = ?, content_data = ?, error = NULL, processed_at = ?
		 WHERE id = ?`,
		string(models.CollectionCompleted), string(format), data, fmtTime(time.Now()), id)
}

// FailCollection records the terminal failed status with a diagnostic and
// clears any partial blob.
func (s *Store) FailCollection(ctx context.Context, id int64, diagnostic string) error {
	return s.execOnCollection(ctx,
		`UPDATE rs_collections
		 SET status = ?, error = ?, content_format = NULL, content_data = NULL, processed_at = ?
		 WHERE id = ?`,
		string(models.CollectionFailed), diagnostic, fmtTime(time.Now()), id)
}

// ResetCollection returns a terminal collection to not_processed.
func (s *Store) ResetCollection(ctx context.Context, id int64) error {
	return s.execOnCollection(ctx,
		`UPDATE rs_collections
		 SET status = ?, content_format = NULL, content_data = NULL, error = NULL, processed_at = NULL
		 WHERE id = ?`,
		string(models.CollectionNotProcessed), id)
}

func (s *Store) execOnCollection(ctx context.Context, query string, args ...any) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update collection: %w", err)
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
