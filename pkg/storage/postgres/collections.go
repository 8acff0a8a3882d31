package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/reelsight/reelsight-engine/pkg/apperrors"
	"github.com/reelsight/reelsight-engine/pkg/filter"
	"github.com/reelsight/reelsight-engine/pkg/jsonutil"
	"github.com/reelsight/reelsight-engine/pkg/models"
)

const collectionColumns = `id, project_id, name, description, item_ids, item_filter,
		status, content_format, content_data, error, created_at, processed_at`

// decodeCollectionMembership reconstructs ItemIDs and Filter from their
// stored JSON. Out-of-band tooling can write these columns, so decoding is
// best-effort: malformed values are logged and dropped rather than failing
// the read.
func (s *Store) decodeCollectionMembership(c *models.ContentCollection, itemIDs, itemFilter []byte) {
	if len(itemIDs) > 0 {
		ids, dropped := jsonutil.FlexibleInt64Slice(itemIDs)
		if dropped > 0 {
			s.logger.Warn("dropped malformed collection item ids",
				zap.Int64("collection_id", c.ID),
				zap.Int("dropped", dropped))
		}
		c.ItemIDs = ids
	}
	if len(itemFilter) > 0 && string(itemFilter) != "null" {
		var f filter.ItemFilter
		if err := json.Unmarshal(itemFilter, &f); err != nil {
			s.logger.Warn("ignoring malformed collection filter",
				zap.Int64("collection_id", c.ID),
				zap.Error(err))
		} else {
			c.Filter = &f
		}
	}
}

func (s *Store) scanCollection(row itemScanner) (*models.ContentCollection, error) {
	var c models.ContentCollection
	var status string
	var format *string
	var itemIDs, itemFilter []byte
	err := row.Scan(
		&c.ID, &c.ProjectID, &c.Name, &c.Description, &itemIDs, &itemFilter,
		&status, &format, &c.ContentData, &c.Error, &c.CreatedAt, &c.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = models.CollectionStatus(status)
	if format != nil {
		f := models.ExportFormat(*format)
		c.ContentFormat = &f
	}
	s.decodeCollectionMembership(&c, itemIDs, itemFilter)
	return &c, nil
}

// CreateCollection inserts a new collection in the not_processed state.
func (s *Store) CreateCollection(ctx context.Context, collection *models.ContentCollection) (*models.ContentCollection, error) {
	pool, err := s.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var itemIDs, itemFilter []byte
	if collection.ItemIDs != nil {
		if itemIDs, err = json.Marshal(collection.ItemIDs); err != nil {
			return nil, fmt.Errorf("failed to marshal item ids: %w", err)
		}
	}
	if collection.Filter != nil {
		if itemFilter, err = json.Marshal(collection.Filter); err != nil {
			return nil, fmt.Errorf("failed to marshal filter: %w", err)
		}
	}

	query := `
		INSERT INTO rs_collections (project_id, name, description, item_ids, item_filter, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	stored := *collection
	err = pool.QueryRow(ctx, query,
		collection.ProjectID, collection.Name, collection.Description,
		itemIDs, itemFilter, string(models.CollectionNotProcessed), time.Now().UTC(),
	).Scan(&stored.ID, &stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	stored.Status = models.CollectionNotProcessed

	return &stored, nil
}

// GetCollection retrieves a collection by id.
func (s *Store) GetCollection(ctx context.Context, id int64) (*models.ContentCollection, error) {
	pool, err := s.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM rs_collections WHERE id = $1`, collectionColumns)

	c, err := s.scanCollection(pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return c, nil
}

// ListCollections returns a project's collections, newest first.
func (s *Store) ListCollections(ctx context.Context, projectID int64) ([]*models.ContentCollection, error) {
	pool, err := s.conn()
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM rs_collections WHERE project_id = $1 ORDER BY created_at DESC`, collectionColumns)

	rows, err := pool.Query(ctx, query, projectID)
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
	pool, err := s.conn()
	if err != nil {
		return err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `UPDATE rs_collections SET status = $2, error = NULL WHERE id = $1 AND status = $3`

	tag, err := pool.Exec(ctx, query, id,
		string(models.CollectionProcessing), string(models.CollectionNotProcessed))
	if err != nil {
		return fmt.Errorf("failed to update collection status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var status string
		row := pool.QueryRow(ctx, `SELECT status FROM rs_collections WHERE id = $1`, id)
		if err := row.Scan(&status); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.ErrNotFound
			}
			return fmt.Errorf("failed to read collection status: %w", err)
		}
		return fmt.Errorf("collection %d is %s, not awaiting processing: %w",
			id, status, apperrors.ErrValidation)
	}
	return nil
}

// CompleteCollection persists the export blob, its format tag and the
// terminal completed status together.
func (s *Store) CompleteCollection(ctx context.Context, id int64, format models.ExportFormat, data string) error {
	pool, err := s.conn()
	if err != nil {
		return err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		UPDATE rs_collections
		SET status = $2, content_format = $3, content_data = $4, error = NULL, processed_at = $5
		WHERE id = $1`

	tag, err := pool.Exec(ctx, query, id,
		string(models.CollectionCompleted), string(format), data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to complete collection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// FailCollection records the terminal failed status with a diagnostic.
// The stored blob is never partially written: failure clears it.
func (s *Store) FailCollection(ctx context.Context, id int64, diagnostic string) error {
	pool, err := s.conn()
	if err != nil {
		return err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		UPDATE rs_collections
		SET status = $2, error = $3, content_format = NULL, content_data = NULL, processed_at = $4
		WHERE id = $1`

	tag, err := pool.Exec(ctx, query, id,
		string(models.CollectionFailed), diagnostic, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to fail collection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ResetCollection returns a terminal collection to not_processed, clearing
// the blob and diagnostic.
func (s *Store) ResetCollection(ctx context.Context, id int64) error {
	pool, err := s.conn()
	if err != nil {
		return err
	}
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	query := `
		UPDATE rs_collections
		SET status = $2, content_format = NULL, content_data = NULL, error = NULL, processed_at = NULL
		WHERE id = $1`

	tag, err := pool.Exec(ctx, query, id, string(models.CollectionNotProcessed))
	if err != nil {
		return fmt.Errorf("failed to reset collection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
