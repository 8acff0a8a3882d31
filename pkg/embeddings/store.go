// Package embeddings maintains the transcript vector store and serves
// nearest-neighbor retrieval over it. It runs on top of the storage
// driver's raw-query hatch so the vector column stays invisible to the
// typed contract, and it degrades to apperrors.ErrUnavailable whenever
// the backend lacks vector capability or no embedding credential is
// configured.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/reelsight/reelsight-engine/pkg/apperrors"
	"github.com/reelsight/reelsight-engine/pkg/llm"
	"github.com/reelsight/reelsight-engine/pkg/models"
	"github.com/reelsight/reelsight-engine/pkg/storage"
)

// SearchResult is one retrieval hit: the matched item id with the stored
// transcript snapshot and a cosine similarity in [0, 1].
type SearchResult struct {
	ItemID     int64
	Transcript string
	Similarity float64
}

// Store ensures, refreshes and searches transcript embeddings. One vector
// per content item, keyed by item id.
type Store struct {
	db     storage.Store
	client llm.Client
	logger *zap.Logger

	// ensureLocks serializes concurrent Ensure calls per item so the
	// embedding API is hit at most once per transcript version. Striped
	// by item id: two items sharing a stripe serialize needlessly, but
	// the table stays a fixed size no matter how many items are ever
	// ensured.
	ensureLocks [ensureStripes]sync.Mutex
}

const ensureStripes = 64

// NewStore creates an embedding store over the given backend and client.
func NewStore(db storage.Store, client llm.Client, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		client: client,
		logger: logger.Named("embeddings"),
	}
}

// Available reports whether retrieval can work at all on this deployment.
func (s *Store) Available() bool {
	return s.db.Capabilities().VectorSearch && s.client.Available()
}

func (s *Store) checkAvailable() error {
	if !s.db.Capabilities().VectorSearch {
		return fmt.Errorf("backend has no vector support: %w", apperrors.ErrUnavailable)
	}
	if !s.client.Available() {
		return fmt.Errorf("embedding client not configured: %w", apperrors.ErrUnavailable)
	}
	return nil
}

func (s *Store) lockFor(itemID int64) *sync.Mutex {
	return &s.ensureLocks[uint64(itemID)%ensureStripes]
}

// Ensure guarantees a current embedding exists for the item's transcript
// and returns its row id. If the stored snapshot already matches the live
// transcript no embedding call is made. Concurrent calls for the same item
// serialize, so at most one of them computes the vector.
func (s *Store) Ensure(ctx context.Context, item *models.ContentItem) (int64, error) {
	if err := s.checkAvailable(); err != nil {
		return 0, err
	}
	if item.Transcript == nil || *item.Transcript == "" {
		return 0, fmt.Errorf("item %d has no transcript: %w", item.ID, apperrors.ErrValidation)
	}
	transcript := *item.Transcript

	l := s.lockFor(item.ID)
	l.Lock()
	defer l.Unlock()

	existing, err := s.Get(ctx, item.ID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return 0, err
	}
	if existing != nil && !existing.Stale(transcript) {
		return existing.ID, nil
	}

	vec, err := s.embed(ctx, transcript)
	if err != nil {
		return 0, err
	}

	rows, err := s.db.Query(ctx, `
		INSERT INTO rs_transcript_embeddings (item_id, transcript, embedding, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (item_id) DO UPDATE SET
			transcript = EXCLUDED.transcript,
			embedding = EXCLUDED.embedding,
			updated_at = EXCLUDED.updated_at
		RETURNING id`,
		item.ID, transcript, pgvector.NewVector(vec), time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to upsert embedding for item %d: %w", item.ID, err)
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("embedding upsert for item %d returned no row", item.ID)
	}
	id, ok := toInt64(rows[0]["id"])
	if !ok {
		return 0, fmt.Errorf("embedding upsert for item %d returned non-numeric id", item.ID)
	}

	s.logger.Info("embedding stored",
		zap.Int64("item_id", item.ID),
		zap.Int64("embedding_id", id),
		zap.Bool("refreshed", existing != nil))
	return id, nil
}

// Update recomputes the vector for a changed transcript and replaces the
// stored snapshot and vector together.
func (s *Store) Update(ctx context.Context, itemID int64, transcript string) error {
	if err := s.checkAvailable(); err != nil {
		return err
	}
	if transcript == "" {
		return fmt.Errorf("empty transcript for item %d: %w", itemID, apperrors.ErrValidation)
	}

	l := s.lockFor(itemID)
	l.Lock()
	defer l.Unlock()

	vec, err := s.embed(ctx, transcript)
	if err != nil {
		return err
	}

	affected, err := s.db.Exec(ctx, `
		UPDATE rs_transcript_embeddings
		SET transcript = $1, embedding = $2, updated_at = $3
		WHERE item_id = $4`,
		transcript, pgvector.NewVector(vec), time.Now().UTC(), itemID)
	if err != nil {
		return fmt.Errorf("failed to update embedding for item %d: %w", itemID, err)
	}
	if affected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Search embeds the query text and returns the k nearest transcripts in
// the project by cosine similarity, most similar first.
func (s *Store) Search(ctx context.Context, projectID int64, query string, k int) ([]SearchResult, error) {
	if err := s.checkAvailable(); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 5
	}

	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT e.item_id, e.transcript, 1 - (e.embedding <=> $1) AS similarity
		FROM rs_transcript_embeddings e
		JOIN rs_content_items i ON i.id = e.item_id
		WHERE i.project_id = $2
		ORDER BY e.embedding <=> $1
		LIMIT $3`,
		pgvector.NewVector(vec), projectID, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search embeddings: %w", err)
	}

	results := make([]SearchResult, 0, len(rows))
	for _, row := range rows {
		itemID, ok := toInt64(row["item_id"])
		if !ok {
			continue
		}
		transcript, _ := row["transcript"].(string)
		sim, _ := toFloat64(row["similarity"])
		// Cosine distance spans [0, 2] for arbitrary vectors, so the raw
		// score can dip below zero. Clamp to keep the documented [0, 1].
		sim = math.Min(1, math.Max(0, sim))
		results = append(results, SearchResult{
			ItemID:     itemID,
			Transcript: transcript,
			Similarity: sim,
		})
	}
	return results, nil
}

// Get loads the stored embedding record for an item, without the vector
// payload.
func (s *Store) Get(ctx context.Context, itemID int64) (*models.EmbeddingRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, item_id, transcript, created_at, updated_at
		FROM rs_transcript_embeddings
		WHERE item_id = $1`,
		itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to get embedding for item %d: %w", itemID, err)
	}
	if len(rows) == 0 {
		return nil, apperrors.ErrNotFound
	}

	row := rows[0]
	rec := &models.EmbeddingRecord{}
	rec.ID, _ = toInt64(row["id"])
	rec.ItemID, _ = toInt64(row["item_id"])
	rec.Transcript, _ = row["transcript"].(string)
	if t, ok := row["created_at"].(time.Time); ok {
		rec.CreatedAt = t
	}
	if t, ok := row["updated_at"].(time.Time); ok {
		rec.UpdatedAt = t
	}
	return rec, nil
}

// Delete removes the stored vector for an item. Missing rows are not an
// error.
func (s *Store) Delete(ctx context.Context, itemID int64) error {
	_, err := s.db.Exec(ctx, `DELETE FROM rs_transcript_embeddings WHERE item_id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("failed to delete embedding for item %d: %w", itemID, err)
	}
	return nil
}

func (s *Store) embed(ctx context.Context, input string) ([]float32, error) {
	vec, err := s.client.CreateEmbedding(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(vec) != models.EmbeddingDimensions {
		return nil, fmt.Errorf("embedding has %d dimensions, want %d: %w",
			len(vec), models.EmbeddingDimensions, apperrors.ErrValidation)
	}
	return vec, nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
