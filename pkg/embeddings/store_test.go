package embeddings

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reelsight/reelsight-engine/pkg/apperrors"
	"github.com/reelsight/reelsight-engine/pkg/llm"
	"github.com/reelsight/reelsight-engine/pkg/models"
	"github.com/reelsight/reelsight-engine/pkg/storage"
	"github.com/reelsight/reelsight-engine/pkg/testhelpers"
)

func strPtr(s string) *string { return &s }

func itemWithTranscript(id int64, transcript string) *models.ContentItem {
	return &models.ContentItem{
		ID:         id,
		Transcript: strPtr(transcript),
	}
}

func TestEnsure_NoVectorCapability(t *testing.T) {
	db := &testhelpers.MockStore{Caps: storage.Capabilities{VectorSearch: false}}
	store := NewStore(db, llm.NewMockClient(), zap.NewNop())

	_, err := store.Ensure(context.Background(), itemWithTranscript(1, "hello"))
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
	assert.Equal(t, 0, db.QueryCalls)
}

func TestEnsure_ClientNotConfigured(t *testing.T) {
	db := &testhelpers.MockStore{Caps: storage.Capabilities{VectorSearch: true}}
	client := llm.NewMockClient()
	client.Unavailable = true
	store := NewStore(db, client, zap.NewNop())

	_, err := store.Ensure(context.Background(), itemWithTranscript(1, "hello"))
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
}

func TestEnsure_NoTranscript(t *testing.T) {
	db := &testhelpers.MockStore{Caps: storage.Capabilities{VectorSearch: true}}
	store := NewStore(db, llm.NewMockClient(), zap.NewNop())

	_, err := store.Ensure(context.Background(), &models.ContentItem{ID: 1})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestEnsure_CreatesWhenMissing(t *testing.T) {
	db := &testhelpers.MockStore{
		Caps: storage.Capabilities{VectorSearch: true},
		QueryFunc: func(ctx context.Context, query string, args ...any) ([]storage.Row, error) {
			if strings.Contains(query, "INSERT") {
				return []storage.Row{{"id": int64(42)}}, nil
			}
			// lookup finds nothing
			return nil, nil
		},
	}
	client := llm.NewMockClient()
	store := NewStore(db, client, zap.NewNop())

	id, err := store.Ensure(context.Background(), itemWithTranscript(7, "a transcript"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, 1, client.CreateEmbeddingCalls)
}

func TestEnsure_IdempotentWhenSnapshotCurrent(t *testing.T) {
	now := time.Now().UTC()
	db := &testhelpers.MockStore{
		Caps: storage.Capabilities{VectorSearch: true},
		QueryFunc: func(ctx context.Context, query string, args ...any) ([]storage.Row, error) {
			return []storage.Row{{
				"id":         int64(9),
				"item_id":    int64(7),
				"transcript": "a transcript",
				"created_at": now,
				"updated_at": now,
			}}, nil
		},
	}
	client := llm.NewMockClient()
	store := NewStore(db, client, zap.NewNop())

	id, err := store.Ensure(context.Background(), itemWithTranscript(7, "a transcript"))
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
	assert.Equal(t, 0, client.CreateEmbeddingCalls, "current snapshot must not re-embed")
}

func TestEnsure_RefreshesStaleSnapshot(t *testing.T) {
	now := time.Now().UTC()
	db := &testhelpers.MockStore{
		Caps: storage.Capabilities{VectorSearch: true},
		QueryFunc: func(ctx context.Context, query string, args ...any) ([]storage.Row, error) {
			if strings.Contains(query, "INSERT") {
				return []storage.Row{{"id": int64(9)}}, nil
			}
			return []storage.Row{{
				"id":         int64(9),
				"item_id":    int64(7),
				"transcript": "old words",
				"created_at": now,
				"updated_at": now,
			}}, nil
		},
	}
	client := llm.NewMockClient()
	store := NewStore(db, client, zap.NewNop())

	id, err := store.Ensure(context.Background(), itemWithTranscript(7, "new words"))
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
	assert.Equal(t, 1, client.CreateEmbeddingCalls)
}

func TestEnsure_WrongDimensionRejected(t *testing.T) {
	db := &testhelpers.MockStore{
		Caps: storage.Capabilities{VectorSearch: true},
	}
	client := llm.NewMockClient()
	client.CreateEmbeddingFunc = func(ctx context.Context, input string) ([]float32, error) {
		return make([]float32, 3), nil
	}
	store := NewStore(db, client, zap.NewNop())

	_, err := store.Ensure(context.Background(), itemWithTranscript(7, "words"))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestUpdate_NotFound(t *testing.T) {
	db := &testhelpers.MockStore{
		Caps: storage.Capabilities{VectorSearch: true},
		ExecFunc: func(ctx context.Context, query string, args ...any) (int64, error) {
			return 0, nil
		},
	}
	store := NewStore(db, llm.NewMockClient(), zap.NewNop())

	err := store.Update(context.Background(), 7, "words")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestEnsureLockStripingIsBounded(t *testing.T) {
	store := NewStore(&testhelpers.MockStore{}, llm.NewMockClient(), zap.NewNop())

	seen := make(map[*sync.Mutex]struct{})
	for id := int64(0); id < 10_000; id++ {
		seen[store.lockFor(id)] = struct{}{}
	}
	assert.LessOrEqual(t, len(seen), ensureStripes)
	assert.Same(t, store.lockFor(7), store.lockFor(7+ensureStripes))
}

func TestSearch_RanksBySimilarity(t *testing.T) {
	db := &testhelpers.MockStore{
		Caps: storage.Capabilities{VectorSearch: true},
		QueryFunc: func(ctx context.Context, query string, args ...any) ([]storage.Row, error) {
			return []storage.Row{
				{"item_id": int64(3), "transcript": "closest", "similarity": 0.91},
				{"item_id": int64(8), "transcript": "further", "similarity": 0.42},
			}, nil
		},
	}
	store := NewStore(db, llm.NewMockClient(), zap.NewNop())

	results, err := store.Search(context.Background(), 1, "what works?", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(3), results[0].ItemID)
	assert.InDelta(t, 0.91, results[0].Similarity, 1e-9)
	assert.Equal(t, "further", results[1].Transcript)
}

func TestSearch_ClampsSimilarityBounds(t *testing.T) {
	// Near-opposite vectors push 1 - distance below zero. The reported
	// score stays inside [0, 1].
	db := &testhelpers.MockStore{
		Caps: storage.Capabilities{VectorSearch: true},
		QueryFunc: func(ctx context.Context, query string, args ...any) ([]storage.Row, error) {
			return []storage.Row{
				{"item_id": int64(3), "transcript": "aligned", "similarity": 1.0000002},
				{"item_id": int64(8), "transcript": "opposite", "similarity": -0.37},
			}, nil
		},
	}
	store := NewStore(db, llm.NewMockClient(), zap.NewNop())

	results, err := store.Search(context.Background(), 1, "query", 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1.0, results[0].Similarity)
	assert.Equal(t, 0.0, results[1].Similarity)
}

func TestSearch_EmbeddingFailurePropagates(t *testing.T) {
	db := &testhelpers.MockStore{Caps: storage.Capabilities{VectorSearch: true}}
	client := llm.NewMockClient()
	client.CreateEmbeddingFunc = func(ctx context.Context, input string) ([]float32, error) {
		return nil, errors.New("upstream down")
	}
	store := NewStore(db, client, zap.NewNop())

	_, err := store.Search(context.Background(), 1, "query", 5)
	require.Error(t, err)
	assert.Equal(t, 0, db.QueryCalls)
}

func TestGet_NotFound(t *testing.T) {
	db := &testhelpers.MockStore{Caps: storage.Capabilities{VectorSearch: true}}
	store := NewStore(db, llm.NewMockClient(), zap.NewNop())

	_, err := store.Get(context.Background(), 99)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
