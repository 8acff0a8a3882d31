package filter

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelsight/reelsight-engine/pkg/apperrors"
)

func int64Ptr(v int64) *int64    { return &v }
func strPtr(v string) *string    { return &v }
func timePtr(v time.Time) *time.Time { return &v }

func TestCompile_EmptyFilter(t *testing.T) {
	c, err := Compile(ItemFilter{})
	require.NoError(t, err)

	assert.Empty(t, c.Predicates)
	assert.Equal(t, "published_at", c.OrderBy)
	assert.True(t, c.Descending)
	assert.Zero(t, c.Limit)
	assert.Zero(t, c.Offset)
}

func TestCompile_PredicateOrderIsDeterministic(t *testing.T) {
	after := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	before := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	f := ItemFilter{
		ProjectID:        int64Ptr(7),
		SourceKind:       strPtr("competitor"),
		SourceID:         int64Ptr(42),
		MinViews:         int64Ptr(1000),
		PublishedAfter:   timePtr(after),
		PublishedBefore:  timePtr(before),
		TranscriptStatus: strPtr("done"),
		Limit:            25,
		Offset:           50,
	}

	c, err := Compile(f)
	require.NoError(t, err)

	want := []Predicate{
		{Column: "project_id", Op: "=", Value: int64(7)},
		{Column: "source_kind", Op: "=", Value: "competitor"},
		{Column: "source_id", Op: "=", Value: int64(42)},
		{Column: "views", Op: ">=", Value: int64(1000)},
		{Column: "published_at", Op: ">=", Value: after},
		{Column: "published_at", Op: "<=", Value: before},
		{Column: "transcript_status", Op: "=", Value: "done"},
	}
	assert.Equal(t, want, c.Predicates)
	assert.Equal(t, 25, c.Limit)
	assert.Equal(t, 50, c.Offset)
}

func TestCompile_AbsentFieldsAddNoPredicate(t *testing.T) {
	c, err := Compile(ItemFilter{MinViews: int64Ptr(500)})
	require.NoError(t, err)
	require.Len(t, c.Predicates, 1)
	assert.Equal(t, "views", c.Predicates[0].Column)
}

func TestCompile_SortFields(t *testing.T) {
	tests := []struct {
		name      string
		field     string
		direction string
		wantCol   string
		wantDesc  bool
	}{
		{name: "default", field: "", direction: "", wantCol: "published_at", wantDesc: true},
		{name: "views ascending", field: "views", direction: SortAsc, wantCol: "views", wantDesc: false},
		{name: "score maps to marketing_score", field: "score", direction: SortDesc, wantCol: "marketing_score", wantDesc: true},
		{name: "fetched_at", field: "fetched_at", direction: "", wantCol: "fetched_at", wantDesc: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Compile(ItemFilter{SortField: tt.field, SortDirection: tt.direction})
			require.NoError(t, err)
			assert.Equal(t, tt.wantCol, c.OrderBy)
			assert.Equal(t, tt.wantDesc, c.Descending)
		})
	}
}

func TestCompile_UnknownSortFieldRejected(t *testing.T) {
	_, err := Compile(ItemFilter{SortField: "caption; DROP TABLE rs_content_items"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnknownSortField))
}

func TestCompile_InvalidSortDirectionRejected(t *testing.T) {
	_, err := Compile(ItemFilter{SortDirection: "sideways"})
	assert.Error(t, err)
}

func TestCompile_ValuesAreBoundNotInterpolated(t *testing.T) {
	// A hostile status value comes back as a bound value; no predicate
	// ever carries it inside the column or operator.
	f := ItemFilter{TranscriptStatus: strPtr("' OR '1'='1")}
	c, err := Compile(f)
	require.NoError(t, err)
	require.Len(t, c.Predicates, 1)
	assert.Equal(t, "transcript_status", c.Predicates[0].Column)
	assert.Equal(t, "=", c.Predicates[0].Op)
	assert.Equal(t, "' OR '1'='1", c.Predicates[0].Value)
}

func TestIsZero(t *testing.T) {
	assert.True(t, ItemFilter{}.IsZero())
	assert.False(t, ItemFilter{Limit: 10}.IsZero())
	assert.False(t, ItemFilter{ProjectID: int64Ptr(1)}.IsZero())
}
