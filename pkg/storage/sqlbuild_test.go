package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelsight/reelsight-engine/pkg/filter"
)

func compileT(t *testing.T, f filter.ItemFilter) *filter.Compiled {
	t.Helper()
	c, err := filter.Compile(f)
	require.NoError(t, err)
	return c
}

func TestRenderFilter_Postgres(t *testing.T) {
	pid := int64(3)
	views := int64(100)
	c := compileT(t, filter.ItemFilter{ProjectID: &pid, MinViews: &views, Limit: 10, Offset: 20})

	sql, args := RenderFilter(c, PostgresPlaceholder, 0)

	assert.Equal(t,
		" WHERE project_id = $1 AND views >= $2 ORDER BY published_at DESC LIMIT $3 OFFSET $4",
		sql)
	assert.Equal(t, []any{int64(3), int64(100), 10, 20}, args)
}

func TestRenderFilter_SQLite(t *testing.T) {
	pid := int64(3)
	c := compileT(t, filter.ItemFilter{ProjectID: &pid, SortField: "views", SortDirection: filter.SortAsc})

	sql, args := RenderFilter(c, QuestionPlaceholder, 0)

	assert.Equal(t, " WHERE project_id = ? ORDER BY views ASC", sql)
	assert.Equal(t, []any{int64(3)}, args)
}

func TestRenderFilter_ArgOffset(t *testing.T) {
	pid := int64(1)
	c := compileT(t, filter.ItemFilter{ProjectID: &pid})

	sql, _ := RenderFilter(c, PostgresPlaceholder, 2)

	assert.Contains(t, sql, "project_id = $3")
}

func TestRenderFilter_NoPredicates(t *testing.T) {
	c := compileT(t, filter.ItemFilter{})

	sql, args := RenderFilter(c, PostgresPlaceholder, 0)

	assert.Equal(t, " ORDER BY published_at DESC", sql)
	assert.Empty(t, args)
}

func TestRenderWhere(t *testing.T) {
	pid := int64(9)
	status := "done"
	c := compileT(t, filter.ItemFilter{ProjectID: &pid, TranscriptStatus: &status, Limit: 5})

	sql, args := RenderWhere(c, QuestionPlaceholder, 0)

	// Limit and ordering are not part of a COUNT.
	assert.Equal(t, " WHERE project_id = ? AND transcript_status = ?", sql)
	assert.Equal(t, []any{int64(9), "done"}, args)
}
