package storage

import (
	"strconv"
	"strings"

	"github.com/reelsight/reelsight-engine/pkg/filter"
)

// Placeholder renders the backend's parameter syntax for 1-based index i.
type Placeholder func(i int) string

// PostgresPlaceholder renders $1, $2, ...
func PostgresPlaceholder(i int) string {
	return "$" + strconv.Itoa(i)
}

// QuestionPlaceholder renders ? regardless of position (SQLite).
func QuestionPlaceholder(int) string {
	return "?"
}

// RenderFilter turns a compiled filter into the SQL tail of a SELECT
// (everything after the column list and table name) plus the bound args.
// argOffset is the count of parameters the caller has already bound.
func RenderFilter(c *filter.Compiled, ph Placeholder, argOffset int) (string, []any) {
	var sb strings.Builder
	args := make([]any, 0, len(c.Predicates)+2)

	for i, p := range c.Predicates {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		sb.WriteString(p.Column)
		sb.WriteByte(' ')
		sb.WriteString(p.Op)
		sb.WriteByte(' ')
		sb.WriteString(ph(argOffset + len(args) + 1))
		args = append(args, p.Value)
	}

	sb.WriteString(" ORDER BY ")
	sb.WriteString(c.OrderBy)
	if c.Descending {
		sb.WriteString(" DESC")
	} else {
		sb.WriteString(" ASC")
	}

	if c.Limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(ph(argOffset + len(args) + 1))
		args = append(args, c.Limit)
	}
	if c.Offset > 0 {
		sb.WriteString(" OFFSET ")
		sb.WriteString(ph(argOffset + len(args) + 1))
		args = append(args, c.Offset)
	}

	return sb.String(), args
}

// RenderWhere renders only the predicate part, for COUNT queries.
func RenderWhere(c *filter.Compiled, ph Placeholder, argOffset int) (string, []any) {
	var sb strings.Builder
	args := make([]any, 0, len(c.Predicates))

	for i, p := range c.Predicates {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		sb.WriteString(p.Column)
		sb.WriteByte(' ')
		sb.WriteString(p.Op)
		sb.WriteByte(' ')
		sb.WriteString(ph(argOffset + len(args) + 1))
		args = append(args, p.Value)
	}

	return sb.String(), args
}
