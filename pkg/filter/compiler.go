// Package filter compiles declarative content-item filters into an ordered,
// parameterized predicate list. The compiler is backend-agnostic: it never
// renders placeholder syntax, it only names columns, operators and bound
// values. Drivers own the translation to $N or ? placeholders.
package filter

import (
	"fmt"
	"time"

	"github.com/reelsight/reelsight-engine/pkg/apperrors"
)

// Sort direction values accepted by ItemFilter.SortDirection.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// DefaultSortField is applied when a filter names no sort field.
const DefaultSortField = "published_at"

// sortColumns whitelists sortable columns. Anything else is rejected
// before reaching a backend.
var sortColumns = map[string]string{
	"published_at": "published_at",
	"views":        "views",
	"likes":        "likes",
	"comments":     "comments",
	"fetched_at":   "fetched_at",
	"score":        "marketing_score",
}

// ItemFilter is a declarative filter over content items. Nil fields add no
// predicate. Zero Limit means no limit.
type ItemFilter struct {
	ProjectID        *int64     `json:"project_id,omitempty"`
	SourceKind       *string    `json:"source_kind,omitempty"`
	SourceID         *int64     `json:"source_id,omitempty"`
	MinViews         *int64     `json:"min_views,omitempty"`
	PublishedAfter   *time.Time `json:"published_after,omitempty"`
	PublishedBefore  *time.Time `json:"published_before,omitempty"`
	TranscriptStatus *string    `json:"transcript_status,omitempty"`
	SortField        string     `json:"sort_field,omitempty"`
	SortDirection    string     `json:"sort_direction,omitempty"`
	Limit            int        `json:"limit,omitempty"`
	Offset           int        `json:"offset,omitempty"`
}

// Predicate is one WHERE clause term. Op is a SQL comparison operator and
// Value is always bound, never interpolated.
type Predicate struct {
	Column string
	Op     string
	Value  any
}

// Compiled is the backend-independent shape of a filter: predicates ANDed in
// order, plus ordering and pagination.
type Compiled struct {
	Predicates []Predicate
	OrderBy    string
	Descending bool
	Limit      int
	Offset     int
}

// Compile turns a filter into its predicate/order/limit description.
// Predicate order is fixed (project, source kind, source id, min views,
// published range, transcript status) so output is deterministic for tests
// and query-plan caching. An unknown sort field returns ErrUnknownSortField.
func Compile(f ItemFilter) (*Compiled, error) {
	c := &Compiled{
		Limit:  f.Limit,
		Offset: f.Offset,
	}

	if f.ProjectID != nil {
		c.Predicates = append(c.Predicates, Predicate{Column: "project_id", Op: "=", Value: *f.ProjectID})
	}
	if f.SourceKind != nil {
		c.Predicates = append(c.Predicates, Predicate{Column: "source_kind", Op: "=", Value: *f.SourceKind})
	}
	if f.SourceID != nil {
		c.Predicates = append(c.Predicates, Predicate{Column: "source_id", Op: "=", Value: *f.SourceID})
	}
	if f.MinViews != nil {
		// Items with NULL views never satisfy a minimum.
		c.Predicates = append(c.Predicates, Predicate{Column: "views", Op: ">=", Value: *f.MinViews})
	}
	if f.PublishedAfter != nil {
		c.Predicates = append(c.Predicates, Predicate{Column: "published_at", Op: ">=", Value: *f.PublishedAfter})
	}
	if f.PublishedBefore != nil {
		c.Predicates = append(c.Predicates, Predicate{Column: "published_at", Op: "<=", Value: *f.PublishedBefore})
	}
	if f.TranscriptStatus != nil {
		c.Predicates = append(c.Predicates, Predicate{Column: "transcript_status", Op: "=", Value: *f.TranscriptStatus})
	}

	sortField := f.SortField
	if sortField == "" {
		sortField = DefaultSortField
	}
	column, ok := sortColumns[sortField]
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownSortField, f.SortField)
	}
	c.OrderBy = column

	switch f.SortDirection {
	case SortAsc:
		c.Descending = false
	case SortDesc, "":
		// Default sort is newest first.
		c.Descending = true
	default:
		return nil, fmt.Errorf("invalid sort direction %q", f.SortDirection)
	}

	return c, nil
}

// IsZero reports whether the filter constrains nothing beyond defaults.
func (f ItemFilter) IsZero() bool {
	return f.ProjectID == nil && f.SourceKind == nil && f.SourceID == nil &&
		f.MinViews == nil && f.PublishedAfter == nil && f.PublishedBefore == nil &&
		f.TranscriptStatus == nil && f.SortField == "" && f.SortDirection == "" &&
		f.Limit == 0 && f.Offset == 0
}
