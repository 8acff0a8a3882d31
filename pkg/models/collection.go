package models

import (
	"time"

	"github.com/reelsight/reelsight-engine/pkg/filter"
)

// CollectionStatus is the processing state machine of a collection:
// not_processed -> processing -> {completed | failed}. Both end states are
// terminal; retry requires an explicit reset.
type CollectionStatus string

const (
	CollectionNotProcessed CollectionStatus = "not_processed"
	CollectionProcessing   CollectionStatus = "processing"
	CollectionCompleted    CollectionStatus = "completed"
	CollectionFailed       CollectionStatus = "failed"
)

// ExportFormat names the serialization formats a collection can hold.
type ExportFormat string

const (
	FormatReport ExportFormat = "report" // line-oriented human report
	FormatCSV    ExportFormat = "csv"    // headered tabular text
	FormatJSON   ExportFormat = "json"   // array of records
)

// IsValidExportFormat checks if the given format is supported.
func IsValidExportFormat(f ExportFormat) bool {
	return f == FormatReport || f == FormatCSV || f == FormatJSON
}

// ContentCollection is a named, exportable grouping of content items under
// a project. Membership is either an explicit id list or a stored filter;
// with neither set it covers every item in the project. On success it holds
// one serialized export blob plus its format tag.
type ContentCollection struct {
	ID          int64              `json:"id"`
	ProjectID   int64              `json:"project_id"`
	Name        string             `json:"name"`
	Description *string            `json:"description,omitempty"`
	ItemIDs     []int64            `json:"item_ids,omitempty"`
	Filter      *filter.ItemFilter `json:"filter,omitempty"`

	Status        CollectionStatus `json:"status"`
	ContentFormat *ExportFormat    `json:"content_format,omitempty"`
	ContentData   *string          `json:"content_data,omitempty"`
	Error         *string          `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}
