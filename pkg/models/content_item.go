package models

import "time"

// TranscriptStatus tracks the transcript lifecycle of a content item.
type TranscriptStatus string

const (
	TranscriptNotStarted TranscriptStatus = "not_started"
	TranscriptQueued     TranscriptStatus = "queued"
	TranscriptInProgress TranscriptStatus = "in_progress"
	TranscriptDone       TranscriptStatus = "done"
	TranscriptFailed     TranscriptStatus = "failed"
)

// ValidTranscriptStatuses contains all valid transcript status values.
var ValidTranscriptStatuses = []TranscriptStatus{
	TranscriptNotStarted,
	TranscriptQueued,
	TranscriptInProgress,
	TranscriptDone,
	TranscriptFailed,
}

// IsValidTranscriptStatus checks if the given status is valid.
func IsValidTranscriptStatus(s TranscriptStatus) bool {
	for _, v := range ValidTranscriptStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// ContentItem is one scraped post/video record. It belongs to a project and
// references its tracked source by a denormalized (kind, id) pair rather
// than a foreign key: the source may be removed later and the item must
// stay listable.
//
// Raw engagement counters are pointers because ingestion backfills them;
// derived fields are pointers because unset must stay distinguishable from
// zero. Derived fields are owned by the metrics engine and always
// recomputed together.
type ContentItem struct {
	ID             int64      `json:"id"`
	ProjectID      int64      `json:"project_id"`
	SourceKind     SourceKind `json:"source_kind"`
	SourceID       int64      `json:"source_id"`
	PlatformItemID string     `json:"platform_item_id"` // natural key, unique
	URL            string     `json:"url"`
	Caption        string     `json:"caption"`
	AuthorUsername string     `json:"author_username"`
	AuthorID       string     `json:"author_id"`

	Views           *int64     `json:"views,omitempty"`
	Likes           *int64     `json:"likes,omitempty"`
	Comments        *int64     `json:"comments,omitempty"`
	DurationSeconds *float64   `json:"duration_seconds,omitempty"`
	ThumbnailURL    string     `json:"thumbnail_url,omitempty"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	FetchedAt       time.Time  `json:"fetched_at"`

	// Derived marketing fields (metrics engine).
	EngagementRateVideo  *float64 `json:"engagement_rate_video,omitempty"`
	EngagementRateAll    *float64 `json:"engagement_rate_all,omitempty"`
	ViewToLikeRatio      *float64 `json:"view_to_like_ratio,omitempty"`
	CommentsToLikesRatio *float64 `json:"comments_to_likes_ratio,omitempty"`
	DaysSincePublished   *int64   `json:"days_since_published,omitempty"`
	MarketingScore       *float64 `json:"marketing_score,omitempty"`

	Transcript          *string          `json:"transcript,omitempty"`
	TranscriptStatus    TranscriptStatus `json:"transcript_status"`
	TranscriptUpdatedAt *time.Time       `json:"transcript_updated_at,omitempty"`
}
